package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/config"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/view"
)

// RunCmd uploads the two datasets and runs a detection.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload datasets and run a disturbance detection",
	Long: `Run a full detection: upload the NDVI annual stack, upload the coal
lease mask, trigger the detection algorithm, and record the completed
job in the local history.

The completed job can then be opened on any connected map (landview
serve) or inspected with landview jobs.

Examples:
  landview run --ndvi stack.tif --coal leases.geojson
  landview run --ndvi stack.tif --coal leases.geojson --start-year 2015`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ndviPath, _ := cmd.Flags().GetString("ndvi")
		coalPath, _ := cmd.Flags().GetString("coal")
		startYear, _ := cmd.Flags().GetInt("start-year")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if startYear == 0 {
			startYear = cfg.Detection.StartYear
		}

		return runDetection(cmd.Context(), cfg, ndviPath, coalPath, startYear)
	},
}

func init() {
	RunCmd.Flags().String("ndvi", "", "Path to the NDVI annual stack (required)")
	RunCmd.Flags().String("coal", "", "Path to the coal lease mask (required)")
	RunCmd.Flags().Int("start-year", 0, "First year of the NDVI stack (default from config)")
	RunCmd.MarkFlagRequired("ndvi")
	RunCmd.MarkFlagRequired("coal")
}

func runDetection(ctx context.Context, cfg *config.Config, ndviPath, coalPath string, startYear int) error {
	ndvi, err := os.Open(ndviPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open NDVI dataset %s", ndviPath)
	}
	defer ndvi.Close()

	coal, err := os.Open(coalPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open coal mask %s", coalPath)
	}
	defer coal.Close()

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	backend := newBackend(cfg)
	loader := &printLoader{}
	runner := view.NewRunner(backend, loader, store, &ptermSink{})

	pterm.DefaultHeader.WithFullWidth().Printf("landview detection run")
	pterm.Println()
	pterm.Info.Printf("NDVI stack: %s", ndviPath)
	pterm.Info.Printf("Coal mask:  %s", coalPath)
	pterm.Info.Printf("Start year: %d", startYear)
	pterm.Println()

	jobID, err := runner.Execute(ctx, view.RunRequest{
		NDVI:         ndvi,
		NDVIFilename: ndviPath,
		Coal:         coal,
		CoalFilename: coalPath,
		StartYear:    startYear,
	})
	if err != nil {
		pterm.Error.Printf("Detection run failed: %v", err)
		return err
	}

	pterm.Println()
	pterm.Success.Printf("Detection complete, job %s", jobID)
	if b := loader.bounds; b.Valid() {
		pterm.Info.Printf("Result bounds: W %.4f  S %.4f  E %.4f  N %.4f", b.West, b.South, b.East, b.North)
	}
	return nil
}

// ptermSink renders run progress on the terminal.
type ptermSink struct{}

func (ptermSink) ShowStatus(level view.StatusLevel, message string) {
	switch level {
	case view.StatusError:
		pterm.Error.Println(message)
	case view.StatusWarning:
		pterm.Warning.Println(message)
	default:
		pterm.Info.Println(message)
	}
}

func (ptermSink) ShowResult(point geo.Point, ts *api.Timeseries) {
	// The run path never produces point-query results.
}

// printLoader stands in for a live map: it reports the products instead
// of attaching layers.
type printLoader struct {
	bounds geo.Bounds
}

func (l *printLoader) LoadResult(ctx context.Context, jobID string, result *api.RunResult, startYear int) error {
	l.bounds = result.Bounds
	for _, p := range result.Outputs {
		pterm.Info.Printf("Output ready: %s", p)
	}
	if result.CRS.Warning != "" {
		pterm.Warning.Println(result.CRS.Warning)
	}
	fmt.Println()
	return nil
}
