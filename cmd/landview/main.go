package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelgeo/landview/cmd/landview/commands"
	"github.com/kestrelgeo/landview/logger"
)

var rootCmd = &cobra.Command{
	Use:   "landview",
	Short: "landview - NDVI mining disturbance detection frontend",
	Long: `landview - Map orchestration for NDVI mining disturbance detection.

landview drives the detection backend and the browser map shell: it
uploads NDVI stacks and coal lease masks, triggers detection runs, and
serves the websocket bridge that keeps the map, charts, and point
queries in sync.

Available commands:
  run     - Upload datasets and run a detection
  serve   - Start the websocket map bridge
  jobs    - Inspect the local run history
  version - Show version information

Examples:
  landview run --ndvi stack.tif --coal leases.geojson --start-year 2010
  landview serve
  landview jobs ls
  landview jobs show 5f0c9a2e`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			logger.SetDebug()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.landview/config.toml)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
