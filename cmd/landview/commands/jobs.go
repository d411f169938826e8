package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// JobsCmd groups the run history commands.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect detection run history",
	Long: `Inspect detection runs.

By default these commands read the local history database. With
--remote, jobs ls lists the backend's job records instead.

Examples:
  landview jobs ls               # List local run history
  landview jobs ls --remote      # List jobs known to the backend
  landview jobs show 5f0c9a2e    # Show one run
  landview jobs rm 5f0c9a2e      # Forget a run locally`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List detection runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")
		remote, _ := cmd.Flags().GetBool("remote")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if remote {
			return listRemoteJobs(cmd, cfg, page, perPage)
		}
		return listLocalJobs(cfg, page, perPage)
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(args[0])
		if err != nil {
			return err
		}

		pterm.DefaultSection.Printf("Job %s", run.JobID)
		data := [][]string{
			{"Status", string(run.Status)},
			{"Start year", pterm.Sprintf("%d", run.StartYear)},
			{"Bounds", pterm.Sprintf("W %.4f  S %.4f  E %.4f  N %.4f",
				run.Bounds.West, run.Bounds.South, run.Bounds.East, run.Bounds.North)},
			{"Recorded", run.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		}
		if run.EPSG != 0 {
			data = append(data, []string{"Source CRS", pterm.Sprintf("EPSG:%d", run.EPSG)})
		}
		return pterm.DefaultTable.WithData(data).Render()
	},
}

var jobsRmCmd = &cobra.Command{
	Use:   "rm <job-id>",
	Short: "Remove a run from the local history",
	Long: `Remove a run from the local history database. The backend's copy of
the job and its result files are untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		pterm.Success.Printf("Removed %s from local history", args[0])
		return nil
	},
}

var jobsFilesCmd = &cobra.Command{
	Use:   "files <job-id>",
	Short: "List a job's result files on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		files, err := newBackend(cfg).JobFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			pterm.Info.Println("No files recorded for this job")
			return nil
		}

		data := [][]string{{"Filename", "Size", "URL"}}
		for _, f := range files {
			data = append(data, []string{f.Filename, formatSize(f.Size), f.URL})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	jobsLsCmd.Flags().Int("page", 1, "Page number")
	jobsLsCmd.Flags().Int("per-page", 20, "Runs per page")
	jobsLsCmd.Flags().Bool("remote", false, "List the backend's job records instead of local history")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
	JobsCmd.AddCommand(jobsRmCmd)
	JobsCmd.AddCommand(jobsFilesCmd)
}
