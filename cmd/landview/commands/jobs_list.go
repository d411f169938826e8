package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kestrelgeo/landview/config"
)

func listLocalJobs(cfg *config.Config, page, perPage int) error {
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.List(page, perPage)
	if err != nil {
		return err
	}
	if p.Total == 0 {
		pterm.Info.Println("No detection runs recorded yet")
		return nil
	}

	data := [][]string{{"Job ID", "Status", "Start year", "Recorded"}}
	for _, r := range p.Runs {
		data = append(data, []string{
			r.JobID,
			string(r.Status),
			pterm.Sprintf("%d", r.StartYear),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Info.Printf("Page %d of %d (%d runs)", p.Page, p.Pages, p.Total)
	return nil
}

func listRemoteJobs(cmd *cobra.Command, cfg *config.Config, page, perPage int) error {
	jp, err := newBackend(cfg).Jobs(cmd.Context(), page, perPage)
	if err != nil {
		return err
	}
	if jp.Total == 0 {
		pterm.Info.Println("The backend has no jobs")
		return nil
	}

	data := [][]string{{"Job ID", "Status", "Start year", "Created"}}
	for _, j := range jp.Jobs {
		data = append(data, []string{
			j.JobID,
			string(j.Status),
			pterm.Sprintf("%d", j.StartYear),
			j.CreatedAt,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Info.Printf("Page %d of %d (%d jobs)", jp.Page, jp.Pages, jp.Total)
	return nil
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return pterm.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return pterm.Sprintf("%.1f KB", float64(size)/(1<<10))
	case size > 0:
		return pterm.Sprintf("%d B", size)
	default:
		return "-"
	}
}
