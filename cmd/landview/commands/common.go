package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/config"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/history"
)

// loadConfig honors the global --config flag, falling back to the
// default search path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newBackend(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		api.WithTokens(cfg.Backend.AccessToken, cfg.Backend.RefreshToken))
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.Storage.Path == "" {
		return nil, errors.New("storage.path is not configured")
	}
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create storage directory %s", dir)
		}
	}
	return history.NewStore(cfg.Storage.Path)
}
