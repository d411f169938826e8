package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kestrelgeo/landview/logger"
	"github.com/kestrelgeo/landview/server"
)

// ServeCmd starts the websocket bridge for browser map shells.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the websocket map bridge",
	Long: `Start the bridge the browser map shell connects to. Each connected
browser gets its own map session: layer lifecycle, display mode, and
point queries all run server-side and are pushed down as commands.

Examples:
  landview serve
  landview serve --addr :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		backend := newBackend(cfg)
		bridge := server.NewBridge(backend, cfg)

		pterm.DefaultHeader.WithFullWidth().Printf("landview bridge")
		pterm.Println()
		pterm.Info.Printf("Listening on %s", cfg.Server.Addr)
		pterm.Info.Printf("Backend: %s", cfg.Backend.BaseURL)
		pterm.Println()

		errCh := make(chan error, 1)
		go func() {
			errCh <- bridge.Start(cfg.Server.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Infow("Shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return bridge.Shutdown(ctx)
	},
}

func init() {
	ServeCmd.Flags().String("addr", "", "Listen address (default from config)")
}
