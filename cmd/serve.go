package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/recbridge/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge server",
	Long: `Start the recording bridge server.

Operations are plain HTTP endpoints returning {"success": ..., "result": ...}
or {"success": false, "code": ..., "error": ...}. Events (recordingProgress,
recordingStatus, recordingFinished) are pushed to every client connected to
the /events WebSocket.

Stopping the server (Ctrl+C) tears down any recording in progress without
emitting events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg, cfgFile)
		slog.Info("Recording bridge starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"profile", cfg.Name,
			"config", cfgFile)

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 8089, "port for the bridge server (overrides config)")
	serveCmd.Flags().String("host", "localhost", "address to listen on (overrides config)")
}
