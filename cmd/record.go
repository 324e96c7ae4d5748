package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/audiolibrelab/recbridge/internal/progress"
	"github.com/audiolibrelab/recbridge/internal/recording"
	"github.com/audiolibrelab/recbridge/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [output-file]",
	Short: "Record from a capture device into a file",
	Long: `Record audio into the given file using the recording defaults of the
active profile. Recording runs until Ctrl+C, until --duration elapses, or
until the battery watchdog stops it.

A relative path is resolved against the documents directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Directories.Documents, path)
		}

		settings := cfg.Recording.Settings()
		if cmd.Flags().Changed("source") {
			settings["AudioSource"], _ = cmd.Flags().GetInt("source")
		}
		if cmd.Flags().Changed("sample-rate") {
			settings["SampleRate"], _ = cmd.Flags().GetInt("sample-rate")
		}
		if cmd.Flags().Changed("channels") {
			settings["Channels"], _ = cmd.Flags().GetInt("channels")
		}
		if cmd.Flags().Changed("base64") {
			settings["IncludeBase64"], _ = cmd.Flags().GetBool("base64")
		}
		duration, _ := cmd.Flags().GetDuration("duration")

		finished := make(chan recording.FinishedEvent, 1)
		emitter := recording.EmitterFunc(func(name string, payload interface{}) {
			switch ev := payload.(type) {
			case recording.ProgressEvent:
				fmt.Printf("\r⏺  %s", progress.FormatElapsed(ev.CurrentTime))
			case recording.StatusEvent:
				slog.Debug("Recording status", "recording", ev.IsRecording, "paused", ev.IsPaused)
			case recording.FinishedEvent:
				select {
				case finished <- ev:
				default:
				}
			}
		})

		svc := service.New(cfg, cfgFile, service.Dependencies{Emitter: emitter})
		defer svc.Shutdown()

		if ok, _ := svc.CheckAuthorizationStatus(); !ok {
			return fmt.Errorf("no capture device available")
		}

		slog.Info("Record command started", "path", path, "profile", cfg.Name)
		if _, err := svc.PrepareRecordingAtPath(path, settings); err != nil {
			return fmt.Errorf("failed to prepare recording (%s): %w", service.ErrorCode(err), err)
		}
		if _, err := svc.StartRecording(); err != nil {
			return fmt.Errorf("failed to start recording (%s): %w", service.ErrorCode(err), err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
			slog.Info("Recording", "duration", duration)
		} else {
			slog.Info("Recording - Press Ctrl+C to stop")
		}

		var result recording.FinishedEvent
		select {
		case result = <-finished:
			fmt.Println()
			slog.Warn("Recording was stopped automatically")
		case <-ctx.Done():
			fmt.Println()
			slog.Info("Stopping recording...")
			if _, err := svc.StopRecording(); err != nil {
				return fmt.Errorf("failed to stop recording (%s): %w", service.ErrorCode(err), err)
			}
			select {
			case result = <-finished:
			case <-time.After(time.Second):
				return fmt.Errorf("recording stopped but no completion event was received")
			}
		}

		printFinished(result)
		return nil
	},
}

func printFinished(ev recording.FinishedEvent) {
	fmt.Printf("✅ Recording finished\n")
	fmt.Printf("  file:       %s\n", ev.AudioFileURL)
	fmt.Printf("  duration:   %.2fs\n", ev.Duration)
	fmt.Printf("  timestamps: %v\n", ev.Timestamps)
	if ev.Base64 != "" {
		fmt.Printf("  base64:     %d characters\n", len(ev.Base64))
	}
	slog.Debug("Recording session", "session", ev.SessionID, "status", ev.Status)
}

func init() {
	recordCmd.Flags().Duration("duration", 0, "stop automatically after this duration (0 = until Ctrl+C)")
	recordCmd.Flags().Int("source", 0, "capture device index from 'recbridge sources' (overrides config)")
	recordCmd.Flags().Int("sample-rate", 0, "sample rate in Hz (overrides config)")
	recordCmd.Flags().Int("channels", 0, "channel count (overrides config)")
	recordCmd.Flags().Bool("base64", false, "include the file as base64 in the completion event")
}
