package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/audiolibrelab/recbridge/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available capture devices",
	Long: `List the capture devices of the configured audio backend.

The index shown is the AudioSource value that selects the device. Index 0
always selects the system default device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := audio.NewBackend(cfg.Audio.Backend)
		return listAvailableSources(backend)
	},
}

// listAvailableSources prints the capture devices of backend
func listAvailableSources(backend audio.AudioBackend) error {
	fmt.Printf("🎵 Capture Sources (%s, %s)\n", backend.GetType(), runtime.GOOS)
	fmt.Printf("═══════════════════════════════════════\n\n")

	available, err := backend.CaptureAvailable()
	if err != nil {
		slog.Warn("Could not probe capture devices", "error", err)
	}

	sources, err := backend.ListSources()
	if err != nil {
		return fmt.Errorf("failed to list capture sources: %w", err)
	}

	fmt.Printf("📋 SOURCES (%d found):\n", len(sources))
	fmt.Printf("  0. system default\n")
	for _, source := range sources {
		fmt.Printf("  %d. %s\n", source.Index, source.Name)
		slog.Debug("Capture source", "index", source.Index, "id", source.ID)
	}

	caps := backend.Capabilities()
	fmt.Printf("\n💡 Capture available: %t, pause/resume supported: %t\n", available, caps.PauseResume)
	fmt.Printf("  • Select a device with 'recbridge record --source N' or recording.audio_source\n\n")

	return nil
}
