package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/recbridge/internal/audio"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Show duration and size of a recorded file",
	Long: `Display the duration read from the file's own metadata, the way the
recordingFinished event reports it, together with the file size.

A relative path is resolved against the documents directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Directories.Documents, path)
		}

		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		duration, err := audio.ProbeDuration(path)
		if err != nil {
			return fmt.Errorf("failed to read duration: %w", err)
		}

		fmt.Printf("=== FILE ===\n")
		fmt.Printf("path: %s\n", path)
		fmt.Printf("url: file://%s\n", path)
		fmt.Printf("size: %d bytes\n", stat.Size())
		fmt.Printf("duration: %.3fs\n", duration.Seconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
