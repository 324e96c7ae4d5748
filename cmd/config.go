package cmd

import (
	"fmt"

	"github.com/audiolibrelab/recbridge/internal/config"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

// inheritableKeys lists the profile settings in display order
var inheritableKeys = []string{
	"audio.backend",
	"recording.audio_source",
	"recording.output_format",
	"recording.audio_encoding",
	"recording.sample_rate",
	"recording.channels",
	"recording.bit_rate",
	"recording.include_base64",
	"notification.title",
	"notification.text_prefix",
	"notification.channel_id",
	"battery.enabled",
	"battery.low_level",
	"battery.poll_interval",
	"progress.interval",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View the resolved configuration and select the active profile.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))

		fmt.Printf("\n=== INHERITANCE ===\n")
		for _, key := range inheritableKeys {
			fmt.Printf("%s %s\n", key, getInheritanceIndicator(cfg.Inheritance[key]))
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the active profile in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("no config file found; create one or pass --config")
		}
		if err := config.UpdateActiveConfig(cfgFile, args[0]); err != nil {
			return err
		}
		fmt.Printf("Active profile set to '%s' in %s\n", args[0], cfgFile)
		return nil
	},
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "default":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[built-in]"
	}
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configUseCmd)
}
