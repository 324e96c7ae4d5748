package cmd

import (
	"errors"
	"fmt"

	"github.com/audiolibrelab/recbridge/internal/battery"

	"github.com/spf13/cobra"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Show the power state seen by the battery watchdog",
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := battery.ReadHost()
		if errors.Is(err, battery.ErrNoBattery) {
			fmt.Println("🔌 No battery present, the watchdog never stops a recording")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read battery state: %w", err)
		}

		fmt.Printf("🔋 level: %d%%\n", obs.Level)
		fmt.Printf("   charging: %t\n", obs.Charging)
		fmt.Printf("   watchdog enabled: %t (low level %d%%)\n", cfg.Battery.IsEnabled(), cfg.Battery.LowLevel)
		if battery.IsCritical(obs, cfg.Battery.LowLevel) {
			fmt.Println("⚠️  Critically low: a recording would be stopped now")
		}
		return nil
	},
}
