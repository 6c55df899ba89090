// cmd/provisiond/cmd/check.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamzrod/provisiond/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file and print the effective settings",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config ok: %s\n", cfgPath)
	fmt.Fprintf(out, "  wifi:   driver=%s interface=%s ap=%q retries=%d\n",
		cfg.Wifi.Driver, cfg.Wifi.Interface, cfg.Wifi.AP.SSID, *cfg.Wifi.MaxRetries)
	fmt.Fprintf(out, "  http:   listen=%s\n", cfg.HTTP.Listen)
	fmt.Fprintf(out, "  ota:    dir=%s chunk=%d header_window=%d\n",
		cfg.OTA.Dir, cfg.OTA.ChunkSize, cfg.OTA.MaxHeaderBytes)
	fmt.Fprintf(out, "  led:    %s\n", cfg.LED.Backend)
	fmt.Fprintf(out, "  button: %v  sensor: %v  mqtt: %v\n",
		cfg.Button != nil, cfg.Sensor != nil, cfg.MQTT != nil)
	return nil
}

// loadConfig runs the full Load, Validate, Normalize sequence.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}
