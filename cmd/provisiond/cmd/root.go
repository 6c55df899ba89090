// cmd/provisiond/cmd/root.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tamzrod/provisiond/internal/version"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "provisiond",
	Short: "WiFi provisioning and firmware update daemon",
	Long: `provisiond brings up a configuration access point, accepts station
credentials and firmware images over HTTP, and reports progress as JSON.

Station credentials survive restarts. A successful firmware upload switches
the boot slot and restarts the device after a short delay.`,
	Version:       version.Version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "/etc/provisiond/provisiond.yaml", "Path to the YAML config")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
