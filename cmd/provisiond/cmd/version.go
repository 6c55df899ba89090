// cmd/provisiond/cmd/version.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamzrod/provisiond/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build time",
	Run: func(cmd *cobra.Command, args []string) {
		b := version.Build()
		fmt.Fprintf(cmd.OutOrStdout(), "provisiond %s (built %s %s)\n", version.Version, b.CompileDate, b.CompileTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
