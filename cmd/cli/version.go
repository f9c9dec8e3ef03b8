package cli

import (
	"fmt"

	"github.com/glimps-re/defhost/pkg/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print defhost version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "defhost version: %s\n", config.Version)
	},
}
