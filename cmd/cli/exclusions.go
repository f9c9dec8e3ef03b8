package cli

import (
	"github.com/spf13/cobra"
)

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "Manage Defender path exclusions",
}

var exclusionsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List excluded paths",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		paths, err := hostServices.defender.Exclusions(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), paths)
	},
}

var exclusionsAddCmd = &cobra.Command{
	Use:     "add <path>",
	Short:   "Exclude a path from scans",
	Args:    cobra.ExactArgs(1),
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.defender.AddExclusion(cmd.Context(), args[0])
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var exclusionsRemoveCmd = &cobra.Command{
	Use:     "remove <path>",
	Short:   "Remove a path exclusion",
	Args:    cobra.ExactArgs(1),
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.defender.RemoveExclusion(cmd.Context(), args[0])
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}
