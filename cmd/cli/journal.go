package cli

import (
	"github.com/spf13/cobra"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:     "journal [id]",
	Short:   "List the latest remediation actions, newest first, or print the action with the given id",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if len(args) == 1 {
			entry, getErr := hostServices.journal.Get(cmd.Context(), args[0])
			if getErr != nil {
				return getErr
			}
			return printResult(cmd.OutOrStdout(), entry)
		}
		entries, err := hostServices.journal.List(cmd.Context(), journalLimit)
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), entries)
	},
}
