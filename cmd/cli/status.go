package cli

import (
	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Print Defender protection status",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		status, err := hostServices.defender.Status(cmd.Context())
		report := newReport(datamodel.StatusReport, err)
		if err == nil {
			report.Status = &status
		}
		emitReport(cmd.Context(), report)
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), status)
	},
}

var updateCmd = &cobra.Command{
	Use:     "update",
	Short:   "Update Defender signatures",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.defender.UpdateDefinitions(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Short:   "Refresh Defender threat detection",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.defender.RefreshDetection(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}
