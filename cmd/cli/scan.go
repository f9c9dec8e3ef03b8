package cli

import (
	"context"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run and follow Defender scans",
}

// runScan runs scan, reports it and prints its result.
func runScan(cmd *cobra.Command, scanType datamodel.ScanType, target string, scan func(ctx context.Context) (datamodel.ScanResult, error)) (err error) {
	result, err := scan(cmd.Context())
	report := newReport(datamodel.ScanReport, err)
	report.ScanType = scanType
	report.Target = target
	if err == nil {
		report.Scan = &result
	}
	emitReport(cmd.Context(), report)
	if err != nil {
		return
	}
	return printResult(cmd.OutOrStdout(), result)
}

var scanQuickCmd = &cobra.Command{
	Use:     "quick",
	Short:   "Run a quick scan",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, datamodel.QuickScan, "", hostServices.defender.QuickScan)
	},
}

var scanFullCmd = &cobra.Command{
	Use:     "full",
	Short:   "Run a full scan",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, datamodel.FullScan, "", hostServices.defender.FullScan)
	},
}

var scanCustomCmd = &cobra.Command{
	Use:     "custom <path>",
	Short:   "Scan a file or folder",
	Args:    cobra.ExactArgs(1),
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, datamodel.CustomScan, args[0], func(ctx context.Context) (datamodel.ScanResult, error) {
			return hostServices.defender.CustomScan(ctx, args[0])
		})
	},
}

var scanCancelCmd = &cobra.Command{
	Use:     "cancel",
	Short:   "Cancel the running scan",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.defender.CancelScan(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var scanRunningCmd = &cobra.Command{
	Use:     "running",
	Short:   "Tell whether a scan is running",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		running, err := hostServices.defender.IsScanRunning(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), map[string]bool{"running": running})
	},
}

var scanHistoryCmd = &cobra.Command{
	Use:     "history",
	Short:   "List the latest scans",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		history, err := hostServices.defender.History(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), history)
	},
}

var scanSummaryCmd = &cobra.Command{
	Use:       "summary <quick|full|custom>",
	Short:     "Summarize the last scan of a type",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(datamodel.QuickScan), string(datamodel.FullScan), string(datamodel.CustomScan)},
	PreRunE:   initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		summary, err := hostServices.defender.LastScanSummary(cmd.Context(), args[0])
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), summary)
	},
}
