package cli

import (
	"fmt"

	"github.com/alecthomas/units"
	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/spf13/cobra"
)

var (
	minSize    string
	categories []string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Free disk space held by temporary and cache files",
}

// filterMinSize keeps the categories holding at least threshold bytes.
// Totals are left untouched.
func filterMinSize(analysis datamodel.CleanupAnalysis, threshold int64) datamodel.CleanupAnalysis {
	kept := make([]datamodel.CleanupCategory, 0, len(analysis.Categories))
	for _, cat := range analysis.Categories {
		if cat.Size >= threshold {
			kept = append(kept, cat)
		}
	}
	analysis.Categories = kept
	return analysis
}

var cleanupCategoriesCmd = &cobra.Command{
	Use:     "categories",
	Short:   "List the cleanup categories and the paths they cover",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd.OutOrStdout(), hostServices.cleaner.Categories())
	},
}

var cleanupAnalyzeCmd = &cobra.Command{
	Use:     "analyze",
	Short:   "Measure each cleanup category",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var threshold units.Base2Bytes
		if minSize != "" {
			threshold, err = units.ParseBase2Bytes(minSize)
			if err != nil {
				err = fmt.Errorf("invalid min size %q: %w", minSize, err)
				return
			}
		}
		analysis, err := hostServices.cleaner.Analyze(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), filterMinSize(analysis, int64(threshold)))
	},
}

var cleanupRunCmd = &cobra.Command{
	Use:     "run",
	Short:   "Delete the content of the selected categories",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.cleaner.Clean(cmd.Context(), categories)
		report := newReport(datamodel.CleanupReport, err)
		if err == nil {
			report.Cleanup = &result
		}
		emitReport(cmd.Context(), report)
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var cleanupTempCmd = &cobra.Command{
	Use:     "temp",
	Short:   "Delete temporary files",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		result, err := hostServices.cleaner.CleanTempFiles(cmd.Context())
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}
