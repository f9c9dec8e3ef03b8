package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/spf13/cobra"
)

var threatsCmd = &cobra.Command{
	Use:   "threats",
	Short: "List and remediate detected threats",
}

func parseThreatID(arg string) (id uint64, err error) {
	id, err = strconv.ParseUint(arg, 10, 64)
	if err != nil {
		err = fmt.Errorf("invalid threat id %q: %w", arg, err)
	}
	return
}

// threatAction builds a command running action on the threat id given as
// first argument.
func threatAction(use string, short string, action func(ctx context.Context, id uint64) (datamodel.OperationResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <threat-id>",
		Short:   short,
		Args:    cobra.ExactArgs(1),
		PreRunE: initServices,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := parseThreatID(args[0])
			if err != nil {
				return
			}
			result, err := action(cmd.Context(), id)
			if err != nil {
				return
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

// globalAction builds a command running an action on every threat.
func globalAction(use string, short string, action func(ctx context.Context) (datamodel.OperationResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    cobra.NoArgs,
		PreRunE: initServices,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			result, err := action(cmd.Context())
			if err != nil {
				return
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

var threatsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List detected threats",
	Args:    cobra.NoArgs,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		summary, err := hostServices.defender.Threats(cmd.Context())
		report := newReport(datamodel.ThreatsReport, err)
		if err == nil {
			report.Threats = &summary
		}
		emitReport(cmd.Context(), report)
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), summary)
	},
}

var (
	threatsQuarantineCmd = threatAction("quarantine", "Quarantine a threat", func(ctx context.Context, id uint64) (datamodel.OperationResult, error) {
		return hostServices.defender.QuarantineThreat(ctx, id)
	})
	threatsRemoveCmd = threatAction("remove", "Remove a threat", func(ctx context.Context, id uint64) (datamodel.OperationResult, error) {
		return hostServices.defender.RemoveThreat(ctx, id)
	})
	threatsRestoreCmd = threatAction("restore", "Restore a threat and exclude its file", func(ctx context.Context, id uint64) (datamodel.OperationResult, error) {
		return hostServices.defender.RestoreThreat(ctx, id)
	})
	threatsRemoveAllCmd = globalAction("remove-all", "Remove every active threat", func(ctx context.Context) (datamodel.OperationResult, error) {
		return hostServices.defender.RemoveAllThreats(ctx)
	})
	threatsCleanQuarantineCmd = globalAction("clean-quarantine", "Purge the quarantine", func(ctx context.Context) (datamodel.OperationResult, error) {
		return hostServices.defender.CleanQuarantine(ctx)
	})
	threatsCleanHistoryCmd = globalAction("clean-history", "Clear the threat history", func(ctx context.Context) (datamodel.OperationResult, error) {
		return hostServices.defender.CleanThreatHistory(ctx)
	})
)

var threatsAllowCmd = &cobra.Command{
	Use:     "allow <threat-id> [path]",
	Short:   "Allow a threat, and exclude its file path if given",
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		id, err := parseThreatID(args[0])
		if err != nil {
			return
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		result, err := hostServices.defender.AllowThreat(cmd.Context(), id, path)
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var threatsInspectCmd = &cobra.Command{
	Use:     "inspect <threat-id>",
	Short:   "Submit the file of a threat to GLIMPS Malware Detect",
	Args:    cobra.ExactArgs(1),
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		id, err := parseThreatID(args[0])
		if err != nil {
			return
		}
		result, err := hostServices.defender.Inspect(cmd.Context(), id)
		if err != nil {
			return
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}
