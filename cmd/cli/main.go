package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

func Main() {
	if err := main_(); err != nil {
		os.Exit(1)
	}
}

func main_() (err error) {
	initRoot(rootCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(refreshCmd)

	scanCmd.AddCommand(scanQuickCmd)
	scanCmd.AddCommand(scanFullCmd)
	scanCmd.AddCommand(scanCustomCmd)
	scanCmd.AddCommand(scanCancelCmd)
	scanCmd.AddCommand(scanRunningCmd)
	scanCmd.AddCommand(scanHistoryCmd)
	scanCmd.AddCommand(scanSummaryCmd)
	rootCmd.AddCommand(scanCmd)

	threatsCmd.AddCommand(threatsListCmd)
	threatsCmd.AddCommand(threatsQuarantineCmd)
	threatsCmd.AddCommand(threatsRemoveCmd)
	threatsCmd.AddCommand(threatsAllowCmd)
	threatsCmd.AddCommand(threatsRestoreCmd)
	threatsCmd.AddCommand(threatsInspectCmd)
	threatsCmd.AddCommand(threatsRemoveAllCmd)
	threatsCmd.AddCommand(threatsCleanQuarantineCmd)
	threatsCmd.AddCommand(threatsCleanHistoryCmd)
	rootCmd.AddCommand(threatsCmd)

	exclusionsCmd.AddCommand(exclusionsListCmd)
	exclusionsCmd.AddCommand(exclusionsAddCmd)
	exclusionsCmd.AddCommand(exclusionsRemoveCmd)
	rootCmd.AddCommand(exclusionsCmd)

	cleanupCmd.AddCommand(cleanupCategoriesCmd)
	cleanupCmd.AddCommand(cleanupAnalyzeCmd)
	cleanupCmd.AddCommand(cleanupRunCmd)
	cleanupCmd.AddCommand(cleanupTempCmd)
	rootCmd.AddCommand(cleanupCmd)

	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(monitoringCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		hostServices.Close()
	}()
	err = rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Println(err)
		return err
	}
	return
}

func init() {
	// mandatory tricks for windowsgui app
	cobra.MousetrapHelpText = ""
}
