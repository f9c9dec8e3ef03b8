package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/defender"
	"github.com/glimps-re/defhost/pkg/monitor"
	"github.com/glimps-re/defhost/pkg/server"
	"github.com/spf13/cobra"
)

var ErrNoPath = errors.New("at least one path to monitor is mandatory")

// scanPath returns the monitor callback: a Defender custom scan of path. A
// scan already running postpones the path.
func scanPath(d server.Defender) monitor.ScanFunc {
	return func(ctx context.Context, path string) (err error) {
		result, err := d.CustomScan(ctx, path)
		if errors.Is(err, defender.ErrScanInProgress) {
			return fmt.Errorf("%w: %w", monitor.ErrRetryLater, err)
		}
		report := newReport(datamodel.ScanReport, err)
		report.ScanType = datamodel.CustomScan
		report.Target = path
		if err == nil {
			report.Scan = &result
		}
		emitReport(ctx, report)
		if err != nil {
			return
		}
		if result.ThreatsFound > 0 {
			logger.Warn("threats found", slog.String("path", path), slog.Uint64("threats", uint64(result.ThreatsFound)))
			return
		}
		logger.Info("path scanned", slog.String("path", path), slog.Uint64("files", result.FilesScanned))
		return
	}
}

func checkPaths(cmd *cobra.Command, args []string) error {
	paths := slices.Concat(args, hostConfig.Monitoring.Paths)
	if len(paths) < 1 {
		return ErrNoPath
	}
	for _, path := range paths {
		if _, err := os.Stat(filepath.Clean(path)); err != nil {
			return fmt.Errorf("could not check path %s: %w", path, err)
		}
	}
	return nil
}

var monitoringCmd = &cobra.Command{
	Use:     "monitoring [paths...]",
	Short:   "Scan files created or modified in monitored paths with Defender",
	Args:    checkPaths,
	PreRunE: initServices,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		paths := slices.Concat(args, hostConfig.Monitoring.Paths)
		m, err := monitor.NewMonitor(scanPath(hostServices.defender), monitor.Config{
			PreScan:           hostConfig.Monitoring.PreScan,
			Period:            hostConfig.Monitoring.Period,
			ModificationDelay: hostConfig.Monitoring.ModificationDelay,
		})
		if err != nil {
			return fmt.Errorf("could not start monitoring, err: %w", err)
		}
		defer m.Close()
		m.Start()
		for _, path := range paths {
			if err = m.Add(path); err != nil {
				return fmt.Errorf("could not monitor %s: %w", path, err)
			}
		}
		logger.Info("monitoring started", slog.Any("paths", paths))
		<-cmd.Context().Done()
		return
	},
}
