package defender

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/powershell"
)

func (d *Defender) QuickScan(ctx context.Context) (result datamodel.ScanResult, err error) {
	return d.scan(ctx, datamodel.QuickScan, "")
}

func (d *Defender) FullScan(ctx context.Context) (result datamodel.ScanResult, err error) {
	return d.scan(ctx, datamodel.FullScan, "")
}

func (d *Defender) CustomScan(ctx context.Context, path string) (result datamodel.ScanResult, err error) {
	if strings.TrimSpace(path) == "" {
		err = ErrEmptyPath
		return
	}
	return d.scan(ctx, datamodel.CustomScan, path)
}

func (d *Defender) scan(ctx context.Context, scanType datamodel.ScanType, path string) (result datamodel.ScanResult, err error) {
	running, err := d.IsScanRunning(ctx)
	if err != nil {
		return
	}
	if running {
		err = ErrScanInProgress
		return
	}

	start := Now()
	result.FilesScanned = scanType.FileEstimate()
	if scanType == datamodel.CustomScan {
		output, countErr := d.runner.Run(ctx, fileCountScript(path))
		if countErr != nil {
			err = fmt.Errorf("could not count files in %s: %w", path, countErr)
			return
		}
		result.FilesScanned = uint64(max(powershell.ParseCount(output), 0))
	}

	scanLogger := logger.With(slog.String("scan-type", string(scanType)), slog.String("path", path))
	scanLogger.Info("scan started")
	scanCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, d.scanTimeout)
		defer cancel()
	}
	if _, err = d.runOutcome(scanCtx, startScanScript(scanType, path)); err != nil {
		err = fmt.Errorf("%s failed: %w", strings.ToLower(scanType.Label()), err)
		return
	}
	elapsed := Now().Sub(start)
	result.ScanTime = scanType.FormatScanTime(elapsed)

	result.ThreatsFound, err = d.threatCount(ctx)
	if err != nil {
		return
	}
	scanLogger.Info("scan done", slog.Duration("elapsed", elapsed), slog.Uint64("threats", uint64(result.ThreatsFound)))
	return
}

func (d *Defender) threatCount(ctx context.Context) (count uint32, err error) {
	output, err := d.runner.Run(ctx, threatCountScript)
	if err != nil {
		err = fmt.Errorf("could not count threats: %w", err)
		return
	}
	count = uint32(max(powershell.ParseCount(output), 0))
	return
}

func (d *Defender) CancelScan(ctx context.Context) (result datamodel.OperationResult, err error) {
	result, err = d.runOutcome(ctx, cancelScanScript)
	if err != nil {
		err = fmt.Errorf("could not cancel scan: %w", err)
		return
	}
	logger.Info("scan cancelled")
	return
}

// History lists the last quick and full scans known to Defender.
func (d *Defender) History(ctx context.Context) (history []datamodel.ScanHistoryItem, err error) {
	status, err := d.computerStatus(ctx)
	if err != nil {
		return
	}
	history = []datamodel.ScanHistoryItem{}
	entries := []struct {
		scanType   datamodel.ScanType
		start, end *time.Time
	}{
		{scanType: datamodel.QuickScan, start: status.QuickScanStartTime, end: status.QuickScanEndTime},
		{scanType: datamodel.FullScan, start: status.FullScanStartTime, end: status.FullScanEndTime},
	}
	for _, e := range entries {
		if e.start == nil {
			continue
		}
		history = append(history, datamodel.ScanHistoryItem{
			ScanType:     e.scanType.Label(),
			StartTime:    *e.start,
			EndTime:      e.end,
			InProgress:   e.end == nil,
			FilesScanned: e.scanType.FileEstimate(),
		})
	}
	return
}

type scanEvent struct {
	TimeCreated *time.Time `json:"TimeCreated"`
	Message     string     `json:"Message"`
}

var (
	scanEventPatterns = map[datamodel.ScanType]*regexp.Regexp{
		datamodel.QuickScan:  regexp.MustCompile(`(?i)Quick Scan|Verificação rápida`),
		datamodel.FullScan:   regexp.MustCompile(`(?i)Full Scan|Verificação completa`),
		datamodel.CustomScan: regexp.MustCompile(`(?i)Custom Scan|Verificação personalizada`),
	}
	scannedFilesPattern = regexp.MustCompile(`(?i)(Arquivos verificados|Arquivos examinados|Arquivos inspecionados|Recursos verificados|Number of scanned files|Scanned files|Resources scanned)\s*[:.]\s*([0-9][0-9 .,\x{00A0}]*)`)
	threatsFoundPattern = regexp.MustCompile(`(?i)(Ameaças encontradas|Threats found)\s*[:.]\s*([0-9]+)`)
	nonDigits           = regexp.MustCompile(`\D`)
)

// selectScanEvent returns the newest event for scanType, falling back to the
// newest event of any kind.
func selectScanEvent(events []scanEvent, scanType datamodel.ScanType) (event *scanEvent) {
	pattern := scanEventPatterns[scanType]
	for i := range events {
		if pattern != nil && pattern.MatchString(events[i].Message) {
			return &events[i]
		}
	}
	if len(events) > 0 {
		return &events[0]
	}
	return nil
}

// parseScanEvent reads counters from a localized event message. Missing
// counters are zero.
func parseScanEvent(message string) (files uint64, threats uint32) {
	if m := scannedFilesPattern.FindStringSubmatch(message); m != nil {
		files, _ = strconv.ParseUint(nonDigits.ReplaceAllString(m[2], ""), 10, 64)
	}
	if m := threatsFoundPattern.FindStringSubmatch(message); m != nil {
		n, _ := strconv.ParseUint(m[2], 10, 32)
		threats = uint32(n)
	}
	return
}

// LastScanSummary summarizes the last scan of the given type from the
// Defender operational log.
func (d *Defender) LastScanSummary(ctx context.Context, scanType string) (summary datamodel.ScanSummary, err error) {
	t, ok := datamodel.ParseScanType(scanType)
	if !ok {
		err = fmt.Errorf("%w: %q", ErrInvalidScanType, scanType)
		return
	}
	status, err := d.computerStatus(ctx)
	if err != nil {
		return
	}
	output, err := d.runner.Run(ctx, scanEventsScript)
	if err != nil {
		err = fmt.Errorf("could not read scan events: %w", err)
		return
	}
	events, err := powershell.DecodeList[scanEvent](output)
	if err != nil {
		return
	}

	summary.ScanType = t
	event := selectScanEvent(events, t)
	if event != nil {
		summary.FilesScanned, summary.ThreatsFound = parseScanEvent(event.Message)
	}

	var start, end *time.Time
	switch t {
	case datamodel.QuickScan:
		start, end = status.QuickScanStartTime, status.QuickScanEndTime
	case datamodel.FullScan:
		start, end = status.FullScanStartTime, status.FullScanEndTime
	}
	switch {
	case end != nil:
		summary.LastScan = end
	case event != nil:
		summary.LastScan = event.TimeCreated
	}
	if start != nil && end != nil {
		summary.Duration = datamodel.FormatDuration(end.Sub(*start))
	}
	return
}
