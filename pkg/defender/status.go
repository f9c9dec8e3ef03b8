package defender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/powershell"
)

// computerStatus is the subset of Get-MpComputerStatus the service reads.
type computerStatus struct {
	RealTimeProtectionEnabled     bool       `json:"RealTimeProtectionEnabled"`
	AntivirusEnabled              bool       `json:"AntivirusEnabled"`
	AntivirusSignatureVersion     string     `json:"AntivirusSignatureVersion"`
	AntivirusSignatureLastUpdated *time.Time `json:"AntivirusSignatureLastUpdated"`
	QuickScanStartTime            *time.Time `json:"QuickScanStartTime"`
	QuickScanEndTime              *time.Time `json:"QuickScanEndTime"`
	FullScanStartTime             *time.Time `json:"FullScanStartTime"`
	FullScanEndTime               *time.Time `json:"FullScanEndTime"`
	QuickScanAge                  int        `json:"QuickScanAge"`
	FullScanAge                   int        `json:"FullScanAge"`
}

// scanRunning reports a started quick or full scan with no end time yet.
func (s computerStatus) scanRunning() bool {
	return (s.QuickScanStartTime != nil && s.QuickScanEndTime == nil) ||
		(s.FullScanStartTime != nil && s.FullScanEndTime == nil)
}

func (d *Defender) computerStatus(ctx context.Context) (status computerStatus, err error) {
	output, err := d.runner.Run(ctx, computerStatusScript)
	if err != nil {
		err = fmt.Errorf("could not get computer status: %w", err)
		return
	}
	if err = powershell.DecodeJSON(output, &status); err != nil {
		return
	}
	return
}

func (d *Defender) Status(ctx context.Context) (status datamodel.DefenderStatus, err error) {
	raw, err := d.computerStatus(ctx)
	if err != nil {
		return
	}
	status = datamodel.DefenderStatus{
		Enabled:          raw.RealTimeProtectionEnabled,
		LastScan:         datamodel.LatestOf(raw.QuickScanEndTime, raw.FullScanEndTime),
		AntivirusEnabled: raw.AntivirusEnabled,
		SignatureVersion: raw.AntivirusSignatureVersion,
		SignatureUpdated: raw.AntivirusSignatureLastUpdated,
		QuickScanAgeDays: raw.QuickScanAge,
		FullScanAgeDays:  raw.FullScanAge,
		ScanRunning:      raw.scanRunning(),
	}
	return
}

func (d *Defender) UpdateDefinitions(ctx context.Context) (result datamodel.OperationResult, err error) {
	result, err = d.runOutcome(ctx, updateDefinitionsScript)
	if err != nil {
		err = fmt.Errorf("could not update definitions: %w", err)
		return
	}
	logger.Info("definitions updated", slog.String("message", result.Message))
	return
}

// RefreshDetection is a best effort signature update, its failure is not
// reported.
func (d *Defender) RefreshDetection(ctx context.Context) (result datamodel.OperationResult, err error) {
	result, err = d.runOutcome(ctx, refreshDetectionScript)
	if err != nil {
		err = fmt.Errorf("could not refresh detection: %w", err)
		return
	}
	return
}

// IsScanRunning is the only guard against concurrent scans: the OS state is
// queried again before every new scan.
func (d *Defender) IsScanRunning(ctx context.Context) (running bool, err error) {
	status, err := d.computerStatus(ctx)
	if err != nil {
		return
	}
	running = status.scanRunning()
	return
}
