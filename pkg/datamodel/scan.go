package datamodel

import (
	"fmt"
	"strings"
	"time"
)

type ScanType string

const (
	QuickScan  ScanType = "quick"
	FullScan   ScanType = "full"
	CustomScan ScanType = "custom"
)

// Defender does not report how many files a scan went through, quick and full
// scans use these estimates.
const (
	QuickScanFileEstimate uint64 = 50000
	FullScanFileEstimate  uint64 = 500000
)

// ParseScanType accepts quick, full or custom, case insensitive.
func ParseScanType(s string) (t ScanType, ok bool) {
	t = ScanType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case QuickScan, FullScan, CustomScan:
		ok = true
	default:
		t = ""
	}
	return
}

// Label returns the display name of the scan type.
func (t ScanType) Label() string {
	switch t {
	case QuickScan:
		return "Quick Scan"
	case FullScan:
		return "Full Scan"
	case CustomScan:
		return "Custom Scan"
	default:
		return string(t)
	}
}

// Parameter returns the Start-MpScan -ScanType value.
func (t ScanType) Parameter() string {
	switch t {
	case QuickScan:
		return "QuickScan"
	case FullScan:
		return "FullScan"
	default:
		return "CustomScan"
	}
}

func (t ScanType) FileEstimate() uint64 {
	switch t {
	case QuickScan:
		return QuickScanFileEstimate
	case FullScan:
		return FullScanFileEstimate
	default:
		return 0
	}
}

// FormatScanTime renders elapsed time the way results are displayed: minutes
// with one decimal for full scans, seconds with two decimals otherwise.
func (t ScanType) FormatScanTime(elapsed time.Duration) string {
	if t == FullScan {
		return fmt.Sprintf("%.1fmin", elapsed.Minutes())
	}
	return fmt.Sprintf("%.2fs", elapsed.Seconds())
}

type ScanResult struct {
	ThreatsFound uint32 `json:"threats_found"`
	FilesScanned uint64 `json:"files_scanned"`
	ScanTime     string `json:"scan_time"`
}

type ScanHistoryItem struct {
	ScanType     string     `json:"scan_type"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	InProgress   bool       `json:"in_progress"`
	ThreatsFound uint32     `json:"threats_found"`
	FilesScanned uint64     `json:"files_scanned"`
}

type ScanSummary struct {
	ScanType     ScanType   `json:"scan_type"`
	LastScan     *time.Time `json:"last_scan"`
	ThreatsFound uint32     `json:"threats_found"`
	Duration     string     `json:"duration"`
	FilesScanned uint64     `json:"files_scanned"`
}

// FormatDuration renders a scan duration as "<m> minutes <s> seconds", with
// the hours folded into the minutes.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d minutes %d seconds", total/60, total%60)
}
