package datamodel

import "time"

// DefenderStatus is a snapshot of the protection state.
type DefenderStatus struct {
	// Enabled reports real-time protection.
	Enabled          bool       `json:"is_enabled"`
	LastScan         *time.Time `json:"last_scan"`
	AntivirusEnabled bool       `json:"antivirus_enabled"`
	SignatureVersion string     `json:"signature_version,omitempty"`
	SignatureUpdated *time.Time `json:"signature_updated,omitempty"`
	QuickScanAgeDays int        `json:"quick_scan_age_days"`
	FullScanAgeDays  int        `json:"full_scan_age_days"`
	ScanRunning      bool       `json:"scan_running"`
}

// LatestOf returns the most recent non nil time, or nil.
func LatestOf(times ...*time.Time) (latest *time.Time) {
	for _, t := range times {
		if t == nil || t.IsZero() {
			continue
		}
		if latest == nil || t.After(*latest) {
			latest = t
		}
	}
	return
}
