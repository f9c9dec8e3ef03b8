package datamodel

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Severity string

const (
	High   Severity = "High"
	Medium Severity = "Medium"
	Low    Severity = "Low"
)

// SeverityFromID maps a Defender SeverityID. Zero and unknown ids are not
// mapped.
func SeverityFromID(id int) (severity Severity, ok bool) {
	switch id {
	case 1:
		return Low, true
	case 2:
		return Medium, true
	case 4, 5:
		return High, true
	default:
		return "", false
	}
}

type ThreatCategory string

const (
	CategoryActive     ThreatCategory = "Active"
	CategoryQuarantine ThreatCategory = "Quarantine"
	CategoryAllowed    ThreatCategory = "Allowed"
	CategoryRemoved    ThreatCategory = "Removed"
	CategoryUnknown    ThreatCategory = "Unknown"
)

// ThreatStatus is the Defender ThreatStatusID of a detection.
type ThreatStatus int

const (
	StatusActive           ThreatStatus = 1
	StatusQuarantined      ThreatStatus = 2
	StatusQuarantinedAlt   ThreatStatus = 3
	StatusAllowed          ThreatStatus = 5
	StatusRemoved          ThreatStatus = 6
	StatusCleaningFailed   ThreatStatus = 102
	StatusQuarantineFailed ThreatStatus = 103
	StatusRemovalFailed    ThreatStatus = 104
	StatusAllowFailed      ThreatStatus = 105
	StatusAbandoned        ThreatStatus = 106
	StatusBlockFailed      ThreatStatus = 107
)

func (s ThreatStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusQuarantined, StatusQuarantinedAlt:
		return "Quarantined"
	case StatusAllowed:
		return "Allowed"
	case StatusRemoved:
		return "Removed"
	case StatusCleaningFailed:
		return "Cleaning failed"
	case StatusQuarantineFailed:
		return "Quarantine failed"
	case StatusRemovalFailed:
		return "Removal failed"
	case StatusAllowFailed:
		return "Allow failed"
	case StatusAbandoned:
		return "Abandoned"
	case StatusBlockFailed:
		return "Block failed"
	default:
		return fmt.Sprintf("Unknown (%d)", int(s))
	}
}

// Category groups statuses: failed remediations are still active threats.
func (s ThreatStatus) Category() ThreatCategory {
	switch s {
	case StatusActive, StatusCleaningFailed, StatusQuarantineFailed, StatusRemovalFailed, StatusAllowFailed, StatusBlockFailed:
		return CategoryActive
	case StatusQuarantined, StatusQuarantinedAlt:
		return CategoryQuarantine
	case StatusAllowed:
		return CategoryAllowed
	case StatusRemoved, StatusAbandoned:
		return CategoryRemoved
	default:
		return CategoryUnknown
	}
}

// CleaningAction is the Defender CleaningActionID of a detection.
type CleaningAction int

func (a CleaningAction) String() string {
	switch a {
	case 2:
		return "Quarantine"
	case 3:
		return "Remove"
	case 6:
		return "Allow"
	case 8:
		return "User defined"
	case 9:
		return "No action"
	case 10:
		return "Block"
	default:
		return "Unknown"
	}
}

type KnownThreat struct {
	Name     string
	Severity Severity
}

// KnownThreats is used when the threat catalogue has nothing on a ThreatID.
var KnownThreats = map[uint64]KnownThreat{
	2147734096: {Name: "Trojan:Win32/Wacatac", Severity: High},
	2147797489: {Name: "Suspicious PowerShell Script", Severity: Medium},
	2147735503: {Name: "Trojan:Win32/Sabsik", Severity: High},
	2147737010: {Name: "Trojan:Win32/Agent", Severity: Medium},
}

// ThreatName prefers the catalogue name, then the known threat table.
func ThreatName(id uint64, catalogueName string) string {
	if name := strings.TrimSpace(catalogueName); name != "" {
		return name
	}
	if known, ok := KnownThreats[id]; ok {
		return known.Name
	}
	return fmt.Sprintf("Unknown threat (ID: %d)", id)
}

// ThreatSeverity prefers the catalogue SeverityID, then the known threat
// table. Anything else is Low.
func ThreatSeverity(id uint64, severityID int) Severity {
	if severity, ok := SeverityFromID(severityID); ok {
		return severity
	}
	if known, ok := KnownThreats[id]; ok {
		return known.Severity
	}
	return Low
}

const UnknownPath = "Unknown"

var resourcePrefix = regexp.MustCompile(`^[^:]+:_`)

// ResourcePath extracts the file path from the first detection resource,
// e.g. "file:_C:\x.exe" gives "C:\x.exe".
func ResourcePath(resources []string) string {
	if len(resources) == 0 || strings.TrimSpace(resources[0]) == "" {
		return UnknownPath
	}
	return resourcePrefix.ReplaceAllString(resources[0], "")
}

// NormalizeThreatPath turns a path as displayed for a detection into a path
// usable as an exclusion.
func NormalizeThreatPath(path string) string {
	path = strings.ReplaceAll(path, "file:_", "")
	path = strings.ReplaceAll(path, "->", `\`)
	path = strings.ReplaceAll(path, "/", `\`)
	return strings.TrimSpace(path)
}

type ThreatDetail struct {
	ThreatID     uint64         `json:"threat_id"`
	ThreatName   string         `json:"threat_name"`
	Severity     Severity       `json:"severity"`
	Status       string         `json:"status"`
	Category     ThreatCategory `json:"category"`
	FilePath     string         `json:"file_path"`
	FileExists   bool           `json:"file_exists"`
	DetectedTime *time.Time     `json:"detected_time"`
	ActionTaken  string         `json:"action_taken"`
}

type ThreatSummary struct {
	TotalThreats   uint32         `json:"total_threats"`
	HighSeverity   uint32         `json:"high_severity"`
	MediumSeverity uint32         `json:"medium_severity"`
	LowSeverity    uint32         `json:"low_severity"`
	Threats        []ThreatDetail `json:"threats"`
}

func NewThreatSummary(threats []ThreatDetail) (summary ThreatSummary) {
	if threats == nil {
		threats = []ThreatDetail{}
	}
	summary.Threats = threats
	summary.TotalThreats = uint32(len(threats))
	for _, t := range threats {
		switch t.Severity {
		case High:
			summary.HighSeverity++
		case Medium:
			summary.MediumSeverity++
		case Low:
			summary.LowSeverity++
		}
	}
	return
}

// InspectResult is a second opinion on a detected file.
type InspectResult struct {
	ThreatID      uint64   `json:"threat_id"`
	ThreatName    string   `json:"threat_name"`
	FilePath      string   `json:"file_path"`
	SHA256        string   `json:"sha256"`
	Malware       bool     `json:"malware"`
	Malwares      []string `json:"malwares,omitempty"`
	FileType      string   `json:"file_type,omitempty"`
	ExpertViewURL string   `json:"expert_view_url,omitempty"`
	AnalysisError string   `json:"analysis_error,omitempty"`
}
