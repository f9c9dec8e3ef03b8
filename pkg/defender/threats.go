package defender

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/glimps-re/defhost/pkg/powershell"
)

// stringList accepts a JSON list, a lone string or null, PowerShell emitting
// any of them for a collection.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) (err error) {
	var list []string
	if err = json.Unmarshal(data, &list); err == nil {
		*l = list
		return
	}
	var single string
	if err = json.Unmarshal(data, &single); err != nil {
		return
	}
	*l = stringList{single}
	return
}

// threatDetection is a Get-MpThreatDetection entry joined with its
// Get-MpThreat catalogue entry.
type threatDetection struct {
	ThreatID             uint64     `json:"ThreatID"`
	ThreatName           string     `json:"ThreatName"`
	SeverityID           int        `json:"SeverityID"`
	ThreatStatusID       int        `json:"ThreatStatusID"`
	CleaningActionID     int        `json:"CleaningActionID"`
	Resources            stringList `json:"Resources"`
	FileExists           bool       `json:"FileExists"`
	InitialDetectionTime *time.Time `json:"InitialDetectionTime"`
}

func (t threatDetection) detail() datamodel.ThreatDetail {
	status := datamodel.ThreatStatus(t.ThreatStatusID)
	return datamodel.ThreatDetail{
		ThreatID:     t.ThreatID,
		ThreatName:   datamodel.ThreatName(t.ThreatID, t.ThreatName),
		Severity:     datamodel.ThreatSeverity(t.ThreatID, t.SeverityID),
		Status:       status.String(),
		Category:     status.Category(),
		FilePath:     datamodel.ResourcePath(t.Resources),
		FileExists:   t.FileExists,
		DetectedTime: t.InitialDetectionTime,
		ActionTaken:  datamodel.CleaningAction(t.CleaningActionID).String(),
	}
}

func (d *Defender) detections(ctx context.Context) (threats []datamodel.ThreatDetail, err error) {
	output, err := d.runner.Run(ctx, threatDetectionsScript)
	if err != nil {
		err = fmt.Errorf("could not list threats: %w", err)
		return
	}
	raw, err := powershell.DecodeList[threatDetection](output)
	if err != nil {
		return
	}
	threats = make([]datamodel.ThreatDetail, 0, len(raw))
	for _, t := range raw {
		threats = append(threats, t.detail())
	}
	return
}

// Threats lists every detection with severity counters.
func (d *Defender) Threats(ctx context.Context) (summary datamodel.ThreatSummary, err error) {
	threats, err := d.detections(ctx)
	if err != nil {
		return
	}
	summary = datamodel.NewThreatSummary(threats)
	return
}

func (d *Defender) threat(ctx context.Context, threatID uint64) (threat datamodel.ThreatDetail, err error) {
	threats, err := d.detections(ctx)
	if err != nil {
		return
	}
	for _, t := range threats {
		if t.ThreatID == threatID {
			threat = t
			return
		}
	}
	err = fmt.Errorf("%w: %d", ErrThreatNotFound, threatID)
	return
}

func threatTarget(threatID uint64) string {
	return strconv.FormatUint(threatID, 10)
}

// QuarantineThreat succeeds as well when the threat is gone, already
// quarantined or already removed.
func (d *Defender) QuarantineThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error) {
	return d.remediate(ctx, journal.ActionQuarantine, threatTarget(threatID), quarantineScript(threatID))
}

// RemoveThreat asks Defender first, then deletes the file after taking its
// ownership. A file held by a running process is left alone.
func (d *Defender) RemoveThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error) {
	return d.remediate(ctx, journal.ActionRemove, threatTarget(threatID), removeScript(threatID))
}

// AllowThreat adds the threat file to the exclusions. Without path, the
// detection resource is used.
func (d *Defender) AllowThreat(ctx context.Context, threatID uint64, path string) (result datamodel.OperationResult, err error) {
	path = datamodel.NormalizeThreatPath(path)
	if path == "" {
		threat, threatErr := d.threat(ctx, threatID)
		if threatErr != nil {
			err = threatErr
			return
		}
		if threat.FilePath == datamodel.UnknownPath {
			err = ErrUnknownPath
			return
		}
		path = datamodel.NormalizeThreatPath(threat.FilePath)
	}
	return d.remediateFile(ctx, journal.ActionAllow, threatTarget(threatID), path, addExclusionScript(path, "File allowed and added to exclusions"))
}

// RestoreThreat adds the threat file to the exclusions, it fails when the
// threat or its file path are unknown.
func (d *Defender) RestoreThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error) {
	return d.remediate(ctx, journal.ActionRestore, threatTarget(threatID), restoreScript(threatID))
}

func (d *Defender) CleanQuarantine(ctx context.Context) (datamodel.OperationResult, error) {
	return d.remediate(ctx, journal.ActionCleanQuarantine, "", cleanQuarantineScript)
}

func (d *Defender) RemoveAllThreats(ctx context.Context) (datamodel.OperationResult, error) {
	return d.remediate(ctx, journal.ActionRemoveAll, "", removeAllThreatsScript)
}

// CleanThreatHistory requires administrator rights. When some detections
// survive the deep clean the result is partial.
func (d *Defender) CleanThreatHistory(ctx context.Context) (datamodel.OperationResult, error) {
	return d.remediate(ctx, journal.ActionCleanHistory, "", cleanThreatHistoryScript)
}
