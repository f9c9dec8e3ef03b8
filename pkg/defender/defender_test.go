package defender

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/glimps-re/defhost/pkg/powershell"
	"github.com/glimps-re/go-gdetect/pkg/gdetect"
	"github.com/google/go-cmp/cmp"
)

const (
	markerStatus     = "Get-MpComputerStatus"
	markerStartScan  = "Start-MpScan"
	markerFileCount  = "Measure-Object"
	markerCount      = "@($threats).Count"
	markerEvents     = "Get-WinEvent"
	markerDetections = "$catalogue"
)

const (
	idleStatus = `{"RealTimeProtectionEnabled":true,"AntivirusEnabled":true,"AntivirusSignatureVersion":"1.403.1234.0",` +
		`"AntivirusSignatureLastUpdated":"2026-03-01T08:00:00.0000000Z",` +
		`"QuickScanStartTime":"2026-03-01T09:00:00.0000000Z","QuickScanEndTime":"2026-03-01T09:05:30.0000000Z",` +
		`"FullScanStartTime":"2026-02-20T10:00:00.0000000Z","FullScanEndTime":"2026-02-20T12:03:04.0000000Z",` +
		`"QuickScanAge":0,"FullScanAge":9}`
	runningStatus = `{"RealTimeProtectionEnabled":true,"AntivirusEnabled":true,` +
		`"QuickScanStartTime":"2026-03-01T09:00:00Z","QuickScanEndTime":null,` +
		`"FullScanStartTime":null,"FullScanEndTime":null}`
)

func date(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

type scriptOutput struct {
	output string
	err    error
}

// newRunner answers each script with the output of the first marker it
// contains. Every script run is kept in order.
func newRunner(t *testing.T, outputs map[string]scriptOutput) (runner *powershell.MockRunner, scripts *[]string) {
	t.Helper()
	scripts = &[]string{}
	mu := sync.Mutex{}
	runner = &powershell.MockRunner{
		RunMock: func(_ context.Context, script string) (string, error) {
			mu.Lock()
			*scripts = append(*scripts, script)
			mu.Unlock()
			for marker, o := range outputs {
				if strings.Contains(script, marker) {
					return o.output, o.err
				}
			}
			t.Errorf("unexpected script: %s", script)
			return "", errors.New("unexpected script")
		},
	}
	return
}

func stepClock(t *testing.T, step time.Duration) {
	t.Helper()
	previous := Now
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	Now = func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
	t.Cleanup(func() { Now = previous })
}

func TestDefender_Status(t *testing.T) {
	tests := []struct {
		name    string
		outputs map[string]scriptOutput
		want    datamodel.DefenderStatus
		wantErr bool
	}{
		{
			name:    "idle",
			outputs: map[string]scriptOutput{markerStatus: {output: idleStatus}},
			want: datamodel.DefenderStatus{
				Enabled:          true,
				LastScan:         date("2026-03-01T09:05:30Z"),
				AntivirusEnabled: true,
				SignatureVersion: "1.403.1234.0",
				SignatureUpdated: date("2026-03-01T08:00:00Z"),
				QuickScanAgeDays: 0,
				FullScanAgeDays:  9,
				ScanRunning:      false,
			},
		},
		{
			name:    "never scanned",
			outputs: map[string]scriptOutput{markerStatus: {output: `{"RealTimeProtectionEnabled":false}`}},
			want:    datamodel.DefenderStatus{},
		},
		{
			name:    "running",
			outputs: map[string]scriptOutput{markerStatus: {output: runningStatus}},
			want: datamodel.DefenderStatus{
				Enabled:          true,
				AntivirusEnabled: true,
				ScanRunning:      true,
			},
		},
		{
			name:    "exec error",
			outputs: map[string]scriptOutput{markerStatus: {err: &powershell.ExecError{ExitCode: 1, Stderr: "Get-MpComputerStatus : 0x800106ba"}}},
			wantErr: true,
		},
		{
			name:    "garbage",
			outputs: map[string]scriptOutput{markerStatus: {output: "not json"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _ := newRunner(t, tt.outputs)
			d := New(Config{Runner: runner})
			got, err := d.Status(t.Context())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Status() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Status() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefender_UpdateDefinitions(t *testing.T) {
	runner, _ := newRunner(t, map[string]scriptOutput{"Update-MpSignature -ErrorAction Stop": {output: "ERROR: The service cannot be started\r\n"}})
	d := New(Config{Runner: runner})
	_, err := d.UpdateDefinitions(t.Context())
	scriptErr := new(powershell.ScriptError)
	if !errors.As(err, &scriptErr) || scriptErr.Message != "The service cannot be started" {
		t.Errorf("UpdateDefinitions() error = %v", err)
	}

	runner, _ = newRunner(t, map[string]scriptOutput{"Update-MpSignature -ErrorAction SilentlyContinue": {output: "SUCCESS: Status refreshed\r\n"}})
	d = New(Config{Runner: runner})
	got, err := d.RefreshDetection(t.Context())
	if err != nil {
		t.Fatalf("RefreshDetection() error = %v", err)
	}
	if got.Message != "Status refreshed" {
		t.Errorf("RefreshDetection() = %+v", got)
	}
}

func TestDefender_ScanControl(t *testing.T) {
	for status, want := range map[string]bool{idleStatus: false, runningStatus: true} {
		runner, _ := newRunner(t, map[string]scriptOutput{markerStatus: {output: status}})
		d := New(Config{Runner: runner})
		running, err := d.IsScanRunning(t.Context())
		if err != nil {
			t.Fatalf("IsScanRunning() error = %v", err)
		}
		if running != want {
			t.Errorf("IsScanRunning() = %v, want %v", running, want)
		}
	}

	runner, scripts := newRunner(t, map[string]scriptOutput{"MpCmdRun": {output: "SUCCESS: Scan cancelled\r\n"}})
	d := New(Config{Runner: runner})
	got, err := d.CancelScan(t.Context())
	if err != nil {
		t.Fatalf("CancelScan() error = %v", err)
	}
	if got.Message != "Scan cancelled" || len(*scripts) != 1 {
		t.Errorf("CancelScan() = %+v after %d scripts", got, len(*scripts))
	}
}

func TestDefender_Scan(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "quick",
			test: func(t *testing.T) {
				stepClock(t, 12340*time.Millisecond)
				runner, scripts := newRunner(t, map[string]scriptOutput{
					markerStatus:    {output: idleStatus},
					markerStartScan: {output: "SUCCESS\r\n"},
					markerCount:     {output: "3\r\n"},
				})
				d := New(Config{Runner: runner})
				got, err := d.QuickScan(t.Context())
				if err != nil {
					t.Fatalf("QuickScan() error = %v", err)
				}
				want := datamodel.ScanResult{ThreatsFound: 3, FilesScanned: 50000, ScanTime: "12.34s"}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("QuickScan() mismatch (-want +got):\n%s", diff)
				}
				if len(*scripts) != 3 || !strings.Contains((*scripts)[1], "-ScanType QuickScan -ErrorAction Stop") {
					t.Errorf("QuickScan() scripts = %v", *scripts)
				}
			},
		},
		{
			name: "full",
			test: func(t *testing.T) {
				stepClock(t, 210*time.Second)
				runner, _ := newRunner(t, map[string]scriptOutput{
					markerStatus:    {output: idleStatus},
					markerStartScan: {output: "SUCCESS"},
					markerCount:     {output: "0"},
				})
				d := New(Config{Runner: runner})
				got, err := d.FullScan(t.Context())
				if err != nil {
					t.Fatalf("FullScan() error = %v", err)
				}
				want := datamodel.ScanResult{ThreatsFound: 0, FilesScanned: 500000, ScanTime: "3.5min"}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("FullScan() mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "custom",
			test: func(t *testing.T) {
				stepClock(t, 500*time.Millisecond)
				runner, scripts := newRunner(t, map[string]scriptOutput{
					markerStatus:    {output: idleStatus},
					markerFileCount: {output: "1234\r\n"},
					markerStartScan: {output: "SUCCESS"},
					markerCount:     {output: "1"},
				})
				d := New(Config{Runner: runner})
				got, err := d.CustomScan(t.Context(), `C:\Users\O'Brien\Downloads`)
				if err != nil {
					t.Fatalf("CustomScan() error = %v", err)
				}
				want := datamodel.ScanResult{ThreatsFound: 1, FilesScanned: 1234, ScanTime: "0.50s"}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("CustomScan() mismatch (-want +got):\n%s", diff)
				}
				if !strings.Contains((*scripts)[2], `-ScanType CustomScan -ScanPath 'C:\Users\O''Brien\Downloads'`) {
					t.Errorf("CustomScan() scan script = %s", (*scripts)[2])
				}
			},
		},
		{
			name: "custom empty path",
			test: func(t *testing.T) {
				d := New(Config{Runner: &powershell.MockRunner{}})
				if _, err := d.CustomScan(t.Context(), "  "); !errors.Is(err, ErrEmptyPath) {
					t.Errorf("CustomScan() error = %v, want %v", err, ErrEmptyPath)
				}
			},
		},
		{
			name: "scan in progress",
			test: func(t *testing.T) {
				runner, scripts := newRunner(t, map[string]scriptOutput{markerStatus: {output: runningStatus}})
				d := New(Config{Runner: runner})
				if _, err := d.QuickScan(t.Context()); !errors.Is(err, ErrScanInProgress) {
					t.Errorf("QuickScan() error = %v, want %v", err, ErrScanInProgress)
				}
				if len(*scripts) != 1 {
					t.Errorf("QuickScan() ran %d scripts, want only the status check", len(*scripts))
				}
			},
		},
		{
			name: "scan error",
			test: func(t *testing.T) {
				runner, _ := newRunner(t, map[string]scriptOutput{
					markerStatus:    {output: idleStatus},
					markerStartScan: {output: "ERROR: Operation failed with the following error: 0x80508023"},
				})
				d := New(Config{Runner: runner})
				_, err := d.FullScan(t.Context())
				if err == nil || !strings.Contains(err.Error(), "0x80508023") {
					t.Errorf("FullScan() error = %v", err)
				}
			},
		},
		{
			name: "scan timeout",
			test: func(t *testing.T) {
				var deadline time.Time
				runner := &powershell.MockRunner{RunMock: func(ctx context.Context, script string) (string, error) {
					switch {
					case strings.Contains(script, markerStatus):
						return idleStatus, nil
					case strings.Contains(script, markerStartScan):
						deadline, _ = ctx.Deadline()
						return "", powershell.ErrTimeout
					}
					return "", errors.New("unexpected script")
				}}
				d := New(Config{Runner: runner, ScanTimeout: time.Hour})
				_, err := d.QuickScan(t.Context())
				if !errors.Is(err, powershell.ErrTimeout) {
					t.Errorf("QuickScan() error = %v, want %v", err, powershell.ErrTimeout)
				}
				if remaining := time.Until(deadline); remaining <= 50*time.Minute || remaining > time.Hour {
					t.Errorf("QuickScan() scan deadline in %s, want about 1h", remaining)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestDefender_History(t *testing.T) {
	runner, _ := newRunner(t, map[string]scriptOutput{markerStatus: {output: runningStatus}})
	d := New(Config{Runner: runner})
	got, err := d.History(t.Context())
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []datamodel.ScanHistoryItem{
		{
			ScanType:     "Quick Scan",
			StartTime:    *date("2026-03-01T09:00:00Z"),
			InProgress:   true,
			FilesScanned: 50000,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("History() mismatch (-want +got):\n%s", diff)
	}

	runner, _ = newRunner(t, map[string]scriptOutput{markerStatus: {output: idleStatus}})
	d = New(Config{Runner: runner})
	got, err = d.History(t.Context())
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 || got[1].ScanType != "Full Scan" || got[1].InProgress || got[1].EndTime == nil {
		t.Errorf("History() = %+v", got)
	}
}

func TestDefender_LastScanSummary(t *testing.T) {
	events := `[{"TimeCreated":"2026-03-01T11:00:00Z","Message":"Microsoft Defender Antivirus scan has finished.\r\n\tScan ID: {1}\r\n\tScan Type: Antimalware\r\n\tScan Parameters: Custom Scan\r\n\tScanned files: 1,234\r\n\tThreats found: 2"},` +
		`{"TimeCreated":"2026-03-01T09:05:30Z","Message":"Microsoft Defender Antivirus scan has finished.\r\n\tScan Parameters: Quick Scan\r\n\tResources scanned: 48 765\r\n\tThreats found: 1"}]`
	tests := []struct {
		name     string
		scanType string
		events   string
		want     datamodel.ScanSummary
		wantErr  error
	}{
		{
			name:     "quick",
			scanType: "Quick",
			events:   events,
			want: datamodel.ScanSummary{
				ScanType:     datamodel.QuickScan,
				LastScan:     date("2026-03-01T09:05:30Z"),
				ThreatsFound: 1,
				Duration:     "5 minutes 30 seconds",
				FilesScanned: 48765,
			},
		},
		{
			name:     "full falls back to newest event",
			scanType: "full",
			events:   events,
			want: datamodel.ScanSummary{
				ScanType:     datamodel.FullScan,
				LastScan:     date("2026-02-20T12:03:04Z"),
				ThreatsFound: 2,
				Duration:     "123 minutes 4 seconds",
				FilesScanned: 1234,
			},
		},
		{
			name:     "custom",
			scanType: "custom",
			events:   events,
			want: datamodel.ScanSummary{
				ScanType:     datamodel.CustomScan,
				LastScan:     date("2026-03-01T11:00:00Z"),
				ThreatsFound: 2,
				FilesScanned: 1234,
			},
		},
		{
			name:     "localized single event",
			scanType: "custom",
			events:   `{"TimeCreated":"2026-03-01T11:00:00Z","Message":"Verificação personalizada\r\nArquivos verificados: 10.500\r\nAmeaças encontradas: 0"}`,
			want: datamodel.ScanSummary{
				ScanType:     datamodel.CustomScan,
				LastScan:     date("2026-03-01T11:00:00Z"),
				FilesScanned: 10500,
			},
		},
		{
			name:     "no event",
			scanType: "custom",
			events:   "",
			want:     datamodel.ScanSummary{ScanType: datamodel.CustomScan},
		},
		{
			name:     "invalid type",
			scanType: "offline",
			wantErr:  ErrInvalidScanType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _ := newRunner(t, map[string]scriptOutput{
				markerStatus: {output: idleStatus},
				markerEvents: {output: tt.events},
			})
			d := New(Config{Runner: runner})
			got, err := d.LastScanSummary(t.Context(), tt.scanType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LastScanSummary() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("LastScanSummary() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const detections = `[{"ThreatID":2147734096,"ThreatName":"","SeverityID":0,"ThreatStatusID":1,"CleaningActionID":2,` +
	`"Resources":["file:_C:\\Users\\test\\Downloads\\setup.exe"],"FileExists":true,"InitialDetectionTime":"2026-03-01T09:01:00Z"},` +
	`{"ThreatID":2147797489,"ThreatName":"Trojan:PowerShell/Obfuse.A","SeverityID":5,"ThreatStatusID":2,"CleaningActionID":2,` +
	`"Resources":"file:_C:\\Temp\\x.ps1","FileExists":false,"InitialDetectionTime":"2026-03-01T09:02:00Z"},` +
	`{"ThreatID":42,"ThreatName":"","SeverityID":0,"ThreatStatusID":106,"CleaningActionID":9,` +
	`"Resources":null,"FileExists":false,"InitialDetectionTime":null}]`

func TestDefender_Threats(t *testing.T) {
	runner, _ := newRunner(t, map[string]scriptOutput{markerDetections: {output: detections}})
	d := New(Config{Runner: runner})
	got, err := d.Threats(t.Context())
	if err != nil {
		t.Fatalf("Threats() error = %v", err)
	}
	want := datamodel.ThreatSummary{
		TotalThreats:   3,
		HighSeverity:   2,
		MediumSeverity: 0,
		LowSeverity:    1,
		Threats: []datamodel.ThreatDetail{
			{
				ThreatID:     2147734096,
				ThreatName:   "Trojan:Win32/Wacatac",
				Severity:     datamodel.High,
				Status:       "Active",
				Category:     datamodel.CategoryActive,
				FilePath:     `C:\Users\test\Downloads\setup.exe`,
				FileExists:   true,
				DetectedTime: date("2026-03-01T09:01:00Z"),
				ActionTaken:  "Quarantine",
			},
			{
				ThreatID:     2147797489,
				ThreatName:   "Trojan:PowerShell/Obfuse.A",
				Severity:     datamodel.High,
				Status:       "Quarantined",
				Category:     datamodel.CategoryQuarantine,
				FilePath:     `C:\Temp\x.ps1`,
				DetectedTime: date("2026-03-01T09:02:00Z"),
				ActionTaken:  "Quarantine",
			},
			{
				ThreatID:    42,
				ThreatName:  "Unknown threat (ID: 42)",
				Severity:    datamodel.Low,
				Status:      "Abandoned",
				Category:    datamodel.CategoryRemoved,
				FilePath:    datamodel.UnknownPath,
				ActionTaken: "No action",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Threats() mismatch (-want +got):\n%s", diff)
	}

	runner, _ = newRunner(t, map[string]scriptOutput{markerDetections: {output: "[]\r\n"}})
	d = New(Config{Runner: runner})
	got, err = d.Threats(t.Context())
	if err != nil {
		t.Fatalf("Threats() error = %v", err)
	}
	if diff := cmp.Diff(datamodel.ThreatSummary{Threats: []datamodel.ThreatDetail{}}, got); diff != "" {
		t.Errorf("Threats() empty mismatch (-want +got):\n%s", diff)
	}
}

func recordingJournal(err error) (j *journal.MockJournal, entries *[]journal.Entry) {
	entries = &[]journal.Entry{}
	j = &journal.MockJournal{
		RecordMock: func(_ context.Context, entry *journal.Entry) error {
			*entries = append(*entries, *entry)
			return err
		},
	}
	return
}

func TestDefender_Remediation(t *testing.T) {
	tests := []struct {
		name         string
		outputs      map[string]scriptOutput
		journalErr   error
		run          func(ctx context.Context, d *Defender) (datamodel.OperationResult, error)
		want         datamodel.OperationResult
		wantErr      bool
		wantEntry    journal.Entry
		wantInScript string
	}{
		{
			name:    "quarantine",
			outputs: map[string]scriptOutput{"Threat quarantined": {output: "SUCCESS: Threat already quarantined\r\n"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.QuarantineThreat(ctx, 2147734096)
			},
			want:         datamodel.OperationResult{Message: "Threat already quarantined"},
			wantEntry:    journal.Entry{Action: journal.ActionQuarantine, Target: "2147734096", Outcome: journal.Success, Message: "Threat already quarantined"},
			wantInScript: "$_.ThreatID -eq 2147734096",
		},
		{
			name:    "remove fails",
			outputs: map[string]scriptOutput{"Remove-Item": {output: "ERROR: Access denied, run as administrator or close the application"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.RemoveThreat(ctx, 42)
			},
			wantErr:      true,
			wantEntry:    journal.Entry{Action: journal.ActionRemove, Target: "42", Outcome: journal.Failure, Message: "Access denied, run as administrator or close the application"},
			wantInScript: "takeown",
		},
		{
			name:    "allow with path",
			outputs: map[string]scriptOutput{"Add-MpPreference": {output: "SUCCESS: File allowed and added to exclusions"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.AllowThreat(ctx, 1, "file:_C:/Users/test/archive.zip->evil.exe")
			},
			want:         datamodel.OperationResult{Message: "File allowed and added to exclusions"},
			wantEntry:    journal.Entry{Action: journal.ActionAllow, Target: "1", Outcome: journal.Success, Message: `C:\Users\test\archive.zip\evil.exe: File allowed and added to exclusions`},
			wantInScript: `-ExclusionPath 'C:\Users\test\archive.zip\evil.exe'`,
		},
		{
			name: "allow resolves path",
			outputs: map[string]scriptOutput{
				markerDetections:   {output: detections},
				"Add-MpPreference": {output: "SUCCESS: File allowed and added to exclusions"},
			},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.AllowThreat(ctx, 2147734096, "")
			},
			want:         datamodel.OperationResult{Message: "File allowed and added to exclusions"},
			wantEntry:    journal.Entry{Action: journal.ActionAllow, Target: "2147734096", Outcome: journal.Success, Message: `C:\Users\test\Downloads\setup.exe: File allowed and added to exclusions`},
			wantInScript: `-ExclusionPath 'C:\Users\test\Downloads\setup.exe'`,
		},
		{
			name:    "allow failure",
			outputs: map[string]scriptOutput{"Add-MpPreference": {output: "ERROR: Could not add exclusion: access denied"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.AllowThreat(ctx, 3, `C:\Temp\tool.exe`)
			},
			wantErr:      true,
			wantEntry:    journal.Entry{Action: journal.ActionAllow, Target: "3", Outcome: journal.Failure, Message: `C:\Temp\tool.exe: Could not add exclusion: access denied`},
			wantInScript: `-ExclusionPath 'C:\Temp\tool.exe'`,
		},
		{
			name:    "restore unknown threat",
			outputs: map[string]scriptOutput{"File restored": {output: "ERROR: Threat not found"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.RestoreThreat(ctx, 7)
			},
			wantErr:      true,
			wantEntry:    journal.Entry{Action: journal.ActionRestore, Target: "7", Outcome: journal.Failure, Message: "Threat not found"},
			wantInScript: "$_.ThreatID -eq 7",
		},
		{
			name:    "clean quarantine",
			outputs: map[string]scriptOutput{"removed from quarantine": {output: "SUCCESS: 3 threat(s) removed from quarantine"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.CleanQuarantine(ctx)
			},
			want:         datamodel.OperationResult{Message: "3 threat(s) removed from quarantine"},
			wantEntry:    journal.Entry{Action: journal.ActionCleanQuarantine, Outcome: journal.Success, Message: "3 threat(s) removed from quarantine"},
			wantInScript: `DetectionHistory`,
		},
		{
			name:    "remove all",
			outputs: map[string]scriptOutput{"No threat to remove": {output: "SUCCESS: No threat to remove"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.RemoveAllThreats(ctx)
			},
			want:         datamodel.OperationResult{Message: "No threat to remove"},
			wantEntry:    journal.Entry{Action: journal.ActionRemoveAll, Outcome: journal.Success, Message: "No threat to remove"},
			wantInScript: "Remove-MpThreat",
		},
		{
			name:    "clean history partial",
			outputs: map[string]scriptOutput{"WinDefend": {output: "PARTIAL: Removed 1 of 3, 2 pending. Restart the computer to finish.\r\n"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.CleanThreatHistory(ctx)
			},
			want:         datamodel.OperationResult{Message: "Removed 1 of 3, 2 pending. Restart the computer to finish.", Partial: true},
			wantEntry:    journal.Entry{Action: journal.ActionCleanHistory, Outcome: journal.Partial, Message: "Removed 1 of 3, 2 pending. Restart the computer to finish."},
			wantInScript: "IsInRole",
		},
		{
			name:       "journal failure is ignored",
			outputs:    map[string]scriptOutput{"Exclusion added": {output: "SUCCESS: Exclusion added"}},
			journalErr: errors.New("database is locked"),
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.AddExclusion(ctx, ` C:\Tools `)
			},
			want:         datamodel.OperationResult{Message: "Exclusion added"},
			wantEntry:    journal.Entry{Action: journal.ActionAddExclusion, Target: `C:\Tools`, Outcome: journal.Success, Message: "Exclusion added"},
			wantInScript: `-ExclusionPath 'C:\Tools'`,
		},
		{
			name:    "remove exclusion",
			outputs: map[string]scriptOutput{"Remove-MpPreference": {output: "SUCCESS: Exclusion removed"}},
			run: func(ctx context.Context, d *Defender) (datamodel.OperationResult, error) {
				return d.RemoveExclusion(ctx, `C:\Tools`)
			},
			want:         datamodel.OperationResult{Message: "Exclusion removed"},
			wantEntry:    journal.Entry{Action: journal.ActionRemoveExclusion, Target: `C:\Tools`, Outcome: journal.Success, Message: "Exclusion removed"},
			wantInScript: "Remove-MpPreference -ExclusionPath 'C:\\Tools'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, scripts := newRunner(t, tt.outputs)
			j, entries := recordingJournal(tt.journalErr)
			d := New(Config{Runner: runner, Journal: j})
			got, err := tt.run(t.Context(), d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
			if len(*entries) != 1 {
				t.Fatalf("got %d journal entries, want 1", len(*entries))
			}
			if diff := cmp.Diff(tt.wantEntry, (*entries)[0]); diff != "" {
				t.Errorf("journal entry mismatch (-want +got):\n%s", diff)
			}
			last := (*scripts)[len(*scripts)-1]
			if !strings.Contains(last, tt.wantInScript) {
				t.Errorf("script does not contain %q:\n%s", tt.wantInScript, last)
			}
		})
	}
}

func TestDefender_Exclusions(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{name: "none", output: "", want: []string{}},
		{name: "single", output: `"C:\\Tools"`, want: []string{`C:\Tools`}},
		{name: "several", output: `["C:\\Tools","D:\\Games"]`, want: []string{`C:\Tools`, `D:\Games`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _ := newRunner(t, map[string]scriptOutput{"Get-MpPreference": {output: tt.output}})
			d := New(Config{Runner: runner})
			got, err := d.Exclusions(t.Context())
			if err != nil {
				t.Fatalf("Exclusions() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Exclusions() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	d := New(Config{Runner: &powershell.MockRunner{}})
	if _, err := d.AddExclusion(t.Context(), ""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("AddExclusion() error = %v, want %v", err, ErrEmptyPath)
	}
}

func TestDefender_Inspect(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "disabled",
			test: func(t *testing.T) {
				d := New(Config{Runner: &powershell.MockRunner{}})
				if _, err := d.Inspect(t.Context(), 1); !errors.Is(err, ErrInspectDisabled) {
					t.Errorf("Inspect() error = %v, want %v", err, ErrInspectDisabled)
				}
			},
		},
		{
			name: "unknown threat",
			test: func(t *testing.T) {
				runner, _ := newRunner(t, map[string]scriptOutput{markerDetections: {output: detections}})
				d := New(Config{Runner: runner, Submitter: &MockSubmitter{}})
				if _, err := d.Inspect(t.Context(), 1); !errors.Is(err, ErrThreatNotFound) {
					t.Errorf("Inspect() error = %v, want %v", err, ErrThreatNotFound)
				}
				if _, err := d.Inspect(t.Context(), 42); !errors.Is(err, ErrUnknownPath) {
					t.Errorf("Inspect() error = %v, want %v", err, ErrUnknownPath)
				}
				if _, err := d.Inspect(t.Context(), 2147797489); err == nil {
					t.Errorf("Inspect() expected an error for a missing file")
				}
			},
		},
		{
			name: "malware",
			test: func(t *testing.T) {
				runner, _ := newRunner(t, map[string]scriptOutput{markerDetections: {output: detections}})
				submitter := &MockSubmitter{
					WaitForFileMock: func(_ context.Context, filepath string, options gdetect.WaitForOptions) (gdetect.Result, error) {
						if filepath != `C:\Users\test\Downloads\setup.exe` || options.Filename != filepath {
							t.Errorf("WaitForFile() unexpected file %s, options %+v", filepath, options)
						}
						if diff := cmp.Diff([]string{"defhost"}, options.Tags); diff != "" {
							t.Errorf("WaitForFile() tags mismatch (-want +got):\n%s", diff)
						}
						return gdetect.Result{SHA256: "abcdef", Malware: true, Malwares: []string{"Win.Trojan.Wacatac"}, FileType: "exe"}, nil
					},
					ExtractExpertViewURLMock: func(result *gdetect.Result) (string, error) {
						return "https://gmalware.example/expert/abcdef", nil
					},
				}
				d := New(Config{Runner: runner, Submitter: submitter, WaitOpts: gdetect.WaitForOptions{Tags: []string{"defhost"}}})
				got, err := d.Inspect(t.Context(), 2147734096)
				if err != nil {
					t.Fatalf("Inspect() error = %v", err)
				}
				want := datamodel.InspectResult{
					ThreatID:      2147734096,
					ThreatName:    "Trojan:Win32/Wacatac",
					FilePath:      `C:\Users\test\Downloads\setup.exe`,
					SHA256:        "abcdef",
					Malware:       true,
					Malwares:      []string{"Win.Trojan.Wacatac"},
					FileType:      "exe",
					ExpertViewURL: "https://gmalware.example/expert/abcdef",
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "submission error",
			test: func(t *testing.T) {
				runner, _ := newRunner(t, map[string]scriptOutput{markerDetections: {output: detections}})
				submitter := &MockSubmitter{
					WaitForFileMock: func(context.Context, string, gdetect.WaitForOptions) (gdetect.Result, error) {
						return gdetect.Result{}, gdetect.ErrTimeout
					},
				}
				d := New(Config{Runner: runner, Submitter: submitter})
				if _, err := d.Inspect(t.Context(), 2147734096); !errors.Is(err, gdetect.ErrTimeout) {
					t.Errorf("Inspect() error = %v, want %v", err, gdetect.ErrTimeout)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}
