package datamodel

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

type ReportKind string

const (
	StatusReport  ReportKind = "status"
	ScanReport    ReportKind = "scan"
	ThreatsReport ReportKind = "threats"
	CleanupReport ReportKind = "cleanup"
)

// Report records the result of one command run on a host.
type Report struct {
	Kind      ReportKind      `json:"kind"`
	Hostname  string          `json:"hostname"`
	Generated time.Time       `json:"generated"`
	ScanType  ScanType        `json:"scan-type,omitempty"`
	Target    string          `json:"target,omitempty"`
	Status    *DefenderStatus `json:"status,omitempty"`
	Scan      *ScanResult     `json:"scan,omitempty"`
	Threats   *ThreatSummary  `json:"threats,omitempty"`
	Cleanup   *CleanupResult  `json:"cleanup,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// for test purposes
var Now = time.Now

func NewReport(kind ReportKind) Report {
	hostname, err := os.Hostname()
	if err != nil {
		logger.Warn("could not get hostname", slog.String("error", err.Error()))
		hostname = "unknown"
	}
	return Report{
		Kind:      kind,
		Hostname:  hostname,
		Generated: Now().UTC(),
	}
}

// ReportsWriter appends reports to a JSON array file.
type ReportsWriter struct {
	dst io.WriteSeeker
}

func NewReportsWriter(dst io.WriteSeeker) *ReportsWriter {
	return &ReportsWriter{dst: dst}
}

func (rw *ReportsWriter) Write(r Report) (err error) {
	// try to seek above last "\n]"
	n, _ := rw.dst.Seek(-2, io.SeekEnd)
	out := bufio.NewWriter(rw.dst)
	if n == 0 {
		// start of file
		if _, err = out.WriteString("[\n"); err != nil {
			return
		}
	} else {
		if _, err = out.WriteString(",\n"); err != nil {
			return
		}
	}

	encoder := json.NewEncoder(out)
	err = encoder.Encode(r)
	if err != nil {
		return
	}
	if _, err = out.WriteString("]"); err != nil {
		return
	}
	if flushErr := out.Flush(); flushErr != nil {
		logger.Error("failed to flush buffer", slog.String("error", flushErr.Error()))
	}
	return
}
