package defender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/glimps-re/defhost/pkg/powershell"
	"github.com/glimps-re/go-gdetect/pkg/gdetect"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

const DefaultScanTimeout = 4 * time.Hour

var (
	ErrScanInProgress  = errors.New("a scan is already in progress, wait for it to finish")
	ErrInvalidScanType = errors.New("invalid scan type")
	ErrEmptyPath       = errors.New("empty path")
	ErrInspectDisabled = errors.New("threat inspection is not configured")
	ErrThreatNotFound  = errors.New("threat not found")
	ErrUnknownPath     = errors.New("could not determine the threat file path")
)

type Submitter interface {
	WaitForFile(ctx context.Context, filepath string, options gdetect.WaitForOptions) (result gdetect.Result, err error)
	ExtractExpertViewURL(result *gdetect.Result) (urlExpertView string, err error)
}

// Config for New. Journal and Submitter are optional, Inspect fails with
// ErrInspectDisabled without a Submitter.
type Config struct {
	Runner      powershell.Runner
	Journal     journal.Recorder
	Submitter   Submitter
	WaitOpts    gdetect.WaitForOptions
	ScanTimeout time.Duration
}

// Defender drives Windows Defender through PowerShell cmdlets.
type Defender struct {
	runner      powershell.Runner
	journal     journal.Recorder
	submitter   Submitter
	waitOpts    gdetect.WaitForOptions
	scanTimeout time.Duration
}

// for test purposes
var Now = time.Now

func New(config Config) *Defender {
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = DefaultScanTimeout
	}
	return &Defender{
		runner:      config.Runner,
		journal:     config.Journal,
		submitter:   config.Submitter,
		waitOpts:    config.WaitOpts,
		scanTimeout: config.ScanTimeout,
	}
}

// runOutcome runs a remediation script and interprets its outcome markers.
func (d *Defender) runOutcome(ctx context.Context, script string) (result datamodel.OperationResult, err error) {
	output, err := d.runner.Run(ctx, script)
	if err != nil {
		return
	}
	message, partial, err := powershell.ParseOutcome(output)
	if err != nil {
		return
	}
	result = datamodel.OperationResult{Message: message, Partial: partial}
	return
}

// record stores a remediation action in the journal. Failures are only logged.
// A non empty file prefixes the message.
func (d *Defender) record(ctx context.Context, action journal.Action, target string, file string, result datamodel.OperationResult, opErr error) {
	if d.journal == nil {
		return
	}
	entry := &journal.Entry{
		Action:  action,
		Target:  target,
		Outcome: journal.Success,
		Message: result.Message,
	}
	switch {
	case opErr != nil:
		entry.Outcome = journal.Failure
		entry.Message = opErr.Error()
	case result.Partial:
		entry.Outcome = journal.Partial
	}
	if file != "" {
		entry.Message = file + ": " + entry.Message
	}
	// the action already happened, record it even if the caller gave up
	if err := d.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("could not record action", slog.String("action", string(action)), slog.String("target", target), slog.String("error", err.Error()))
	}
}

func (d *Defender) remediate(ctx context.Context, action journal.Action, target string, script string) (result datamodel.OperationResult, err error) {
	return d.remediateFile(ctx, action, target, "", script)
}

// remediateFile is remediate for an action on a threat that also names the
// file it touched.
func (d *Defender) remediateFile(ctx context.Context, action journal.Action, target string, file string, script string) (result datamodel.OperationResult, err error) {
	result, err = d.runOutcome(ctx, script)
	d.record(ctx, action, target, file, result, err)
	if err != nil {
		err = fmt.Errorf("%s failed: %w", action, err)
		return
	}
	logger.Info("action done", slog.String("action", string(action)), slog.String("target", target), slog.String("message", result.Message), slog.Bool("partial", result.Partial))
	return
}
