package powershell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// Runner executes a PowerShell script and returns its standard output.
type Runner interface {
	Run(ctx context.Context, script string) (output string, err error)
}

const (
	DefaultExecutable = "powershell"
	DefaultTimeout    = 5 * time.Minute
)

// forces UTF-8 so that threat names and paths survive the pipe
const utf8Prelude = "[Console]::OutputEncoding=[System.Text.Encoding]::UTF8; "

var ErrTimeout = errors.New("powershell execution timed out")

// ExecError is returned when the interpreter exits with a non-zero status.
type ExecError struct {
	ExitCode int
	Stderr   string
	Stdout   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("STDERR: %s | STDOUT: %s", strings.TrimSpace(e.Stderr), strings.TrimSpace(e.Stdout))
}

type Config struct {
	Executable string
	Timeout    time.Duration
}

type Executor struct {
	executable string
	timeout    time.Duration
}

var _ Runner = &Executor{}

// for test purposes
var CommandContext = exec.CommandContext

func NewExecutor(config Config) *Executor {
	if config.Executable == "" {
		config.Executable = DefaultExecutable
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Executor{
		executable: config.Executable,
		timeout:    config.Timeout,
	}
}

// Run starts one interpreter per call and waits for it. The executor timeout
// only applies when ctx carries no deadline of its own.
func (e *Executor) Run(ctx context.Context, script string) (output string, err error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := CommandContext(ctx, e.executable,
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-Command", utf8Prelude+script,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	output = strings.ToValidUTF8(stdout.String(), "\uFFFD")
	logger.Debug("powershell executed",
		slog.String("executable", e.executable),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("stdout-size", stdout.Len()),
		slog.Int("stderr-size", stderr.Len()),
	)
	if runErr == nil {
		return
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
		return
	case ctx.Err() != nil:
		err = ctx.Err()
		return
	}

	exitErr := new(exec.ExitError)
	if errors.As(runErr, &exitErr) {
		err = &ExecError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.ToValidUTF8(stderr.String(), "\uFFFD"),
			Stdout:   output,
		}
		return
	}
	err = fmt.Errorf("could not run %s: %w", e.executable, runErr)
	return
}

// Quote returns s as a single-quoted PowerShell literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
