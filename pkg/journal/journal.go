package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

type Action string

const (
	ActionQuarantine      Action = "quarantine"
	ActionRemove          Action = "remove"
	ActionAllow           Action = "allow"
	ActionRestore         Action = "restore"
	ActionCleanQuarantine Action = "clean-quarantine"
	ActionRemoveAll       Action = "remove-all"
	ActionCleanHistory    Action = "clean-history"
	ActionAddExclusion    Action = "add-exclusion"
	ActionRemoveExclusion Action = "remove-exclusion"
	ActionCleanup         Action = "cleanup"
)

type Outcome string

const (
	Success Outcome = "success"
	Partial Outcome = "partial"
	Failure Outcome = "failure"
)

// Entry is one remediation action as it was requested and how it went.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Target    string    `json:"target"`
	Outcome   Outcome   `json:"outcome"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder stores remediation actions.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

type Journaler interface {
	Recorder

	Get(ctx context.Context, id string) (entry *Entry, err error)

	// List returns the latest entries, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) (entries []Entry, err error)

	// Prune drops entries created before the given time.
	Prune(ctx context.Context, before time.Time) (removed int64, err error)

	Close() error
}

var ErrEntryNotFound = errors.New("entry not found")

// MemoryLocation is the location of a journal opened without a file.
const MemoryLocation = "file::memory:"

type Journal struct {
	db       *sql.DB
	location string
	sync.Mutex
}

var _ Journaler = &Journal{}

const CreateTable = `CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	target TEXT,
	outcome TEXT NOT NULL,
	message TEXT,
	created_at int NOT NULL);`

const createIndex = `CREATE INDEX IF NOT EXISTS actions_created_at ON actions (created_at);`

// New opens the journal database at location, creating it if needed. An
// empty location keeps the journal in memory.
func New(ctx context.Context, location string) (j *Journal, err error) {
	finalLocation := MemoryLocation
	if location != "" {
		_, err = os.Stat(location)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
			dir, _ := filepath.Split(location)
			if dir != "" {
				if err = os.MkdirAll(dir, 0o750); err != nil {
					err = fmt.Errorf("failed to create journal db location: %w", err)
					return
				}
			}
			f, createErr := os.Create(filepath.Clean(location))
			if createErr != nil {
				err = fmt.Errorf("failed to create journal db file: %w", createErr)
				return
			}
			if closeErr := f.Close(); closeErr != nil {
				logger.Warn("cannot close journal db file", slog.String("error", closeErr.Error()))
			}
		default:
			return
		}
		finalLocation = location
	}

	db, err := sql.Open("sqlite", finalLocation)
	if err != nil {
		err = fmt.Errorf("failed to open journal db: %w", err)
		return
	}
	// an in memory database only lives as long as its connection
	db.SetMaxOpenConns(1)

	for _, statement := range []string{CreateTable, createIndex} {
		if _, err = db.ExecContext(ctx, statement); err != nil {
			err = fmt.Errorf("failed to create journal db: %w", err)
			if closeErr := db.Close(); closeErr != nil {
				logger.Error("cannot close journal db", slog.String("error", closeErr.Error()))
			}
			return
		}
	}

	logger.Debug("journal opened", slog.String("location", finalLocation))
	j = &Journal{db: db, location: finalLocation}
	return
}

func (j *Journal) GetLocation() string {
	return j.location
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// for test purposes
var (
	Now   = time.Now
	NewID = func() string { return uuid.NewString() }
)

// Record stores entry. A missing id or creation time is filled in.
func (j *Journal) Record(ctx context.Context, entry *Entry) (err error) {
	j.Lock()
	defer j.Unlock()
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.UnixMilli() <= 0 {
		entry.CreatedAt = Now()
	}
	sqlStatement := `INSERT INTO actions (id, action, target, outcome, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = j.db.ExecContext(ctx, sqlStatement,
		entry.ID,
		string(entry.Action),
		entry.Target,
		string(entry.Outcome),
		entry.Message,
		entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		err = fmt.Errorf("cannot record %s action: %w", entry.Action, err)
		return
	}
	return
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (entry Entry, err error) {
	var action, outcome string
	var target, message sql.NullString
	var createdAt int64
	if err = row.Scan(&entry.ID, &action, &target, &outcome, &message, &createdAt); err != nil {
		return
	}
	entry.Action = Action(action)
	entry.Outcome = Outcome(outcome)
	entry.Target = target.String
	entry.Message = message.String
	entry.CreatedAt = time.UnixMilli(createdAt)
	return
}

func (j *Journal) Get(ctx context.Context, id string) (entry *Entry, err error) {
	j.Lock()
	defer j.Unlock()
	row := j.db.QueryRowContext(ctx, "SELECT id, action, target, outcome, message, created_at FROM actions WHERE id = ?", id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return
	}
	entry = &e
	return
}

func (j *Journal) List(ctx context.Context, limit int) (entries []Entry, err error) {
	j.Lock()
	defer j.Unlock()
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, "SELECT id, action, target, outcome, message, created_at FROM actions ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		err = fmt.Errorf("cannot list journal entries: %w", err)
		return
	}
	defer func() {
		if e := rows.Close(); e != nil {
			logger.Error("cannot close rows", slog.String("error", e.Error()))
		}
	}()
	entries = []Entry{}
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			err = fmt.Errorf("cannot read journal entry: %w", scanErr)
			return
		}
		entries = append(entries, entry)
	}
	err = rows.Err()
	return
}

func (j *Journal) Prune(ctx context.Context, before time.Time) (removed int64, err error) {
	j.Lock()
	defer j.Unlock()
	result, err := j.db.ExecContext(ctx, "DELETE FROM actions WHERE created_at < ?", before.UnixMilli())
	if err != nil {
		err = fmt.Errorf("cannot prune journal: %w", err)
		return
	}
	removed, err = result.RowsAffected()
	return
}
