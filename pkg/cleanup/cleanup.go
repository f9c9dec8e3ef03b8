package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/spf13/afero"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

var ErrUnknownCategory = errors.New("unknown cleanup category")

// MaxErrorsPerCategory caps the error entries kept for one category, further
// failures are only counted.
const MaxErrorsPerCategory = 20

const (
	UserTemp      = "user_temp"
	WindowsTemp   = "windows_temp"
	LocalTemp     = "local_temp"
	CrashDumps    = "crash_dumps"
	WindowsUpdate = "windows_update"
	Prefetch      = "prefetch"
	Thumbnails    = "thumbnails"
)

// TempCategories are the categories cleaned by CleanTempFiles.
var TempCategories = []string{UserTemp, WindowsTemp, LocalTemp}

type location struct {
	env  string
	elem []string
}

type definition struct {
	id       string
	label    string
	icon     string
	selected bool
	location location
	pattern  string
}

var definitions = []definition{
	{id: UserTemp, label: "User temporary files", icon: "temp", selected: true, location: location{env: "TEMP"}},
	{id: WindowsTemp, label: "Windows temporary files", icon: "temp", selected: true, location: location{env: "WINDIR", elem: []string{"Temp"}}},
	{id: LocalTemp, label: "Local application temporary files", icon: "temp", selected: true, location: location{env: "LOCALAPPDATA", elem: []string{"Temp"}}},
	{id: CrashDumps, label: "Crash dumps", icon: "dump", location: location{env: "LOCALAPPDATA", elem: []string{"CrashDumps"}}},
	{id: WindowsUpdate, label: "Windows Update downloads", icon: "update", location: location{env: "WINDIR", elem: []string{"SoftwareDistribution", "Download"}}},
	{id: Prefetch, label: "Prefetch files", icon: "prefetch", location: location{env: "WINDIR", elem: []string{"Prefetch"}}},
	{id: Thumbnails, label: "Thumbnail cache", icon: "image", location: location{env: "LOCALAPPDATA", elem: []string{"Microsoft", "Windows", "Explorer"}}, pattern: "thumbcache_*.db"},
}

type Config struct {
	Fs      afero.Fs
	Getenv  func(key string) string
	Journal journal.Recorder
}

// Cleaner frees disk space by emptying well-known Windows cache folders.
type Cleaner struct {
	fs      afero.Fs
	getenv  func(key string) string
	journal journal.Recorder
}

func New(config Config) *Cleaner {
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Getenv == nil {
		config.Getenv = os.Getenv
	}
	return &Cleaner{
		fs:      config.Fs,
		getenv:  config.Getenv,
		journal: config.Journal,
	}
}

type category struct {
	definition
	paths []string
}

// resolve expands category locations from the environment. A category whose
// variable is unset has no path. A folder already claimed by a previous
// category is not listed again.
func (c *Cleaner) resolve() (categories []category) {
	seen := make(map[string]struct{})
	for _, def := range definitions {
		cat := category{definition: def, paths: []string{}}
		if base := strings.TrimSpace(c.getenv(def.location.env)); base != "" {
			path := filepath.Clean(filepath.Join(append([]string{base}, def.location.elem...)...))
			key := strings.ToLower(path)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				cat.paths = append(cat.paths, path)
			}
		}
		categories = append(categories, cat)
	}
	return
}

// Categories lists the cleanup categories with their resolved paths, without
// measuring them.
func (c *Cleaner) Categories() (categories []datamodel.CleanupCategory) {
	for _, cat := range c.resolve() {
		categories = append(categories, cat.toModel())
	}
	return
}

func (cat category) toModel() datamodel.CleanupCategory {
	return datamodel.CleanupCategory{
		ID:        cat.id,
		Label:     cat.label,
		Icon:      cat.icon,
		Paths:     cat.paths,
		SizeHuman: datamodel.HumanSize(0),
		Selected:  cat.selected,
	}
}

// walkFiles calls fn for every regular file under root matching the category
// pattern. Unreadable entries are skipped.
func (c *Cleaner) walkFiles(ctx context.Context, root string, pattern string, fn func(path string, info fs.FileInfo)) error {
	return afero.Walk(c.fs, root, func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Debug("skip unreadable path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, info.Name()); !ok {
				return nil
			}
		}
		fn(path, info)
		return nil
	})
}

// Analyze measures every category.
func (c *Cleaner) Analyze(ctx context.Context) (analysis datamodel.CleanupAnalysis, err error) {
	analysis.Categories = []datamodel.CleanupCategory{}
	for _, cat := range c.resolve() {
		model := cat.toModel()
		for _, root := range cat.paths {
			err = c.walkFiles(ctx, root, cat.pattern, func(_ string, info fs.FileInfo) {
				model.Size += info.Size()
				model.FileCount++
			})
			if err != nil {
				err = fmt.Errorf("could not analyze %s: %w", cat.id, err)
				return
			}
		}
		model.SizeHuman = datamodel.HumanSize(model.Size)
		analysis.TotalSize += model.Size
		analysis.TotalFiles += model.FileCount
		analysis.Categories = append(analysis.Categories, model)
	}
	analysis.TotalSizeHuman = datamodel.HumanSize(analysis.TotalSize)
	logger.Debug("cleanup analyzed", slog.Int64("total-size", analysis.TotalSize), slog.Int64("total-files", analysis.TotalFiles))
	return
}

// selection returns the categories matching ids, in definition order. With no
// ids, the default selection is used.
func (c *Cleaner) selection(ids []string) (selected []category, err error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !slices.ContainsFunc(definitions, func(def definition) bool { return def.id == id }) {
			err = fmt.Errorf("%w: %q", ErrUnknownCategory, id)
			return
		}
		wanted[id] = struct{}{}
	}
	for _, cat := range c.resolve() {
		if len(wanted) == 0 && cat.selected {
			selected = append(selected, cat)
			continue
		}
		if _, ok := wanted[cat.id]; ok {
			selected = append(selected, cat)
		}
	}
	return
}

// Clean deletes the content of the given categories. The category folders
// themselves are kept. A file that cannot be deleted is reported and the
// cleanup goes on.
func (c *Cleaner) Clean(ctx context.Context, ids []string) (result datamodel.CleanupResult, err error) {
	selected, err := c.selection(ids)
	if err != nil {
		return
	}
	result.Errors = []datamodel.CleanupError{}
	for _, cat := range selected {
		if err = c.cleanCategory(ctx, cat, &result); err != nil {
			err = fmt.Errorf("could not clean %s: %w", cat.id, err)
			break
		}
	}
	result.BytesFreedHuman = datamodel.HumanSize(result.BytesFreed)
	c.record(ctx, selected, result, err)
	if err != nil {
		return
	}
	logger.Info("cleanup done", slog.Int64("files-deleted", result.FilesDeleted), slog.Int64("bytes-freed", result.BytesFreed), slog.Int64("failures", result.Failures))
	return
}

func (c *Cleaner) cleanCategory(ctx context.Context, cat category, result *datamodel.CleanupResult) (err error) {
	categoryErrors := 0
	fail := func(path string, failErr error) {
		result.Failures++
		if categoryErrors < MaxErrorsPerCategory {
			result.Errors = append(result.Errors, datamodel.CleanupError{Category: cat.id, Path: path, Error: failErr.Error()})
		}
		categoryErrors++
		logger.Debug("could not delete", slog.String("path", path), slog.String("error", failErr.Error()))
	}

	for _, root := range cat.paths {
		type file struct {
			path string
			size int64
		}
		files := []file{}
		err = c.walkFiles(ctx, root, cat.pattern, func(path string, info fs.FileInfo) {
			files = append(files, file{path: path, size: info.Size()})
		})
		if err != nil {
			return
		}
		for _, f := range files {
			if err = ctx.Err(); err != nil {
				return
			}
			if rmErr := c.remove(f.path); rmErr != nil {
				fail(f.path, rmErr)
				continue
			}
			result.FilesDeleted++
			result.BytesFreed += f.size
		}
		if cat.pattern == "" {
			c.removeEmptyDirs(root)
		}
	}
	return
}

// remove deletes a file, clearing a read-only attribute if needed.
func (c *Cleaner) remove(path string) error {
	err := c.fs.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if chErr := c.fs.Chmod(path, 0o600); chErr != nil {
		return err
	}
	return c.fs.Remove(path)
}

// removeEmptyDirs removes the directories left empty under root, deepest
// first. root is kept.
func (c *Cleaner) removeEmptyDirs(root string) {
	dirs := []string{}
	_ = afero.Walk(c.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err == nil && info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	for _, dir := range slices.Backward(dirs) {
		if empty, err := afero.IsEmpty(c.fs, dir); err != nil || !empty {
			continue
		}
		if err := c.fs.Remove(dir); err != nil {
			logger.Debug("could not remove directory", slog.String("path", dir), slog.String("error", err.Error()))
		}
	}
}

func (c *Cleaner) record(ctx context.Context, selected []category, result datamodel.CleanupResult, opErr error) {
	if c.journal == nil {
		return
	}
	ids := make([]string, 0, len(selected))
	for _, cat := range selected {
		ids = append(ids, cat.id)
	}
	entry := &journal.Entry{
		Action:  journal.ActionCleanup,
		Target:  strings.Join(ids, ","),
		Outcome: journal.Success,
		Message: fmt.Sprintf("%d files deleted, %s freed", result.FilesDeleted, result.BytesFreedHuman),
	}
	switch {
	case opErr != nil:
		entry.Outcome = journal.Failure
		entry.Message = opErr.Error()
	case result.Failures > 0:
		entry.Outcome = journal.Partial
		entry.Message = fmt.Sprintf("%s, %d failures", entry.Message, result.Failures)
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("could not record cleanup", slog.String("error", err.Error()))
	}
}

// CleanTempFiles empties the temporary folders.
func (c *Cleaner) CleanTempFiles(ctx context.Context) (result datamodel.CleanResult, err error) {
	cleaned, err := c.Clean(ctx, TempCategories)
	if err != nil {
		return
	}
	result.FilesDeleted = cleaned.FilesDeleted
	return
}
