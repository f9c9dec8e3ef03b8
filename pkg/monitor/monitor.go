package monitor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// ErrRetryLater can be returned by a ScanFunc to keep the file pending, it is
// handed again after RetryDelay.
var ErrRetryLater = errors.New("retry later")

type Monitorer interface {
	Start()
	Close()
	Add(path string) error
	Remove(path string) error
}

// ScanFunc is called with a watched root (pre-scan, periodic scan) or with a
// file that was created or written. Calls never overlap.
type ScanFunc func(ctx context.Context, path string) error

type Config struct {
	PreScan           bool
	Period            time.Duration
	ModificationDelay time.Duration
}

// Monitor watches folders and hands new or modified files to a scan function
// once they are left untouched for the modification delay.
type Monitor struct {
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	cb       ScanFunc
	preScan  bool
	period   time.Duration
	modDelay time.Duration
	stop     context.Context
	cancel   context.CancelFunc
	once     sync.Once
	callMu   sync.Mutex

	lock    sync.Mutex
	paths   map[string]struct{}
	pending map[string]time.Time
}

var _ Monitorer = &Monitor{}

func NewMonitor(cb ScanFunc, config Config) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	stop, cancel := context.WithCancel(context.Background())
	return &Monitor{
		watcher:  watcher,
		cb:       cb,
		preScan:  config.PreScan,
		period:   config.Period,
		modDelay: config.ModificationDelay,
		paths:    map[string]struct{}{},
		pending:  map[string]time.Time{},
		stop:     stop,
		cancel:   cancel,
	}, nil
}

// Close stops every loop and waits for running callbacks. It can be called
// more than once.
func (m *Monitor) Close() {
	m.once.Do(func() {
		m.cancel()
		if err := m.watcher.Close(); err != nil {
			logger.Error("could not close watcher", slog.String("error", err.Error()))
		}
		m.wg.Wait()
	})
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.work()
	if m.period != 0 {
		m.wg.Add(1)
		go m.rescan()
	}
	m.wg.Add(1)
	go m.scanPending()
}

func (m *Monitor) call(path string) {
	m.callMu.Lock()
	defer m.callMu.Unlock()
	if m.stop.Err() != nil {
		return
	}
	err := m.cb(m.stop, path)
	switch {
	case err == nil:
	case errors.Is(err, ErrRetryLater):
		logger.Debug("scan postponed", slog.String("path", path))
		m.lock.Lock()
		m.pending[path] = Now().Add(RetryDelay)
		m.lock.Unlock()
	default:
		logger.Error("could not scan path", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (m *Monitor) watchedPaths() (paths []string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for path := range m.paths {
		paths = append(paths, path)
	}
	return
}

func (m *Monitor) rescan() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop.Done():
			return
		case <-ticker.C:
			for _, path := range m.watchedPaths() {
				m.call(path)
			}
		}
	}
}

func (m *Monitor) work() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			logger.Debug("new event", slog.String("event", event.String()))
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				m.lock.Lock()
				m.pending[event.Name] = time.Time{}
				m.lock.Unlock()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

var (
	ScanFileLoopPause = time.Millisecond * 100
	RetryDelay        = 30 * time.Second
	Since             = time.Since
	Now               = time.Now
)

// ready pops the pending files whose last modification is older than the
// modification delay. Files that vanished are dropped.
func (m *Monitor) ready() (paths []string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for path, notBefore := range m.pending {
		if Now().Before(notBefore) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			delete(m.pending, path)
			continue
		}
		if Since(info.ModTime()) >= m.modDelay {
			paths = append(paths, path)
			delete(m.pending, path)
		}
	}
	return
}

func (m *Monitor) scanPending() {
	defer m.wg.Done()
	ticker := time.NewTicker(ScanFileLoopPause)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop.Done():
			return
		case <-ticker.C:
			for _, path := range m.ready() {
				m.call(path)
			}
		}
	}
}

func (m *Monitor) Add(path string) error {
	if err := m.watcher.Add(path); err != nil {
		return err
	}
	m.lock.Lock()
	m.paths[path] = struct{}{}
	m.lock.Unlock()
	if m.preScan {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.call(path)
		}()
	}
	return nil
}

func (m *Monitor) Remove(path string) error {
	m.lock.Lock()
	delete(m.paths, path)
	m.lock.Unlock()
	return m.watcher.Remove(path)
}
