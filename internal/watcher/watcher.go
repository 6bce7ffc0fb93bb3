// Package watcher watches an inbox directory and hands batches of settled
// file changes to a handler.
//
// Raw fsnotify events are filtered, then debounced: a path is reported once
// no event has touched any watched file for the debounce delay. Repeated
// events for the same path collapse into the latest one.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
)

const eventBufferSize = 100

// FileWatcher watches directories for file changes with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Present reports whether the file existed when the event was observed.
func (e ChangeEvent) Present() bool {
	return e.Type == EventTypeCreated || e.Type == EventTypeModified
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles a batch of settled changes. Errors are logged and
// watching continues.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// NewFileWatcher creates a new file watcher. A nil logger discards output.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		logger:    logging.OrNop(logger).WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter; every filter must accept a path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddPath watches a directory. Subdirectories are not watched.
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid path: %s is not a directory", path)
	}
	return fw.watcher.Add(cleanPath)
}

// Run dispatches debounced batches to handler until ctx is canceled, then
// releases the fsnotify watcher. Handler calls are sequential and happen on
// the caller's goroutine.
func (fw *FileWatcher) Run(ctx context.Context, handler ChangeHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan ChangeEvent, eventBufferSize)
	batches := make(chan []ChangeEvent)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fw.debouncer.Run(ctx, events, batches)
	}()
	defer func() {
		cancel()
		wg.Wait()
		fw.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			change, keep := fw.convert(event)
			if !keep {
				continue
			}
			select {
			case events <- change:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn(ctx, err, "File watcher error")

		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			if err := handler(ctx, batch); err != nil {
				fw.logger.Error(ctx, err, "File watcher handler error", "events", len(batch))
			}
		}
	}
}

// Stop releases the fsnotify watcher without running.
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) convert(event fsnotify.Event) (ChangeEvent, bool) {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return ChangeEvent{}, false
		}
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		// Chmod only.
		return ChangeEvent{}, false
	}

	change := ChangeEvent{Type: eventType, Path: event.Name}
	if info, err := os.Stat(event.Name); err == nil {
		if info.IsDir() {
			return ChangeEvent{}, false
		}
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	} else if change.Present() {
		// Gone before we looked.
		change.Type = EventTypeDeleted
	}
	return change, true
}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	pending map[string]ChangeEvent
}

// NewDebouncer creates a debouncer that settles after delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]ChangeEvent),
	}
}

// Add records an event; a later event for the same path replaces it.
func (d *Debouncer) Add(event ChangeEvent) {
	d.pending[event.Path] = event
}

// Drain returns the pending events ordered by path and clears them.
func (d *Debouncer) Drain() []ChangeEvent {
	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	d.pending = make(map[string]ChangeEvent)
	return events
}

// Run reads events from in and sends a batch on out each time the input has
// been quiet for the delay. Input is accepted while a batch waits to be
// taken; a newer batch is merged into a waiting one. out is closed when Run
// returns, which happens when ctx is done or in is closed.
func (d *Debouncer) Run(ctx context.Context, in <-chan ChangeEvent, out chan<- []ChangeEvent) {
	defer close(out)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	ready := NewDebouncer(d.delay)

	for {
		var sendC chan<- []ChangeEvent
		var batch []ChangeEvent
		if len(ready.pending) > 0 {
			sendC = out
			batch = ready.peek()
		}

		select {
		case <-ctx.Done():
			return

		case event, ok := <-in:
			if !ok {
				return
			}
			d.Add(event)
			// A fresh timer per event leaves no stale tick behind.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(d.delay)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for _, event := range d.Drain() {
				ready.Add(event)
			}

		case sendC <- batch:
			ready.Drain()
		}
	}
}

// peek returns the pending events ordered by path without clearing them.
func (d *Debouncer) peek() []ChangeEvent {
	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// PatternFilter accepts files whose base name matches a glob.
func PatternFilter(pattern string) FileFilter {
	return func(path string) bool {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		return err == nil && matched
	}
}

// NoHiddenFilter rejects dot files, including in-flight ".tmp-*" parts.
func NoHiddenFilter(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}
