// Package watch implements the Directory Watcher (ccbox core component
// C5): merges filesystem change notifications from the Codex, Claude
// Code, and Gemini session roots plus a poll loop over the OpenCode
// database into one debounced refresh signal, generalizing the
// per-engine debounce pattern each adapter used on its own into a
// single cross-engine one.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
)

// EventKind distinguishes a broad index refresh from a narrower
// "the session currently open in the UI changed" notification.
type EventKind int

const (
	// EventIndexChanged signals that the project/session list should be
	// re-derived from the Indexer.
	EventIndexChanged EventKind = iota
	// EventSessionChanged signals that the file backing the focused
	// session changed and its timeline should be re-assembled.
	EventSessionChanged
)

// Event is delivered on the channel returned by Start.
type Event struct {
	Kind      EventKind
	SessionID string
}

// watchedExt are the file suffixes worth reacting to; everything else
// (lockfiles, swap files, directories) is ignored.
var watchedExt = map[string]bool{
	".jsonl": true,
	".json":  true,
}

// focus identifies the session currently open in the UI, if any, so a
// write to its specific log file can be distinguished from unrelated
// churn elsewhere under the same root.
type focus struct {
	sessionID string
	engine    ccmodel.Engine
	logPath   string
}

// Watcher merges fsnotify-driven roots with a poll loop over the
// OpenCode database into a single debounced Event stream.
type Watcher struct {
	fsWatcher *fsnotify.Watcher

	opencodeDBPath string
	pollInterval   time.Duration
	debounce       time.Duration

	events chan Event
	done   chan struct{}

	mu          sync.Mutex
	focused     *focus
	ocModTime   time.Time
	ocSize      int64
	debounceTmr *time.Timer
}

// New builds a Watcher over roots (the Codex/Claude/Gemini session
// directories that exist) plus the OpenCode database path. Either set
// may be empty if that engine has no sessions on this machine yet.
func New(roots []string, opencodeDBPath string, debounce, pollInterval time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:      fw,
		opencodeDBPath: opencodeDBPath,
		pollInterval:   pollInterval,
		debounce:       debounce,
		events:         make(chan Event, 32),
		done:           make(chan struct{}),
	}

	for _, root := range roots {
		if root == "" {
			continue
		}
		_ = w.addWatchTree(root)
	}

	if opencodeDBPath != "" {
		if info, err := os.Stat(opencodeDBPath); err == nil {
			w.ocModTime = info.ModTime()
			w.ocSize = info.Size()
		}
	}

	return w, nil
}

// Start launches the watch and poll loops and returns the merged event
// channel. The channel is closed after Close.
func (w *Watcher) Start() <-chan Event {
	go w.watchLoop()
	if w.opencodeDBPath != "" && w.pollInterval > 0 {
		go w.pollLoop()
	}
	return w.events
}

// Focus marks sessionID as the one currently open in the UI so its log
// file's writes are reported as EventSessionChanged in addition to the
// coarser EventIndexChanged. Pass an empty sessionID to clear it.
func (w *Watcher) Focus(sessionID string, engine ccmodel.Engine, logPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sessionID == "" {
		w.focused = nil
		return
	}
	w.focused = &focus{sessionID: sessionID, engine: engine, logPath: logPath}
}

// Close stops both loops and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) watchLoop() {
	defer close(w.events)

	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)
		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addWatchTree(ev.Name)
			return
		}
	}
	if !watchedExt[strings.ToLower(filepath.Ext(ev.Name))] {
		return
	}
	if ev.Op&fsnotify.Remove != 0 {
		return
	}

	w.scheduleDebounced(ev.Name)
}

// scheduleDebounced coalesces a burst of writes into one refresh, the
// way each original per-engine watcher debounced on its own root.
func (w *Watcher) scheduleDebounced(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTmr != nil {
		w.debounceTmr.Stop()
	}
	w.debounceTmr = time.AfterFunc(w.debounce, func() {
		w.emitForPath(path)
	})
}

func (w *Watcher) emitForPath(path string) {
	w.mu.Lock()
	focused := w.focused
	w.mu.Unlock()

	if focused != nil && focused.engine != ccmodel.EngineOpenCode && samePath(focused.logPath, path) {
		w.send(Event{Kind: EventSessionChanged, SessionID: focused.sessionID})
	}
	w.send(Event{Kind: EventIndexChanged})
}

func (w *Watcher) pollLoop() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.pollOpenCode()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) pollOpenCode() {
	info, err := os.Stat(w.opencodeDBPath)
	if err != nil {
		return
	}

	w.mu.Lock()
	changed := info.ModTime().After(w.ocModTime) || info.Size() != w.ocSize
	if changed {
		w.ocModTime = info.ModTime()
		w.ocSize = info.Size()
	}
	focused := w.focused
	w.mu.Unlock()

	if !changed {
		return
	}

	if focused != nil && focused.engine == ccmodel.EngineOpenCode {
		w.send(Event{Kind: EventSessionChanged, SessionID: focused.sessionID})
	}
	w.send(Event{Kind: EventIndexChanged})
}

func (w *Watcher) send(ev Event) {
	select {
	case w.events <- ev:
	default:
		// Channel full: a refresh is already pending, dropping this one
		// is harmless since the next Refresh() picks up all changes.
	}
}

func (w *Watcher) addWatchTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = w.fsWatcher.Add(path)
		}
		return nil
	})
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ca, errA := filepath.Abs(a)
	cb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ca == cb
}
