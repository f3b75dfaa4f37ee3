package manifest

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"imcore/internal/debuglog"
)

// ReloadFunc is called with a freshly (re-)parsed, ABI-checked manifest
// whenever its file is created or written under a watched directory.
type ReloadFunc func(Manifest)

// Watcher watches a directory of *.toml plugin manifests and
// debounces rapid writes before re-parsing and invoking ReloadFunc,
// so a plugin author can drop in or edit a manifest without
// restarting the core.
type Watcher struct {
	dir         string
	coreVersion string
	onReload    ReloadFunc
	dbg         *debuglog.Sink

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	timers   map[string]*time.Timer
	debounce time.Duration

	done chan struct{}
}

// NewWatcher starts watching dir for *.toml manifest changes. coreVersion
// is the running core's version, checked against each manifest's
// abi_version constraint before onReload is called.
func NewWatcher(dir, coreVersion string, onReload ReloadFunc, dbg *debuglog.Sink) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		dir:         dir,
		coreVersion: coreVersion,
		onReload:    onReload,
		dbg:         dbg,
		fsw:         fsw,
		timers:      make(map[string]*time.Timer),
		debounce:    300 * time.Millisecond,
		done:        make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".toml") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.dbg != nil {
				w.dbg.Error("manifest", "watch %s: %v", w.dir, err)
			}

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.reload(path) })
}

func (w *Watcher) reload(path string) {
	m, err := Load(path)
	if err != nil {
		if w.dbg != nil {
			w.dbg.Error("manifest", "reload %s: %v", path, err)
		}
		return
	}
	if err := m.CheckABI(w.coreVersion); err != nil {
		if w.dbg != nil {
			w.dbg.Error("manifest", "%v", err)
		}
		return
	}
	if w.dbg != nil {
		w.dbg.Info("manifest", "loaded %s from %s", m.ID, filepath.Base(path))
	}
	w.onReload(m)
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
