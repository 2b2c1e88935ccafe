package artifact

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is how long the watcher waits after the last write before
// reporting an artifact. The toolkit writes .qza files in several chunks,
// and reporting mid-write would record a partial size.
const debounceDelay = 200 * time.Millisecond

// Watcher reports artifacts as the external toolkit writes them into a
// run's artifacts directory. Callbacks fire once per file after writes to
// it have settled.
type Watcher struct {
	watcher    *fsnotify.Watcher
	dir        string
	onArtifact func(*Artifact)

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]bool
	stopCh  chan struct{}
	stopped bool
}

// NewWatcher creates a Watcher for the given artifacts directory.
// onArtifact is invoked from the watch goroutine for each settled file.
func NewWatcher(dir string, onArtifact func(*Artifact)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// fsnotify works better with directories than individual files
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		watcher:    fw,
		dir:        dir,
		onArtifact: onArtifact,
		pending:    make(map[string]*time.Timer),
		seen:       make(map[string]bool),
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching for new artifacts.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher. Pending debounce timers are cancelled; files
// still being written when Stop is called are not reported.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
}

// watchLoop processes filesystem events from the artifacts directory.
func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Ignore temp files and anything that isn't a known artifact format
			if KindFromPath(event.Name) == KindUnknown {
				continue
			}

			w.scheduleReport(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are not fatal to the run; keep watching
			_ = err
		}
	}
}

// scheduleReport (re)starts the debounce timer for a file. Each write
// pushes the report back until writes settle.
func (w *Watcher) scheduleReport(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || w.seen[path] {
		return
	}

	if timer, ok := w.pending[path]; ok {
		timer.Reset(debounceDelay)
		return
	}

	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.report(path)
	})
}

// report stats the settled file and invokes the callback.
func (w *Watcher) report(path string) {
	w.mu.Lock()
	if w.stopped || w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	delete(w.pending, path)
	w.mu.Unlock()

	a, err := FromFile(path)
	if err != nil {
		return // File vanished or is unreadable; nothing to report
	}

	if w.onArtifact != nil {
		w.onArtifact(a)
	}
}

// Dir returns the watched artifacts directory.
func (w *Watcher) Dir() string {
	return filepath.Clean(w.dir)
}
