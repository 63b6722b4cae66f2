package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sourcegraph/ctxvfs"

	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
)

// Documents is the workspace's document source of truth: explicitly
// opened documents are served from an in-memory overlay, everything else
// is read through from disk and cached, and disk changes invalidate the
// cache after a debounce window. The watch is not recursive: it covers
// entries directly in the root directory only, so changes inside
// subdirectories do not invalidate cached content. This generalizes the teacher's
// overlay-over-ctxvfs.OS pattern (langserver/handler_shared.go's
// AtomicFS binding an overlay FS before the OS FS) from "Go source files
// read by gocode/godef" to "any file read by any analyzer or the
// syntactic scanner".
type Documents struct {
	root string
	osfs ctxvfs.FileSystem

	mu   sync.RWMutex
	open map[string]string

	cache *lru.Cache

	watcher     *fsnotify.Watcher
	debounceDur time.Duration
	debounceMu  sync.Mutex
	debounceMap map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDocuments opens a Documents cache rooted at root and starts its
// debounced filesystem watch. Callers must call Close when done.
func NewDocuments(root string) (*Documents, error) {
	cache, err := lru.New(2048)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, gwerrors.Wrap(gwerrors.KindOrchestratorIO, err, "watching workspace root")
	}

	d := &Documents{
		root:        root,
		osfs:        ctxvfs.OS(root),
		open:        make(map[string]string),
		cache:       cache,
		watcher:     watcher,
		debounceDur: 2 * time.Second,
		debounceMap: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Open records relPath as open with content, serving future Get calls
// for it from the overlay rather than disk.
func (d *Documents) Open(relPath, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open[relPath] = content
}

// CloseDoc removes relPath from the overlay; subsequent Get calls read
// through to disk (and the cache) again.
func (d *Documents) CloseDoc(relPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.open, relPath)
	d.cache.Remove(relPath)
}

// Get returns relPath's current content: the overlay if open, else the
// LRU cache, else a read-through from disk that populates the cache.
func (d *Documents) Get(ctx context.Context, relPath string) (string, error) {
	d.mu.RLock()
	if content, ok := d.open[relPath]; ok {
		d.mu.RUnlock()
		return content, nil
	}
	d.mu.RUnlock()

	if v, ok := d.cache.Get(relPath); ok {
		return v.(string), nil
	}

	b, err := ctxvfs.ReadFile(ctx, d.osfs, "/"+filepath.ToSlash(relPath))
	if err != nil {
		return "", gwerrors.Wrap(gwerrors.KindFileNotFound, err, relPath)
	}
	content := string(b)
	d.cache.Add(relPath, content)
	return content, nil
}

// Close stops the watch goroutine and releases the watcher.
func (d *Documents) Close() error {
	close(d.stopCh)
	<-d.doneCh
	return d.watcher.Close()
}

func (d *Documents) run() {
	defer close(d.doneCh)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.recordChange(ev.Name)
		case _, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
		case <-ticker.C:
			d.flushDebounced()
		}
	}
}

func (d *Documents) recordChange(absPath string) {
	rel, err := filepath.Rel(d.root, absPath)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	d.debounceMu.Lock()
	d.debounceMap[rel] = time.Now()
	d.debounceMu.Unlock()
}

func (d *Documents) flushDebounced() {
	now := time.Now()
	var ready []string

	d.debounceMu.Lock()
	for rel, t := range d.debounceMap {
		if now.Sub(t) >= d.debounceDur {
			ready = append(ready, rel)
			delete(d.debounceMap, rel)
		}
	}
	d.debounceMu.Unlock()

	for _, rel := range ready {
		d.cache.Remove(rel)
	}
}

// String implements fmt.Stringer for debug logging.
func (d *Documents) String() string {
	return fmt.Sprintf("workspace.Documents{root: %s}", d.root)
}
