// Package watcher implements the watcher supervisor of spec.md §4.G: a
// recursive, debounced watcher rooted at the configured watch root that
// drains raw filesystem events on a single goroutine and fans them out as
// internal/fsevents.Event values.
//
// fsnotify (this package's underlying native watcher) reports only
// Create/Write/Remove/Rename/Chmod — it has no Access(Close, Write) event
// and, unlike the original's notify-debounce-full, no rename-cookie
// correlation between a Rename and the Create that follows it. This
// package makes two deliberate approximations, documented in DESIGN.md:
// a Close is synthesized once Write events for a Path go quiet for the
// debounce window, and a Rename/Create pair observed within a short
// correlation window is treated as one RenameBoth transition.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sentient-agi/enclave-trust/internal/fsevents"
)

const renameCorrelationWindow = 75 * time.Millisecond

// Normalizer turns a raw watcher path into a normalized Path, or reports
// rejection. Satisfied by pathutil.Normalize.
type Normalizer func(path string) (string, error)

// pendingRename is one in-flight Rename(From) awaiting a correlated Create,
// kept in arrival order so concurrent renames pair with the matching
// Create instead of an arbitrary one (spec.md §232's "Rename preserves
// digest", invariant I3).
type pendingRename struct {
	path  string
	timer *time.Timer
}

// Supervisor owns the native watcher and the per-path debounce state.
type Supervisor struct {
	fsw            *fsnotify.Watcher
	debounceWindow time.Duration
	normalize      Normalizer
	logger         *zap.SugaredLogger

	mu       sync.Mutex
	dirs     map[string]bool
	pending  map[string]*time.Timer
	modified map[string]bool
	// renameOf is a FIFO queue of in-flight Rename(From) events, ordered
	// by arrival: the oldest pending rename is always the one a Create
	// pairs with.
	renameOf []*pendingRename
}

// New creates a Supervisor rooted at root with the given debounce window
// (spec.md §4.G default: 1 second).
func New(root string, debounceWindow time.Duration, normalize Normalizer, logger *zap.SugaredLogger) (*Supervisor, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	s := &Supervisor{
		fsw:            fsw,
		debounceWindow: debounceWindow,
		normalize:      normalize,
		logger:         logger,
		dirs:           map[string]bool{},
		pending:        map[string]*time.Timer{},
		modified:       map[string]bool{},
	}
	if err := s.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return s, nil
}

func (s *Supervisor) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := s.fsw.Add(path); err != nil {
				return err
			}
			s.mu.Lock()
			s.dirs[path] = true
			s.mu.Unlock()
		}
		return nil
	})
}

// Close releases the native watcher.
func (s *Supervisor) Close() error {
	return s.fsw.Close()
}

// Run drains native events until ctx is canceled, calling emit for every
// classified Event. A watcher error is logged and draining continues,
// matching spec.md §4.G's failure model; errors on the Errors channel
// closing are treated as an unrecoverable, fatal condition and returned.
func (s *Supervisor) Run(ctx context.Context, emit func(fsevents.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return nil
			}
			s.handleRaw(ctx, ev, emit)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return errors.New("watcher: native watcher error channel closed")
			}
			if s.logger != nil {
				s.logger.Errorw("watcher error", "err", err)
			}
		}
	}
}

func (s *Supervisor) handleRaw(ctx context.Context, ev fsnotify.Event, emit func(fsevents.Event)) {
	path, err := s.normalize(ev.Name)
	if err != nil {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		s.handleCreate(ev.Name, path, emit)
	case ev.Op&fsnotify.Write != 0:
		s.handleWrite(path, emit)
	case ev.Op&fsnotify.Remove != 0:
		s.handleRemove(ev.Name, path, emit)
	case ev.Op&fsnotify.Rename != 0:
		s.handleRenameFrom(path, emit)
	}
}

func (s *Supervisor) isDir(rawPath string) bool {
	info, err := fsStat(rawPath)
	return err == nil && info.IsDir()
}

func (s *Supervisor) handleCreate(rawPath, path string, emit func(fsevents.Event)) {
	isDir := s.isDir(rawPath)

	s.mu.Lock()
	var pairedRename string
	if len(s.renameOf) > 0 {
		oldest := s.renameOf[0]
		oldest.timer.Stop()
		s.renameOf = s.renameOf[1:]
		pairedRename = oldest.path
	}
	if isDir {
		s.dirs[rawPath] = true
	}
	s.mu.Unlock()

	if isDir {
		_ = s.fsw.Add(rawPath)
	}

	if pairedRename != "" {
		emit(fsevents.Event{Kind: fsevents.RenameBoth, Paths: []string{pairedRename, path}})
		return
	}

	if isDir {
		emit(fsevents.Event{Kind: fsevents.CreateFolder, Paths: []string{path}})
		return
	}
	emit(fsevents.Event{Kind: fsevents.CreateFile, Paths: []string{path}})
}

func (s *Supervisor) handleWrite(path string, emit func(fsevents.Event)) {
	s.mu.Lock()
	alreadyModified := s.modified[path]
	s.modified[path] = true
	if t, ok := s.pending[path]; ok {
		t.Stop()
	}
	s.pending[path] = time.AfterFunc(s.debounceWindow, func() {
		s.mu.Lock()
		delete(s.pending, path)
		delete(s.modified, path)
		s.mu.Unlock()
		emit(fsevents.Event{Kind: fsevents.CloseWrite, Paths: []string{path}})
	})
	s.mu.Unlock()

	if !alreadyModified {
		emit(fsevents.Event{Kind: fsevents.ModifyData, Paths: []string{path}})
	}
}

func (s *Supervisor) handleRemove(rawPath, path string, emit func(fsevents.Event)) {
	s.mu.Lock()
	wasDir := s.dirs[rawPath]
	delete(s.dirs, rawPath)
	s.mu.Unlock()

	if wasDir {
		emit(fsevents.Event{Kind: fsevents.RemoveFolder, Paths: []string{path}})
		return
	}
	emit(fsevents.Event{Kind: fsevents.RemoveFile, Paths: []string{path}})
}

func (s *Supervisor) handleRenameFrom(path string, emit func(fsevents.Event)) {
	entry := &pendingRename{path: path}
	entry.timer = time.AfterFunc(renameCorrelationWindow, func() {
		s.mu.Lock()
		s.removePendingRename(entry)
		s.mu.Unlock()
		emit(fsevents.Event{Kind: fsevents.RenameFrom, Paths: []string{path}})
	})
	s.mu.Lock()
	s.renameOf = append(s.renameOf, entry)
	s.mu.Unlock()
}

// removePendingRename drops entry from the FIFO queue by identity, not by
// path, so two in-flight renames of the same path don't remove each other's
// entry. Callers must hold s.mu.
func (s *Supervisor) removePendingRename(entry *pendingRename) {
	for i, e := range s.renameOf {
		if e == entry {
			s.renameOf = append(s.renameOf[:i], s.renameOf[i+1:]...)
			return
		}
	}
}
