// Package fsevents classifies debounced watcher events into the file
// lifecycle transitions of spec §4.E, driving the file state table and the
// hash pipeline.
package fsevents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sentient-agi/enclave-trust/internal/filetable"
	"github.com/sentient-agi/enclave-trust/internal/hashpool"
	"github.com/sentient-agi/enclave-trust/internal/hashstore"
	"github.com/sentient-agi/enclave-trust/internal/ignore"
)

// DirStater reports whether a path currently resolves to a directory on
// disk. It is satisfied by os.Stat in production and faked in tests.
type DirStater func(path string) bool

// DirWalker lists the normalized, relative paths of every regular file
// nested under dirPath. It is satisfied by a real directory walk in
// production and faked in tests.
type DirWalker func(dirPath string) ([]string, error)

// Classifier owns the wiring between watcher events and the file/hash
// state. It holds no suspension points of its own: every call here is
// synchronous and non-blocking except for spawning hash jobs, matching
// spec §5's requirement that classification never stalls the watcher
// drain.
type Classifier struct {
	Table  *filetable.Table
	Store  *hashstore.Store
	Pool   *hashpool.Pool
	Ignore *ignore.Matcher
	IsDir  DirStater
	Walk   DirWalker

	// Resolve maps a normalized, root-relative path to the absolute
	// filesystem path hashpool.Pool should read. Nil means the normalized
	// path is itself a valid path to open, which only holds when the
	// process's working directory is the watch root.
	Resolve func(path string) string

	// OnHashed is invoked once per successful hash, after the file state
	// table and hash store both reflect the new digest. It feeds the
	// attestation assembler (spec §4.J) from live file-close events as a
	// secondary source alongside the KV-based walker/watcher of §4.K.
	OnHashed func(path string, digest []byte)

	Logger *zap.SugaredLogger
}

// Handle dispatches a single debounced event. Paths must already be
// normalized by the caller (the watcher supervisor owns that step so the
// classifier itself stays pure path-string logic).
func (c *Classifier) Handle(ctx context.Context, e Event) {
	switch e.Kind {
	case CreateFile:
		c.handleCreate(e.Paths[0])
	case CreateFolder:
		// Flat Path-keyed index: folders are never tracked directly.
	case ModifyData:
		c.handleModify(e.Paths[0])
	case CloseWrite:
		c.handleClose(ctx, e.Paths[0])
	case RemoveFile:
		c.handleRemoveFile(ctx, e.Paths[0])
	case RemoveFolder:
		c.handleRemoveFolder(ctx, e.Paths[0])
	case RenameBoth:
		c.handleRenameBoth(ctx, e.Paths[0], e.Paths[1])
	case RenameTo:
		c.handleRenameToWatched(ctx, e.Paths[0])
	case RenameFrom:
		c.handleRemoveRecursive(ctx, e.Paths[0])
	}
}

func (c *Classifier) handleCreate(path string) {
	if c.Ignore.IsIgnored(path) {
		return
	}
	c.Table.Create(path)
}

func (c *Classifier) handleModify(path string) {
	if c.Ignore.IsIgnored(path) {
		return
	}
	c.Table.SetModified(path)
}

// handleClose is the sole hashing trigger: Access(Close, Write). A save
// sequence commonly arrives as Create, Modify..., Close, and only the
// Close triggers hashing (spec §4.E edge cases). A Close for a path with no
// prior record is tolerated and treated like from-ignored.
func (c *Classifier) handleClose(ctx context.Context, path string) {
	if c.Ignore.IsIgnored(path) {
		return
	}
	if _, tracked := c.Table.Get(path); !tracked {
		c.Table.Create(path)
	}
	c.spawnCloseHash(ctx, path)
}

// spawnCloseHash runs the hash job for a file that just closed after a
// write, then bumps its version and marks it Closed (spec §3's
// Modified -> Closed transition, with hash insertion happening first so
// invariant I1 holds the instant the state flips to Closed).
func (c *Classifier) spawnCloseHash(ctx context.Context, path string) {
	diskPath := path
	if c.Resolve != nil {
		diskPath = c.Resolve(path)
	}
	c.Store.MarkPending(path)
	c.Pool.Submit(ctx, diskPath, func(r hashpool.Result) {
		if r.Err != nil {
			c.Store.ClearPending(path)
			if c.Logger != nil {
				c.Logger.Warnw("hash job failed, dropping", "path", path, "err", r.Err)
			}
			return
		}
		digest := r.Digest[:]
		c.Store.Put(ctx, path, digest)
		c.Store.ClearPending(path)
		c.Table.Close(path)
		if c.OnHashed != nil {
			c.OnHashed(path, digest)
		}
	})
}

func (c *Classifier) handleRemoveFile(ctx context.Context, path string) {
	c.Table.Remove(path)
	c.Store.Remove(ctx, path)
}

func (c *Classifier) handleRemoveFolder(ctx context.Context, dirPath string) {
	for _, p := range c.Table.DescendantsOf(dirPath) {
		c.Table.Remove(p)
		c.Store.Remove(ctx, p)
	}
}

func (c *Classifier) handleRemoveRecursive(ctx context.Context, path string) {
	// Rename(From) with no matching To: treat as delete, recursively if a
	// folder. Since the path is already gone, remove any tracked
	// descendants, or the exact path itself when it has none.
	removed := false
	for _, p := range c.Table.DescendantsOf(path) {
		c.Table.Remove(p)
		c.Store.Remove(ctx, p)
		removed = true
	}
	if !removed {
		c.handleRemoveFile(ctx, path)
	}
}

func (c *Classifier) handleRenameBoth(ctx context.Context, oldPath, newPath string) {
	toIgnored := c.Ignore.IsIgnored(newPath)
	fromIgnored := c.Ignore.IsIgnored(oldPath)
	isDir := c.IsDir != nil && c.IsDir(newPath)

	switch {
	case isDir && toIgnored:
		c.handleRemoveFolder(ctx, oldPath)
	case isDir && fromIgnored:
		c.handleRenameToWatched(ctx, newPath)
	case isDir:
		c.renameDirectoryBothTracked(ctx, oldPath, newPath)
	case toIgnored:
		c.handleRemoveFile(ctx, oldPath)
	case fromIgnored:
		c.handleRenameToWatched(ctx, newPath)
	default:
		c.renameFileBothTracked(ctx, oldPath, newPath)
	}
}

// renameFileBothTracked transfers state, version and hash history from
// oldPath to newPath without re-hashing, per the spec's resolved Open
// Question: a rename does not alter contents.
func (c *Classifier) renameFileBothTracked(ctx context.Context, oldPath, newPath string) {
	if !c.Table.Rename(oldPath, newPath) {
		// New entry observed before old entry existed; handle like a
		// from-ignored create-and-hash for the new path.
		c.handleRenameToWatched(ctx, newPath)
		return
	}
	c.Store.Rename(ctx, oldPath, newPath)
}

func (c *Classifier) renameDirectoryBothTracked(ctx context.Context, oldPath, newPath string) {
	oldPrefix := oldPath
	if !strings.HasSuffix(oldPrefix, "/") {
		oldPrefix += "/"
	}
	for _, old := range c.Table.DescendantsOf(oldPath) {
		rest := strings.TrimPrefix(old, oldPrefix)
		newChild := newPath + "/" + rest
		c.Table.Rename(old, newChild)
		c.Store.Rename(ctx, old, newChild)
	}
}

// handleRenameToWatched implements both from-ignored (spec §4.E) and
// Rename(To) for a path arriving with no ignored/tracked history to
// transfer: a directory gets walked and every pre-existing file hashed
// once (spec B2); a single file is created and hashed like a fresh save.
func (c *Classifier) handleRenameToWatched(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if c.IsDir != nil && c.IsDir(path) {
		c.walkAndHashDirectory(ctx, path)
		return
	}
	c.Table.Create(path)
	c.spawnCloseHash(ctx, path)
}

func (c *Classifier) walkAndHashDirectory(ctx context.Context, dirPath string) {
	if c.Walk == nil {
		return
	}
	files, err := c.Walk(dirPath)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warnw("failed to walk directory for tracking", "path", dirPath, "err", err)
		}
		return
	}
	for _, f := range files {
		if c.Ignore.IsIgnored(f) {
			continue
		}
		c.Table.Create(f)
		c.spawnCloseHash(ctx, f)
	}
}
