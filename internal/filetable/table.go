// Package filetable implements the per-path file lifecycle state table
// described in spec §3 and §4.F.
package filetable

import (
	"github.com/sentient-agi/enclave-trust/internal/syncmap"
)

// State is a FileRecord lifecycle state.
type State int

const (
	Created State = iota
	Modified
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Record mirrors spec §3's FileRecord: kind is always File, since the
// index is flat and folders are never tracked directly.
type Record struct {
	State   State
	Version uint32
}

// Table is the concurrent Path -> Record map. All operations are safe for
// concurrent use; readers never block writers for longer than a single
// shard lock (syncmap.Map).
type Table struct {
	m *syncmap.Map[Record]
}

// New creates an empty Table.
func New() *Table {
	return &Table{m: syncmap.New[Record]()}
}

// Create inserts a new Record{Created, 0} for path, per the
// Create(File) transition in spec §4.E. It overwrites any existing record,
// since a Create event for an already-tracked path only happens through the
// from-ignored / rename-to-watched paths, which intentionally restart the
// lifecycle.
func (t *Table) Create(path string) {
	t.m.Set(path, Record{State: Created})
}

// SetModified transitions an existing record to Modified. No-op if path is
// not tracked, per "classifier must tolerate events arriving for a Path
// with no prior record" (spec §4.E edge cases).
func (t *Table) SetModified(path string) {
	t.m.Update(path, func(r Record, ok bool) (Record, bool) {
		if !ok {
			return r, false
		}
		r.State = Modified
		return r, true
	})
}

// Close transitions an existing record to Closed and bumps its version, per
// the Modified -> Closed transition in spec §3. No-op if untracked.
func (t *Table) Close(path string) (newVersion uint32, tracked bool) {
	t.m.Update(path, func(r Record, ok bool) (Record, bool) {
		if !ok {
			return r, false
		}
		r.State = Closed
		r.Version++
		tracked = true
		newVersion = r.Version
		return r, true
	})
	return newVersion, tracked
}

// Get returns the current record for path.
func (t *Table) Get(path string) (Record, bool) {
	return t.m.Get(path)
}

// Remove deletes the record for path (delete, rename-to-ignored,
// rename-to-outside-root transitions in spec §3).
func (t *Table) Remove(path string) (Record, bool) {
	return t.m.Delete(path)
}

// Rename moves the record from oldPath to newPath, preserving state and
// version, per spec §3's rename-both-tracked transition. Returns false if
// oldPath was not tracked.
func (t *Table) Rename(oldPath, newPath string) bool {
	rec, ok := t.m.Delete(oldPath)
	if !ok {
		return false
	}
	t.m.Set(newPath, rec)
	return true
}

// DescendantsOf returns the currently-tracked paths nested under dirPath,
// used to cascade folder delete/rename to every tracked file beneath it.
func (t *Table) DescendantsOf(dirPath string) []string {
	prefix := dirPath
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return t.m.KeysWithPrefix(prefix)
}

// Len reports the number of tracked paths.
func (t *Table) Len() int {
	return t.m.Len()
}
