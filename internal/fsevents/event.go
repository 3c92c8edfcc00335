package fsevents

// Kind enumerates the semantic event kinds the debounced watcher hands to
// the classifier (spec §4.E).
type Kind int

const (
	CreateFile Kind = iota
	CreateFolder
	ModifyData
	CloseWrite
	RemoveFile
	RemoveFolder
	RenameBoth
	RenameTo
	RenameFrom
)

// Event is a single debounced filesystem event. Paths holds one entry for
// every kind except RenameBoth, which carries [oldPath, newPath].
type Event struct {
	Kind  Kind
	Paths []string
}
