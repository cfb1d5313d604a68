package builder

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/etnz/twackup/deb"
)

// Bundle is a tar stream collecting the archives of many workers.
// Appends are serialized by a mutex that Fold only ever tries to take.
type Bundle struct {
	mu      sync.Mutex
	path    string
	archive *deb.TarArchive
	entries int
	closed  bool
}

// CreateBundle creates the bundle file at path, compressed with c at level.
// Any compression is accepted, lz4 included.
func CreateBundle(path string, c deb.Compression, level int) (*Bundle, error) {
	archive, err := deb.CreateTarArchive(path, c, level)
	if err != nil {
		return nil, err
	}
	archive.SpoolDir = filepath.Dir(path)
	return &Bundle{path: path, archive: archive}, nil
}

// Path returns the bundle file path.
func (b *Bundle) Path() string { return b.path }

// Entries returns the number of archives folded so far.
func (b *Bundle) Entries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries
}

// Fold appends the archive at debPath under "./<file name>" and returns that name.
// When the bundle is busy it fails at once with ErrLockContention.
// When removeDeb is set the archive file is deleted after a successful
// append; a failed deletion is ignored.
func (b *Bundle) Fold(debPath string, removeDeb bool) (string, error) {
	if !b.mu.TryLock() {
		return "", ErrLockContention
	}
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrBundleClosed
	}
	name := "./" + filepath.Base(debPath)
	// The file is read whole before its header goes out, so a failure leaves
	// the stream as it was.
	if err := b.archive.AppendPath(debPath, name); err != nil {
		return "", err
	}
	b.entries++

	if removeDeb {
		_ = os.Remove(debPath)
	}
	return name, nil
}

// Close finishes the bundle. It waits for a fold in progress and is idempotent.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.archive.Close()
}
