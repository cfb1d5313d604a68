// Package bridge exposes package enumeration to a host application.
//
// A Handle owns a dpkg database snapshot and the goroutine that serves
// requests against it. Both are released together by Close; every call made
// after Close fails cleanly instead of touching released state.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/etnz/twackup/dpkg"
	"github.com/jmgilman/go/errors"
)

// SortMode selects the order of a listing.
type SortMode uint8

const (
	// Unsorted keeps the order of the status file. It has no sort key.
	Unsorted SortMode = iota
	// Identifier sorts by package identifier.
	Identifier
	// Name sorts by display name, ignoring case.
	Name
)

func (m SortMode) String() string {
	switch m {
	case Unsorted:
		return "unsorted"
	case Identifier:
		return "identifier"
	case Name:
		return "name"
	default:
		return fmt.Sprintf("SortMode(%d)", uint8(m))
	}
}

// ParseSortMode parses the names returned by String.
func ParseSortMode(s string) (SortMode, error) {
	for _, m := range []SortMode{Unsorted, Identifier, Name} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown sort mode %q", s)
}

func (m SortMode) valid() bool { return m <= Name }

// sortKey maps a sorted mode to its key. Unsorted is routed elsewhere before
// any sorting happens, so reaching here with it is a bug.
func (m SortMode) sortKey() dpkg.SortKey {
	switch m {
	case Identifier:
		return dpkg.SortByIdentifier
	case Name:
		return dpkg.SortByName
	default:
		panic(fmt.Sprintf("bridge: sort mode %s has no sort key", m))
	}
}

// Descriptor is the flat record handed to the host for each package.
type Descriptor struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	Architecture  string        `json:"architecture"`
	Section       string        `json:"section,omitempty"`
	Category      dpkg.Category `json:"category"`
	CanonicalName string        `json:"canonical_name"`
	Essential     bool          `json:"essential,omitempty"`
}

func describe(pkgs []*dpkg.Package) []Descriptor {
	out := make([]Descriptor, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, Descriptor{
			ID:            p.ID(),
			Name:          p.Name(),
			Version:       p.Version(),
			Architecture:  p.Architecture(),
			Section:       p.Section(),
			Category:      p.Category(),
			CanonicalName: p.CanonicalName(),
			Essential:     p.Essential(),
		})
	}
	return out
}

// Handle is an open database plus its executor goroutine.
type Handle struct {
	mu       sync.RWMutex
	closed   bool
	db       *dpkg.Database
	adminDir string
	jobs     chan func()
	done     chan struct{}
	logger   *slog.Logger
}

// Open reads the database in adminDir and starts the executor.
// logger may be nil.
func Open(adminDir string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := dpkg.Open(adminDir)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		db:       db,
		adminDir: adminDir,
		jobs:     make(chan func()),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go h.serve()
	return h, nil
}

// serve runs jobs one at a time until the job channel is closed.
func (h *Handle) serve() {
	defer close(h.done)
	for job := range h.jobs {
		job()
	}
}

// submit runs job on the executor and waits for it. It reports false when
// the handle is closed.
func (h *Handle) submit(job func()) bool {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return false
	}
	finished := make(chan struct{})
	h.jobs <- func() {
		defer close(finished)
		job()
	}
	h.mu.RUnlock()
	<-finished
	return true
}

// Packages lists the installed packages, only those nothing depends on when
// leavesOnly is set, in the order selected by mode. The returned slice is
// fresh and owned by the caller. It returns nil, false when the handle is
// closed or mode is not a known value.
func (h *Handle) Packages(leavesOnly bool, mode SortMode) ([]Descriptor, bool) {
	if !mode.valid() {
		h.logger.Error("invalid sort mode", "mode", mode)
		return nil, false
	}
	var out []Descriptor
	ok := h.submit(func() {
		var pkgs []*dpkg.Package
		if leavesOnly {
			pkgs = h.db.Leaves()
		} else {
			pkgs = h.db.Packages()
		}
		if mode == Unsorted {
			out = describe(pkgs)
			return
		}
		dpkg.Sort(pkgs, mode.sortKey())
		out = describe(pkgs)
	})
	if !ok {
		return nil, false
	}
	return out, true
}

// Lookup returns the package with the given identifier, for building it.
func (h *Handle) Lookup(id string) (*dpkg.Package, bool) {
	var (
		pkg   *dpkg.Package
		found bool
	)
	if !h.submit(func() { pkg, found = h.db.Lookup(id) }) {
		return nil, false
	}
	return pkg, found
}

// Refresh reads the status file again. On failure the previous snapshot is kept.
func (h *Handle) Refresh() error {
	var err error
	ok := h.submit(func() {
		var db *dpkg.Database
		db, err = dpkg.Open(h.adminDir)
		if err != nil {
			h.logger.Warn("refreshing package database", "dir", h.adminDir, "error", err)
			return
		}
		h.db = db
	})
	if !ok {
		return ErrClosed
	}
	return err
}

// ErrClosed is returned by operations on a closed Handle.
var ErrClosed error = errors.New(errors.CodeUnavailable, "bridge handle is closed")

// Close releases the database and stops the executor once pending requests
// are served. It is safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.jobs)
	h.mu.Unlock()

	<-h.done
	h.db = nil
	return nil
}
