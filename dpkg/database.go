// Package dpkg reads the dpkg administrative database: the status file and
// the per-package files under info/. It never writes to it.
package dpkg

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/etnz/twackup/deb"
)

const (
	// DefaultAdminDir is where dpkg keeps its database.
	DefaultAdminDir = "/var/lib/dpkg"
	// StatusFile is the status database, relative to the admin dir.
	StatusFile = "status"
	// InfoDir holds the per-package file lists and maintainer scripts.
	InfoDir = "info"
)

// Database is a snapshot of the installed packages.
type Database struct {
	adminDir string
	packages []*Package
	byID     map[string]*Package
}

// Open parses adminDir/status and keeps every installed package, in status file order.
func Open(adminDir string) (*Database, error) {
	content, err := os.ReadFile(filepath.Join(adminDir, StatusFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read dpkg status file: %w", err)
	}
	paragraphs, err := deb.ParseControl(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse dpkg status file: %w", err)
	}

	db := &Database{adminDir: adminDir, byID: make(map[string]*Package)}
	for _, para := range paragraphs {
		p, err := NewPackage(para)
		if err != nil || !p.Installed() {
			continue
		}
		if _, dup := db.byID[p.ID()]; dup {
			continue
		}
		db.packages = append(db.packages, p)
		db.byID[p.ID()] = p
	}
	return db, nil
}

// AdminDir returns the directory the database was read from.
func (db *Database) AdminDir() string { return db.adminDir }

// Len returns the number of installed packages.
func (db *Database) Len() int { return len(db.packages) }

// Packages returns the installed packages in status file order. The slice is owned by the caller.
func (db *Database) Packages() []*Package {
	return slices.Clone(db.packages)
}

// Lookup returns the installed package with the given identifier.
func (db *Database) Lookup(id string) (*Package, bool) {
	p, ok := db.byID[id]
	return p, ok
}

// Leaves returns the installed packages that no other installed package
// depends or pre-depends on, either directly or through a provided name.
func (db *Database) Leaves() []*Package {
	required := make(map[string]bool)
	for _, p := range db.packages {
		for _, dep := range p.Depends() {
			if dep != p.ID() {
				required[dep] = true
			}
		}
	}

	var leaves []*Package
	for _, p := range db.packages {
		if required[p.ID()] {
			continue
		}
		provided := false
		for _, name := range p.Provides() {
			if required[name] {
				provided = true
				break
			}
		}
		if !provided {
			leaves = append(leaves, p)
		}
	}
	return leaves
}

// SortKey selects the ordering used by Sort.
type SortKey uint8

const (
	// SortByIdentifier orders by package identifier.
	SortByIdentifier SortKey = iota
	// SortByName orders by display name, ignoring case, then by identifier.
	SortByName
)

func (k SortKey) String() string {
	switch k {
	case SortByIdentifier:
		return "identifier"
	case SortByName:
		return "name"
	default:
		return fmt.Sprintf("SortKey(%d)", uint8(k))
	}
}

// Sort orders pkgs in place.
func Sort(pkgs []*Package, key SortKey) {
	switch key {
	case SortByName:
		slices.SortStableFunc(pkgs, func(a, b *Package) int {
			return cmp.Or(
				cmp.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name())),
				cmp.Compare(a.ID(), b.ID()),
			)
		})
	default:
		slices.SortStableFunc(pkgs, func(a, b *Package) int {
			return cmp.Compare(a.ID(), b.ID())
		})
	}
}
