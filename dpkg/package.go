package dpkg

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/twackup/deb"
)

// statusOnlyFields are recorded by dpkg in the status file but never belong
// in a package's control file.
var statusOnlyFields = []deb.ControlField{
	deb.FieldStatus,
	deb.FieldConfigVersion,
	deb.FieldConffiles,
}

// Package is one installed package as recorded in the status file.
// It is read-only once parsed.
type Package struct {
	paragraph *deb.Paragraph
}

// NewPackage wraps a status paragraph. The paragraph must carry a Package field.
func NewPackage(p *deb.Paragraph) (*Package, error) {
	if p.Get(string(deb.FieldPackage)) == "" {
		return nil, fmt.Errorf("paragraph has no %s field", deb.FieldPackage)
	}
	return &Package{paragraph: p}, nil
}

// ID is the administrative key of the package.
func (p *Package) ID() string { return p.paragraph.Get(string(deb.FieldPackage)) }

func (p *Package) Version() string { return p.paragraph.Get(string(deb.FieldVersion)) }

func (p *Package) Architecture() string { return p.paragraph.Get(string(deb.FieldArchitecture)) }

func (p *Package) Section() string { return p.paragraph.Get(string(deb.FieldSection)) }

// Get returns any field of the status paragraph.
func (p *Package) Get(field deb.ControlField) string { return p.paragraph.Get(string(field)) }

// Name is the display name of the package: the Name field when present,
// the identifier otherwise.
func (p *Package) Name() string {
	if name := p.paragraph.Get(string(deb.FieldName)); name != "" {
		return name
	}
	return p.ID()
}

// HumanName is the name shown in progress messages.
func (p *Package) HumanName() string { return p.Name() }

// CanonicalName is the filesystem-safe name used for output files:
// <id>_<version>_<arch>, with the epoch colon escaped the way dpkg-deb does.
func (p *Package) CanonicalName() string {
	version := strings.ReplaceAll(p.Version(), ":", "%3a")
	name := fmt.Sprintf("%s_%s_%s", p.ID(), version, p.Architecture())
	return strings.ReplaceAll(name, "/", "_")
}

// Control serializes the package back into control file syntax, without the
// fields that only make sense in the status database.
func (p *Package) Control() string {
	return p.paragraph.Without(statusOnlyFields...).String()
}

// Installed reports whether dpkg considers the package fully installed.
func (p *Package) Installed() bool {
	fields := strings.Fields(p.paragraph.Get(string(deb.FieldStatus)))
	return len(fields) == 3 && fields[2] == "installed"
}

// Essential reports whether the package is marked Essential.
func (p *Package) Essential() bool {
	return strings.EqualFold(p.paragraph.Get(string(deb.FieldEssential)), "yes")
}

// Depends returns the names of every package this one depends or pre-depends on.
func (p *Package) Depends() []string {
	return append(p.paragraph.Relations(deb.FieldPreDepends), p.paragraph.Relations(deb.FieldDepends)...)
}

// Provides returns the virtual package names this package provides.
func (p *Package) Provides() []string {
	return p.paragraph.Relations(deb.FieldProvides)
}

// AdminKey is the prefix of the package's files in adminDir/info. dpkg
// qualifies it with the architecture for Multi-Arch: same packages, so
// <id>:<arch> is returned when info/<id>:<arch>.list exists and <id> otherwise.
func (p *Package) AdminKey(adminDir string) string {
	if arch := p.Architecture(); arch != "" {
		key := p.ID() + ":" + arch
		if _, err := os.Stat(filepath.Join(adminDir, InfoDir, key+".list")); err == nil {
			return key
		}
	}
	return p.ID()
}

// InstalledFiles returns the absolute paths dpkg recorded for this package in
// info/<key>.list, key being AdminKey.
func (p *Package) InstalledFiles(adminDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(adminDir, InfoDir, p.AdminKey(adminDir)+".list"))
	if err != nil {
		return nil, fmt.Errorf("reading file list of %s: %w", p.ID(), err)
	}
	defer f.Close()

	var files []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		files = append(files, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file list of %s: %w", p.ID(), err)
	}
	return files, nil
}

// Category classifies the package by its Section field.
func (p *Package) Category() Category { return CategoryOf(p.Section()) }
