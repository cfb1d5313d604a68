package deb

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ArchiveInfo holds metadata about the repository itself.
// These fields are written to the 'Release' file.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Release_file
type ArchiveInfo struct {
	// Origin identifies the repository origin (e.g., "twackup", the hostname).
	Origin string
	// Label is a short label for the repository.
	Label string
	// Suite specifies the suite name (e.g., "stable").
	Suite string
	// Codename specifies the release codename.
	Codename string
	// Architectures is a space-separated list of architectures. When empty it
	// is computed from the indexed packages.
	Architectures string
	// Description provides a description of the repository.
	Description string
	// Date overrides the Release date, formatted as RFC1123Z.
	Date string
}

// repoPackage is an internal struct to hold metadata for the index.
// It maps to the fields in the 'Packages' file.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Packages_Indices
type repoPackage struct {
	// Architecture is the architecture of the package.
	Architecture string
	// Control is the raw content of the package's control file.
	Control string
	// Filename is the path to the package file relative to the repository root.
	Filename string
	// Size is the size of the package file in bytes.
	Size int64
	// SHA256 is the SHA256 checksum of the package file.
	SHA256 string
}

// WriteIndex writes a flat APT repository index for every .deb found directly
// in dir: Packages, Packages.gz and Release. When gpgKey holds an armored
// private key, Release is also clearsigned into InRelease and the public key
// is exported as public.gpg and public.asc.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Flat_Repository_Format
func WriteIndex(dir string, info ArchiveInfo, gpgKey string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.deb"))
	if err != nil {
		return err
	}
	sort.Strings(paths)

	var index []*repoPackage
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rp, err := parseDeb(content, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		index = append(index, rp)
	}

	packagesContent := generatePackagesFile(index)
	if err := os.WriteFile(filepath.Join(dir, "Packages"), packagesContent, 0644); err != nil {
		return err
	}

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write(packagesContent); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	packagesGzContent := gzBuf.Bytes()
	if err := os.WriteFile(filepath.Join(dir, "Packages.gz"), packagesGzContent, 0644); err != nil {
		return err
	}

	if info.Architectures == "" {
		info.Architectures = architecturesOf(index)
	}
	releaseContent := generateReleaseFile(info, packagesContent, packagesGzContent)
	if err := os.WriteFile(filepath.Join(dir, "Release"), releaseContent, 0644); err != nil {
		return err
	}

	if gpgKey == "" {
		return nil
	}
	inRelease, err := signBytes(releaseContent, gpgKey)
	if err != nil {
		return fmt.Errorf("signing InRelease: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "InRelease"), inRelease, 0644); err != nil {
		return err
	}
	for name, armored := range map[string]bool{"public.gpg": false, "public.asc": true} {
		pub, err := extractPublicKey(gpgKey, armored)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), pub, 0644); err != nil {
			return err
		}
	}
	return nil
}

// parseDeb parses the binary content of a .deb file.
// It calculates the SHA256 hash of the file and extracts the control metadata.
func parseDeb(content []byte, filename string) (*repoPackage, error) {
	hash := sha256.Sum256(content)

	info, err := Inspect(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	if info.Control == "" {
		return nil, fmt.Errorf("control file not found")
	}
	p, err := info.Paragraph()
	if err != nil {
		return nil, err
	}

	return &repoPackage{
		Architecture: p.Get(string(FieldArchitecture)),
		Control:      info.Control,
		Filename:     filename,
		Size:         int64(len(content)),
		SHA256:       hex.EncodeToString(hash[:]),
	}, nil
}

// generatePackagesFile generates the content of the 'Packages' index file.
// It concatenates the control stanzas of all packages in the index and appends
// the mandatory Filename, Size, and SHA256 fields.
func generatePackagesFile(index []*repoPackage) []byte {
	var b bytes.Buffer
	for _, p := range index {
		b.WriteString(strings.TrimRight(p.Control, "\n"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Filename: %s\nSize: %d\nSHA256: %s\n\n", p.Filename, p.Size, p.SHA256)
	}
	return b.Bytes()
}

// generateReleaseFile generates the content of the 'Release' file for a flat repository.
// It includes repository metadata and the checksums of the Packages and Packages.gz files.
func generateReleaseFile(info ArchiveInfo, packages, packagesGz []byte) []byte {
	var b bytes.Buffer
	writeField := func(key ReleaseField, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
	}

	writeField(RelOrigin, info.Origin)
	writeField(RelLabel, info.Label)
	writeField(RelSuite, info.Suite)
	writeField(RelCodename, info.Codename)
	if info.Date != "" {
		writeField(RelDate, info.Date)
	} else {
		writeField(RelDate, time.Now().UTC().Format(time.RFC1123Z))
	}
	writeField(RelArchitectures, info.Architectures)
	writeField(RelDescription, info.Description)
	fmt.Fprintf(&b, "%s:\n", RelSHA256)

	hPkg := sha256.Sum256(packages)
	fmt.Fprintf(&b, " %x %d %s\n", hPkg, len(packages), "Packages")

	hGz := sha256.Sum256(packagesGz)
	fmt.Fprintf(&b, " %x %d %s\n", hGz, len(packagesGz), "Packages.gz")

	return b.Bytes()
}

func architecturesOf(index []*repoPackage) string {
	seen := make(map[string]bool)
	var archs []string
	for _, p := range index {
		if p.Architecture != "" && !seen[p.Architecture] {
			seen[p.Architecture] = true
			archs = append(archs, p.Architecture)
		}
	}
	sort.Strings(archs)
	return strings.Join(archs, " ")
}
