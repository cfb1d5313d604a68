package deb

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDeb(t *testing.T) {
	content, err := os.ReadFile(buildTestDeb(t, CompressionGzip))
	if err != nil {
		t.Fatal(err)
	}

	pkg, err := parseDeb(content, "test.deb")
	if err != nil {
		t.Fatalf("parseDeb failed: %v", err)
	}
	if pkg.Architecture != "amd64" {
		t.Errorf("expected architecture amd64, got %s", pkg.Architecture)
	}
	if pkg.Filename != "test.deb" {
		t.Errorf("expected filename test.deb, got %s", pkg.Filename)
	}
	if pkg.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), pkg.Size)
	}
	hash := sha256.Sum256(content)
	if pkg.SHA256 != hex.EncodeToString(hash[:]) {
		t.Errorf("hash mismatch")
	}
}

func TestGeneratePackagesFile(t *testing.T) {
	pkgs := []*repoPackage{
		{Control: "Package: a\n\n", Filename: "a.deb", Size: 100, SHA256: "hash"},
		{Control: "Package: b\n", Filename: "b.deb", Size: 10, SHA256: "hash2"},
	}
	s := string(generatePackagesFile(pkgs))
	if !strings.Contains(s, "Package: a\nFilename: a.deb\nSize: 100\nSHA256: hash\n\nPackage: b\n") {
		t.Errorf("unexpected Packages content:\n%s", s)
	}
}

func TestGenerateReleaseFile(t *testing.T) {
	info := ArchiveInfo{Origin: "TestOrigin", Codename: "stable", Date: "Sat, 17 Oct 2026 10:00:00 +0000"}
	s := string(generateReleaseFile(info, []byte("pkgs"), []byte("pkgsgz")))

	for _, want := range []string{"Origin: TestOrigin\n", "Codename: stable\n", "Date: Sat, 17 Oct 2026 10:00:00 +0000\n", "SHA256:\n", " Packages\n", " Packages.gz\n"} {
		if !strings.Contains(s, want) {
			t.Errorf("Release is missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Label:") {
		t.Error("empty fields must be omitted")
	}
}

func TestArchitecturesOf(t *testing.T) {
	got := architecturesOf([]*repoPackage{{Architecture: "iphoneos-arm"}, {Architecture: "all"}, {Architecture: "iphoneos-arm"}, {}})
	if got != "all iphoneos-arm" {
		t.Errorf("architecturesOf = %q", got)
	}
}

func TestWriteIndex(t *testing.T) {
	debPath := buildTestDeb(t, CompressionXz)
	dir := filepath.Dir(debPath)

	if err := WriteIndex(dir, ArchiveInfo{Origin: "twackup"}, ""); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}
	packages, err := os.ReadFile(filepath.Join(dir, "Packages"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(packages), "Filename: "+filepath.Base(debPath)) {
		t.Errorf("Packages does not reference the deb:\n%s", packages)
	}
	release, err := os.ReadFile(filepath.Join(dir, "Release"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(release), "Architectures: amd64\n") {
		t.Errorf("architectures not computed:\n%s", release)
	}
	if _, err := os.Stat(filepath.Join(dir, "Packages.gz")); err != nil {
		t.Errorf("Packages.gz missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "InRelease")); !os.IsNotExist(err) {
		t.Error("InRelease must not be written without a key")
	}
}

func TestWriteIndexSigned(t *testing.T) {
	dir := filepath.Dir(buildTestDeb(t, CompressionGzip))

	if err := WriteIndex(dir, ArchiveInfo{Origin: "twackup"}, generateTestKey(t)); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}
	for _, name := range []string{"InRelease", "public.gpg", "public.asc"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}
