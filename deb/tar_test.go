package deb

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readEntries(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	out := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			t.Fatalf("reading %s: %v", th.Name, err)
		}
		out[th.Name] = buf.String()
	}
}

func TestTarArchiveAppendFile(t *testing.T) {
	var buf bytes.Buffer
	a, err := NewTarArchive(&buf, CompressionNone, 0)
	if err != nil {
		t.Fatalf("NewTarArchive failed: %v", err)
	}
	if err := a.AppendFile("control", []byte("Package: foo\n"), 0644); err != nil {
		t.Fatalf("AppendFile failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readEntries(t, &buf)
	if entries["control"] != "Package: foo\n" {
		t.Errorf("unexpected control entry: %q", entries["control"])
	}
}

func TestTarArchiveAppendPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello")
	if err := os.WriteFile(file, []byte("hello world"), 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(file, link); err != nil {
		t.Fatal(err)
	}
	dangling := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "missing"), dangling); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	a, err := NewTarArchive(&buf, CompressionNone, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AppendPath(file, "usr/bin/hello"); err != nil {
		t.Fatalf("AppendPath(file) failed: %v", err)
	}
	if err := a.AppendPath(link, "usr/bin/link"); err != nil {
		t.Fatalf("AppendPath(link) failed: %v", err)
	}
	if err := a.AppendPath(dir, "usr/share"); err != nil {
		t.Fatalf("AppendPath(dir) failed: %v", err)
	}
	if err := a.AppendPath(dangling, "usr/bin/dangling"); err == nil {
		t.Error("expected an error for a dangling symlink")
	}
	if err := a.AppendPath(filepath.Join(dir, "nope"), "nope"); err == nil {
		t.Error("expected an error for a missing file")
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	entries := readEntries(t, &buf)
	if entries["usr/bin/hello"] != "hello world" {
		t.Errorf("unexpected content for usr/bin/hello: %q", entries["usr/bin/hello"])
	}
	if entries["usr/bin/link"] != "hello world" {
		t.Errorf("symlink was not followed: %q", entries["usr/bin/link"])
	}
	if _, ok := entries["usr/share/"]; !ok {
		t.Errorf("missing directory entry, got %v", entries)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

// failingFile delivers a few bytes and then fails, like a file on a dying disk.
type failingFile struct{ served bool }

func (f *failingFile) Read(p []byte) (int, error) {
	if f.served {
		return 0, errors.New("input/output error")
	}
	f.served = true
	return copy(p, "abc"), nil
}

func (f *failingFile) Close() error { return nil }

func TestTarArchiveReadFailureSkipsEntry(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	bad := filepath.Join(dir, "bad")
	for _, p := range []string{good, bad} {
		if err := os.WriteFile(p, bytes.Repeat([]byte("x"), 4096), 0644); err != nil {
			t.Fatal(err)
		}
	}
	defer func(orig func(string) (io.ReadCloser, error)) { openSource = orig }(openSource)
	openSource = func(path string) (io.ReadCloser, error) {
		if path == bad {
			return &failingFile{}, nil
		}
		return os.Open(path)
	}

	var buf bytes.Buffer
	a, err := NewTarArchive(&buf, CompressionNone, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AppendPath(bad, "bad"); err == nil {
		t.Error("expected an error for a failing read")
	}
	if err := a.AppendPath(good, "good"); err != nil {
		t.Fatalf("stream unusable after failed read: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	entries := readEntries(t, &buf)
	if _, ok := entries["bad"]; ok {
		t.Error("a file that failed to read must not be archived")
	}
	if len(entries["good"]) != 4096 {
		t.Errorf("unexpected good entry length %d", len(entries["good"]))
	}
}

func TestTarArchiveUsesLengthRead(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shrinking")
	if err := os.WriteFile(file, bytes.Repeat([]byte("x"), 4096), 0644); err != nil {
		t.Fatal(err)
	}
	// The file reports 4096 bytes but only two can be read, as in /sys.
	defer func(orig func(string) (io.ReadCloser, error)) { openSource = orig }(openSource)
	openSource = func(string) (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("1\n")), nil }

	var buf bytes.Buffer
	a, err := NewTarArchive(&buf, CompressionNone, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AppendPath(file, "value"); err != nil {
		t.Fatalf("AppendPath failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readEntries(t, &buf)["value"]; got != "1\n" {
		t.Errorf("entry = %q, want the bytes actually read", got)
	}
}

func TestTarArchiveSpoolsLargeFiles(t *testing.T) {
	defer func(orig int64) { spoolThreshold = orig }(spoolThreshold)
	spoolThreshold = 16

	dir := t.TempDir()
	spool := filepath.Join(dir, "spool")
	if err := os.Mkdir(spool, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(dir, "big")
	content := bytes.Repeat([]byte("twackup"), 1000)
	if err := os.WriteFile(file, content, 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	a, err := NewTarArchive(&buf, CompressionNone, 0)
	if err != nil {
		t.Fatal(err)
	}
	a.SpoolDir = spool
	if err := a.AppendPath(file, "big"); err != nil {
		t.Fatalf("AppendPath failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readEntries(t, &buf)["big"]; got != string(content) {
		t.Errorf("spooled entry differs, got %d bytes", len(got))
	}
	left, err := os.ReadDir(spool)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("spool files left behind: %v", left)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("twackup "), 512)
	for _, c := range []Compression{CompressionGzip, CompressionNone, CompressionXz, CompressionZstd, CompressionLz4} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := c.NewWriter(&buf, MaxCompressionLevel)
			if err != nil {
				t.Fatalf("NewWriter failed: %v", err)
			}
			if _, err := w.Write(payload); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			r, err := c.NewReader(&buf)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}
			defer r.Close()
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("round trip mismatch for %s", c)
			}
		})
	}
}

func TestCompressionLevelOutOfRange(t *testing.T) {
	if _, err := CompressionGzip.NewWriter(io.Discard, 10); err == nil {
		t.Error("expected an error for level 10")
	}
	if _, err := CompressionGzip.NewWriter(io.Discard, -1); err == nil {
		t.Error("expected an error for level -1")
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"gzip", "none", "xz", "zstd", "lz4"} {
		c, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q) failed: %v", name, err)
		}
		if c.String() != name {
			t.Errorf("ParseCompression(%q) = %s", name, c)
		}
	}
	if _, err := ParseCompression("bzip2"); err == nil {
		t.Error("expected an error for bzip2")
	}
	if CompressionLz4.DebCompatible() {
		t.Error("lz4 must not be accepted inside a .deb")
	}
	var zero Compression
	if zero != CompressionNone {
		t.Errorf("zero Compression = %s, want none", zero)
	}
}
