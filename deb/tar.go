package deb

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// TarArchive is an append-only tar stream, optionally compressed.
// It is not safe for concurrent use; callers sharing one must serialize appends.
type TarArchive struct {
	tw     *tar.Writer
	cw     io.WriteCloser
	closer io.Closer
	closed bool

	// SpoolDir holds the temporary copies of large files being appended.
	// Empty means the system temporary directory.
	SpoolDir string
}

// NewTarArchive starts a tar stream over w compressed with c at the given level.
func NewTarArchive(w io.Writer, c Compression, level int) (*TarArchive, error) {
	cw, err := c.NewWriter(w, level)
	if err != nil {
		return nil, err
	}
	return &TarArchive{tw: tar.NewWriter(cw), cw: cw}, nil
}

// CreateTarArchive creates (or truncates) the file at path and starts a tar
// stream in it. Close also closes the file.
func CreateTarArchive(path string, c Compression, level int) (*TarArchive, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	a, err := NewTarArchive(f, c, level)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// AppendFile adds an in-memory regular file under name.
func (a *TarArchive) AppendFile(name string, body []byte, mode int64) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(body)),
		Mode:     mode,
		ModTime:  time.Now(),
	}
	if err := a.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing header for %s: %w", name, err)
	}
	_, err := a.tw.Write(body)
	return err
}

// AppendPath adds the file found at path under name. Symlinks are followed,
// so a dangling link is an error. Directories are recorded without their
// contents.
//
// A regular file is read completely before anything is written, and its entry
// carries the length actually read. A file that cannot be read leaves the
// stream untouched.
func (a *TarArchive) AppendPath(path, name string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	header.Name = name

	switch {
	case fi.IsDir():
		if !strings.HasSuffix(header.Name, "/") {
			header.Name += "/"
		}
		if err := a.tw.WriteHeader(header); err != nil {
			return fmt.Errorf("writing header for %s: %w", name, err)
		}
		return nil
	case fi.Mode().IsRegular():
		// handled below
	default:
		return fmt.Errorf("%s: unsupported file type %s", path, fi.Mode().Type())
	}

	body, size, release, err := a.readSource(path, fi.Size())
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	defer release()

	header.Size = size
	if err := a.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing header for %s: %w", name, err)
	}
	if _, err := io.Copy(a.tw, body); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// openSource opens the files appended by AppendPath.
var openSource = func(path string) (io.ReadCloser, error) { return os.Open(path) }

// spoolThreshold is the size above which a source is copied to a spool file
// instead of being held in memory.
var spoolThreshold int64 = 32 << 20

// readSource reads the whole file at path and returns its content with its
// length. Small files are kept in memory, larger ones are copied into a
// temporary file in SpoolDir that release removes.
func (a *TarArchive) readSource(path string, hint int64) (io.Reader, int64, func(), error) {
	f, err := openSource(path)
	if err != nil {
		return nil, 0, nil, err
	}
	defer f.Close()

	if hint <= spoolThreshold {
		body, err := io.ReadAll(f)
		if err != nil {
			return nil, 0, nil, err
		}
		return bytes.NewReader(body), int64(len(body)), func() {}, nil
	}

	spool, err := os.CreateTemp(a.SpoolDir, ".spool-*")
	if err != nil {
		return nil, 0, nil, err
	}
	release := func() {
		spool.Close()
		os.Remove(spool.Name())
	}
	n, err := io.Copy(spool, f)
	if err == nil {
		_, err = spool.Seek(0, io.SeekStart)
	}
	if err != nil {
		release()
		return nil, 0, nil, err
	}
	return spool, n, release, nil
}

// Close finishes the tar stream, flushes the compressor and closes the
// underlying file when the archive owns one. It is safe to call twice.
func (a *TarArchive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	err := a.tw.Close()
	if cerr := a.cw.Close(); err == nil {
		err = cerr
	}
	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
