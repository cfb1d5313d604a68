package deb

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/blakesmith/ar"
)

// Entry describes one member of a tar payload.
type Entry struct {
	Name     string
	Mode     int64
	Size     int64
	Typeflag byte
}

// Info is what Inspect learns about a binary package.
type Info struct {
	// Members are the ar members in file order.
	Members []string
	// FormatVersion is the content of debian-binary.
	FormatVersion string
	// Control is the raw content of the control file.
	Control string
	// ControlFiles lists the entries of the control payload.
	ControlFiles []Entry
	// DataFiles lists the entries of the data payload.
	DataFiles []Entry
}

// Paragraph parses the control file of the package.
func (i *Info) Paragraph() (*Paragraph, error) {
	ps, err := ParseControl(i.Control)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("empty control file")
	}
	return ps[0], nil
}

// Inspect reads a .deb from r and returns its structure. Payloads may use any
// compression this package knows about.
func Inspect(r io.Reader) (*Info, error) {
	info := &Info{}

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}
		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		info.Members = append(info.Members, name)

		switch {
		case name == string(PkgDebianBinary):
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, arR); err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			info.FormatVersion = buf.String()

		case strings.HasPrefix(name, string(PkgControlTar)):
			err := walkTar(arR, name, func(th *tar.Header, tr *tar.Reader) error {
				info.ControlFiles = append(info.ControlFiles, entryOf(th))
				if strings.TrimPrefix(th.Name, "./") != string(FileControl) {
					return nil
				}
				var buf bytes.Buffer
				if _, err := io.Copy(&buf, tr); err != nil {
					return fmt.Errorf("reading control: %w", err)
				}
				info.Control = buf.String()
				return nil
			})
			if err != nil {
				return nil, err
			}

		case strings.HasPrefix(name, string(PkgDataTar)):
			err := walkTar(arR, name, func(th *tar.Header, _ *tar.Reader) error {
				info.DataFiles = append(info.DataFiles, entryOf(th))
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	if len(info.Members) == 0 || info.Members[0] != string(PkgDebianBinary) {
		return nil, fmt.Errorf("not a debian package: first member is not %s", PkgDebianBinary)
	}
	return info, nil
}

// walkTar decompresses the member according to its name and calls fn for every entry.
func walkTar(r io.Reader, member string, fn func(*tar.Header, *tar.Reader) error) error {
	c, _ := compressionFromName(member)
	rc, err := c.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening %s: %w", member, err)
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s header: %w", member, err)
		}
		if err := fn(th, tr); err != nil {
			return err
		}
	}
}

func entryOf(th *tar.Header) Entry {
	return Entry{Name: th.Name, Mode: th.Mode, Size: th.Size, Typeflag: th.Typeflag}
}

// ListTar lists the entries of a tar stream compressed with c, such as a bundle.
func ListTar(r io.Reader, c Compression) ([]Entry, error) {
	var entries []Entry
	err := walkTar(r, "bundle"+c.Extension(), func(th *tar.Header, _ *tar.Reader) error {
		entries = append(entries, entryOf(th))
		return nil
	})
	return entries, err
}
