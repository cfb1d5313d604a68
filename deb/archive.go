package deb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blakesmith/ar"
)

// Deb assembles a binary package from two payload streams written into a
// scratch directory: data.tar (the files to install) and control.tar
// (control and maintainer scripts).
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html
type Deb struct {
	output      string
	compression Compression

	dataPath    string
	controlPath string
	data        *TarArchive
	control     *TarArchive
	size        int64
}

// NewDeb prepares both payload streams inside workDir, which must exist.
// The package is written to output by Package.
func NewDeb(workDir, output string, c Compression, level int) (*Deb, error) {
	if !c.DebCompatible() {
		return nil, fmt.Errorf("compression %s cannot be used in a .deb", c)
	}
	d := &Deb{
		output:      output,
		compression: c,
		dataPath:    filepath.Join(workDir, memberName(PkgDataTar, c)),
		controlPath: filepath.Join(workDir, memberName(PkgControlTar, c)),
	}

	var err error
	if d.data, err = CreateTarArchive(d.dataPath, c, level); err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.dataPath, err)
	}
	if d.control, err = CreateTarArchive(d.controlPath, c, level); err != nil {
		d.data.Close()
		return nil, fmt.Errorf("creating %s: %w", d.controlPath, err)
	}
	d.data.SpoolDir = workDir
	d.control.SpoolDir = workDir
	return d, nil
}

// memberName returns the ar member name of a payload for the given compression.
func memberName(member PackageFile, c Compression) string {
	return string(member) + c.Extension()
}

// Data returns the data payload stream.
func (d *Deb) Data() *TarArchive { return d.data }

// Control returns the control payload stream.
func (d *Deb) Control() *TarArchive { return d.control }

// Output returns the path the package is written to.
func (d *Deb) Output() string { return d.output }

// Package closes both payloads and writes the ar container to the output path.
// Members are written in the order dpkg requires: debian-binary, control, data.
func (d *Deb) Package() error {
	if err := d.data.Close(); err != nil {
		d.Abort()
		return fmt.Errorf("finishing %s: %w", PkgDataTar, err)
	}
	if err := d.control.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", PkgControlTar, err)
	}

	f, err := os.Create(d.output)
	if err != nil {
		return err
	}

	if err := d.writeContainer(f); err != nil {
		f.Close()
		os.Remove(d.output)
		return err
	}
	return f.Close()
}

func (d *Deb) writeContainer(f *os.File) error {
	cw := &countingWriter{w: f}
	defer func() { d.size = cw.n }()
	arW := ar.NewWriter(cw)

	if err := arW.WriteGlobalHeader(); err != nil {
		return fmt.Errorf("writing ar global header: %w", err)
	}

	// debian-binary must be the first member.
	if err := addBufferToAr(arW, string(PkgDebianBinary), []byte(FormatVersion)); err != nil {
		return fmt.Errorf("writing %s: %w", PkgDebianBinary, err)
	}

	for _, member := range []struct {
		name string
		path string
	}{
		{memberName(PkgControlTar, d.compression), d.controlPath},
		{memberName(PkgDataTar, d.compression), d.dataPath},
	} {
		if err := addFileToAr(arW, member.name, member.path); err != nil {
			return fmt.Errorf("writing %s: %w", member.name, err)
		}
	}
	return nil
}

// Size returns the number of bytes written by Package.
func (d *Deb) Size() int64 { return d.size }

// Abort closes both payloads without producing a package.
func (d *Deb) Abort() {
	d.data.Close()
	d.control.Close()
}
