package builder

import (
	"github.com/etnz/twackup/deb"
	"github.com/jmgilman/go/errors"
)

// DefaultCompressionLevel is the level used by NewPreferences.
const DefaultCompressionLevel = 6

// Preferences are the settings shared by every worker of a run.
// They must not be modified once a run has started.
type Preferences struct {
	// RemoveDeb deletes the standalone archive once it is folded into a bundle.
	RemoveDeb bool
	// AdminDir is the dpkg administrative directory. It is only read.
	AdminDir string
	// Destination receives working directories, archives and the bundle.
	Destination string
	// CompressionLevel goes from 0 (fastest) to 9 (smallest).
	CompressionLevel int
	// Compression is the algorithm used for control.tar and data.tar.
	Compression deb.Compression
}

// NewPreferences returns preferences that remove folded archives and use gzip.
func NewPreferences(adminDir, destination string) *Preferences {
	return &Preferences{
		RemoveDeb:        true,
		AdminDir:         adminDir,
		Destination:      destination,
		CompressionLevel: DefaultCompressionLevel,
		Compression:      deb.CompressionGzip,
	}
}

// Validate checks the preferences before a run.
func (p *Preferences) Validate() error {
	if p.AdminDir == "" {
		return errors.New(errors.CodeInvalidConfig, "admin directory is not set")
	}
	if p.Destination == "" {
		return errors.New(errors.CodeInvalidConfig, "destination is not set")
	}
	if p.CompressionLevel < 0 || p.CompressionLevel > deb.MaxCompressionLevel {
		return errors.WithContext(
			errors.Newf(errors.CodeInvalidConfig, "compression level must be between 0 and %d", deb.MaxCompressionLevel),
			"level", p.CompressionLevel)
	}
	if !p.Compression.DebCompatible() {
		return errors.Newf(errors.CodeInvalidConfig, "%s cannot be used inside a .deb", p.Compression)
	}
	return nil
}
