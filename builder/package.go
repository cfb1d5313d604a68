package builder

// Package is what a worker needs to know about the package it rebuilds.
// Implementations are read-only and safe for concurrent use.
type Package interface {
	// ID is the package identifier.
	ID() string
	// AdminKey is the prefix of the package's files in adminDir/info: the
	// identifier, or identifier:architecture for a multiarch package.
	AdminKey(adminDir string) string
	// CanonicalName is filesystem safe and unique within a run.
	CanonicalName() string
	// HumanName is used in progress messages.
	HumanName() string
	// InstalledFiles lists the absolute paths the package installed.
	InstalledFiles(adminDir string) ([]string, error)
	// Control is the text of the control file.
	Control() string
}
