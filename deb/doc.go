// Package deb provides the low-level Debian binary package machinery used to
// rebuild packages from an installed system.
//
// # Design Philosophy
//
// Payloads are streamed into compressed tar files living in a scratch
// directory, then composed into the final ar container in one pass. Nothing
// here knows about the dpkg database: callers decide which files and which
// control members go where.
//
// # Features
//
// Archive construction:
//   - TarArchive, an append-only tar stream over any supported compressor.
//   - Deb, the assembler writing debian-binary, control.tar and data.tar.
//   - gzip, xz and zstd payloads at levels 0 to 9.
//
// Archive reading:
//   - Inspect a .deb from any io.Reader and list its members.
//   - ParseControl for deb822 paragraphs, keeping field order.
//
// Repository index:
//   - WriteIndex generates Packages, Packages.gz and Release over a directory
//     of .deb files, and signs InRelease with openpgp when a key is given.
package deb
