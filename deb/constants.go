package deb

// ControlField represents a standard field in a Debian control file.
type ControlField string

const (
	FieldPackage       ControlField = "Package"
	FieldVersion       ControlField = "Version"
	FieldArchitecture  ControlField = "Architecture"
	FieldMaintainer    ControlField = "Maintainer"
	FieldDescription   ControlField = "Description"
	FieldSection       ControlField = "Section"
	FieldName          ControlField = "Name"
	FieldStatus        ControlField = "Status"
	FieldDepends       ControlField = "Depends"
	FieldPreDepends    ControlField = "Pre-Depends"
	FieldProvides      ControlField = "Provides"
	FieldConffiles     ControlField = "Conffiles"
	FieldConfigVersion ControlField = "Config-Version"
	FieldInstalledSize ControlField = "Installed-Size"
	FieldEssential     ControlField = "Essential"
)

// ControlFile represents a standard file found in the control.tar archive.
type ControlFile string

const (
	FileControl  ControlFile = "control"
	FileMd5sums  ControlFile = "md5sums"
	FileList     ControlFile = "list"
	FilePreinst  ControlFile = "preinst"
	FilePostinst ControlFile = "postinst"
	FilePrerm    ControlFile = "prerm"
	FilePostrm   ControlFile = "postrm"
)

// PackageFile represents a standard member of the .deb archive (ar format).
type PackageFile string

const (
	PkgDebianBinary PackageFile = "debian-binary"
	PkgControlTar   PackageFile = "control.tar"
	PkgDataTar      PackageFile = "data.tar"
)

// FormatVersion is the content of the debian-binary member.
const FormatVersion = "2.0\n"

// ReleaseField represents a standard field in a Debian Release file.
type ReleaseField string

const (
	RelOrigin        ReleaseField = "Origin"
	RelLabel         ReleaseField = "Label"
	RelSuite         ReleaseField = "Suite"
	RelCodename      ReleaseField = "Codename"
	RelDate          ReleaseField = "Date"
	RelArchitectures ReleaseField = "Architectures"
	RelDescription   ReleaseField = "Description"
	RelSHA256        ReleaseField = "SHA256"
)
