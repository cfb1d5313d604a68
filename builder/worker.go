package builder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/twackup/deb"
)

// Worker rebuilds one package. It is not reused once Run or Work returned.
type Worker struct {
	Package     Package
	Progress    Progress
	Bundle      *Bundle
	Preferences *Preferences
	// WorkingDir is the scratch directory, Destination/CanonicalName.
	WorkingDir string
	Logger     *slog.Logger
	// Listener, when set, receives EventPackageBuilt and EventPackageFolded.
	Listener Listener

	output string
}

// NewWorker prepares a worker for pkg. bundle, progress and logger may be nil.
func NewWorker(pkg Package, progress Progress, bundle *Bundle, prefs *Preferences, logger *slog.Logger) *Worker {
	if progress == nil {
		progress = NopProgress
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		Package:     pkg,
		Progress:    progress,
		Bundle:      bundle,
		Preferences: prefs,
		WorkingDir:  filepath.Join(prefs.Destination, pkg.CanonicalName()),
		Logger:      logger,
	}
}

// Output returns the path of the standalone archive once Run succeeded.
func (w *Worker) Output() string { return w.output }

// Run builds the standalone archive and returns its path.
// The working directory is recreated first and removed on every return path.
func (w *Worker) Run() (string, error) {
	id := w.Package.ID()

	// Leftovers from an earlier run are discarded.
	_ = os.RemoveAll(w.WorkingDir)
	if err := os.Mkdir(w.WorkingDir, 0755); err != nil {
		return "", phaseError(err, id, PhasePrepare)
	}
	defer os.RemoveAll(w.WorkingDir)

	debPath := filepath.Join(w.Preferences.Destination, w.Package.CanonicalName()+".deb")
	d, err := deb.NewDeb(w.WorkingDir, debPath, w.Preferences.Compression, w.Preferences.CompressionLevel)
	if err != nil {
		return "", phaseError(err, id, PhasePrepare)
	}

	if err := w.collectFiles(d.Data()); err != nil {
		d.Abort()
		return "", phaseError(err, id, PhaseCollectFiles)
	}
	if err := w.collectMetadata(d.Control()); err != nil {
		d.Abort()
		return "", phaseError(err, id, PhaseCollectMetadata)
	}
	if err := d.Package(); err != nil {
		return "", phaseError(err, id, PhaseAssemble)
	}

	w.output = d.Output()
	w.emit(EventPackageBuilt{Package: id, Path: w.output, Size: d.Size()})
	return w.output, nil
}

// Work runs the build with progress reporting, then folds the archive into
// the bundle when the worker has one.
func (w *Worker) Work() error {
	human := w.Package.HumanName()
	progress := w.Progress
	if progress == nil {
		progress = NopProgress
	}
	progress.SetMessage("Processing " + human)

	file, err := w.Run()
	if err != nil {
		return err
	}
	progress.Increment(1)
	progress.SetMessage("Done " + human)

	if w.Bundle == nil {
		return nil
	}
	entry, err := w.Bundle.Fold(file, w.Preferences.RemoveDeb)
	if err != nil {
		return phaseError(err, w.Package.ID(), PhaseFold)
	}
	w.emit(EventPackageFolded{Package: w.Package.ID(), Entry: entry, Removed: w.Preferences.RemoveDeb})
	return nil
}

// collectFiles appends every installed file to the data payload.
// Files that cannot be read are logged and skipped.
func (w *Worker) collectFiles(data *deb.TarArchive) error {
	files, err := w.Package.InstalledFiles(w.Preferences.AdminDir)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := data.AppendPath(file, archiveName(file)); err != nil {
			w.logger().Warn("skipping installed file", "package", w.Package.ID(), "path", file, "error", err)
		}
	}
	return nil
}

// collectMetadata writes the control file, then every info/<key>.<name> file
// except the file list, key being the package's administrative key.
// Unreadable metadata files are logged and skipped.
func (w *Worker) collectMetadata(control *deb.TarArchive) error {
	id := w.Package.ID()
	key := w.Package.AdminKey(w.Preferences.AdminDir)
	if err := control.AppendFile(string(deb.FileControl), []byte(w.Package.Control()), 0644); err != nil {
		return err
	}

	infoDir := filepath.Join(w.Preferences.AdminDir, "info")
	entries, err := os.ReadDir(infoDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name, ok := metadataName(entry.Name(), key)
		if !ok {
			continue
		}
		if err := control.AppendPath(filepath.Join(infoDir, entry.Name()), name); err != nil {
			w.logger().Warn("skipping metadata file", "package", id, "path", entry.Name(), "error", err)
		}
	}
	return nil
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}

func (w *Worker) emit(e fmt.Stringer) {
	if w.Listener != nil {
		w.Listener(e)
	}
}

// archiveName turns an installed path into a relative in-archive name by
// stripping its leading slashes: "/usr/bin/foo" becomes "usr/bin/foo" and "/."
// stays ".". The path is not otherwise cleaned, so dot segments are kept.
func archiveName(file string) string {
	name := strings.TrimLeft(file, "/")
	if name == "" {
		return "."
	}
	return name
}

// metadataName reports whether file, an entry of the info directory, is a
// metadata file of the package with administrative key key and returns its
// in-archive name. Names are compared byte for byte: "<key>.<name>" with a
// non-empty name other than "list".
func metadataName(file, key string) (string, bool) {
	if len(file) <= len(key)+1 || !strings.HasPrefix(file, key+".") {
		return "", false
	}
	name := file[len(key)+1:]
	if name == string(deb.FileList) {
		return "", false
	}
	return name, true
}
