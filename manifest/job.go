// Package manifest describes backup jobs in declarative YAML or JSON files.
//
// A job file says which packages to rebuild, where, with which compression,
// whether to fold them into a bundle, and whether to index the result as an
// APT repository. String fields are text/template templates rendered with the
// job's defines plus the built-ins Date and Hostname.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/twackup/builder"
	"github.com/etnz/twackup/deb"
	"github.com/etnz/twackup/dpkg"
	"go.yaml.in/yaml/v3"
)

// Job is the content of a job file.
type Job struct {
	// Defines is a map of variables available to templates in this job.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// AdminDir is the dpkg database directory. Defaults to /var/lib/dpkg.
	AdminDir string `json:"admin_dir" yaml:"admin_dir"`
	// Destination is the output directory, relative to the job file when not absolute.
	Destination string `json:"destination" yaml:"destination"`
	// Compression of the package payloads: gzip, xz, zstd or none.
	Compression string `json:"compression" yaml:"compression"`
	// Level is the compression level, 0 to 9.
	Level *int `json:"level" yaml:"level"`
	// RemoveDeb deletes each archive once folded into the bundle. Defaults to true.
	RemoveDeb *bool `json:"remove_deb" yaml:"remove_deb"`
	// Jobs is the number of packages built concurrently.
	Jobs int `json:"jobs" yaml:"jobs"`
	// StopOnError stops the run at the first failing package.
	StopOnError bool `json:"stop_on_error" yaml:"stop_on_error"`
	// FoldRetries is how many times a fold that found the bundle busy is retried.
	FoldRetries int `json:"fold_retries" yaml:"fold_retries"`
	// Packages lists package identifiers to rebuild. Empty means every installed package.
	Packages []string `json:"packages" yaml:"packages"`
	// Leaves restricts the selection to packages nothing else depends on.
	Leaves bool `json:"leaves" yaml:"leaves"`
	// Bundle, when set, folds every archive into one tar file.
	Bundle *Bundle `json:"bundle" yaml:"bundle"`
	// Index, when set, writes a flat APT repository index over the destination.
	Index *Index `json:"index" yaml:"index"`

	filePath string
	engine   *templateEngine
}

// Bundle configures the shared archive of a job.
type Bundle struct {
	// Name is the bundle file name inside the destination.
	Name string `json:"name" yaml:"name"`
	// Compression of the bundle: gzip, xz, zstd, lz4 or none.
	Compression string `json:"compression" yaml:"compression"`
}

// Index configures the repository index of a job.
type Index struct {
	Origin      string `json:"origin" yaml:"origin"`
	Label       string `json:"label" yaml:"label"`
	Suite       string `json:"suite" yaml:"suite"`
	Codename    string `json:"codename" yaml:"codename"`
	Description string `json:"description" yaml:"description"`
	// KeyEnv names the environment variable holding an armored private key
	// used to sign InRelease.
	KeyEnv string `json:"key_env" yaml:"key_env"`
}

// Load reads the job file at path, renders its templates and resolves its paths.
// It supports both JSON and YAML formats based on the file extension.
func Load(path string) (*Job, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var job Job
	if err := unmarshal(path, content, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	job.filePath = path
	if err := job.prepare(); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return &job, nil
}

// Prepare renders and checks a job built in code rather than loaded from a
// file. Relative paths are resolved against the working directory.
func (j *Job) Prepare() error { return j.prepare() }

func (j *Job) prepare() error {
	var err error
	j.engine, err = newTemplateEngine(j.Defines)
	if err != nil {
		return fmt.Errorf("failed to process defines: %w", err)
	}

	fields := map[string]*string{
		"admin_dir":   &j.AdminDir,
		"destination": &j.Destination,
		"compression": &j.Compression,
	}
	for i := range j.Packages {
		fields[fmt.Sprintf("packages[%d]", i)] = &j.Packages[i]
	}
	if j.Bundle != nil {
		fields["bundle.name"] = &j.Bundle.Name
		fields["bundle.compression"] = &j.Bundle.Compression
	}
	if j.Index != nil {
		fields["index.origin"] = &j.Index.Origin
		fields["index.label"] = &j.Index.Label
		fields["index.suite"] = &j.Index.Suite
		fields["index.codename"] = &j.Index.Codename
		fields["index.description"] = &j.Index.Description
	}
	if err := j.engine.renderAll(fields); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	if j.AdminDir == "" {
		j.AdminDir = dpkg.DefaultAdminDir
	}
	if j.Destination == "" {
		return fmt.Errorf("job must specify 'destination'")
	}
	j.AdminDir = j.resolve(j.AdminDir)
	j.Destination = j.resolve(j.Destination)
	if j.Bundle != nil && j.Bundle.Name == "" {
		return fmt.Errorf("bundle must specify 'name'")
	}
	if j.Bundle != nil && strings.ContainsRune(j.Bundle.Name, filepath.Separator) {
		return fmt.Errorf("bundle name %q must be a file name", j.Bundle.Name)
	}
	return nil
}

func (j *Job) resolve(path string) string {
	if filepath.IsAbs(path) || j.filePath == "" {
		return path
	}
	return filepath.Join(filepath.Dir(j.filePath), path)
}

// Preferences converts the job into builder preferences.
func (j *Job) Preferences() (*builder.Preferences, error) {
	prefs := builder.NewPreferences(j.AdminDir, j.Destination)
	if j.Compression != "" {
		c, err := deb.ParseCompression(j.Compression)
		if err != nil {
			return nil, err
		}
		prefs.Compression = c
	}
	if j.Level != nil {
		prefs.CompressionLevel = *j.Level
	}
	if j.RemoveDeb != nil {
		prefs.RemoveDeb = *j.RemoveDeb
	}
	return prefs, prefs.Validate()
}

// Options converts the job into pool options.
func (j *Job) Options(logger *slog.Logger, l builder.Listener) (builder.Options, error) {
	opts := builder.Options{
		Jobs:        j.Jobs,
		StopOnError: j.StopOnError,
		FoldRetries: j.FoldRetries,
		Listener:    l,
		Logger:      logger,
	}
	if j.Bundle != nil {
		opts.Bundle = j.Bundle.Name
		if j.Bundle.Compression != "" {
			c, err := deb.ParseCompression(j.Bundle.Compression)
			if err != nil {
				return opts, fmt.Errorf("bundle: %w", err)
			}
			opts.BundleCompression = c
		}
	}
	return opts, nil
}

// Select returns the packages of db the job covers, in status file order.
// Naming a package that is not installed is an error.
func (j *Job) Select(db *dpkg.Database) ([]builder.Package, error) {
	var candidates []*dpkg.Package
	if j.Leaves {
		candidates = db.Leaves()
	} else {
		candidates = db.Packages()
	}
	if len(j.Packages) == 0 {
		return toBuilder(candidates), nil
	}

	wanted := make(map[string]bool, len(j.Packages))
	for _, id := range j.Packages {
		if _, ok := db.Lookup(id); !ok {
			return nil, fmt.Errorf("package %q is not installed", id)
		}
		wanted[id] = true
	}
	var selected []*dpkg.Package
	for _, p := range candidates {
		if wanted[p.ID()] {
			selected = append(selected, p)
		}
	}
	return toBuilder(selected), nil
}

func toBuilder(pkgs []*dpkg.Package) []builder.Package {
	out := make([]builder.Package, len(pkgs))
	for i, p := range pkgs {
		out[i] = p
	}
	return out
}

// ArchiveInfo returns the Release metadata of the index.
func (j *Job) ArchiveInfo() deb.ArchiveInfo {
	if j.Index == nil {
		return deb.ArchiveInfo{}
	}
	return deb.ArchiveInfo{
		Origin:      j.Index.Origin,
		Label:       j.Index.Label,
		Suite:       j.Index.Suite,
		Codename:    j.Index.Codename,
		Description: j.Index.Description,
	}
}

// Run builds the selected packages and writes the index when the job asks for one.
// Per-package failures are reported in the results and joined into the error;
// the index is only written when every package succeeded.
func (j *Job) Run(ctx context.Context, logger *slog.Logger, l builder.Listener) ([]builder.Result, error) {
	if l == nil {
		l = func(fmt.Stringer) {}
	}
	prefs, err := j.Preferences()
	if err != nil {
		return nil, err
	}
	opts, err := j.Options(logger, l)
	if err != nil {
		return nil, err
	}
	db, err := dpkg.Open(prefs.AdminDir)
	if err != nil {
		return nil, err
	}
	pkgs, err := j.Select(db)
	if err != nil {
		return nil, err
	}
	l(EventJobLoaded{Path: j.filePath, Destination: prefs.Destination, Packages: len(pkgs)})

	results, err := builder.Build(ctx, prefs, pkgs, opts)
	if err != nil || j.Index == nil {
		return results, err
	}

	key := ""
	if j.Index.KeyEnv != "" {
		key = os.Getenv(j.Index.KeyEnv)
	}
	if err := deb.WriteIndex(prefs.Destination, j.ArchiveInfo(), key); err != nil {
		return results, fmt.Errorf("failed to write index: %w", err)
	}
	l(EventIndexWritten{Path: prefs.Destination, Signed: key != ""})
	return results, nil
}

// unmarshal parses JSON or YAML based on file extension.
func unmarshal(path string, data []byte, v interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	r := bytes.NewReader(data)
	if ext == ".yaml" || ext == ".yml" {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
