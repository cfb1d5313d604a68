package main

import (
	"fmt"

	"github.com/etnz/twackup/builder"
	"github.com/etnz/twackup/manifest"
	"github.com/spf13/cobra"
)

func (a *app) buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [package-id...]",
		Short: "Rebuild installed packages into .deb archives",
		Long: `Rebuild installed packages into .deb archives.

Packages are named by identifier, or selected with --all or --leaves.
A job file (--job) describes the whole run instead, flags other than
--admin-dir and logging are then ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.job(args)
			if err != nil {
				return err
			}
			results, err := job.Run(cmd.Context(), a.logger, a.listen)
			built, folded := 0, 0
			for _, r := range results {
				if r.Err != nil {
					continue
				}
				built++
				if r.Folded {
					folded++
				}
			}
			a.logger.Info("build finished", "built", built, "folded", folded, "failed", len(results)-built, "destination", job.Destination)
			return err
		},
	}
	f := cmd.Flags()
	f.String("job", "", "job file (YAML or JSON) describing the run")
	f.StringP("destination", "o", ".", "output directory")
	f.Bool("all", false, "rebuild every installed package")
	f.Bool("leaves", false, "rebuild packages no other package depends on")
	f.StringP("compression", "c", "gzip", "payload compression: gzip, xz, zstd or none")
	f.IntP("level", "l", builder.DefaultCompressionLevel, "compression level, 0 to 9")
	f.IntP("jobs", "j", 1, "packages built concurrently")
	f.Bool("stop-on-error", false, "stop at the first failing package")
	f.String("bundle", "", "fold every archive into this tar file in the destination")
	f.String("bundle-compression", "none", "bundle compression: gzip, xz, zstd, lz4 or none")
	f.Bool("keep-debs", false, "keep standalone archives once folded into the bundle")
	f.Int("fold-retries", 50, "retries of a fold that found the bundle busy")
	f.Bool("index", false, "write a flat APT repository index over the destination")
	f.String("key-env", "TWACKUP_GPG_KEY", "environment variable holding the signing key of the index")
	f.StringToString("define", nil, "template definition KEY=VALUE for the job (repeatable)")
	return cmd
}

// job returns the job described by --job, or one assembled from flags.
func (a *app) job(args []string) (*manifest.Job, error) {
	if path := a.v.GetString("job"); path != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("package identifiers cannot be combined with --job")
		}
		job, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		if a.v.IsSet("admin-dir") {
			job.AdminDir = a.v.GetString("admin-dir")
		}
		return job, nil
	}

	all, leaves := a.v.GetBool("all"), a.v.GetBool("leaves")
	if len(args) == 0 && !all && !leaves {
		return nil, fmt.Errorf("name packages to rebuild, or pass --all or --leaves")
	}
	if len(args) > 0 && all {
		return nil, fmt.Errorf("package identifiers cannot be combined with --all")
	}

	level := a.v.GetInt("level")
	removeDeb := !a.v.GetBool("keep-debs")
	job := &manifest.Job{
		Defines:     a.v.GetStringMapString("define"),
		AdminDir:    a.v.GetString("admin-dir"),
		Destination: a.v.GetString("destination"),
		Compression: a.v.GetString("compression"),
		Level:       &level,
		RemoveDeb:   &removeDeb,
		Jobs:        a.v.GetInt("jobs"),
		StopOnError: a.v.GetBool("stop-on-error"),
		FoldRetries: a.v.GetInt("fold-retries"),
		Packages:    args,
		Leaves:      leaves,
	}
	if name := a.v.GetString("bundle"); name != "" {
		job.Bundle = &manifest.Bundle{Name: name, Compression: a.v.GetString("bundle-compression")}
	}
	if a.v.GetBool("index") {
		job.Index = &manifest.Index{KeyEnv: a.v.GetString("key-env")}
	}
	return job, job.Prepare()
}

// listen logs build events. Failures are already logged by the pool.
func (a *app) listen(e fmt.Stringer) {
	switch e := e.(type) {
	case builder.EventPackageFailed:
	case builder.EventProgress:
		a.logger.Debug(e.Message, "done", e.Done, "total", e.Total)
	case builder.EventPackageBuilt:
		a.logger.Debug("built", "package", e.Package, "path", e.Path, "size", e.Size)
	case builder.EventPackageFolded:
		a.logger.Debug("folded", "package", e.Package, "entry", e.Entry)
	case builder.EventBundleClosed:
		a.logger.Info("bundle written", "path", e.Path, "entries", e.Entries)
	case manifest.EventIndexWritten:
		a.logger.Info("index written", "dir", e.Path, "signed", e.Signed)
	default:
		a.logger.Debug("event", "event", e.String())
	}
}
