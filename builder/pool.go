package builder

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/twackup/deb"
	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"
)

// Options control a Build run.
type Options struct {
	// Jobs bounds the number of concurrent workers. Zero or less means one.
	Jobs int
	// StopOnError stops dispatching packages after the first failure.
	StopOnError bool
	// Bundle is the file name of the bundle in the destination. Empty disables it.
	Bundle string
	// BundleCompression compresses the bundle stream. Any compression is accepted.
	BundleCompression deb.Compression
	// Listener receives build events. It may be nil.
	Listener Listener
	// Logger receives per-file warnings and per-package failures. Nil discards them.
	Logger *slog.Logger
	// FoldRetries is how many more times a fold that lost the bundle lock is
	// attempted, with a linear backoff. Zero keeps folds fail-fast.
	FoldRetries int
}

// foldBackoff is the delay before the first fold retry; later retries wait longer.
const foldBackoff = 20 * time.Millisecond

// Result is the outcome of one package.
type Result struct {
	ID string
	// Path is the standalone archive. It no longer exists when the package was
	// folded with RemoveDeb set.
	Path string
	// Folded is true when the archive went into the bundle.
	Folded bool
	Err    error
}

// Build rebuilds pkgs, each in its own Worker, at most opts.Jobs at a time.
// A failing package does not stop the others unless opts.StopOnError is set.
// Cancelling ctx stops dispatching new packages; workers already running finish.
// It returns one Result per package, in input order, and the joined failures.
func Build(ctx context.Context, prefs *Preferences, pkgs []Package, opts Options) ([]Result, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if err := checkUnique(pkgs); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if err := os.MkdirAll(prefs.Destination, 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeBuildFailed, "creating destination")
	}

	var bundle *Bundle
	if opts.Bundle != "" {
		var err error
		bundle, err = CreateBundle(filepath.Join(prefs.Destination, opts.Bundle), opts.BundleCompression, prefs.CompressionLevel)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeBuildFailed, "creating bundle")
		}
	}

	counter := NewCounter(len(pkgs), opts.Listener)
	results := make([]Result, len(pkgs))

	var g *errgroup.Group
	gctx := ctx
	if opts.StopOnError {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	g.SetLimit(jobs)

	for i, pkg := range pkgs {
		results[i].ID = pkg.ID()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			w := NewWorker(pkg, counter, bundle, prefs, logger)
			w.Listener = opts.Listener
			err := w.Work()
			if err != nil && opts.FoldRetries > 0 && errors.Is(err, ErrLockContention) {
				err = retryFold(w, opts.FoldRetries)
			}
			results[i].Path = w.Output()
			results[i].Folded = bundle != nil && err == nil
			if err != nil {
				results[i].Err = err
				logger.Error("package failed", "package", pkg.ID(), "phase", PhaseOf(err), "error", err)
				if opts.Listener != nil {
					opts.Listener(EventPackageFailed{Package: pkg.ID(), Phase: PhaseOf(err), Error: err.Error()})
				}
				if opts.StopOnError {
					return err
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if bundle != nil {
		if err := bundle.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, errors.CodeBuildFailed, "closing bundle"))
		} else if opts.Listener != nil {
			opts.Listener(EventBundleClosed{Path: bundle.Path(), Entries: bundle.Entries()})
		}
	}
	return results, stderrors.Join(errs...)
}

// retryFold folds the archive a worker already built, waiting a little longer
// before each attempt. It gives up on the first error that is not contention.
func retryFold(w *Worker, retries int) error {
	id := w.Package.ID()
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		time.Sleep(time.Duration(attempt) * foldBackoff)
		var entry string
		entry, err = w.Bundle.Fold(w.Output(), w.Preferences.RemoveDeb)
		if err == nil {
			w.emit(EventPackageFolded{Package: id, Entry: entry, Removed: w.Preferences.RemoveDeb})
			return nil
		}
		if !errors.Is(err, ErrLockContention) {
			break
		}
	}
	return phaseError(err, id, PhaseFold)
}

// checkUnique rejects two packages sharing a canonical name: their working
// directories and archives would collide.
func checkUnique(pkgs []Package) error {
	seen := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		name := p.CanonicalName()
		if other, ok := seen[name]; ok {
			return errors.WithContextMap(
				errors.Newf(errors.CodeInvalidInput, "packages %s and %s share the canonical name %s", other, p.ID(), name),
				map[string]interface{}{"canonical_name": name},
			)
		}
		seen[name] = p.ID()
	}
	return nil
}
