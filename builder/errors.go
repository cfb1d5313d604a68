package builder

import (
	"github.com/jmgilman/go/errors"
)

// Phase names the step of a build that failed.
type Phase string

const (
	PhasePrepare         Phase = "prepare"
	PhaseCollectFiles    Phase = "collect-files"
	PhaseCollectMetadata Phase = "collect-metadata"
	PhaseAssemble        Phase = "assemble"
	PhaseFold            Phase = "fold"
)

// ErrLockContention is returned by Bundle.Fold when another fold holds the bundle.
// It is classified as retryable; nothing in this package retries it.
var ErrLockContention error = errors.WithClassification(
	errors.New(errors.CodeConflict, "bundle is locked by another fold"),
	errors.ClassificationRetryable,
)

// ErrBundleClosed is returned by Bundle.Fold after Close.
var ErrBundleClosed error = errors.New(errors.CodeConflict, "bundle is closed")

// phaseError tags err with the package and the phase it failed in.
// Errors that already carry a code, like ErrLockContention, keep it.
func phaseError(err error, id string, phase Phase) error {
	code := errors.CodeBuildFailed
	if c := errors.GetCode(err); c != errors.CodeUnknown {
		code = c
	}
	return errors.WrapWithContext(err, code, string(phase)+" failed for "+id, map[string]interface{}{
		"package": id,
		"phase":   string(phase),
	})
}

// PhaseOf returns the phase err failed in, or "" when err did not come from a worker.
func PhaseOf(err error) Phase {
	var pe errors.PlatformError
	if !errors.As(err, &pe) {
		return ""
	}
	phase, _ := pe.Context()["phase"].(string)
	return Phase(phase)
}

// PackageOf returns the package identifier err is about, or "".
func PackageOf(err error) string {
	var pe errors.PlatformError
	if !errors.As(err, &pe) {
		return ""
	}
	id, _ := pe.Context()["package"].(string)
	return id
}
