// Package builder rebuilds .deb archives from the files a package installed
// and the metadata dpkg kept about it.
//
// A Worker builds one package in a private working directory under the
// destination, then optionally folds the finished archive into a Bundle
// shared by every worker of the run. Folding uses a try-lock: a worker that
// finds the bundle busy fails with ErrLockContention instead of waiting.
// Nothing in this package retries; ErrLockContention is classified as
// retryable so a caller can decide to.
//
// Build drives many workers over a bounded pool.
package builder
