package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/etnz/twackup/deb"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) listen(e fmt.Stringer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e.String())
}

func (l *eventLog) count(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if strings.Contains(e, kind) {
			n++
		}
	}
	return n
}

func fakePackages(t *testing.T, env testEnv, n int) []Package {
	t.Helper()
	var pkgs []Package
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("pkg%d", i)
		file := env.installFile(t, filepath.Join("opt", id, "data"), id)
		pkgs = append(pkgs, fakePackage{id: id, version: "1", files: []string{file}})
	}
	return pkgs
}

func TestBuildStandalone(t *testing.T) {
	env := newTestEnv(t)
	pkgs := fakePackages(t, env, 6)
	events := &eventLog{}

	results, err := Build(context.Background(), env.prefs(), pkgs, Options{Jobs: 4, Listener: events.listen})
	require.NoError(t, err)
	require.Len(t, results, len(pkgs))
	for i, r := range results {
		assert.Equal(t, pkgs[i].ID(), r.ID)
		assert.NoError(t, r.Err)
		assert.False(t, r.Folded)
		assert.FileExists(t, r.Path)
	}
	assert.Equal(t, 6, events.count("EventPackageBuilt"))
	assert.Equal(t, 12, events.count("EventProgress"))
}

func TestBuildBundle(t *testing.T) {
	env := newTestEnv(t)
	pkgs := fakePackages(t, env, 4)
	events := &eventLog{}

	results, err := Build(context.Background(), env.prefs(), pkgs, Options{
		Jobs:              1,
		Bundle:            "all.tar.xz",
		BundleCompression: deb.CompressionXz,
		Listener:          events.listen,
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Folded)
		assert.NoFileExists(t, r.Path)
	}

	entries := listBundle(t, filepath.Join(env.dest, "all.tar.xz"), deb.CompressionXz)
	assert.ElementsMatch(t,
		[]string{"./pkg0_1_all.deb", "./pkg1_1_all.deb", "./pkg2_1_all.deb", "./pkg3_1_all.deb"},
		names(entries))
	assert.Equal(t, 4, events.count("EventPackageFolded"))
	assert.Equal(t, 1, events.count("EventBundleClosed"))
}

func TestBuildBundleWithFoldRetries(t *testing.T) {
	env := newTestEnv(t)
	pkgs := fakePackages(t, env, 8)

	results, err := Build(context.Background(), env.prefs(), pkgs, Options{
		Jobs:              4,
		Bundle:            "all.tar",
		BundleCompression: deb.CompressionNone,
		FoldRetries:       50,
	})
	// Every failure, if any, must be a clean contention error.
	folded := 0
	for _, r := range results {
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, ErrLockContention)
			continue
		}
		folded++
	}
	if err == nil {
		assert.Equal(t, len(pkgs), folded)
	}
	assert.Len(t, listBundle(t, filepath.Join(env.dest, "all.tar"), deb.CompressionNone), folded)
}

func TestBuildBundleDefaultsToPlainTar(t *testing.T) {
	env := newTestEnv(t)
	pkgs := fakePackages(t, env, 2)

	_, err := Build(context.Background(), env.prefs(), pkgs, Options{Bundle: "all.tar"})
	require.NoError(t, err)
	assert.Len(t, listBundle(t, filepath.Join(env.dest, "all.tar"), deb.CompressionNone), 2)
}

func TestBuildContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	pkgs := fakePackages(t, env, 3)
	pkgs[1] = fakePackage{id: "broken", version: "1", filesErr: fmt.Errorf("no list")}
	events := &eventLog{}

	results, err := Build(context.Background(), env.prefs(), pkgs, Options{Jobs: 2, Listener: events.listen})
	require.Error(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, PhaseCollectFiles, PhaseOf(results[1].Err))
	assert.Equal(t, 1, events.count("EventPackageFailed"))
}

func TestBuildStopOnError(t *testing.T) {
	env := newTestEnv(t)
	pkgs := fakePackages(t, env, 3)
	pkgs[0] = fakePackage{id: "broken", version: "1", filesErr: fmt.Errorf("no list")}

	results, err := Build(context.Background(), env.prefs(), pkgs, Options{Jobs: 1, StopOnError: true})
	require.Error(t, err)
	assert.Equal(t, PhaseCollectFiles, PhaseOf(results[0].Err))
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
}

func TestBuildCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Build(ctx, env.prefs(), fakePackages(t, env, 2), Options{})
	require.Error(t, err)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestBuildRejectsDuplicateCanonicalNames(t *testing.T) {
	env := newTestEnv(t)
	pkgs := []Package{
		fakePackage{id: "dup", version: "1"},
		fakePackage{id: "dup", version: "1"},
	}
	_, err := Build(context.Background(), env.prefs(), pkgs, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	entries, err := os.ReadDir(env.dest)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is built when names collide")
}

func TestPreferencesValidate(t *testing.T) {
	p := NewPreferences("/var/lib/dpkg", "/tmp/out")
	assert.True(t, p.RemoveDeb)
	assert.Equal(t, DefaultCompressionLevel, p.CompressionLevel)
	assert.NoError(t, p.Validate())

	for _, level := range []int{-1, 10} {
		bad := *p
		bad.CompressionLevel = level
		err := bad.Validate()
		require.Error(t, err, "level %d", level)
		assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
	}

	bad := *p
	bad.Compression = deb.CompressionLz4
	assert.Error(t, bad.Validate())

	bad = *p
	bad.Destination = ""
	assert.Error(t, bad.Validate())
}

func TestCounter(t *testing.T) {
	events := &eventLog{}
	c := NewCounter(2, events.listen)
	c.Increment(1)
	c.SetMessage("halfway")
	assert.Equal(t, 1, c.Done())
	assert.Equal(t, 2, c.Total())
	require.Len(t, events.events, 1)
	assert.JSONEq(t, `{"builder.EventProgress":{"message":"halfway","done":1,"total":2}}`, events.events[0])
}
