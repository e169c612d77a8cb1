package monitor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/filter"
	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/jamesainslie/warden/pkg/warden/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingInspector records every file it is asked to inspect.
type countingInspector struct {
	mu    sync.Mutex
	paths []string
	inner *inspect.Inspector
	err   error
}

func (c *countingInspector) InspectFile(path string) ([]inspect.Warning, error) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.InspectFile(path)
}

func (c *countingInspector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTestMonitor builds a monitor over root with an isolated lock dir and
// a counting inspector.
func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *countingInspector) {
	t.Helper()
	store, err := manifest.NewStore(cfg.BaseDir, manifest.WithLockDir(t.TempDir()))
	require.NoError(t, err)

	counter := &countingInspector{inner: inspect.New()}
	m, err := New(cfg, WithStore(store), WithInspector(counter))
	require.NoError(t, err)
	return m, counter
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	negative := -1
	tests := []struct {
		name    string
		cfg     Config
		field   string
		wantErr error
	}{
		{"empty base dir", Config{}, "BaseDir", nil},
		{"bad include rule", Config{BaseDir: "/srv", Include: []string{"x|*.php"}}, "Include", filter.ErrInvalidRule},
		{"bad exclude merge", Config{BaseDir: "/srv", ExcludeMerge: []string{"vendor"}}, "Exclude", filter.ErrInvalidRule},
		{"empty pattern", Config{BaseDir: "/srv", IncludeMerge: []string{"f|"}}, "Include", filter.ErrInvalidRule},
		{"negative radius", Config{BaseDir: "/srv", Radius: &negative}, "Radius", nil},
		{"negative workers", Config{BaseDir: "/srv", Workers: -2}, "Workers", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNew_BaseDirNormalized(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sep := string(os.PathSeparator)

	for _, in := range []string{root, root + sep, root + sep + sep + sep, root + sep + "." + sep} {
		m, _ := newTestMonitor(t, Config{BaseDir: in})
		assert.Equal(t, filepath.Clean(root)+sep, m.BaseDir(), "input %q", in)
	}
}

func TestNew_RuleResolution(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestMonitor(t, Config{BaseDir: root})
		assert.Equal(t, append(append([]string{}, DefaultExclude...), ImplicitExclude, ImplicitExcludeTemp), m.ExcludeRules())
		assert.Equal(t, append(append([]string{}, DefaultInclude...), ImplicitInclude), m.IncludeRules())
	})

	t.Run("override and merge", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestMonitor(t, Config{
			BaseDir:      root,
			Include:      []string{"f|*.go"},
			IncludeMerge: []string{"f|*.mod"},
			ExcludeMerge: []string{"d|vendor"},
		})
		assert.Equal(t, []string{"f|*.go", "f|*.mod", ImplicitInclude}, m.IncludeRules())
		assert.Equal(t, append(append(append([]string{}, DefaultExclude...), "d|vendor"), ImplicitExclude, ImplicitExcludeTemp), m.ExcludeRules())
	})

	t.Run("empty override", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestMonitor(t, Config{BaseDir: root, Exclude: []string{}})
		assert.Equal(t, []string{ImplicitExclude, ImplicitExcludeTemp}, m.ExcludeRules())
	})
}

func TestMonitor_ScanThenCompareUnchanged(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php echo 1;")
	writeFile(t, root, "lib/util.php", "<?php exec('x');")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	assert.Equal(t, Uninitialized, m.State())

	require.NoError(t, m.Scan(context.Background()))
	assert.Equal(t, Baseline, m.State())

	res, err := m.Compare(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, EmptyDiff(), res.Diff)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 0, res.Inspected)
	assert.Equal(t, 0, counter.calls())
	assert.Equal(t, Checked, m.State())
}

func TestMonitor_CheckIsIdempotent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php echo 1;")
	writeFile(t, root, "lib/util.php", "<?php echo 2;")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))

	for i := 0; i < 2; i++ {
		got, err := m.Check(context.Background())
		require.NoError(t, err, "check %d", i+1)
		res, ok := got.(*Result)
		require.True(t, ok)
		assert.True(t, res.Status, "check %d", i+1)
		assert.Equal(t, EmptyDiff(), res.Diff, "check %d", i+1)
		assert.Equal(t, 0, res.Inspected, "check %d", i+1)
	}
	assert.Equal(t, 0, counter.calls())
}

func TestMonitor_ChecksumMismatchSameList(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php echo 1;")
	writeFile(t, root, "app/x.php", "<?php echo 2;")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))

	man, err := m.Store().Load()
	require.NoError(t, err)
	man.Checksum = "00000000000000000000000000000000"
	require.NoError(t, m.Store().Save(man))

	res, err := m.Compare(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, EmptyDiff(), res.Diff)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 0, res.Inspected)
	assert.Equal(t, 0, counter.calls())
	assert.NotEqual(t, man.Checksum, res.Checksum)
}

func TestMonitor_IgnoresInterruptedManifestWrite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")
	// Left behind by a scan that died before renaming its temp file.
	writeFile(t, root, "."+manifest.FileName+"-123456", "{}")

	m, _ := newTestMonitor(t, Config{BaseDir: root, Include: []string{"f|*"}})
	require.NoError(t, m.Scan(context.Background()))

	man, err := m.Store().Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"index.php"}, sortedKeys(man.List))
	assert.Contains(t, man.Rules.Exclude, ImplicitExcludeTemp)
}

func TestMonitor_LoggerCarriesRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	var buf bytes.Buffer
	store, err := manifest.NewStore(root, manifest.WithLockDir(t.TempDir()))
	require.NoError(t, err)
	m, err := New(Config{BaseDir: root},
		WithStore(store),
		WithLogger(logging.New(&buf, "monitor", logging.LevelInfo)))
	require.NoError(t, err)
	require.NoError(t, m.Scan(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "scan complete")
	assert.Contains(t, out, "root="+root)
}

func TestMonitor_ScanIsIdempotent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.php", "a")
	writeFile(t, root, "b/c.html", "c")

	m, _ := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))
	first, err := m.Store().Load()
	require.NoError(t, err)

	require.NoError(t, m.Scan(context.Background()))
	second, err := m.Store().Load()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMonitor_ManifestContents(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "12345")
	writeFile(t, root, "readme.txt", "ignored")
	writeFile(t, root, ".git/hook.sh", "ignored")

	m, _ := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))
	// A second scan must not pick up the manifest written by the first.
	require.NoError(t, m.Scan(context.Background()))

	man, err := m.Store().Load()
	require.NoError(t, err)
	require.Len(t, man.List, 1)
	assert.Equal(t, int64(5), man.List["index.php"].Size)
	assert.NotContains(t, man.List, manifest.FileName)
	assert.Equal(t, m.ExcludeRules(), man.Rules.Exclude)
	assert.Equal(t, m.IncludeRules(), man.Rules.Include)

	sum, err := manifest.Checksum(man.List)
	require.NoError(t, err)
	assert.Equal(t, sum, man.Checksum)
}

func TestMonitor_DetectsCreated(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php echo 1;")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))

	writeFile(t, root, "shell.php", "foo exec(x); bar")

	res, err := m.Compare(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Status)
	require.Contains(t, res.Diff.Created, "shell.php")
	assert.Empty(t, res.Diff.Modified)
	assert.Empty(t, res.Diff.Deleted)

	created := res.Diff.Created["shell.php"]
	assert.Equal(t, int64(16), created.New.Size)
	require.Len(t, created.Warnings, 1)
	assert.Equal(t, "exec", created.Warnings[0].Token)

	assert.Equal(t, 1, res.Inspected)
	assert.Equal(t, []string{filepath.Join(root, "shell.php")}, counter.paths)
}

func TestMonitor_DetectsDeleted(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php echo 1;")
	writeFile(t, root, "old/gone.php", "<?php echo 2;")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))
	require.NoError(t, os.RemoveAll(filepath.Join(root, "old")))

	res, err := m.Compare(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Status)
	require.Contains(t, res.Diff.Deleted, "old/gone.php")
	assert.Equal(t, "old/gone.php", res.Diff.Deleted["old/gone.php"].Old.Path)
	assert.Empty(t, res.Diff.Created)
	assert.Empty(t, res.Diff.Modified)
	assert.Equal(t, 0, counter.calls())
}

func TestMonitor_DetectsModified(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php echo 1;")
	writeFile(t, root, "same.php", "<?php echo 2;")
	writeFile(t, root, "touched.php", "<?php echo 3;")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))

	// Size change.
	writeFile(t, root, "index.php", "<?php echo 1; mail('a@b', 'x');")
	// Same size, different mtime.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "touched.php"), later, later))

	res, err := m.Compare(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Status)
	require.Len(t, res.Diff.Modified, 2)

	mod := res.Diff.Modified["index.php"]
	assert.Equal(t, int64(13), mod.Old.Size)
	assert.Equal(t, int64(31), mod.New.Size)
	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, "mail", mod.Warnings[0].Token)

	touched := res.Diff.Modified["touched.php"]
	assert.Equal(t, touched.Old.Size, touched.New.Size)
	assert.NotEqual(t, touched.Old.Modified, touched.New.Modified)
	assert.Empty(t, touched.Warnings)
	assert.NotNil(t, touched.Warnings)

	assert.NotContains(t, res.Diff.Modified, "same.php")
	assert.Equal(t, 2, counter.calls())
	assert.Equal(t, 2, res.Inspected)
}

func TestMonitor_FilterCorrectness(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "vendor/x.php", "x")
	writeFile(t, root, "app/x.php", "x")
	writeFile(t, root, "app/x.txt", "x")

	m, _ := newTestMonitor(t, Config{
		BaseDir:      root,
		Include:      []string{"f|*.php"},
		ExcludeMerge: []string{"d|vendor"},
	})
	require.NoError(t, m.Scan(context.Background()))

	man, err := m.Store().Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"app/x.php"}, sortedKeys(man.List))
}

func TestMonitor_MissingBaseline(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	m, _ := newTestMonitor(t, Config{BaseDir: root})

	_, err := m.Compare(context.Background())
	assert.ErrorIs(t, err, ErrMissingBaseline)

	_, err = m.Check(context.Background())
	assert.ErrorIs(t, err, ErrMissingBaseline)
	assert.Equal(t, Uninitialized, m.State())
}

func TestMonitor_CheckWithoutCallback(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	m, _ := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))

	got, err := m.Check(context.Background())
	require.NoError(t, err)
	res, ok := got.(*Result)
	require.True(t, ok, "Check should return *Result without a callback")
	assert.True(t, res.Status)
	assert.Same(t, res, m.Last())
}

func TestMonitor_LastVisibleInCallback(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	var m *Monitor
	var files int
	m, _ = newTestMonitor(t, Config{
		BaseDir: root,
		Callback: func(status bool, diff *Diff) (any, error) {
			files = m.Last().Files
			return status, nil
		},
	})
	assert.Nil(t, m.Last())
	require.NoError(t, m.Scan(context.Background()))

	got, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, got)
	assert.Equal(t, 1, files)
}

func TestMonitor_CheckWithCallback(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	var (
		gotStatus bool
		gotDiff   *Diff
	)
	m, _ := newTestMonitor(t, Config{
		BaseDir: root,
		Callback: func(status bool, diff *Diff) (any, error) {
			gotStatus, gotDiff = status, diff
			return diff.Len(), nil
		},
	})
	require.NoError(t, m.Scan(context.Background()))
	writeFile(t, root, "new.php", "y")

	got, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.False(t, gotStatus)
	require.NotNil(t, gotDiff)
	assert.Contains(t, gotDiff.Created, "new.php")
}

func TestMonitor_CallbackError(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	want := errors.New("notify failed")
	m, _ := newTestMonitor(t, Config{
		BaseDir:  root,
		Callback: func(bool, *Diff) (any, error) { return nil, want },
	})
	require.NoError(t, m.Scan(context.Background()))

	_, err := m.Check(context.Background())
	assert.ErrorIs(t, err, want)
}

func TestMonitor_InspectErrorIsFatal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	m, counter := newTestMonitor(t, Config{BaseDir: root})
	require.NoError(t, m.Scan(context.Background()))
	writeFile(t, root, "new.php", "y")

	counter.err = os.ErrPermission
	res, err := m.Compare(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestMonitor_CustomTokensAndRadius(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	radius := 2
	store, err := manifest.NewStore(root, manifest.WithLockDir(t.TempDir()))
	require.NoError(t, err)
	m, err := New(Config{BaseDir: root, Tokens: []string{"eval"}, Radius: &radius}, WithStore(store))
	require.NoError(t, err)
	require.NoError(t, m.Scan(context.Background()))

	writeFile(t, root, "bad.php", "x = 1; eval($code); exec('ls');")
	res, err := m.Compare(context.Background())
	require.NoError(t, err)

	warnings := res.Diff.Created["bad.php"].Warnings
	require.Len(t, warnings, 1)
	assert.Equal(t, "eval", warnings[0].Token)
	assert.Equal(t, "...; eval($...", warnings[0].Context)
}

func TestMonitor_WithClock(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := manifest.NewStore(root, manifest.WithLockDir(t.TempDir()))
	require.NoError(t, err)
	m, err := New(Config{BaseDir: root}, WithStore(store), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	require.NoError(t, m.Scan(context.Background()))

	res, err := m.Compare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed, res.Checked)
}

func TestMonitor_ScanMissingRoot(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "missing")

	m, _ := newTestMonitor(t, Config{BaseDir: root})
	err := m.Scan(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, Uninitialized, m.State())
}

func TestMonitor_ContextCancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")

	m, _ := newTestMonitor(t, Config{BaseDir: root})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Scan(ctx), context.Canceled)
}

func TestMonitor_ConcurrentScans(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "index.php", "x")
	lockDir := t.TempDir()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := manifest.NewStore(root, manifest.WithLockDir(lockDir))
			if err != nil {
				errs <- err
				return
			}
			m, err := New(Config{BaseDir: root}, WithStore(store))
			if err != nil {
				errs <- err
				return
			}
			errs <- m.Scan(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	store, err := manifest.NewStore(root)
	require.NoError(t, err)
	man, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, man.Len())
}

func TestIsImplicit(t *testing.T) {
	t.Parallel()

	for _, rule := range []string{ImplicitExclude, ImplicitExcludeTemp, ImplicitInclude} {
		assert.True(t, IsImplicit(rule), rule)
	}
	for _, rule := range append(append([]string{}, DefaultExclude...), DefaultInclude...) {
		assert.False(t, IsImplicit(rule), rule)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "baseline", Baseline.String())
	assert.Equal(t, "checked", Checked.String())
	assert.Equal(t, "unknown", State(42).String())
}
