package manifest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

// ErrNotFound is returned when no manifest has been written yet.
var ErrNotFound = errors.New("manifest not found")

// lockRetryDelay is how often a blocked lock acquisition is retried.
const lockRetryDelay = 50 * time.Millisecond

// Store reads and writes the manifest file of one monitored root.
// Writes are atomic: data goes to a temp file in the same directory, is
// synced, and then renamed over the manifest.
type Store struct {
	dir      string
	path     string
	lockPath string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLockDir places the lock file in dir instead of the default
// $XDG_STATE_HOME/warden/locks.
func WithLockDir(dir string) StoreOption {
	return func(s *Store) {
		s.lockPath = filepath.Join(dir, lockName(s.dir))
	}
}

// NewStore creates a store for the manifest inside root.
// The lock file lives outside root so the monitored tree only ever gains
// the manifest file itself.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if root == "" {
		return nil, errors.New("manifest root cannot be empty")
	}
	dir, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest root: %w", err)
	}

	s := &Store{
		dir:  dir,
		path: filepath.Join(dir, FileName),
	}
	s.lockPath = filepath.Join(DefaultLockDir(), lockName(dir))

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultLockDir returns $XDG_STATE_HOME/warden/locks.
func DefaultLockDir() string {
	return filepath.Join(xdg.StateHome, "warden", "locks")
}

// lockName derives a stable lock file name from the absolute root.
func lockName(dir string) string {
	sum := md5.Sum([]byte(dir))
	return hex.EncodeToString(sum[:]) + ".lock"
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the lock file path.
func (s *Store) LockPath() string {
	return s.lockPath
}

// Exists reports whether a manifest file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat manifest: %w", err)
}

// Load reads the manifest. It returns ErrNotFound if none exists.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return m, nil
}

// Save writes m atomically, replacing any previous manifest.
func (s *Store) Save(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, TempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Cleanup temp file unless the rename succeeded.
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	tmp = nil
	return nil
}

// Exclusive runs fn while holding the store lock exclusively.
// Use it around a walk that ends in Save.
func (s *Store) Exclusive(ctx context.Context, fn func() error) error {
	return s.withLock(ctx, true, fn)
}

// Shared runs fn while holding the store lock in shared mode.
// Use it around a walk that ends in Load.
func (s *Store) Shared(ctx context.Context, fn func() error) error {
	return s.withLock(ctx, false, fn)
}

func (s *Store) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(s.lockPath)

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", s.lockPath, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s", s.lockPath)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}
