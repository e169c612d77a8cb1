package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/warden/pkg/warden/manifest"
)

// Entry is a file accepted by the filters.
type Entry struct {
	// Path is relative to the root, slash separated.
	Path string

	// Record holds the file metadata. Record.Path equals Path.
	Record manifest.Record
}

// Stats counts what a walk visited.
type Stats struct {
	DirsVisited  int64
	FilesYielded int64
	Skipped      int64
}

// Scanner walks a tree using fastwalk and applies the include and exclude
// filters to every entry below the root.
type Scanner struct {
	opts Options
	root string

	dirsVisited  atomic.Int64
	filesYielded atomic.Int64
	skipped      atomic.Int64

	// mu serializes callbacks, fastwalk may invoke the walk function
	// from several workers.
	mu      sync.Mutex
	walkErr error
}

// New creates a new Scanner with the given options.
// Options are validated and defaults are applied.
func New(opts Options) *Scanner {
	_ = opts.Validate()
	return &Scanner{opts: opts}
}

// Stats returns counters for the most recent walk.
func (s *Scanner) Stats() Stats {
	return Stats{
		DirsVisited:  s.dirsVisited.Load(),
		FilesYielded: s.filesYielded.Load(),
		Skipped:      s.skipped.Load(),
	}
}

// Walk calls fn for every accepted file, in lexical order within each
// directory. Directories are descended into only when accepted and are
// never passed to fn. Any read or stat error aborts the walk and is
// returned, as is any error returned by fn.
func (s *Scanner) Walk(ctx context.Context, fn func(Entry) error) error {
	root, err := s.validateRoot()
	if err != nil {
		return err
	}
	s.root = root
	s.reset()
	s.dirsVisited.Add(1)

	conf := fastwalk.Config{
		Follow:     false,
		Sort:       fastwalk.SortLexical,
		NumWorkers: s.opts.Workers,
	}

	err = fastwalk.Walk(&conf, root, s.walkCallback(ctx, fn))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.walkErr != nil {
		return s.walkErr
	}
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

// Records walks the tree and collects every accepted file by path.
func (s *Scanner) Records(ctx context.Context) (map[string]manifest.Record, error) {
	records := make(map[string]manifest.Record)
	err := s.Walk(ctx, func(e Entry) error {
		records[e.Path] = e.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Scanner) reset() {
	s.dirsVisited.Store(0)
	s.filesYielded.Store(0)
	s.skipped.Store(0)
	s.walkErr = nil
}

// validateRoot resolves the root path to absolute and verifies it is a directory.
func (s *Scanner) validateRoot() (string, error) {
	if s.opts.Root == "" {
		return "", errors.New("scan root cannot be empty")
	}
	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", root, os.ErrInvalid)
	}
	return root, nil
}

// walkCallback returns the callback function for fastwalk.Walk.
func (s *Scanner) walkCallback(ctx context.Context, fn func(Entry) error) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		// A previous callback already failed; drain the remaining workers.
		if s.walkErr != nil {
			return s.walkErr
		}

		if err != nil {
			return s.fail(fmt.Errorf("reading %s: %w", path, err))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.fail(ctxErr)
		}

		if path == s.root {
			return nil
		}

		isDir, isFile, err := s.classify(path, d)
		if err != nil {
			return s.fail(err)
		}
		if !isDir && !isFile {
			s.skipped.Add(1)
			return nil
		}

		if !s.accept(d.Name(), isDir) {
			s.skipped.Add(1)
			if isDir {
				return fastwalk.SkipDir
			}
			return nil
		}

		if isDir {
			s.dirsVisited.Add(1)
			return nil
		}

		entry, err := s.buildEntry(path, d)
		if err != nil {
			return s.fail(err)
		}
		s.filesYielded.Add(1)
		if err := fn(entry); err != nil {
			return s.fail(err)
		}
		return nil
	}
}

// accept applies the combined predicate: not excluded and included.
func (s *Scanner) accept(name string, isDir bool) bool {
	excluded := s.opts.Exclude.Match(name, isDir)
	included := s.opts.Include.Match(name, isDir)
	return !excluded && included
}

// classify reports whether the entry is a directory or a regular file.
// Symlinks count as files when they point at a regular file; directory
// symlinks are not followed.
func (s *Scanner) classify(path string, d fs.DirEntry) (isDir, isFile bool, err error) {
	switch {
	case d.IsDir():
		return true, false, nil
	case d.Type().IsRegular():
		return false, true, nil
	case d.Type()&fs.ModeSymlink != 0:
		info, statErr := os.Stat(path)
		if statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				// Dangling link, nothing to track.
				return false, false, nil
			}
			return false, false, fmt.Errorf("stat %s: %w", path, statErr)
		}
		return false, info.Mode().IsRegular(), nil
	default:
		return false, false, nil
	}
}

// buildEntry stats an accepted file and derives its relative path.
func (s *Scanner) buildEntry(path string, d fs.DirEntry) (Entry, error) {
	var (
		info fs.FileInfo
		err  error
	)
	if d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
	} else {
		info, err = d.Info()
	}
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return Entry{}, err
	}
	rel = filepath.ToSlash(rel)

	return Entry{
		Path: rel,
		Record: manifest.Record{
			Path:     rel,
			Modified: info.ModTime().Unix(),
			Size:     info.Size(),
		},
	}, nil
}

// fail records the first error. Must be called with s.mu held.
func (s *Scanner) fail(err error) error {
	if s.walkErr == nil {
		s.walkErr = err
	}
	return s.walkErr
}
