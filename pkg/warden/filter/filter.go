package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard is the only special character in a rule pattern.
const Wildcard = "*"

// Compiled holds the file and directory predicates built from a rule list.
// A nil predicate means the rule list had no patterns of that kind, which is
// different from a predicate that matches nothing.
type Compiled struct {
	mode  Mode
	files *regexp.Regexp
	dirs  *regexp.Regexp
}

// Compile partitions rules by kind and builds one anchored alternation
// expression per kind. The mode decides the answer for a kind without any
// patterns: Include accepts everything, Exclude rejects nothing.
func Compile(rules []Rule, mode Mode) (*Compiled, error) {
	var filePatterns, dirPatterns []string
	for _, r := range rules {
		switch r.Kind {
		case KindFile:
			filePatterns = append(filePatterns, r.Pattern)
		case KindDir:
			dirPatterns = append(dirPatterns, r.Pattern)
		default:
			return nil, fmt.Errorf("%w: %q: unknown kind", ErrInvalidRule, r.String())
		}
	}

	files, err := compilePatterns(filePatterns)
	if err != nil {
		return nil, err
	}
	dirs, err := compilePatterns(dirPatterns)
	if err != nil {
		return nil, err
	}

	return &Compiled{
		mode:  mode,
		files: files,
		dirs:  dirs,
	}, nil
}

// MustCompile is like Compile but panics on error.
// It is intended for package-level defaults.
func MustCompile(rules []Rule, mode Mode) *Compiled {
	c, err := Compile(rules, mode)
	if err != nil {
		panic(err)
	}
	return c
}

// compilePatterns joins translated patterns into ^(?:a|b)$.
// It returns nil for an empty list.
func compilePatterns(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	parts := make([]string, len(patterns))
	for i, p := range patterns {
		parts[i] = Translate(p)
	}
	re, err := regexp.Compile(`(?s)^(?:` + strings.Join(parts, "|") + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return re, nil
}

// Translate converts a rule pattern to an unanchored regular expression.
// Literal segments are quoted and each wildcard becomes ".*".
func Translate(pattern string) string {
	segments := strings.Split(pattern, Wildcard)
	for i, s := range segments {
		segments[i] = regexp.QuoteMeta(s)
	}
	return strings.Join(segments, ".*")
}

// HasFiles reports whether any file patterns were compiled.
func (c *Compiled) HasFiles() bool {
	return c.files != nil
}

// HasDirs reports whether any directory patterns were compiled.
func (c *Compiled) HasDirs() bool {
	return c.dirs != nil
}

// MatchFile reports whether a file base name matches the filter.
func (c *Compiled) MatchFile(name string) bool {
	return c.match(c.files, name)
}

// MatchDir reports whether a directory base name matches the filter.
func (c *Compiled) MatchDir(name string) bool {
	return c.match(c.dirs, name)
}

// Match evaluates the directory predicate for directories and the file
// predicate for everything else.
func (c *Compiled) Match(name string, isDir bool) bool {
	if isDir {
		return c.MatchDir(name)
	}
	return c.MatchFile(name)
}

func (c *Compiled) match(re *regexp.Regexp, name string) bool {
	if re == nil {
		return c.mode == Include
	}
	return re.MatchString(name)
}
