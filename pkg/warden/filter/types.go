// Package filter compiles include and exclude rules into name predicates
// for the warden integrity monitor. Rules are kind-tagged glob patterns in
// the form "f|*.php" (files) or "d|vendor" (directories), where "*" matches
// any sequence of characters and every other character matches literally.
package filter

// Kind specifies which filesystem entries a rule applies to.
type Kind byte

const (
	// KindFile applies a rule to regular files.
	KindFile Kind = 'f'
	// KindDir applies a rule to directories.
	KindDir Kind = 'd'
)

// Kind string constants.
const (
	kindFileName = "file"
	kindDirName  = "dir"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return kindFileName
	case KindDir:
		return kindDirName
	default:
		return "unknown"
	}
}

// valid reports whether k is a known kind.
func (k Kind) valid() bool {
	return k == KindFile || k == KindDir
}

// Rule is a single kind-tagged name pattern.
type Rule struct {
	// Kind selects files or directories.
	Kind Kind

	// Pattern is matched against the entry's base name. "*" matches any
	// sequence of characters, including the empty one.
	Pattern string
}

// String returns the rule in its "kind|pattern" form.
func (r Rule) String() string {
	return string(r.Kind) + Separator + r.Pattern
}

// Mode decides how a compiled filter answers for a kind that has no
// patterns at all.
type Mode int

const (
	// Include filters accept every entry of a kind without patterns.
	Include Mode = iota
	// Exclude filters reject nothing for a kind without patterns.
	Exclude
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == Exclude {
		return "exclude"
	}
	return "include"
}
