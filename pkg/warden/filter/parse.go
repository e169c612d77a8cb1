package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Separator splits the kind from the pattern in a rule string.
const Separator = "|"

// ErrInvalidRule indicates that a rule string could not be parsed.
var ErrInvalidRule = errors.New("invalid rule")

// ParseRule parses a rule in the form "kind|pattern".
// The kind must be "f" or "d" and the pattern must not be empty.
// Everything after the first separator is the pattern, so patterns may
// themselves contain "|".
func ParseRule(s string) (Rule, error) {
	kind, pattern, ok := strings.Cut(s, Separator)
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q: missing %q separator", ErrInvalidRule, s, Separator)
	}
	if len(kind) != 1 || !Kind(kind[0]).valid() {
		return Rule{}, fmt.Errorf("%w: %q: unknown kind %q (want f or d)", ErrInvalidRule, s, kind)
	}
	if pattern == "" {
		return Rule{}, fmt.Errorf("%w: %q: empty pattern", ErrInvalidRule, s)
	}
	return Rule{Kind: Kind(kind[0]), Pattern: pattern}, nil
}

// ParseRules parses every rule string in order.
// It stops at the first invalid rule.
func ParseRules(list []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(list))
	for _, s := range list {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// FormatRules returns the "kind|pattern" form of every rule.
func FormatRules(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}
