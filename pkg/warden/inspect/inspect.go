package inspect

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Warning is one token hit within a file's content.
type Warning struct {
	// Token is the token that matched.
	Token string `json:"token" yaml:"token"`

	// Context is the text around the hit, with Ellipsis on clipped sides.
	Context string `json:"context" yaml:"context"`

	// Offset is the character offset of the hit in the whitespace-collapsed content.
	Offset int `json:"offset" yaml:"offset"`
}

// Inspector scans content with a fixed token list and radius.
type Inspector struct {
	tokens []string
	radius int
}

// Option is a functional option for configuring an Inspector.
type Option func(*Inspector)

// WithTokens sets the tokens to search for.
// Empty tokens are dropped.
func WithTokens(tokens ...string) Option {
	return func(i *Inspector) {
		i.tokens = i.tokens[:0]
		for _, tok := range tokens {
			if tok != "" {
				i.tokens = append(i.tokens, tok)
			}
		}
	}
}

// WithRadius sets the number of characters kept on each side of a hit.
// Negative values are set to 0.
func WithRadius(radius int) Option {
	return func(i *Inspector) {
		if radius < 0 {
			radius = 0
		}
		i.radius = radius
	}
}

// New creates an Inspector.
// Default values:
//   - Tokens: DefaultTokens
//   - Radius: DefaultRadius
func New(opts ...Option) *Inspector {
	i := &Inspector{
		tokens: append([]string(nil), DefaultTokens...),
		radius: DefaultRadius,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Tokens returns a copy of the configured tokens.
func (i *Inspector) Tokens() []string {
	return append([]string(nil), i.tokens...)
}

// Radius returns the configured context radius.
func (i *Inspector) Radius() int {
	return i.radius
}

// Inspect scans content with the configured tokens.
func (i *Inspector) Inspect(content string) []Warning {
	return Scan(content, i.tokens, i.radius)
}

// InspectFile reads the file at path and scans its content.
func (i *Inspector) InspectFile(path string) ([]Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return i.Inspect(string(data)), nil
}

// Scan reports every accepted occurrence of each token in content.
//
// Whitespace runs are collapsed to a single space first. Each token is then
// searched literally and case-sensitively from a cursor that always moves to
// the end of the previous occurrence. An occurrence is accepted only at the
// start of the content or right after a space or semicolon, so "exec" is
// reported in "foo exec(x)" but not in "unexec(x)". Tokens are scanned
// independently and hits are not deduplicated.
func Scan(content string, tokens []string, radius int) []Warning {
	if radius < 0 {
		radius = 0
	}

	collapsed := Collapse(content)
	text := []rune(collapsed)

	var warnings []Warning
	for _, token := range tokens {
		if token == "" {
			continue
		}
		tokenLen := utf8.RuneCountInString(token)

		// byteCursor indexes collapsed, runeCursor indexes text at the same spot.
		byteCursor, runeCursor := 0, 0
		for {
			idx := strings.Index(collapsed[byteCursor:], token)
			if idx < 0 {
				break
			}
			pos := runeCursor + utf8.RuneCountInString(collapsed[byteCursor:byteCursor+idx])

			if accepted(text, pos) {
				warnings = append(warnings, Warning{
					Token:   token,
					Context: window(text, pos, tokenLen, radius),
					Offset:  pos,
				})
			}

			byteCursor += idx + len(token)
			runeCursor = pos + tokenLen
		}
	}
	return warnings
}

// accepted reports whether the hit at pos starts the content or follows a
// space or semicolon.
func accepted(text []rune, pos int) bool {
	if pos == 0 {
		return true
	}
	prev := text[pos-1]
	return prev == ' ' || prev == ';'
}

// window returns radius characters on each side of the hit, clamped to the
// content, with Ellipsis on each side that was cut short of an edge.
func window(text []rune, pos, length, radius int) string {
	start := max(pos-radius, 0)
	end := min(pos+length+radius, len(text))

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(Ellipsis)
	}
	sb.WriteString(string(text[start:end]))
	if end < len(text) {
		sb.WriteString(Ellipsis)
	}
	return sb.String()
}

// Collapse replaces every run of whitespace with a single space.
// Leading and trailing runs are kept as one space so offsets stay aligned
// with the start of the content.
func Collapse(content string) string {
	var sb strings.Builder
	sb.Grow(len(content))

	inSpace := false
	for _, r := range content {
		if unicode.IsSpace(r) {
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}
