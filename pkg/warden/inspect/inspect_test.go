package inspect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Boundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"after space", "foo exec(x); bar", 1},
		{"inside word", "unexec(x)", 0},
		{"after semicolon", "a;exec(x)", 1},
		{"start of content", "exec(x)", 1},
		{"after paren", "(exec(x))", 0},
		{"after tab collapsed to space", "foo\texec(x)", 1},
		{"after newline collapsed to space", "<?php\nexec('ls');", 1},
		{"no hit", "echo 1;", 0},
		{"twice", "exec(a); exec(b)", 2},
		{"case sensitive", "foo EXEC(x)", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Scan(tt.content, []string{"exec"}, DefaultRadius)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestScan_RejectedOccurrenceDoesNotHideLaterOne(t *testing.T) {
	t.Parallel()

	got := Scan("unexec(); exec()", []string{"exec"}, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].Offset)
	assert.Equal(t, "...exec...", got[0].Context)
}

func TestScan_CursorAdvancesPastMatch(t *testing.T) {
	t.Parallel()

	// Overlapping occurrences are not reported twice.
	got := Scan("aaaa", []string{"aa"}, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Offset)
}

func TestScan_ContextWindow(t *testing.T) {
	t.Parallel()

	t.Run("clipped both sides", func(t *testing.T) {
		t.Parallel()
		got := Scan("0123456789 exec 0123456789", []string{"exec"}, 3)
		require.Len(t, got, 1)
		assert.Equal(t, 11, got[0].Offset)
		assert.Equal(t, "...89 exec 01...", got[0].Context)
	})

	t.Run("fits whole content", func(t *testing.T) {
		t.Parallel()
		got := Scan("a exec b", []string{"exec"}, DefaultRadius)
		require.Len(t, got, 1)
		assert.Equal(t, "a exec b", got[0].Context)
	})

	t.Run("touching start", func(t *testing.T) {
		t.Parallel()
		got := Scan("exec 0123456789", []string{"exec"}, 2)
		require.Len(t, got, 1)
		assert.Equal(t, "exec 0...", got[0].Context)
	})

	t.Run("touching end", func(t *testing.T) {
		t.Parallel()
		got := Scan("0123456789 exec", []string{"exec"}, 2)
		require.Len(t, got, 1)
		assert.Equal(t, "...9 exec", got[0].Context)
	})

	t.Run("zero radius", func(t *testing.T) {
		t.Parallel()
		got := Scan("x exec y", []string{"exec"}, 0)
		require.Len(t, got, 1)
		assert.Equal(t, "...exec...", got[0].Context)
	})

	t.Run("negative radius", func(t *testing.T) {
		t.Parallel()
		got := Scan("x exec y", []string{"exec"}, -5)
		require.Len(t, got, 1)
		assert.Equal(t, "...exec...", got[0].Context)
	})
}

func TestScan_OffsetsCountCharacters(t *testing.T) {
	t.Parallel()

	// "é" is two bytes but one character.
	got := Scan("café exec()", []string{"exec"}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Offset)
	assert.Equal(t, "... exec(...", got[0].Context)
}

func TestScan_OffsetsAfterCollapse(t *testing.T) {
	t.Parallel()

	got := Scan("a   \n\t  exec()", []string{"exec"}, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Offset)
}

func TestScan_TokensIndependent(t *testing.T) {
	t.Parallel()

	content := "mkdir('x'); chmod('x', 0777); mkdir('y');"
	got := Scan(content, []string{"chmod", "mkdir"}, DefaultRadius)
	require.Len(t, got, 3)

	// Hits are grouped by token in token order.
	assert.Equal(t, "chmod", got[0].Token)
	assert.Equal(t, "mkdir", got[1].Token)
	assert.Equal(t, "mkdir", got[2].Token)
	assert.Less(t, got[1].Offset, got[2].Offset)
}

func TestScan_EmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Scan("", DefaultTokens, DefaultRadius))
	assert.Empty(t, Scan("exec()", nil, DefaultRadius))
	assert.Empty(t, Scan("exec()", []string{""}, DefaultRadius))
}

func TestScan_LiteralToken(t *testing.T) {
	t.Parallel()

	got := Scan("x = $GLOBALS['a'];", []string{"$GLOBAL"}, DefaultRadius)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Offset)
}

func TestCollapse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a b", "a b"},
		{"a \t\n b", "a b"},
		{"  lead", " lead"},
		{"trail\n\n", "trail "},
		{"a\r\nb", "a b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Collapse(tt.in), "input %q", tt.in)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	i := New()
	assert.Equal(t, DefaultTokens, i.Tokens())
	assert.Equal(t, DefaultRadius, i.Radius())

	// Returned slices are copies.
	i.Tokens()[0] = "changed"
	assert.Equal(t, "exec", i.Tokens()[0])
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	i := New(WithTokens("eval", "", "system"), WithRadius(-1))
	assert.Equal(t, []string{"eval", "system"}, i.Tokens())
	assert.Equal(t, 0, i.Radius())
	assert.Equal(t, "exec", DefaultTokens[0])

	got := i.Inspect("x eval($y); system('z')")
	require.Len(t, got, 2)
	assert.Equal(t, "eval", got[0].Token)
	assert.Equal(t, "system", got[1].Token)
}

func TestInspector_InspectFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "shell.php")
	content := "<?php\n" + strings.Repeat("// filler\n", 5) + "base64_decode($_POST['x']);\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := New().InspectFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "base64_decode", got[0].Token)
	assert.True(t, strings.HasPrefix(got[0].Context, Ellipsis))

	_, err = New().InspectFile(filepath.Join(dir, "missing.php"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
