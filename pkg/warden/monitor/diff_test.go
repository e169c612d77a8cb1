package monitor

import (
	"testing"

	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyDiff(t *testing.T) {
	t.Parallel()

	d := EmptyDiff()
	assert.True(t, d.Empty())
	assert.NotNil(t, d.Created)
	assert.NotNil(t, d.Modified)
	assert.NotNil(t, d.Deleted)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, 0, d.Warnings())
	assert.Empty(t, d.Changes())
}

func TestDiff_Counts(t *testing.T) {
	t.Parallel()

	w := inspect.Warning{Token: "exec"}
	d := EmptyDiff()
	d.Created["b.php"] = Created{New: manifest.Record{Path: "b.php", Size: 1}, Warnings: []inspect.Warning{w, w}}
	d.Modified["a.php"] = Modified{Old: manifest.Record{Path: "a.php"}, New: manifest.Record{Path: "a.php", Size: 2}, Warnings: []inspect.Warning{w}}
	d.Deleted["c.php"] = Deleted{Old: manifest.Record{Path: "c.php"}}

	assert.False(t, d.Empty())
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 3, d.Warnings())

	changes := d.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, "a.php", changes[0].Path)
	assert.Equal(t, ChangeModified, changes[0].Kind)
	assert.Equal(t, int64(2), changes[0].New.Size)
	assert.Equal(t, ChangeCreated, changes[1].Kind)
	assert.Nil(t, changes[1].Old)
	assert.Len(t, changes[1].Warnings, 2)
	assert.Equal(t, ChangeDeleted, changes[2].Kind)
	assert.Nil(t, changes[2].New)
}

func TestConfigError(t *testing.T) {
	t.Parallel()

	err := &ConfigError{Field: "Radius", Reason: "must not be negative"}
	assert.Equal(t, "invalid config: Radius: must not be negative", err.Error())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, err.Unwrap())

	wrapped := &ConfigError{Field: "Include", Reason: "bad rule", Err: assert.AnError}
	assert.Contains(t, wrapped.Error(), assert.AnError.Error())
	assert.ErrorIs(t, wrapped, assert.AnError)
}
