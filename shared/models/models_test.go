package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := GenerateUUID()

	parsed, err := NewID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = NewID("not-a-uuid")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	v := NewVersion()
	assert.True(t, v.IsNew())
	assert.Equal(t, 0, v.Previous())

	v = v.Update()
	assert.False(t, v.IsNew())
	assert.Equal(t, 2, v.Value)
	assert.Equal(t, 1, v.Previous())
}

func TestTimestampsUpdate(t *testing.T) {
	ts := NewTimestamps()
	updated := ts.Update()

	assert.Equal(t, ts.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(ts.UpdatedAt))
}
