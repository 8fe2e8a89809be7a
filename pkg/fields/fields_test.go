package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r, err := New(Field{ID: 8700, Name: "Aussentemperatur"}, Field{ID: 8740, Name: "Raumtemperatur 1"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	name, err := r.DisplayName(8740)
	require.NoError(t, err)
	assert.Equal(t, "Raumtemperatur 1", name)

	f, ok := r.Get(8700)
	assert.True(t, ok)
	assert.Equal(t, "Aussentemperatur", f.Name)

	_, err = r.DisplayName(1)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := New(Field{ID: 1, Name: "a"}, Field{ID: 1, Name: "b"})
	assert.Error(t, err)
}
