package bucket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory(t *testing.T) {
	f := NewFactory()
	assert.Equal(t, uint32(MaxUsedBits), f.UsedBits())

	id := f.BucketOf([]byte("id:music:song::great-hits"))
	assert.Equal(t, uint32(MaxUsedBits), id.UsedBits())
	assert.Equal(t, id, f.BucketOf([]byte("id:music:song::great-hits")), "derivation is deterministic")
	assert.NotEqual(t, id, f.BucketOf([]byte("id:music:song::other")))
}

func TestFactoryWithUsedBits(t *testing.T) {
	coarse, err := NewFactoryWithUsedBits(16)
	require.NoError(t, err)
	full := NewFactory()

	// A coarse bucket of a key contains the full-precision bucket of the
	// same key.
	for key := uint64(0); key < 64; key++ {
		assert.True(t, coarse.BucketOfKey(key).Contains(full.BucketOfKey(key)), "key %d", key)
	}

	_, err = NewFactoryWithUsedBits(MaxUsedBits + 1)
	require.Error(t, err)
	var inv *ErrInvalidUsedBits
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, uint32(MaxUsedBits+1), inv.Attempted)
}
