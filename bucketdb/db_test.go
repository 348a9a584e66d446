package bucketdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LokeshJonnakuti/vespa/bucket"
)

func mustDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := New(opts...)
	require.NoError(t, err)
	return db
}

func TestDBUpdateGetRemove(t *testing.T) {
	db := mustDB(t)
	id := bucket.MustNew(16, 0xB57B)

	_, ok := db.Get(id)
	assert.False(t, ok)

	require.NoError(t, db.Update(id, Info{Documents: 10, Bytes: 1024}))
	info, ok := db.Get(id)
	require.True(t, ok)
	assert.Equal(t, Info{Documents: 10, Bytes: 1024}, info)
	assert.Equal(t, 1, db.Len())

	// Replacing keeps a single entry.
	require.NoError(t, db.Update(id, Info{Documents: 11, Bytes: 2048, Active: true}))
	info, _ = db.Get(id)
	assert.Equal(t, uint32(11), info.Documents)
	assert.Equal(t, 1, db.Len())

	assert.True(t, db.Remove(id))
	assert.False(t, db.Remove(id))
	assert.Equal(t, 0, db.Len())
}

// Don't-care bits above the used count must not create duplicate buckets.
func TestDBKeyedByCanonical(t *testing.T) {
	db := mustDB(t)
	canonical := bucket.MustNew(16, 0xB57B)
	dirty := bucket.ID(canonical.Raw() | 0xF0000)

	require.NoError(t, db.Update(canonical, Info{Documents: 1}))
	require.NoError(t, db.Update(dirty, Info{Documents: 2}))

	assert.Equal(t, 1, db.Len())
	info, ok := db.Get(canonical)
	require.True(t, ok)
	assert.Equal(t, uint32(2), info.Documents)
}

func TestDBRejectsInvalidIDs(t *testing.T) {
	db := mustDB(t, WithMinUsedBits(8))

	err := db.Update(bucket.MustNew(4, 0xF), Info{})
	assert.ErrorIs(t, err, ErrTooCoarse)

	// A raw value with a count above the maximum never passed validation.
	garbage := bucket.ID(uint64(63) << bucket.MaxUsedBits)
	err = db.Update(garbage, Info{})
	var inv *bucket.ErrInvalidUsedBits
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, uint32(63), inv.Attempted)

	_, err = New(WithMinUsedBits(bucket.MaxUsedBits + 1))
	assert.Error(t, err)
}

// Get and Remove accept identifiers straight out of FromKey, whose count
// field carries the key's low bits and can exceed the maximum. Anything the
// database could never store is a plain miss.
func TestDBGetRemoveUnvalidatedID(t *testing.T) {
	db := mustDB(t, WithMinUsedBits(8))

	raw := bucket.FromKey(0x3F)
	require.Equal(t, uint32(63), raw.UsedBits())
	_, ok := db.Get(raw)
	assert.False(t, ok)
	assert.False(t, db.Remove(raw))

	coarse := bucket.MustNew(4, raw.Raw())
	_, ok = db.Get(coarse)
	assert.False(t, ok)
	assert.False(t, db.Remove(coarse))

	// The same location at a storable precision still resolves.
	id := bucket.MustNew(16, raw.Raw())
	require.NoError(t, db.Update(id, Info{Documents: 1}))
	_, ok = db.Get(id)
	assert.True(t, ok)
	assert.True(t, db.Remove(id))
}

func TestDBParentsAndRoute(t *testing.T) {
	db := mustDB(t)

	full := bucket.MustNew(bucket.MaxUsedBits, bucket.FromKey(0xDEADBEEFCAFEBABE).Raw())
	a8 := bucket.MustNew(8, full.Raw())
	a16 := bucket.MustNew(16, full.Raw())
	a20 := bucket.MustNew(20, full.Raw())
	sibling := bucket.MustNew(16, full.Raw()^1<<15)

	require.NoError(t, db.Update(a8, Info{Documents: 800}))
	require.NoError(t, db.Update(a16, Info{Documents: 160}))
	require.NoError(t, db.Update(a20, Info{Documents: 20}))
	require.NoError(t, db.Update(sibling, Info{Documents: 999}))

	parents := db.GetParents(full)
	require.Len(t, parents, 3)
	assert.Equal(t, a8, parents[0].ID, "coarsest first")
	assert.Equal(t, a16, parents[1].ID)
	assert.Equal(t, a20, parents[2].ID)
	for _, p := range parents {
		assert.True(t, p.ID.Contains(full), "%s must contain %s", p.ID, full)
	}

	entry, ok := db.Route(full)
	require.True(t, ok)
	assert.Equal(t, a20, entry.ID, "route resolves to the deepest split")
	assert.Equal(t, uint32(20), entry.Info.Documents)

	// The sibling subtree routes to its own bucket, not to a20.
	entry, ok = db.Route(bucket.MustNew(bucket.MaxUsedBits, sibling.Raw()))
	require.True(t, ok)
	assert.Equal(t, sibling, entry.ID)

	// Nothing stored above an unrelated subtree.
	unrelated := bucket.MustNew(bucket.MaxUsedBits, full.Raw()^0xFF)
	_, ok = db.Route(unrelated)
	assert.False(t, ok)
	assert.Empty(t, db.GetParents(unrelated))
}

func TestDBAscendOrdered(t *testing.T) {
	db := mustDB(t)
	ids := []bucket.ID{
		bucket.MustNew(20, 0xDB57B),
		bucket.MustNew(8, 0x7B),
		bucket.MustNew(16, 0xB57B),
	}
	for i, id := range ids {
		require.NoError(t, db.Update(id, Info{Documents: uint32(i)}))
	}

	var walked []bucket.ID
	db.Ascend(func(e Entry) bool {
		walked = append(walked, e.ID)
		return true
	})
	require.Len(t, walked, 3)
	for i := 1; i < len(walked); i++ {
		assert.Less(t, walked[i-1].Raw(), walked[i].Raw(), "ascending canonical order")
	}

	// Early stop.
	walked = walked[:0]
	db.Ascend(func(e Entry) bool {
		walked = append(walked, e.ID)
		return false
	})
	assert.Len(t, walked, 1)
}

func TestDBFactoryIntegration(t *testing.T) {
	db := mustDB(t)
	coarse, err := bucket.NewFactoryWithUsedBits(12)
	require.NoError(t, err)
	full := bucket.NewFactory()

	docs := [][]byte{
		[]byte("id:music:song::a"),
		[]byte("id:music:song::b"),
		[]byte("id:music:song::c"),
	}
	for _, doc := range docs {
		require.NoError(t, db.Update(coarse.BucketOf(doc), Info{Documents: 1}))
	}

	// Every document's full-precision bucket routes to the stored coarse
	// bucket it was placed in.
	for _, doc := range docs {
		entry, ok := db.Route(full.BucketOf(doc))
		require.True(t, ok, "doc %s", doc)
		assert.Equal(t, coarse.BucketOf(doc), entry.ID)
	}
}
