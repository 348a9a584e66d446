package bucket

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Space namespaces bucket identifiers. Document types declared global live
// in a different space than default documents, so the same ID value can
// exist independently in both.
type Space uint64

const (
	// DefaultSpace holds regular documents.
	DefaultSpace Space = 1
	// GlobalSpace holds globally distributed documents.
	GlobalSpace Space = 2
)

// Valid reports whether the space is one of the defined spaces.
func (s Space) Valid() bool {
	return s == DefaultSpace || s == GlobalSpace
}

func (s Space) String() string {
	return fmt.Sprintf("BucketSpace(0x%016X)", uint64(s))
}

// Bucket pairs a bucket identifier with the space it lives in. This is the
// unit the routing layer operates on.
type Bucket struct {
	space Space
	id    ID
}

// NewBucket creates a bucket in the given space.
func NewBucket(space Space, id ID) Bucket {
	return Bucket{space: space, id: id}
}

// Space returns the bucket space.
func (b Bucket) Space() Space { return b.space }

// ID returns the bucket identifier.
func (b Bucket) ID() ID { return b.id }

// Sum64 returns an XXH3 hash over the space and raw identifier, for
// in-memory indexing.
func (b Bucket) Sum64() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(b.space))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b.id))
	return xxh3.Hash(buf[:])
}

func (b Bucket) String() string {
	return fmt.Sprintf("Bucket(%s, %s)", b.space, b.id)
}
