package bucket

import "github.com/zeebo/xxh3"

// Factory derives bucket identifiers for new documents. It owns the choice
// of key hash (XXH3 over the document key bytes) and the precision newly
// bucketed documents get; the identifier core itself stays agnostic of both.
type Factory struct {
	usedBits uint32
}

// NewFactory creates a factory producing identifiers at full precision.
func NewFactory() Factory {
	return Factory{usedBits: MaxUsedBits}
}

// NewFactoryWithUsedBits creates a factory producing identifiers at the
// given precision.
func NewFactoryWithUsedBits(usedBits uint32) (Factory, error) {
	if usedBits > MaxUsedBits {
		return Factory{}, &ErrInvalidUsedBits{Attempted: usedBits, Max: MaxUsedBits}
	}
	return Factory{usedBits: usedBits}, nil
}

// UsedBits returns the precision of produced identifiers.
func (f Factory) UsedBits() uint32 {
	return f.usedBits
}

// BucketOf hashes the document key and returns its bucket identifier at the
// factory's precision.
func (f Factory) BucketOf(docKey []byte) ID {
	return f.BucketOfKey(xxh3.Hash(docKey))
}

// BucketOfKey returns the bucket identifier for an already hashed key at the
// factory's precision.
func (f Factory) BucketOfKey(key uint64) ID {
	// The count cannot exceed MaxUsedBits here, the constructors checked it.
	id, _ := FromKey(key).WithUsedBits(f.usedBits)
	return id
}
