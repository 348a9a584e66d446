package bucket

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// ID identifies a bucket in the binary split trie over hashed document keys.
//
// Format: [used-bits count:6][location:58]
//
//	→ count field in the top CountBits bits, 0..MaxUsedBits
//	→ location field in the low MaxUsedBits bits, holding the bit-reversed
//	  document key; only the low UsedBits() bits of it are significant
//
// Location bits above the used count are caller-managed don't-care bits:
// they are kept verbatim and only masked away by Canonical and Contains.
// Plain == therefore compares the full raw pattern, not the reduced
// (usedBits, path) pair.
type ID uint64

const (
	// CountBits is the width of the used-bits count field.
	CountBits = 6
	// MaxUsedBits is the largest valid used-bits count and the width of the
	// location field.
	MaxUsedBits = 64 - CountBits

	// countMask covers the count field in the top CountBits bits. It is the
	// constant term folded into every strip mask.
	countMask = (^uint64(0) >> MaxUsedBits) << MaxUsedBits
)

// Mask tables indexed by used-bits count. Package variable initialization
// runs exactly once before any other code in the process touches the
// package, with happens-before visibility for all goroutines, so the tables
// are plain reads everywhere else.
var (
	usedMasks  = fillUsedMasks()
	stripMasks = fillStripMasks()
)

// fillUsedMasks builds masks with the low n bits set. Index 0 is the
// "use everything" sentinel with all bits set; the shift pair (rather than a
// single right shift) keeps the n == 0 case from shifting by the word width.
func fillUsedMasks() [MaxUsedBits + 1]uint64 {
	var masks [MaxUsedBits + 1]uint64
	for n := 0; n <= MaxUsedBits; n++ {
		notused := 64 - uint(n)
		if n > 0 {
			masks[n] = (^uint64(0) << notused) >> notused
		} else {
			masks[n] = ^uint64(0)
		}
	}
	return masks
}

// fillStripMasks builds masks that keep the used portion of the location
// field plus the entire count field.
func fillStripMasks() [MaxUsedBits + 1]uint64 {
	var masks [MaxUsedBits + 1]uint64
	used := fillUsedMasks()
	for n := 0; n <= MaxUsedBits; n++ {
		masks[n] = used[n] | countMask
	}
	return masks
}

// ErrInvalidUsedBits reports a used-bits count above MaxUsedBits.
//
// This is the only fallible operation in the package. The count may come
// from external input (wire messages, persisted state), so it surfaces as a
// recoverable error rather than a panic.
type ErrInvalidUsedBits struct {
	Attempted uint32
	Max       uint32
}

func (e *ErrInvalidUsedBits) Error() string {
	return fmt.Sprintf("failed to set used bits to %d, max is %d", e.Attempted, e.Max)
}

// New creates an ID with the given used-bits count over the raw value.
// Location bits of raw above usedBits are cleared and the count field is
// overwritten.
func New(usedBits uint32, raw uint64) (ID, error) {
	return ID(raw).WithUsedBits(usedBits)
}

// MustNew is like New but panics on an invalid used-bits count. Intended for
// fixed literals and tests.
func MustNew(usedBits uint32, raw uint64) ID {
	id, err := New(usedBits, raw)
	if err != nil {
		panic(err)
	}
	return id
}

// UsedBits returns the used-bits count stored in the count field.
func (id ID) UsedBits() uint32 {
	return uint32(id >> MaxUsedBits)
}

// Raw returns the full 64-bit value including any don't-care location bits.
func (id ID) Raw() uint64 {
	return uint64(id)
}

// Canonical returns the value with don't-care location bits cleared, keeping
// the count field and the used portion of the location field. This is the
// form Contains compares.
//
// The stored count must not exceed MaxUsedBits; values that never went
// through New/WithUsedBits (e.g. straight out of FromKey) may violate that.
func (id ID) Canonical() uint64 {
	return uint64(id) & stripMasks[id.UsedBits()]
}

// WithoutCountBits returns the location field alone, masked to the used-bits
// count.
func (id ID) WithoutCountBits() uint64 {
	return uint64(id) & usedMasks[id.UsedBits()]
}

// WithUsedBits returns a copy reduced (or raised) to the given used-bits
// count: location bits above the count are cleared and the count field is
// replaced. Reduction models a merge to a coarser bucket and is idempotent.
//
// A count of 0 keeps the raw value untouched: usedMasks[0] is the
// all-bits-set sentinel and the count term is zero.
func (id ID) WithUsedBits(usedBits uint32) (ID, error) {
	if usedBits > MaxUsedBits {
		return 0, &ErrInvalidUsedBits{Attempted: usedBits, Max: MaxUsedBits}
	}
	raw := uint64(id) & usedMasks[usedBits]
	raw |= uint64(usedBits) << MaxUsedBits
	return ID(raw), nil
}

// FromKey derives an ID from a 64-bit hashed document key. The location
// field is the bit-reversed key, so walking the trie from the root consumes
// the low bits of the original hash first and fans out uniformly at shallow
// depths regardless of bit-quality skew in the high bits.
//
// The count field is seeded from key << MaxUsedBits, i.e. the key's low
// CountBits bits land in the count field un-reversed. Callers that want the
// canonical full-precision identifier must follow up with
// WithUsedBits(MaxUsedBits).
func FromKey(key uint64) ID {
	raw := reverse(key)

	usedCountMSB := key << MaxUsedBits
	raw <<= CountBits
	raw >>= CountBits
	raw |= usedCountMSB

	return ID(raw)
}

// Contains reports whether other identifies the same bucket as id or a
// deeper split of it. A candidate with fewer used bits can never be a
// refinement, so it fails the precision guard without any value comparison;
// otherwise the candidate is reduced to id's precision and the canonical
// values are compared exactly.
func (id ID) Contains(other ID) bool {
	if other.UsedBits() < id.UsedBits() {
		return false
	}
	reduced, err := other.WithUsedBits(id.UsedBits())
	if err != nil {
		return false
	}
	return reduced.Canonical() == id.Canonical()
}

// Sum64 returns an XXH3 hash of the raw value's little-endian bytes, for
// in-memory set/map indexing. Not stable across library versions; do not
// persist.
func (id ID) Sum64() uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return xxh3.Hash(buf[:])
}

// MarshalBinary encodes the raw value as 8 bytes in network byte order.
// There is no header and no self-describing precision; the used-bits count
// travels inside the value.
func (id ID) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf, nil
}

// UnmarshalBinary decodes an ID previously encoded with MarshalBinary.
func (id *ID) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("bucket: invalid encoded length %d, want 8", len(data))
	}
	*id = ID(binary.BigEndian.Uint64(data))
	return nil
}

// String renders the full raw value, regardless of the used-bits count.
func (id ID) String() string {
	return fmt.Sprintf("BucketId(0x%016X)", uint64(id))
}
