// Package bucketdb keeps the per-node bucket database: which buckets exist,
// how much data they hold, and which stored bucket a document's
// full-precision bucket falls under. It answers pure queries only; deciding
// when to split, merge or move buckets belongs to the layers above.
package bucketdb

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/EinfachAndy/hashmaps"
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/LokeshJonnakuti/vespa/bucket"
)

// ErrTooCoarse is returned when a bucket has fewer used bits than the
// database minimum.
var ErrTooCoarse = errors.New("bucket is coarser than the database minimum")

// Info is the bookkeeping the database tracks per bucket.
type Info struct {
	// Documents is the number of documents stored in the bucket.
	Documents uint32
	// Bytes is the stored size of the bucket.
	Bytes uint32
	// Active marks the replica that serves reads for the bucket.
	Active bool
}

// Entry pairs a bucket identifier with its info.
type Entry struct {
	ID   bucket.ID
	Info Info
}

// DB is an in-memory bucket database. Buckets are keyed by their canonical
// identifier; don't-care location bits never produce duplicate entries.
// Thread-safe.
type DB struct {
	mu      sync.RWMutex
	buckets *hashmaps.RobinHood[uint64, Info]
	// index mirrors the map keys in sorted order for deterministic
	// iteration and snapshots.
	index *roaring64.Bitmap

	logger      *slog.Logger
	minUsedBits uint32
}

// New creates an empty bucket database.
func New(opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MinUsedBits > bucket.MaxUsedBits {
		return nil, &bucket.ErrInvalidUsedBits{Attempted: o.MinUsedBits, Max: bucket.MaxUsedBits}
	}

	// Sum64 is the identifier's own hash; the map just narrows it.
	m := hashmaps.NewRobinHoodWithHasher[uint64, Info](func(raw uint64) uintptr {
		return uintptr(bucket.ID(raw).Sum64())
	})
	if o.InitialCapacity > 0 {
		m.Reserve(uintptr(o.InitialCapacity))
	}

	return &DB{
		buckets:     m,
		index:       roaring64.New(),
		logger:      o.Logger,
		minUsedBits: o.MinUsedBits,
	}, nil
}

// MinUsedBits returns the coarsest precision the database accepts.
func (db *DB) MinUsedBits() uint32 {
	return db.minUsedBits
}

// checkID validates that id can live in this database.
func (db *DB) checkID(id bucket.ID) error {
	used := id.UsedBits()
	if used > bucket.MaxUsedBits {
		return &bucket.ErrInvalidUsedBits{Attempted: used, Max: bucket.MaxUsedBits}
	}
	if used < db.minUsedBits {
		return ErrTooCoarse
	}
	return nil
}

// Update inserts or replaces the info for a bucket.
func (db *DB) Update(id bucket.ID, info Info) error {
	if err := db.checkID(id); err != nil {
		return err
	}
	key := id.Canonical()

	db.mu.Lock()
	inserted := db.buckets.Put(key, info)
	db.index.Add(key)
	db.mu.Unlock()

	if inserted {
		db.logger.Debug("bucket created", "bucket", id, "documents", info.Documents, "bytes", info.Bytes)
	}
	return nil
}

// Get returns the info for a bucket. Identifiers the database would not
// accept (see Update) are a plain miss.
func (db *DB) Get(id bucket.ID) (Info, bool) {
	if db.checkID(id) != nil {
		return Info{}, false
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.buckets.Get(id.Canonical())
}

// Remove deletes a bucket and reports whether it existed. Identifiers the
// database would not accept are a plain miss.
func (db *DB) Remove(id bucket.ID) bool {
	if db.checkID(id) != nil {
		return false
	}
	key := id.Canonical()

	db.mu.Lock()
	removed := db.buckets.Remove(key)
	db.index.Remove(key)
	db.mu.Unlock()

	if removed {
		db.logger.Debug("bucket removed", "bucket", id)
	}
	return removed
}

// Len returns the number of stored buckets.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.buckets.Size()
}

// Ascend walks all buckets in ascending canonical order (coarse splits
// first). The walk stops when fn returns false.
func (db *DB) Ascend(fn func(Entry) bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	it := db.index.Iterator()
	for it.HasNext() {
		key := it.Next()
		info, ok := db.buckets.Get(key)
		if !ok {
			continue
		}
		if !fn(Entry{ID: bucket.ID(key), Info: info}) {
			return
		}
	}
}

// GetParents returns the stored buckets that contain id, coarsest first.
// The id itself is included when stored.
func (db *DB) GetParents(id bucket.ID) []Entry {
	used := id.UsedBits()
	if used > bucket.MaxUsedBits {
		used = bucket.MaxUsedBits
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	var parents []Entry
	for n := db.minUsedBits; n <= used; n++ {
		reduced, err := id.WithUsedBits(n)
		if err != nil {
			break
		}
		if info, ok := db.buckets.Get(reduced.Canonical()); ok {
			parents = append(parents, Entry{ID: reduced, Info: info})
		}
	}
	return parents
}

// Route returns the deepest stored bucket containing id. This is the lookup
// the routing layer performs for every document operation: the document's
// full-precision bucket resolves to the currently stored split level.
func (db *DB) Route(id bucket.ID) (Entry, bool) {
	used := id.UsedBits()
	if used > bucket.MaxUsedBits {
		used = bucket.MaxUsedBits
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	for n := int(used); n >= int(db.minUsedBits); n-- {
		reduced, err := id.WithUsedBits(uint32(n))
		if err != nil {
			continue
		}
		if info, ok := db.buckets.Get(reduced.Canonical()); ok {
			return Entry{ID: reduced, Info: info}, true
		}
	}
	return Entry{}, false
}

// Clear removes all buckets.
func (db *DB) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.buckets.Clear()
	db.index.Clear()
}
