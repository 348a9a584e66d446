package bucketdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/LokeshJonnakuti/vespa/blobstore"
	"github.com/LokeshJonnakuti/vespa/bucket"
	vhash "github.com/LokeshJonnakuti/vespa/internal/hash"
)

// Compression selects the snapshot payload codec.
type Compression uint8

const (
	// CompressionNone stores the payload verbatim.
	CompressionNone Compression = iota
	// CompressionLZ4 uses the LZ4 block format.
	CompressionLZ4
	// CompressionZstd uses zstandard.
	CompressionZstd
)

// Snapshot binary layout, all integers big-endian:
//
//	magic      uint32   'VBDB'
//	version    uint32
//	compression uint8
//	minUsedBits uint8
//	reserved   [2]byte
//	count      uint64   number of entries
//	rawLen     uint64   uncompressed payload length
//	payload    count entries of 17 bytes each, possibly compressed
//	crc        uint32   CRC32C of everything above
//
// Entries are sorted by canonical identifier, so byte-identical databases
// produce byte-identical snapshots (modulo codec).
const (
	snapshotMagic   = 0x56424442 // "VBDB"
	snapshotVersion = 1

	headerSize = 28
	entrySize  = 17

	flagActive = 1 << 0
)

var (
	// ErrBadMagic is returned for blobs that are not snapshots.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrBadVersion is returned for snapshot versions this build cannot read.
	ErrBadVersion = errors.New("snapshot: unsupported version")
	// ErrBadChecksum is returned when the snapshot bytes fail integrity
	// verification.
	ErrBadChecksum = errors.New("snapshot: checksum mismatch")
	// ErrMalformed is returned for truncated or internally inconsistent
	// snapshots.
	ErrMalformed = errors.New("snapshot: malformed")
	// ErrMinUsedBitsMismatch is returned when a snapshot was written by a
	// database with a coarser minimum precision than the loading one.
	ErrMinUsedBitsMismatch = errors.New("snapshot: min used bits mismatch")
)

// WriteSnapshot serializes the database and stores it as name.
func (db *DB) WriteSnapshot(ctx context.Context, store blobstore.Store, name string, compression Compression) error {
	db.mu.RLock()
	count := uint64(db.buckets.Size())
	payload := make([]byte, 0, count*entrySize)
	it := db.index.Iterator()
	for it.HasNext() {
		key := it.Next()
		info, ok := db.buckets.Get(key)
		if !ok {
			continue
		}
		payload = appendEntry(payload, bucket.ID(key), info)
	}
	db.mu.RUnlock()

	rawLen := uint64(len(payload))
	compressed, compression, err := compress(payload, compression)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, headerSize+len(compressed)+4)
	buf = binary.BigEndian.AppendUint32(buf, snapshotMagic)
	buf = binary.BigEndian.AppendUint32(buf, snapshotVersion)
	buf = append(buf, byte(compression), byte(db.minUsedBits), 0, 0)
	buf = binary.BigEndian.AppendUint64(buf, count)
	buf = binary.BigEndian.AppendUint64(buf, rawLen)
	buf = append(buf, compressed...)
	buf = binary.BigEndian.AppendUint32(buf, vhash.CRC32C(buf))

	if err := store.Put(ctx, name, buf); err != nil {
		return fmt.Errorf("bucketdb: write snapshot %q: %w", name, err)
	}
	db.logger.Info("snapshot written", "name", name, "buckets", count, "bytes", len(buf))
	return nil
}

// LoadSnapshot replaces the database contents with the snapshot stored as
// name. On any error the database is left unchanged.
func (db *DB) LoadSnapshot(ctx context.Context, store blobstore.Store, name string) error {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("bucketdb: open snapshot %q: %w", name, err)
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return fmt.Errorf("bucketdb: read snapshot %q: %w", name, err)
	}

	entries, err := db.decodeSnapshot(data)
	if err != nil {
		return err
	}

	db.mu.Lock()
	db.buckets.Clear()
	db.index.Clear()
	for _, e := range entries {
		key := e.ID.Canonical()
		db.buckets.Put(key, e.Info)
		db.index.Add(key)
	}
	db.mu.Unlock()

	db.logger.Info("snapshot loaded", "name", name, "buckets", len(entries))
	return nil
}

func (db *DB) decodeSnapshot(data []byte) ([]Entry, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if binary.BigEndian.Uint32(trailer) != vhash.CRC32C(body) {
		return nil, ErrBadChecksum
	}
	if binary.BigEndian.Uint32(body[0:4]) != snapshotMagic {
		return nil, ErrBadMagic
	}
	if v := binary.BigEndian.Uint32(body[4:8]); v != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	compression := Compression(body[8])
	if min := uint32(body[9]); min < db.minUsedBits {
		return nil, fmt.Errorf("%w: snapshot allows %d, database requires %d", ErrMinUsedBitsMismatch, min, db.minUsedBits)
	}
	count := binary.BigEndian.Uint64(body[12:20])
	rawLen := binary.BigEndian.Uint64(body[20:28])
	// Guard the multiplication: a wrapped product must not sneak a huge
	// count past the length check.
	if count > math.MaxUint64/entrySize || rawLen != count*entrySize {
		return nil, fmt.Errorf("%w: %d entries but %d payload bytes", ErrMalformed, count, rawLen)
	}

	payload, err := decompress(body[headerSize:], compression, rawLen)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, count)
	for off := 0; off < len(payload); off += entrySize {
		id := bucket.ID(binary.BigEndian.Uint64(payload[off : off+8]))
		if err := db.checkID(id); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, id, err)
		}
		entries = append(entries, Entry{
			ID: id,
			Info: Info{
				Documents: binary.BigEndian.Uint32(payload[off+8 : off+12]),
				Bytes:     binary.BigEndian.Uint32(payload[off+12 : off+16]),
				Active:    payload[off+16]&flagActive != 0,
			},
		})
	}
	return entries, nil
}

func appendEntry(buf []byte, id bucket.ID, info Info) []byte {
	buf = binary.BigEndian.AppendUint64(buf, id.Raw())
	buf = binary.BigEndian.AppendUint32(buf, info.Documents)
	buf = binary.BigEndian.AppendUint32(buf, info.Bytes)
	var flags byte
	if info.Active {
		flags |= flagActive
	}
	return append(buf, flags)
}

// compress encodes payload with the requested codec. Incompressible LZ4
// payloads fall back to no compression; the returned tag is what the header
// must record.
func compress(payload []byte, c Compression) ([]byte, Compression, error) {
	if len(payload) == 0 {
		return payload, CompressionNone, nil
	}

	switch c {
	case CompressionNone:
		return payload, CompressionNone, nil

	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("bucketdb: lz4 compress: %w", err)
		}
		if n == 0 || n >= len(payload) {
			return payload, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, 0, fmt.Errorf("bucketdb: zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("%w: unknown compression %d", ErrMalformed, c)
	}
}

func decompress(payload []byte, c Compression, rawLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint64(len(payload)) != rawLen {
			return nil, fmt.Errorf("%w: payload length %d, want %d", ErrMalformed, len(payload), rawLen)
		}
		return payload, nil

	case CompressionLZ4:
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrMalformed, err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: lz4 expanded to %d bytes, want %d", ErrMalformed, n, rawLen)
		}
		return dst, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("bucketdb: zstd decoder: %w", err)
		}
		defer dec.Close()
		dst, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformed, err)
		}
		if uint64(len(dst)) != rawLen {
			return nil, fmt.Errorf("%w: zstd expanded to %d bytes, want %d", ErrMalformed, len(dst), rawLen)
		}
		return dst, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrMalformed, c)
	}
}
