// Package vespa is the root of a document-store toolkit built around
// bucket-based partitioning of the hashed document-key space.
//
// The interesting pieces live in the subpackages:
//
//   - bucket: the bucket identifier value type, key→bucket derivation and
//     the trie containment test
//   - bucketdb: the in-memory bucket database with snapshot persistence
//   - blobstore: snapshot blob storage (memory, local disk, MinIO, S3)
//
// The root package only carries shared plumbing such as logger
// construction.
package vespa
