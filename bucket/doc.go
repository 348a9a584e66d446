// Package bucket implements the bucket identifier scheme used to partition
// the hashed document-key space.
//
// A bucket is a node in a binary trie over 64-bit document key hashes. Its
// identifier packs the trie depth ("used bits") and the bit-reversed trie
// path into a single 64-bit word, so that routing, splitting and merging
// logic can compare buckets with plain integer arithmetic. The package
// provides the identifier value type, derivation from hashed keys, the
// ancestor/descendant containment test, and the hash/serialize/format
// adapters the rest of the system builds on.
package bucket
