// Package digest implements the content hash shared by every part of the
// certificate SDK. A Digest is the Keccak-256 hash of the exact bytes of a
// document; no whitespace, encoding or metadata normalization is applied, so
// verification must be given the literal bytes that were issued.
//
// The same hash function is used for single-document certificates, for batch
// leaves and for the sorted-pair combine step of batch Merkle trees.
//
// # Boundary Encoding
//
// Digests are rendered as 64 lowercase hex characters. The ledger boundary
// uses the 0x-prefixed form; Parse accepts both.
//
//	d := digest.Compute(fileBytes)
//	fmt.Println(d.Hex())         // 64 hex characters
//	fmt.Println(d.PrefixedHex()) // 0x + 64 hex characters
//
// This package is part of the Hashgraph Online Certificate SDK for Go.
package digest
