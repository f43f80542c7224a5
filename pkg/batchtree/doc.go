// Package batchtree builds the Merkle tree that anchors a batch of documents
// under a single ledger root and verifies per-document membership proofs.
//
// # Canonical Tree
//
// The tree is fully determined by the set of leaves:
//
//   - Leaves are ordered by external ID using byte-wise comparison, never by
//     upload order.
//   - Two nodes are combined by ordering them by byte value and hashing the
//     concatenation (sorted-pair combine), so proofs carry no direction bits.
//   - An odd trailing node is carried to the next level unchanged.
//
// Build and Verify share Combine; a proof produced by Build always verifies
// against the tree's root.
//
//	tree, err := batchtree.Build(leaves)
//	proof, _ := tree.Proof("2214134")
//	ok := batchtree.Verify(leafHash, proof, tree.Root)
//
// This package is part of the Hashgraph Online Certificate SDK for Go.
package batchtree
