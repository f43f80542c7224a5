// Package certificate defines the data model, error taxonomy and collaborator
// contracts of the batch certificate integrity engine.
//
// Certificates bind the content digest of a document to an institute and a
// holder. They are issued either individually, with one ledger write per
// document, or in batches anchored by a single Merkle root with a stored
// membership proof per document.
//
// # Collaborators
//
// The engine depends on two contracts it does not implement:
//
//   - LedgerGateway, the registry that is the source of truth for issued
//     hashes and batch roots.
//   - RecordStore, the append-only store of certificate metadata.
//
// The anchor package provides a Hedera Consensus Service LedgerGateway and
// the store package a Badger RecordStore.
//
// # Outcomes
//
// Verification produces an Outcome whose Reason is one of a closed set of
// values; see Reason for the meaning of each.
//
// This package is part of the Hashgraph Online Certificate SDK for Go.
package certificate
