// Package issuance turns documents into anchored certificate records.
//
// A single document is hashed, anchored with LedgerGateway.IssueSingle and
// persisted. A batch is hashed, built into a Merkle tree in full, anchored
// with LedgerGateway.IssueBatch and persisted one record per leaf, each with
// its membership proof. Nothing is persisted before the ledger confirmed the
// write.
//
// Ledger writes are serialized per scope: every scope has one lane, and the
// next write for a scope starts only after the previous one was confirmed or
// failed. Different scopes proceed in parallel.
package issuance
