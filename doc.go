// The Certificate SDK for Go issues and verifies tamper-evident document
// certificates anchored on the Hedera Consensus Service. Documents are
// issued one at a time or in batches that share a single Merkle root, and
// uploaded copies are classified against the local record store and the
// ledger.
//
// # Packages
//
//   - digest: Keccak-256 content hashing and hex encoding
//   - batchtree: sorted-pair Merkle trees, membership proofs and verification
//   - certificate: data model, ledger and record store contracts, outcomes
//   - reconcile: verification engine and batch diagnostics
//   - issuance: single and batch issuance with per-institute write lanes
//   - anchor: consensus topic ledger gateway
//   - store: Badger record store
//   - intake: bulk document collection from ZIP archives and directories
//   - mirror: mirror node REST client
//   - shared: network and operator configuration
//
// The certanchor command under cmd/ wires these together.
//
// # Installation
//
//	go get github.com/hashgraph-online/certificate-sdk-go@latest
package certificate_sdk_go
