package certificate

import (
	"time"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

// Reason is the closed set of verification results.
type Reason string

const (
	ReasonVerified Reason = "verified"
	// ReasonNotFound: no record exists for the uploaded hash in the scope.
	ReasonNotFound Reason = "not_found"
	// ReasonTampered: the ledger does not attest the uploaded content.
	ReasonTampered Reason = "tampered"
	// ReasonRootMismatch: the locally stored leaf set of the batch no longer
	// reproduces its root. A data-integrity alert, not a verdict on the file.
	ReasonRootMismatch Reason = "root_mismatch"
	// ReasonPartialBatchMissingProof: the record belongs to a batch but its
	// membership proof was never stored.
	ReasonPartialBatchMissingProof Reason = "partial_batch_missing_proof"
	// ReasonLedgerError: the ledger could not be reached. Retryable.
	ReasonLedgerError Reason = "ledger_error"
	// ReasonNotAnchored: a local single record points at a certificate the
	// ledger does not know.
	ReasonNotAnchored Reason = "not_anchored"
)

var reasons = []Reason{
	ReasonVerified,
	ReasonNotFound,
	ReasonTampered,
	ReasonRootMismatch,
	ReasonPartialBatchMissingProof,
	ReasonLedgerError,
	ReasonNotAnchored,
}

// Reasons lists every Reason value.
func Reasons() []Reason {
	result := make([]Reason, len(reasons))
	copy(result, reasons)
	return result
}

// Valid reports whether r belongs to the closed set.
func (r Reason) Valid() bool {
	for _, known := range reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Retryable reports whether asking again later may change the result.
func (r Reason) Retryable() bool {
	return r == ReasonLedgerError
}

// IntegrityAlert reports whether the result points at local data corruption
// that needs manual reconciliation.
func (r Reason) IntegrityAlert() bool {
	return r == ReasonRootMismatch || r == ReasonPartialBatchMissingProof
}

// Evidence carries diagnostic detail for an Outcome. Fields are filled as far
// as classification got.
type Evidence struct {
	ProvidedHash  digest.Digest   `json:"provided_hash"`
	CertID        string          `json:"cert_id,omitempty"`
	BatchID       string          `json:"batch_id,omitempty"`
	StoredRoot    *digest.Digest  `json:"stored_root,omitempty"`
	ComputedRoot  *digest.Digest  `json:"computed_root,omitempty"`
	LedgerHash    *digest.Digest  `json:"ledger_hash,omitempty"`
	Proof         []digest.Digest `json:"proof,omitempty"`
	LocalProofOK  *bool           `json:"local_proof_ok,omitempty"`
	LedgerProofOK *bool           `json:"ledger_proof_ok,omitempty"`
	HolderID      string          `json:"holder_id,omitempty"`
	Issuer        string          `json:"issuer,omitempty"`
	IssuedAt      *time.Time      `json:"issued_at,omitempty"`
	TxRef         string          `json:"tx_ref,omitempty"`
	Detail        string          `json:"detail,omitempty"`
}

type Outcome struct {
	Kind     Kind     `json:"kind,omitempty"`
	Verified bool     `json:"verified"`
	Reason   Reason   `json:"reason"`
	Evidence Evidence `json:"evidence"`
}
