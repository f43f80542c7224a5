package certificate

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

type Kind string

const (
	KindSingle Kind = "single"
	KindBatch  Kind = "batch"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindSingle || k == KindBatch
}

// Scope is the normalized institute key every record and lookup is
// partitioned by.
type Scope string

// NewScope normalizes an institute name into a Scope.
func NewScope(institute string) (Scope, error) {
	normalized := strings.ToLower(strings.TrimSpace(institute))
	normalized = strings.Join(strings.Fields(normalized), "_")
	if normalized == "" {
		return "", fmt.Errorf("%w: institute is required", ErrInvalidInput)
	}
	if strings.ContainsRune(normalized, 0) {
		return "", fmt.Errorf("%w: institute contains a NUL byte", ErrInvalidInput)
	}
	return Scope(normalized), nil
}

func (s Scope) String() string {
	return string(s)
}

// HolderID renders the ledger-facing holder identity, regdNo@institute.
func HolderID(externalID string, scope Scope) string {
	return fmt.Sprintf("%s@%s", strings.TrimSpace(externalID), scope)
}

// DocumentLeaf is one document of a batch. ExternalID is unique within the
// batch and is the canonical sort key of the tree.
type DocumentLeaf struct {
	ExternalID  string        `json:"external_id"`
	ContentHash digest.Digest `json:"content_hash"`
}

type MerkleBatch struct {
	BatchID       string         `json:"batch_id"`
	Root          digest.Digest  `json:"root"`
	OrderedLeaves []DocumentLeaf `json:"ordered_leaves"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Record is the persisted metadata of one issued certificate. Records are
// written once at issuance and never mutated.
type Record struct {
	Scope      Scope         `json:"scope"`
	DocHash    digest.Digest `json:"doc_hash"`
	Kind       Kind          `json:"kind"`
	HolderID   string        `json:"holder_id"`
	ExternalID string        `json:"external_id"`

	// single
	CertID string `json:"cert_id,omitempty"`

	// batch
	BatchID   string          `json:"batch_id,omitempty"`
	BatchRoot digest.Digest   `json:"batch_root"`
	Proof     []digest.Digest `json:"proof,omitempty"`

	Issuer   string    `json:"issuer"`
	IssuedAt time.Time `json:"issued_at"`
	TxRef    string    `json:"tx_ref"`

	FileName string `json:"file_name,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
	Category string `json:"category,omitempty"`
}

// Leaf returns the batch leaf this record contributes.
func (r Record) Leaf() DocumentLeaf {
	return DocumentLeaf{ExternalID: r.ExternalID, ContentHash: r.DocHash}
}

// Validate checks the fields required for the record's kind.
func (r Record) Validate() error {
	if strings.TrimSpace(string(r.Scope)) == "" {
		return fmt.Errorf("%w: record scope is required", ErrInvalidInput)
	}
	if r.DocHash.IsZero() {
		return fmt.Errorf("%w: record doc hash is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.TxRef) == "" {
		return fmt.Errorf("%w: record tx ref is required", ErrInvalidInput)
	}
	if strings.ContainsRune(r.HolderID, 0) {
		return fmt.Errorf("%w: holder ID must not contain NUL bytes", ErrInvalidInput)
	}

	switch r.Kind {
	case KindSingle:
		if strings.TrimSpace(r.CertID) == "" {
			return fmt.Errorf("%w: single record requires cert ID", ErrInvalidInput)
		}
	case KindBatch:
		if strings.TrimSpace(r.BatchID) == "" {
			return fmt.Errorf("%w: batch record requires batch ID", ErrInvalidInput)
		}
		if strings.TrimSpace(r.ExternalID) == "" {
			return fmt.Errorf("%w: batch record requires external ID", ErrInvalidInput)
		}
		if strings.ContainsRune(r.BatchID, 0) || strings.ContainsRune(r.ExternalID, 0) {
			return fmt.Errorf("%w: batch identifiers must not contain NUL bytes", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown record kind %q", ErrInvalidInput, r.Kind)
	}

	return nil
}
