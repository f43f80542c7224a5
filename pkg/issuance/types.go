package issuance

import (
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
)

// Reasons a batch document is skipped.
const (
	SkipAlreadyIssued    = "already issued"
	SkipDuplicateContent = "duplicate content"
)

type SingleRequest struct {
	Scope      certificate.Scope
	ExternalID string
	Content    []byte
	FileName   string
	DocType    string
	Category   string
}

type BatchDocument struct {
	ExternalID string
	Content    []byte
	FileName   string
}

type BatchRequest struct {
	Scope     certificate.Scope
	Documents []BatchDocument
	DocType   string
	Category  string
}

type SingleResult struct {
	Record  certificate.Record
	Receipt certificate.SingleReceipt
}

type SkippedDocument struct {
	ExternalID string `json:"external_id"`
	FileName   string `json:"file,omitempty"`
	Reason     string `json:"reason"`
}

// BatchResult is returned whenever the ledger confirmed the batch root, even
// if persisting some records failed afterwards. Skipped is filled even when
// the batch fails.
type BatchResult struct {
	Batch   certificate.MerkleBatch
	Receipt certificate.BatchReceipt
	Records []certificate.Record
	Skipped []SkippedDocument
}
