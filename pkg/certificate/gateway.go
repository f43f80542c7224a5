package certificate

import (
	"context"
	"time"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

type SingleReceipt struct {
	TxRef  string `json:"tx_ref"`
	CertID string `json:"cert_id"`
}

type BatchReceipt struct {
	TxRef   string `json:"tx_ref"`
	BatchID string `json:"batch_id"`
}

// LedgerCertificate is what the ledger attests for a single certificate.
type LedgerCertificate struct {
	ID       string        `json:"id"`
	HolderID string        `json:"holder_id"`
	Hash     digest.Digest `json:"hash"`
	Issuer   string        `json:"issuer"`
	IssuedAt time.Time     `json:"issued_at"`
}

// LedgerGateway is the registry that anchors certificate hashes and batch
// roots.
//
// IssueSingle and IssueBatch fail with ErrLedgerUnavailable or
// ErrLedgerRejected. GetCertificate fails with ErrNotFound or
// ErrLedgerUnavailable. VerifyBatchMembership fails with ErrNotFound when
// the batch root is not on the ledger, or with ErrLedgerUnavailable. It
// returns false only for a root that is present but not reproduced by the
// proof.
type LedgerGateway interface {
	IssueSingle(ctx context.Context, holderID string, hash digest.Digest) (SingleReceipt, error)
	IssueBatch(ctx context.Context, root digest.Digest) (BatchReceipt, error)
	GetCertificate(ctx context.Context, certID string) (LedgerCertificate, error)
	VerifyBatchMembership(ctx context.Context, leaf digest.Digest, batchID string, proof []digest.Digest) (bool, error)
}

// RecordStore persists certificate records. FindByHash returns nil, nil when
// no record exists. Put fails with ErrAlreadyExists for a hash already stored
// in the same scope.
type RecordStore interface {
	Put(ctx context.Context, record Record) error
	FindByHash(ctx context.Context, hash digest.Digest, scope Scope) (*Record, error)
	FindLeavesByBatch(ctx context.Context, scope Scope, batchID string) ([]DocumentLeaf, error)
}
