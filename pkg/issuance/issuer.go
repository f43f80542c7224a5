package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/batchtree"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

const defaultLedgerTimeout = 2 * time.Minute

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("issuer is closed")

type Issuer struct {
	store         certificate.RecordStore
	ledger        certificate.LedgerGateway
	issuerID      string
	log           zerolog.Logger
	ledgerTimeout time.Duration
	now           func() time.Time

	mu     sync.Mutex
	lanes  map[certificate.Scope]*workerpool.WorkerPool
	closed bool
}

type Option func(*Issuer)

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Issuer) {
		i.log = logger.With().Str("component", "issuance").Logger()
	}
}

// WithIssuerID sets the issuer identity written to every record, usually
// the ledger account that signs the anchor messages.
func WithIssuerID(issuerID string) Option {
	return func(i *Issuer) {
		i.issuerID = strings.TrimSpace(issuerID)
	}
}

// WithLedgerTimeout bounds every individual ledger write.
func WithLedgerTimeout(timeout time.Duration) Option {
	return func(i *Issuer) {
		if timeout > 0 {
			i.ledgerTimeout = timeout
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates a new Issuer.
func NewIssuer(store certificate.RecordStore, ledger certificate.LedgerGateway, options ...Option) (*Issuer, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}

	issuer := &Issuer{
		store:         store,
		ledger:        ledger,
		log:           zerolog.Nop(),
		ledgerTimeout: defaultLedgerTimeout,
		now:           time.Now,
		lanes:         make(map[certificate.Scope]*workerpool.WorkerPool),
	}
	for _, option := range options {
		option(issuer)
	}
	return issuer, nil
}

// IssueSingle anchors one document and persists its record. It fails with
// certificate.ErrAlreadyIssued when the scope already holds the document.
func (i *Issuer) IssueSingle(ctx context.Context, request SingleRequest) (SingleResult, error) {
	externalID := strings.TrimSpace(request.ExternalID)
	if err := validateScope(request.Scope); err != nil {
		return SingleResult{}, err
	}
	if err := validateExternalID(externalID); err != nil {
		return SingleResult{}, err
	}
	if len(request.Content) == 0 {
		return SingleResult{}, fmt.Errorf("%w: document %s is empty", certificate.ErrInvalidInput, externalID)
	}

	hash := digest.Compute(request.Content)
	holderID := certificate.HolderID(externalID, request.Scope)
	log := i.log.With().
		Str("run_id", uuid.NewString()).
		Str("scope", request.Scope.String()).
		Str("holder_id", holderID).
		Str("hash", hash.Hex()).
		Logger()

	var result SingleResult
	err := i.inLane(ctx, request.Scope, func() error {
		if err := i.ensureNotIssued(ctx, request.Scope, hash); err != nil {
			return err
		}

		ledgerCtx, cancel := context.WithTimeout(ctx, i.ledgerTimeout)
		defer cancel()

		receipt, err := i.ledger.IssueSingle(ledgerCtx, holderID, hash)
		if err != nil {
			return fmt.Errorf("failed to anchor certificate: %w", err)
		}
		log.Info().Str("cert_id", receipt.CertID).Str("tx_ref", receipt.TxRef).Msg("certificate anchored")

		record := certificate.Record{
			Scope:      request.Scope,
			DocHash:    hash,
			Kind:       certificate.KindSingle,
			HolderID:   holderID,
			ExternalID: externalID,
			CertID:     receipt.CertID,
			Issuer:     i.issuerID,
			IssuedAt:   i.now().UTC(),
			TxRef:      receipt.TxRef,
			FileName:   request.FileName,
			DocType:    request.DocType,
			Category:   request.Category,
		}
		result = SingleResult{Record: record, Receipt: receipt}

		if err := i.store.Put(context.WithoutCancel(ctx), record); err != nil {
			log.Error().Err(err).Str("cert_id", receipt.CertID).Msg("anchored certificate could not be persisted")
			return fmt.Errorf("certificate %s anchored but not persisted: %w", receipt.CertID, err)
		}
		return nil
	})
	return result, err
}

// IssueBatch builds the batch tree, anchors its root and persists one record
// per document. Documents already issued in the scope, and repeats of content
// earlier in the batch, are skipped and listed in the result. When the root
// was anchored but some records could not be persisted, the result is
// returned together with the aggregated error.
func (i *Issuer) IssueBatch(ctx context.Context, request BatchRequest) (BatchResult, error) {
	if err := validateScope(request.Scope); err != nil {
		return BatchResult{}, err
	}

	candidates, skipped, err := prepareBatch(request.Documents)
	if err != nil {
		return BatchResult{}, err
	}

	log := i.log.With().
		Str("run_id", uuid.NewString()).
		Str("scope", request.Scope.String()).
		Logger()

	result := BatchResult{Skipped: skipped}
	err = i.inLane(ctx, request.Scope, func() error {
		leaves := make([]certificate.DocumentLeaf, 0, len(candidates))
		documents := make(map[string]BatchDocument, len(candidates))
		for _, candidate := range candidates {
			existing, err := i.store.FindByHash(ctx, candidate.leaf.ContentHash, request.Scope)
			if err != nil {
				return fmt.Errorf("failed to look up certificate record: %w", err)
			}
			if existing != nil {
				log.Info().
					Str("external_id", candidate.leaf.ExternalID).
					Str("holder_id", existing.HolderID).
					Msg("document already issued, skipping")
				result.Skipped = append(result.Skipped, skip(candidate.document, candidate.leaf.ExternalID, SkipAlreadyIssued))
				continue
			}
			leaves = append(leaves, candidate.leaf)
			documents[candidate.leaf.ExternalID] = candidate.document
		}
		if len(leaves) == 0 {
			return fmt.Errorf("%w: all %d documents were skipped", certificate.ErrEmptyBatch, len(result.Skipped))
		}

		tree, err := batchtree.Build(leaves)
		if err != nil {
			return err
		}
		batchLog := log.With().Str("root", tree.Root.Hex()).Int("documents", tree.Len()).Logger()

		ledgerCtx, cancel := context.WithTimeout(ctx, i.ledgerTimeout)
		defer cancel()

		receipt, err := i.ledger.IssueBatch(ledgerCtx, tree.Root)
		if err != nil {
			return fmt.Errorf("failed to anchor batch root: %w", err)
		}
		batchLog.Info().Str("batch_id", receipt.BatchID).Str("tx_ref", receipt.TxRef).Msg("batch root anchored")

		issuedAt := i.now().UTC()
		result.Batch = tree.Batch(receipt.BatchID, issuedAt)
		result.Receipt = receipt
		result.Records = make([]certificate.Record, 0, tree.Len())

		proofs := tree.Proofs()
		var persistErr *multierror.Error
		for _, leaf := range tree.Leaves() {
			record := certificate.Record{
				Scope:      request.Scope,
				DocHash:    leaf.ContentHash,
				Kind:       certificate.KindBatch,
				HolderID:   certificate.HolderID(leaf.ExternalID, request.Scope),
				ExternalID: leaf.ExternalID,
				BatchID:    receipt.BatchID,
				BatchRoot:  tree.Root,
				Proof:      proofs[leaf.ExternalID],
				Issuer:     i.issuerID,
				IssuedAt:   issuedAt,
				TxRef:      receipt.TxRef,
				FileName:   documents[leaf.ExternalID].FileName,
				DocType:    request.DocType,
				Category:   request.Category,
			}
			if err := i.store.Put(context.WithoutCancel(ctx), record); err != nil {
				persistErr = multierror.Append(persistErr, fmt.Errorf("document %s: %w", leaf.ExternalID, err))
				continue
			}
			result.Records = append(result.Records, record)
		}

		if err := persistErr.ErrorOrNil(); err != nil {
			batchLog.Error().
				Err(err).
				Str("batch_id", receipt.BatchID).
				Int("persisted", len(result.Records)).
				Msg("anchored batch persisted partially")
			return fmt.Errorf("batch %s anchored but not fully persisted: %w", receipt.BatchID, err)
		}
		return nil
	})
	if result.Receipt.BatchID == "" {
		return BatchResult{Skipped: result.Skipped}, err
	}
	return result, err
}

// Close waits for queued writes and stops every lane.
func (i *Issuer) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	lanes := i.lanes
	i.lanes = nil
	i.mu.Unlock()

	for _, lane := range lanes {
		lane.StopWait()
	}
}

// inLane runs task on the lane of scope and waits for it. If ctx ends while
// the task is queued, the task is skipped; a task that already started is
// waited for. The caller and the lane race to claim the task, and only the
// winner decides which of the two happens.
func (i *Issuer) inLane(ctx context.Context, scope certificate.Scope, task func() error) error {
	var claimed atomic.Bool
	done := make(chan error, 1)
	err := i.submit(scope, func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- task()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
		return <-done
	}
}

// submit queues fn on the lane of scope, creating the lane on first use.
func (i *Issuer) submit(scope certificate.Scope, fn func()) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	lane, ok := i.lanes[scope]
	if !ok {
		lane = workerpool.New(1)
		i.lanes[scope] = lane
	}
	lane.Submit(fn)
	return nil
}

func (i *Issuer) ensureNotIssued(ctx context.Context, scope certificate.Scope, hash digest.Digest) error {
	existing, err := i.store.FindByHash(ctx, hash, scope)
	if err != nil {
		return fmt.Errorf("failed to look up certificate record: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s in scope %s (%s)", certificate.ErrAlreadyIssued, hash, scope, existing.HolderID)
	}
	return nil
}

func validateScope(scope certificate.Scope) error {
	if strings.TrimSpace(scope.String()) == "" {
		return fmt.Errorf("%w: scope is required", certificate.ErrInvalidInput)
	}
	return nil
}

func validateExternalID(externalID string) error {
	if externalID == "" {
		return fmt.Errorf("%w: external ID is required", certificate.ErrInvalidInput)
	}
	if strings.ContainsRune(externalID, 0) {
		return fmt.Errorf("%w: external ID must not contain NUL bytes", certificate.ErrInvalidInput)
	}
	return nil
}

type batchCandidate struct {
	leaf     certificate.DocumentLeaf
	document BatchDocument
}

// prepareBatch validates documents and hashes them. Repeated content is
// skipped after its first occurrence.
func prepareBatch(documents []BatchDocument) ([]batchCandidate, []SkippedDocument, error) {
	if len(documents) == 0 {
		return nil, nil, certificate.ErrEmptyBatch
	}

	candidates := make([]batchCandidate, 0, len(documents))
	var skipped []SkippedDocument
	byHash := make(map[digest.Digest]string, len(documents))
	for _, document := range documents {
		externalID := strings.TrimSpace(document.ExternalID)
		if err := validateExternalID(externalID); err != nil {
			return nil, nil, err
		}
		if len(document.Content) == 0 {
			return nil, nil, fmt.Errorf("%w: document %s is empty", certificate.ErrInvalidInput, externalID)
		}

		hash := digest.Compute(document.Content)
		if _, ok := byHash[hash]; ok {
			skipped = append(skipped, skip(document, externalID, SkipDuplicateContent))
			continue
		}
		byHash[hash] = externalID

		candidates = append(candidates, batchCandidate{
			leaf:     certificate.DocumentLeaf{ExternalID: externalID, ContentHash: hash},
			document: document,
		})
	}
	return candidates, skipped, nil
}

func skip(document BatchDocument, externalID, reason string) SkippedDocument {
	return SkippedDocument{ExternalID: externalID, FileName: document.FileName, Reason: reason}
}
