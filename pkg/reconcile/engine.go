package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/batchtree"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

const defaultLedgerTimeout = 30 * time.Second

// Engine is safe for concurrent use; it keeps no state between calls.
type Engine struct {
	store         certificate.RecordStore
	ledger        certificate.LedgerGateway
	log           zerolog.Logger
	recorder      Recorder
	ledgerTimeout time.Duration
}

type Option func(*Engine)

// WithLogger sets the logger used for outcome and diagnostic events.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger.With().Str("component", "reconcile").Logger()
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithLedgerTimeout bounds every individual ledger call.
func WithLedgerTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.ledgerTimeout = timeout
		}
	}
}

// NewEngine creates a new Engine.
func NewEngine(
	store certificate.RecordStore,
	ledger certificate.LedgerGateway,
	options ...Option,
) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}

	engine := &Engine{
		store:         store,
		ledger:        ledger,
		log:           zerolog.Nop(),
		recorder:      noopRecorder{},
		ledgerTimeout: defaultLedgerTimeout,
	}
	for _, option := range options {
		option(engine)
	}

	return engine, nil
}

// Classify hashes uploaded and classifies it against the record store and the
// ledger. Ledger failures are reported through the outcome; only record store
// failures are returned as errors.
func (e *Engine) Classify(
	ctx context.Context,
	uploaded []byte,
	scope certificate.Scope,
) (certificate.Outcome, error) {
	return e.ClassifyDigest(ctx, digest.Compute(uploaded), scope)
}

// ClassifyDigest classifies an already computed content digest.
func (e *Engine) ClassifyDigest(
	ctx context.Context,
	hash digest.Digest,
	scope certificate.Scope,
) (certificate.Outcome, error) {
	record, err := e.store.FindByHash(ctx, hash, scope)
	if err != nil {
		return certificate.Outcome{}, fmt.Errorf("failed to look up certificate record: %w", err)
	}

	var outcome certificate.Outcome
	if record == nil {
		outcome = certificate.Outcome{
			Reason:   certificate.ReasonNotFound,
			Evidence: certificate.Evidence{ProvidedHash: hash},
		}
	} else {
		switch record.Kind {
		case certificate.KindSingle:
			outcome = e.classifySingle(ctx, hash, *record)
		case certificate.KindBatch:
			outcome, err = e.classifyBatch(ctx, hash, *record)
			if err != nil {
				return certificate.Outcome{}, err
			}
		default:
			return certificate.Outcome{}, fmt.Errorf("record for %s has unknown kind %q", hash, record.Kind)
		}
	}

	e.report(scope, outcome)
	return outcome, nil
}

func (e *Engine) classifySingle(
	ctx context.Context,
	hash digest.Digest,
	record certificate.Record,
) certificate.Outcome {
	outcome := certificate.Outcome{
		Kind:     certificate.KindSingle,
		Evidence: recordEvidence(hash, record),
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()

	onChain, err := e.ledger.GetCertificate(ledgerCtx, record.CertID)
	switch {
	case errors.Is(err, certificate.ErrNotFound):
		outcome.Reason = certificate.ReasonNotAnchored
		outcome.Evidence.Detail = "certificate record exists locally but the ledger has no such certificate"
		return outcome
	case err != nil:
		outcome.Reason = certificate.ReasonLedgerError
		outcome.Evidence.Detail = err.Error()
		return outcome
	}

	ledgerHash := onChain.Hash
	outcome.Evidence.LedgerHash = &ledgerHash
	if onChain.Issuer != "" {
		outcome.Evidence.Issuer = onChain.Issuer
	}
	if !onChain.IssuedAt.IsZero() {
		issuedAt := onChain.IssuedAt
		outcome.Evidence.IssuedAt = &issuedAt
	}
	if onChain.HolderID != "" {
		outcome.Evidence.HolderID = onChain.HolderID
	}

	if onChain.Hash != hash {
		outcome.Reason = certificate.ReasonTampered
		outcome.Evidence.Detail = "ledger hash for the referenced certificate differs from the uploaded content"
		return outcome
	}

	outcome.Verified = true
	outcome.Reason = certificate.ReasonVerified
	return outcome
}

func (e *Engine) classifyBatch(
	ctx context.Context,
	hash digest.Digest,
	record certificate.Record,
) (certificate.Outcome, error) {
	outcome := certificate.Outcome{
		Kind:     certificate.KindBatch,
		Evidence: recordEvidence(hash, record),
	}
	storedRoot := record.BatchRoot
	outcome.Evidence.StoredRoot = &storedRoot

	leaves, err := e.store.FindLeavesByBatch(ctx, record.Scope, record.BatchID)
	if err != nil {
		return certificate.Outcome{}, fmt.Errorf("failed to load leaves of batch %s: %w", record.BatchID, err)
	}

	tree, err := batchtree.Build(leaves)
	if err != nil {
		outcome.Reason = certificate.ReasonRootMismatch
		outcome.Evidence.Detail = fmt.Sprintf("stored leaves of batch cannot be rebuilt: %v", err)
		return outcome, nil
	}
	computedRoot := tree.Root
	outcome.Evidence.ComputedRoot = &computedRoot
	if computedRoot != record.BatchRoot {
		outcome.Reason = certificate.ReasonRootMismatch
		outcome.Evidence.Detail = fmt.Sprintf(
			"%d stored leaves recompute to a different root; local leaf set is incomplete or corrupted",
			tree.Len(),
		)
		return outcome, nil
	}

	if len(record.Proof) == 0 && tree.Len() > 1 {
		outcome.Reason = certificate.ReasonPartialBatchMissingProof
		outcome.Evidence.Detail = "record is part of a batch but its membership proof was not stored"
		return outcome, nil
	}

	localOK := batchtree.Verify(hash, record.Proof, computedRoot)
	outcome.Evidence.LocalProofOK = &localOK

	ledgerCtx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()

	ledgerOK, err := e.ledger.VerifyBatchMembership(ledgerCtx, hash, record.BatchID, record.Proof)
	switch {
	case errors.Is(err, certificate.ErrNotFound):
		outcome.Reason = certificate.ReasonNotAnchored
		outcome.Evidence.Detail = fmt.Sprintf("batch record exists locally but the ledger has no root for batch %s", record.BatchID)
		return outcome, nil
	case err != nil:
		outcome.Reason = certificate.ReasonLedgerError
		outcome.Evidence.Detail = err.Error()
		return outcome, nil
	}
	outcome.Evidence.LedgerProofOK = &ledgerOK

	if localOK && ledgerOK {
		outcome.Verified = true
		outcome.Reason = certificate.ReasonVerified
		return outcome, nil
	}

	outcome.Reason = certificate.ReasonTampered
	outcome.Evidence.Detail = fmt.Sprintf(
		"membership not attested (local proof %t, ledger proof %t)",
		localOK,
		ledgerOK,
	)
	return outcome, nil
}

func recordEvidence(hash digest.Digest, record certificate.Record) certificate.Evidence {
	evidence := certificate.Evidence{
		ProvidedHash: hash,
		CertID:       record.CertID,
		BatchID:      record.BatchID,
		HolderID:     record.HolderID,
		Issuer:       record.Issuer,
		TxRef:        record.TxRef,
	}
	if len(record.Proof) > 0 {
		evidence.Proof = append([]digest.Digest(nil), record.Proof...)
	}
	if !record.IssuedAt.IsZero() {
		issuedAt := record.IssuedAt
		evidence.IssuedAt = &issuedAt
	}
	return evidence
}

func (e *Engine) report(scope certificate.Scope, outcome certificate.Outcome) {
	e.recorder.ObserveOutcome(outcome)

	event := e.log.Info()
	switch {
	case outcome.Reason.IntegrityAlert():
		event = e.log.Error()
	case outcome.Reason == certificate.ReasonLedgerError:
		event = e.log.Warn()
	}

	event.
		Str("scope", scope.String()).
		Str("hash", outcome.Evidence.ProvidedHash.Hex()).
		Str("kind", string(outcome.Kind)).
		Str("reason", string(outcome.Reason)).
		Bool("verified", outcome.Verified).
		Str("detail", outcome.Evidence.Detail).
		Msg("document classified")
}
