package reconcile

import (
	"context"
	"fmt"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/batchtree"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

// BatchDiagnosis explains why a batch does or does not reproduce its root.
type BatchDiagnosis struct {
	BatchID      string                     `json:"batch_id"`
	StoredRoot   digest.Digest              `json:"stored_root"`
	ComputedRoot *digest.Digest             `json:"computed_root,omitempty"`
	RootMatches  bool                       `json:"root_matches"`
	Leaves       []certificate.DocumentLeaf `json:"leaves"`
	BuildError   string                     `json:"build_error,omitempty"`

	TargetInLeaves bool            `json:"target_in_leaves"`
	StoredProof    []digest.Digest `json:"stored_proof,omitempty"`
	RebuiltProof   []digest.Digest `json:"rebuilt_proof,omitempty"`
	StoredProofOK  bool            `json:"stored_proof_ok"`
	RebuiltProofOK bool            `json:"rebuilt_proof_ok"`
}

// DiagnoseBatch inspects the batch that the document with hash belongs to.
// It reads the record store only.
func (e *Engine) DiagnoseBatch(
	ctx context.Context,
	hash digest.Digest,
	scope certificate.Scope,
) (BatchDiagnosis, error) {
	record, err := e.store.FindByHash(ctx, hash, scope)
	if err != nil {
		return BatchDiagnosis{}, fmt.Errorf("failed to look up certificate record: %w", err)
	}
	if record == nil {
		return BatchDiagnosis{}, fmt.Errorf("no record for %s: %w", hash, certificate.ErrNotFound)
	}
	if record.Kind != certificate.KindBatch {
		return BatchDiagnosis{}, fmt.Errorf("%w: record for %s was issued as %s", certificate.ErrInvalidInput, hash, record.Kind)
	}

	leaves, err := e.store.FindLeavesByBatch(ctx, scope, record.BatchID)
	if err != nil {
		return BatchDiagnosis{}, fmt.Errorf("failed to load leaves of batch %s: %w", record.BatchID, err)
	}

	diagnosis := BatchDiagnosis{
		BatchID:     record.BatchID,
		StoredRoot:  record.BatchRoot,
		Leaves:      leaves,
		StoredProof: record.Proof,
	}
	for _, leaf := range leaves {
		if leaf.ContentHash == hash {
			diagnosis.TargetInLeaves = true
			break
		}
	}

	tree, err := batchtree.Build(leaves)
	if err != nil {
		diagnosis.BuildError = err.Error()
		return diagnosis, nil
	}

	computed := tree.Root
	diagnosis.ComputedRoot = &computed
	diagnosis.RootMatches = computed == record.BatchRoot
	diagnosis.Leaves = tree.Leaves()
	diagnosis.StoredProofOK = batchtree.Verify(hash, record.Proof, record.BatchRoot)

	if rebuilt, ok := tree.Proof(record.ExternalID); ok {
		diagnosis.RebuiltProof = rebuilt
		diagnosis.RebuiltProofOK = batchtree.Verify(hash, rebuilt, computed)
	}

	e.log.Debug().
		Str("batch_id", record.BatchID).
		Int("leaves", len(leaves)).
		Bool("root_matches", diagnosis.RootMatches).
		Bool("target_in_leaves", diagnosis.TargetInLeaves).
		Msg("batch diagnosed")

	return diagnosis, nil
}
