package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/batchtree"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

const testScope = certificate.Scope("iitk")

type fakeStore struct {
	mu      sync.Mutex
	records map[digest.Digest]certificate.Record
	leaves  map[string][]certificate.DocumentLeaf
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[digest.Digest]certificate.Record{},
		leaves:  map[string][]certificate.DocumentLeaf{},
	}
}

func (s *fakeStore) Put(_ context.Context, record certificate.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.DocHash] = record
	if record.Kind == certificate.KindBatch {
		s.leaves[record.BatchID] = append(s.leaves[record.BatchID], record.Leaf())
	}
	return nil
}

func (s *fakeStore) FindByHash(_ context.Context, hash digest.Digest, scope certificate.Scope) (*certificate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[hash]
	if !ok || record.Scope != scope {
		return nil, nil
	}
	return &record, nil
}

func (s *fakeStore) FindLeavesByBatch(_ context.Context, _ certificate.Scope, batchID string) ([]certificate.DocumentLeaf, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]certificate.DocumentLeaf(nil), s.leaves[batchID]...), nil
}

type fakeLedger struct {
	certificates map[string]certificate.LedgerCertificate
	roots        map[string]digest.Digest
	getErr       error
	membership   *bool
	membershipEr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		certificates: map[string]certificate.LedgerCertificate{},
		roots:        map[string]digest.Digest{},
	}
}

func (l *fakeLedger) IssueSingle(context.Context, string, digest.Digest) (certificate.SingleReceipt, error) {
	return certificate.SingleReceipt{}, errors.New("not used")
}

func (l *fakeLedger) IssueBatch(context.Context, digest.Digest) (certificate.BatchReceipt, error) {
	return certificate.BatchReceipt{}, errors.New("not used")
}

func (l *fakeLedger) GetCertificate(_ context.Context, certID string) (certificate.LedgerCertificate, error) {
	if l.getErr != nil {
		return certificate.LedgerCertificate{}, l.getErr
	}
	cert, ok := l.certificates[certID]
	if !ok {
		return certificate.LedgerCertificate{}, certificate.ErrNotFound
	}
	return cert, nil
}

func (l *fakeLedger) VerifyBatchMembership(
	_ context.Context,
	leaf digest.Digest,
	batchID string,
	proof []digest.Digest,
) (bool, error) {
	if l.membershipEr != nil {
		return false, l.membershipEr
	}
	if l.membership != nil {
		return *l.membership, nil
	}
	root, ok := l.roots[batchID]
	if !ok {
		return false, fmt.Errorf("%w: batch %s", certificate.ErrNotFound, batchID)
	}
	return batchtree.Verify(leaf, proof, root), nil
}

func newTestEngine(t *testing.T, store *fakeStore, ledger *fakeLedger, options ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(store, ledger, options...)
	require.NoError(t, err)
	return engine
}

func issueSingle(store *fakeStore, ledger *fakeLedger, content []byte, certID string) {
	hash := digest.Compute(content)
	ledger.certificates[certID] = certificate.LedgerCertificate{
		ID:       certID,
		HolderID: "2214134@iitk",
		Hash:     hash,
		Issuer:   "0.0.1001",
		IssuedAt: time.Unix(1700000000, 0).UTC(),
	}
	_ = store.Put(context.Background(), certificate.Record{
		Scope:    testScope,
		DocHash:  hash,
		Kind:     certificate.KindSingle,
		HolderID: "2214134@iitk",
		CertID:   certID,
		Issuer:   "iitk",
		IssuedAt: time.Unix(1700000000, 0).UTC(),
		TxRef:    "0.0.1001@1700000000.000000001",
	})
}

// issueBatch stores every document of contents as one batch and returns the
// tree that was anchored.
func issueBatch(t *testing.T, store *fakeStore, ledger *fakeLedger, batchID string, contents map[string][]byte) *batchtree.Tree {
	t.Helper()
	leaves := make([]certificate.DocumentLeaf, 0, len(contents))
	for externalID, content := range contents {
		leaves = append(leaves, certificate.DocumentLeaf{ExternalID: externalID, ContentHash: digest.Compute(content)})
	}
	tree, err := batchtree.Build(leaves)
	require.NoError(t, err)
	ledger.roots[batchID] = tree.Root

	for _, leaf := range tree.Leaves() {
		proof, _ := tree.Proof(leaf.ExternalID)
		require.NoError(t, store.Put(context.Background(), certificate.Record{
			Scope:      testScope,
			DocHash:    leaf.ContentHash,
			Kind:       certificate.KindBatch,
			HolderID:   certificate.HolderID(leaf.ExternalID, testScope),
			ExternalID: leaf.ExternalID,
			BatchID:    batchID,
			BatchRoot:  tree.Root,
			Proof:      proof,
			Issuer:     "iitk",
			IssuedAt:   time.Unix(1700000000, 0).UTC(),
			TxRef:      "0.0.1001@1700000001.000000001",
		}))
	}
	return tree
}

func batchContents(count int) map[string][]byte {
	contents := make(map[string][]byte, count)
	for index := 0; index < count; index++ {
		contents[fmt.Sprintf("%07d", 2214100+index)] = []byte(fmt.Sprintf("transcript %d", index))
	}
	return contents
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(nil, newFakeLedger())
	assert.Error(t, err)
	_, err = NewEngine(newFakeStore(), nil)
	assert.Error(t, err)
}

func TestClassifyNotFound(t *testing.T) {
	engine := newTestEngine(t, newFakeStore(), newFakeLedger())

	outcome, err := engine.Classify(context.Background(), []byte("never issued"), testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonNotFound, outcome.Reason)
	assert.False(t, outcome.Verified)
	assert.Equal(t, digest.Compute([]byte("never issued")), outcome.Evidence.ProvidedHash)
}

func TestClassifyOtherScopeIsNotFound(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	issueSingle(store, ledger, []byte("degree"), "1")
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), []byte("degree"), certificate.Scope("nitw"))
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonNotFound, outcome.Reason)
}

func TestClassifySingleVerified(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	issueSingle(store, ledger, []byte("degree"), "7")
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), []byte("degree"), testScope)
	require.NoError(t, err)
	assert.True(t, outcome.Verified)
	assert.Equal(t, certificate.KindSingle, outcome.Kind)
	assert.Equal(t, certificate.ReasonVerified, outcome.Reason)
	assert.Equal(t, "7", outcome.Evidence.CertID)
	assert.Equal(t, "0.0.1001", outcome.Evidence.Issuer)
	require.NotNil(t, outcome.Evidence.LedgerHash)
	assert.Equal(t, digest.Compute([]byte("degree")), *outcome.Evidence.LedgerHash)
}

func TestClassifySingleTampered(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	issueSingle(store, ledger, []byte("degree"), "7")
	cert := ledger.certificates["7"]
	cert.Hash = digest.Compute([]byte("something else"))
	ledger.certificates["7"] = cert
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), []byte("degree"), testScope)
	require.NoError(t, err)
	assert.False(t, outcome.Verified)
	assert.Equal(t, certificate.ReasonTampered, outcome.Reason)
}

func TestClassifySingleLedgerUnavailableIsNeverTampered(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	issueSingle(store, ledger, []byte("degree"), "7")
	ledger.getErr = fmt.Errorf("mirror node request failed: %w", certificate.ErrLedgerUnavailable)
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), []byte("degree"), testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonLedgerError, outcome.Reason)
	assert.True(t, outcome.Reason.Retryable())
	assert.False(t, outcome.Verified)
}

func TestClassifySingleNotAnchored(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	issueSingle(store, ledger, []byte("degree"), "7")
	delete(ledger.certificates, "7")
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), []byte("degree"), testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonNotAnchored, outcome.Reason)
}

func TestClassifyBatchVerified(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(5)
	tree := issueBatch(t, store, ledger, "3", contents)
	engine := newTestEngine(t, store, ledger)

	for externalID, content := range contents {
		outcome, err := engine.Classify(context.Background(), content, testScope)
		require.NoError(t, err)
		assert.True(t, outcome.Verified, externalID)
		assert.Equal(t, certificate.KindBatch, outcome.Kind)
		assert.Equal(t, certificate.ReasonVerified, outcome.Reason)
		require.NotNil(t, outcome.Evidence.ComputedRoot)
		assert.Equal(t, tree.Root, *outcome.Evidence.ComputedRoot)
	}
}

func TestClassifySingletonBatchWithEmptyProof(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	issueBatch(t, store, ledger, "9", map[string][]byte{"2214134": []byte("only one")})
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), []byte("only one"), testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonVerified, outcome.Reason)
}

func TestClassifyBatchRootMismatch(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(4)
	issueBatch(t, store, ledger, "3", contents)

	// lose one leaf of the batch locally
	store.leaves["3"] = store.leaves["3"][1:]
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), contents["2214103"], testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonRootMismatch, outcome.Reason)
	assert.NotEqual(t, certificate.ReasonTampered, outcome.Reason)
	assert.True(t, outcome.Reason.IntegrityAlert())
	require.NotNil(t, outcome.Evidence.StoredRoot)
	require.NotNil(t, outcome.Evidence.ComputedRoot)
	assert.NotEqual(t, *outcome.Evidence.StoredRoot, *outcome.Evidence.ComputedRoot)
}

func TestClassifyBatchWithNoStoredLeaves(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(2)
	issueBatch(t, store, ledger, "3", contents)
	delete(store.leaves, "3")
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), contents["2214100"], testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonRootMismatch, outcome.Reason)
}

func TestClassifyBatchMissingProof(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(3)
	issueBatch(t, store, ledger, "3", contents)

	hash := digest.Compute(contents["2214101"])
	record := store.records[hash]
	record.Proof = nil
	store.records[hash] = record
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), contents["2214101"], testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonPartialBatchMissingProof, outcome.Reason)
	assert.False(t, outcome.Verified)
}

func TestClassifyBatchLedgerError(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(3)
	issueBatch(t, store, ledger, "3", contents)
	ledger.membershipEr = certificate.ErrLedgerUnavailable
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), contents["2214100"], testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonLedgerError, outcome.Reason)
	require.NotNil(t, outcome.Evidence.LocalProofOK)
	assert.True(t, *outcome.Evidence.LocalProofOK)
}

func TestClassifyBatchRootNotYetOnLedger(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(3)
	issueBatch(t, store, ledger, "3", contents)
	delete(ledger.roots, "3")
	engine := newTestEngine(t, store, ledger)

	for externalID, content := range contents {
		outcome, err := engine.Classify(context.Background(), content, testScope)
		require.NoError(t, err)
		assert.Equal(t, certificate.ReasonNotAnchored, outcome.Reason, externalID)
		assert.False(t, outcome.Reason.IntegrityAlert(), externalID)
		assert.False(t, outcome.Verified, externalID)
		require.NotNil(t, outcome.Evidence.LocalProofOK)
		assert.True(t, *outcome.Evidence.LocalProofOK)
		assert.Nil(t, outcome.Evidence.LedgerProofOK)
	}
}

func TestClassifyBatchLedgerDisagrees(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(3)
	issueBatch(t, store, ledger, "3", contents)
	disagree := false
	ledger.membership = &disagree
	engine := newTestEngine(t, store, ledger)

	outcome, err := engine.Classify(context.Background(), contents["2214102"], testScope)
	require.NoError(t, err)
	assert.Equal(t, certificate.ReasonTampered, outcome.Reason)
	require.NotNil(t, outcome.Evidence.LedgerProofOK)
	assert.False(t, *outcome.Evidence.LedgerProofOK)
}

func TestClassifyStoreErrorIsReturned(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("disk gone")
	engine := newTestEngine(t, store, newFakeLedger())

	_, err := engine.Classify(context.Background(), []byte("x"), testScope)
	assert.Error(t, err)
}

func TestClassifyRecordsAndLogs(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(3)
	issueBatch(t, store, ledger, "3", contents)
	store.leaves["3"] = store.leaves["3"][:1]

	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusRecorder(registry)
	require.NoError(t, err)

	var logs bytes.Buffer
	engine := newTestEngine(t, store, ledger,
		WithRecorder(recorder),
		WithLogger(zerolog.New(&logs)),
		WithLedgerTimeout(time.Second),
	)

	_, err = engine.Classify(context.Background(), contents["2214100"], testScope)
	require.NoError(t, err)
	_, err = engine.Classify(context.Background(), []byte("unknown"), testScope)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.outcomes.WithLabelValues("batch", "root_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.outcomes.WithLabelValues("", "not_found")))

	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), `"reason":"root_mismatch"`)
	assert.Contains(t, logs.String(), `"component":"reconcile"`)
}

func TestDiagnoseBatch(t *testing.T) {
	store, ledger := newFakeStore(), newFakeLedger()
	contents := batchContents(4)
	tree := issueBatch(t, store, ledger, "3", contents)
	engine := newTestEngine(t, store, ledger)

	hash := digest.Compute(contents["2214102"])
	diagnosis, err := engine.DiagnoseBatch(context.Background(), hash, testScope)
	require.NoError(t, err)
	assert.True(t, diagnosis.RootMatches)
	assert.True(t, diagnosis.TargetInLeaves)
	assert.True(t, diagnosis.StoredProofOK)
	assert.True(t, diagnosis.RebuiltProofOK)
	assert.Equal(t, tree.Leaves(), diagnosis.Leaves)

	store.leaves["3"] = store.leaves["3"][:3]
	diagnosis, err = engine.DiagnoseBatch(context.Background(), hash, testScope)
	require.NoError(t, err)
	assert.False(t, diagnosis.RootMatches)

	_, err = engine.DiagnoseBatch(context.Background(), digest.Compute([]byte("nope")), testScope)
	assert.ErrorIs(t, err, certificate.ErrNotFound)
}
