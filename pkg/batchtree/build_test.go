package batchtree

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

func leaf(externalID, content string) certificate.DocumentLeaf {
	return certificate.DocumentLeaf{
		ExternalID:  externalID,
		ContentHash: digest.Compute([]byte(content)),
	}
}

func TestBuildEmptyBatch(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, certificate.ErrEmptyBatch)
	assert.ErrorIs(t, err, certificate.ErrInvalidInput)
}

func TestBuildDuplicateExternalID(t *testing.T) {
	_, err := Build([]certificate.DocumentLeaf{
		leaf("2214134", "a"),
		leaf("2214135", "b"),
		leaf("2214134", "c"),
	})
	assert.ErrorIs(t, err, certificate.ErrDuplicateExternalID)
	assert.ErrorIs(t, err, certificate.ErrInvalidInput)
}

func TestBuildEmptyExternalID(t *testing.T) {
	_, err := Build([]certificate.DocumentLeaf{leaf(" ", "a")})
	assert.ErrorIs(t, err, certificate.ErrInvalidInput)
}

func TestBuildSingleton(t *testing.T) {
	only := leaf("2214134", "transcript")
	tree, err := Build([]certificate.DocumentLeaf{only})
	require.NoError(t, err)

	assert.Equal(t, only.ContentHash, tree.Root)
	assert.Equal(t, 0, tree.Depth())

	proof, ok := tree.Proof("2214134")
	require.True(t, ok)
	assert.Empty(t, proof)
	assert.NotNil(t, proof)
	assert.True(t, Verify(only.ContentHash, proof, tree.Root))
}

func TestBuildThreeLeafScenario(t *testing.T) {
	hA := digest.Compute([]byte("A"))
	hB := digest.Compute([]byte("B"))
	hC := digest.Compute([]byte("C"))

	// supplied out of order; canonical order is A, B, C
	tree, err := Build([]certificate.DocumentLeaf{
		{ExternalID: "C", ContentHash: hC},
		{ExternalID: "A", ContentHash: hA},
		{ExternalID: "B", ContentHash: hB},
	})
	require.NoError(t, err)

	ab := Combine(hA, hB)
	assert.Equal(t, Combine(ab, hC), tree.Root)
	assert.Equal(t, 2, tree.Depth())

	proofC, ok := tree.Proof("C")
	require.True(t, ok)
	assert.Equal(t, []digest.Digest{ab}, proofC)
	assert.True(t, Verify(hC, []digest.Digest{ab}, tree.Root))

	proofA, _ := tree.Proof("A")
	assert.Equal(t, []digest.Digest{hB, hC}, proofA)

	var ids []string
	for _, item := range tree.Leaves() {
		ids = append(ids, item.ExternalID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	input := []certificate.DocumentLeaf{leaf("b", "1"), leaf("a", "2")}
	_, err := Build(input)
	require.NoError(t, err)
	assert.Equal(t, "b", input[0].ExternalID)
}

func TestProofsAreCopies(t *testing.T) {
	tree, err := Build([]certificate.DocumentLeaf{leaf("a", "1"), leaf("b", "2")})
	require.NoError(t, err)

	proof, _ := tree.Proof("a")
	proof[0] = digest.Digest{}

	again, _ := tree.Proof("a")
	assert.False(t, again[0].IsZero())

	_, ok := tree.Proof("missing")
	assert.False(t, ok)

	proofs := tree.Proofs()
	require.Len(t, proofs, 2)
	proofs["b"][0] = digest.Digest{}
	for externalID, proof := range tree.Proofs() {
		assert.False(t, proof[0].IsZero(), externalID)
	}
}

func TestSortIsByteWise(t *testing.T) {
	tree, err := Build([]certificate.DocumentLeaf{
		leaf("b", "1"),
		leaf("B", "2"),
		leaf("10", "3"),
		leaf("9", "4"),
	})
	require.NoError(t, err)

	var ids []string
	for _, item := range tree.Leaves() {
		ids = append(ids, item.ExternalID)
	}
	assert.Equal(t, []string{"10", "9", "B", "b"}, ids)
}

func TestBatchRoundTrip(t *testing.T) {
	leaves := make([]certificate.DocumentLeaf, 0, 9)
	for index := 0; index < 9; index++ {
		leaves = append(leaves, leaf(fmt.Sprintf("%07d", 2214100+index), fmt.Sprintf("doc-%d", index)))
	}
	tree, err := Build(leaves)
	require.NoError(t, err)

	createdAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := tree.Batch("42", createdAt)
	assert.Equal(t, "42", batch.BatchID)
	assert.Equal(t, tree.Root, batch.Root)
	assert.Len(t, batch.OrderedLeaves, 9)
	assert.NoError(t, VerifyBatch(batch))

	batch.OrderedLeaves = batch.OrderedLeaves[1:]
	assert.ErrorIs(t, VerifyBatch(batch), certificate.ErrRootMismatch)
}
