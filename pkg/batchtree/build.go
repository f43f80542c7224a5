package batchtree

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

// Tree is a finished batch tree. It is immutable; accessors return copies.
type Tree struct {
	Root   digest.Digest
	leaves []certificate.DocumentLeaf
	proofs map[string][]digest.Digest
	depth  int
}

// Build constructs the canonical tree over leaves. The input slice is not
// modified.
func Build(leaves []certificate.DocumentLeaf) (*Tree, error) {
	ordered, err := canonicalOrder(leaves)
	if err != nil {
		return nil, err
	}

	level := make([]digest.Digest, len(ordered))
	for index, leaf := range ordered {
		level[index] = leaf.ContentHash
	}

	// position[i] tracks where leaf i's ancestor sits in the current level
	position := make([]int, len(ordered))
	for index := range position {
		position[index] = index
	}
	proofs := make([][]digest.Digest, len(ordered))

	depth := 0
	for len(level) > 1 {
		for leafIndex, at := range position {
			sibling := at ^ 1
			if sibling < len(level) {
				proofs[leafIndex] = append(proofs[leafIndex], level[sibling])
			}
			position[leafIndex] = at / 2
		}
		level = nextLevel(level)
		depth++
	}

	tree := &Tree{
		Root:   level[0],
		leaves: ordered,
		proofs: make(map[string][]digest.Digest, len(ordered)),
		depth:  depth,
	}
	for index, leaf := range ordered {
		proof := proofs[index]
		if proof == nil {
			proof = []digest.Digest{}
		}
		tree.proofs[leaf.ExternalID] = proof
	}

	return tree, nil
}

// ComputeRoot builds the tree over leaves and returns only its root.
func ComputeRoot(leaves []certificate.DocumentLeaf) (digest.Digest, error) {
	tree, err := Build(leaves)
	if err != nil {
		return digest.Digest{}, err
	}
	return tree.Root, nil
}

func nextLevel(level []digest.Digest) []digest.Digest {
	next := make([]digest.Digest, 0, (len(level)+1)/2)
	for index := 0; index+1 < len(level); index += 2 {
		next = append(next, Combine(level[index], level[index+1]))
	}
	if len(level)%2 == 1 {
		next = append(next, level[len(level)-1])
	}
	return next
}

func canonicalOrder(leaves []certificate.DocumentLeaf) ([]certificate.DocumentLeaf, error) {
	if len(leaves) == 0 {
		return nil, certificate.ErrEmptyBatch
	}

	ordered := make([]certificate.DocumentLeaf, len(leaves))
	copy(ordered, leaves)
	for index, leaf := range ordered {
		if strings.TrimSpace(leaf.ExternalID) == "" {
			return nil, fmt.Errorf("%w: leaf %d has an empty external ID", certificate.ErrInvalidInput, index)
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExternalID < ordered[j].ExternalID
	})
	for index := 1; index < len(ordered); index++ {
		if ordered[index].ExternalID == ordered[index-1].ExternalID {
			return nil, fmt.Errorf("%w: %q", certificate.ErrDuplicateExternalID, ordered[index].ExternalID)
		}
	}

	return ordered, nil
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// Depth returns the number of combine levels above the leaves.
func (t *Tree) Depth() int {
	return t.depth
}

// Leaves returns the leaves in canonical order.
func (t *Tree) Leaves() []certificate.DocumentLeaf {
	result := make([]certificate.DocumentLeaf, len(t.leaves))
	copy(result, t.leaves)
	return result
}

// Proof returns the sibling path of the leaf with externalID, bottom-up.
func (t *Tree) Proof(externalID string) ([]digest.Digest, bool) {
	proof, ok := t.proofs[externalID]
	if !ok {
		return nil, false
	}
	result := make([]digest.Digest, len(proof))
	copy(result, proof)
	return result, true
}

// Proofs returns every proof keyed by external ID.
func (t *Tree) Proofs() map[string][]digest.Digest {
	result := make(map[string][]digest.Digest, len(t.proofs))
	for externalID := range t.proofs {
		proof, _ := t.Proof(externalID)
		result[externalID] = proof
	}
	return result
}

// Batch describes the tree as a MerkleBatch once the ledger assigned it an ID.
func (t *Tree) Batch(batchID string, createdAt time.Time) certificate.MerkleBatch {
	return certificate.MerkleBatch{
		BatchID:       batchID,
		Root:          t.Root,
		OrderedLeaves: t.Leaves(),
		CreatedAt:     createdAt,
	}
}
