package batchtree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

func TestCombineCommutative(t *testing.T) {
	a := digest.Compute([]byte("left"))
	b := digest.Compute([]byte("right"))
	assert.Equal(t, Combine(a, b), Combine(b, a))
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	a := digest.Compute([]byte("A"))
	b := digest.Compute([]byte("B"))
	root := Combine(a, b)

	assert.True(t, Verify(a, []digest.Digest{b}, root))
	assert.False(t, Verify(a, []digest.Digest{b}, a))
	assert.False(t, Verify(a, nil, root))
}

func drawLeaves(t *rapid.T) []certificate.DocumentLeaf {
	ids := rapid.SliceOfNDistinct(
		rapid.StringMatching(`[0-9A-Za-z]{1,8}`), 1, 40, rapid.ID[string],
	).Draw(t, "ids")

	leaves := make([]certificate.DocumentLeaf, 0, len(ids))
	for index, id := range ids {
		content := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, fmt.Sprintf("content-%d", index))
		leaves = append(leaves, certificate.DocumentLeaf{
			ExternalID:  id,
			ContentHash: digest.Compute(content),
		})
	}
	return leaves
}

func TestEveryProofVerifies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		leaves := drawLeaves(t)
		tree, err := Build(leaves)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		for _, item := range leaves {
			proof, ok := tree.Proof(item.ExternalID)
			if !ok {
				t.Fatalf("no proof for %q", item.ExternalID)
			}
			if !Verify(item.ContentHash, proof, tree.Root) {
				t.Fatalf("proof for %q does not verify", item.ExternalID)
			}
		}
	})
}

func TestRootIndependentOfInputOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		leaves := drawLeaves(t)
		first, err := ComputeRoot(leaves)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}

		shuffled := make([]certificate.DocumentLeaf, len(leaves))
		copy(shuffled, leaves)
		seed := rapid.Int64().Draw(t, "seed")
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		second, err := ComputeRoot(shuffled)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if first != second {
			t.Fatalf("root depends on input order: %s != %s", first, second)
		}
	})
}

func TestTamperedLeafFailsOriginalProof(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		contents := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 1, 64), 1, 20).Draw(t, "contents")
		leaves := make([]certificate.DocumentLeaf, 0, len(contents))
		for index, content := range contents {
			leaves = append(leaves, certificate.DocumentLeaf{
				ExternalID:  fmt.Sprintf("%07d", index),
				ContentHash: digest.Compute(content),
			})
		}
		tree, err := Build(leaves)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}

		target := rapid.IntRange(0, len(contents)-1).Draw(t, "target")
		tampered := append([]byte(nil), contents[target]...)
		position := rapid.IntRange(0, len(tampered)-1).Draw(t, "position")
		tampered[position] ^= 0xff

		proof, _ := tree.Proof(fmt.Sprintf("%07d", target))
		if Verify(digest.Compute(tampered), proof, tree.Root) {
			t.Fatalf("tampered content verified against original root")
		}
	})
}
