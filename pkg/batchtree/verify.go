package batchtree

import (
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

// RootFromProof folds proof into leaf with Combine.
func RootFromProof(leaf digest.Digest, proof []digest.Digest) digest.Digest {
	current := leaf
	for _, sibling := range proof {
		current = Combine(current, sibling)
	}
	return current
}

// Verify reports whether leaf and proof reproduce expectedRoot.
func Verify(leaf digest.Digest, proof []digest.Digest, expectedRoot digest.Digest) bool {
	return RootFromProof(leaf, proof) == expectedRoot
}

// VerifyBatch recomputes the root of batch from its leaves. It returns
// certificate.ErrRootMismatch when the leaves no longer reproduce batch.Root.
func VerifyBatch(batch certificate.MerkleBatch) error {
	root, err := ComputeRoot(batch.OrderedLeaves)
	if err != nil {
		return err
	}
	if root != batch.Root {
		return certificate.ErrRootMismatch
	}
	return nil
}
