package batchtree

import "github.com/hashgraph-online/certificate-sdk-go/pkg/digest"

// Combine hashes two nodes after ordering them by byte value. It is
// commutative: Combine(a, b) == Combine(b, a).
func Combine(a, b digest.Digest) digest.Digest {
	if a.Compare(b) > 0 {
		a, b = b, a
	}
	return digest.Concat(a, b)
}
