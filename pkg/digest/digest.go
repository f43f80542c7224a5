package digest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Size is the length of a Digest in bytes.
const Size = 32

// Algorithm names the hash function behind Compute.
const Algorithm = "keccak-256"

type Digest [Size]byte

// Compute returns the Keccak-256 digest of content.
func Compute(content []byte) Digest {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(content)

	var result Digest
	hasher.Sum(result[:0])
	return result
}

// ComputeReader hashes everything readable from reader. The result equals
// Compute over the same bytes.
func ComputeReader(reader io.Reader) (Digest, error) {
	hasher := sha3.NewLegacyKeccak256()
	if _, err := io.Copy(hasher, reader); err != nil {
		return Digest{}, fmt.Errorf("failed to read content for hashing: %w", err)
	}

	var result Digest
	hasher.Sum(result[:0])
	return result, nil
}

// Concat hashes left followed by right.
func Concat(left, right Digest) Digest {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(left[:])
	hasher.Write(right[:])

	var result Digest
	hasher.Sum(result[:0])
	return result
}

// Parse decodes a 64 character hex digest with an optional 0x prefix.
func Parse(value string) (Digest, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != Size*2 {
		return Digest{}, fmt.Errorf("digest must be %d hex characters, got %d", Size*2, len(trimmed))
	}

	var result Digest
	if _, err := hex.Decode(result[:], []byte(trimmed)); err != nil {
		return Digest{}, fmt.Errorf("digest must be valid hex: %w", err)
	}
	return result, nil
}

// MustParse is Parse for constants and tests.
func MustParse(value string) Digest {
	parsed, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

// ParseAll parses every element of values.
func ParseAll(values []string) ([]Digest, error) {
	result := make([]Digest, 0, len(values))
	for index, value := range values {
		parsed, err := Parse(value)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", index, err)
		}
		result = append(result, parsed)
	}
	return result, nil
}

// Hex returns the lowercase hex form without prefix.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// PrefixedHex returns the 0x-prefixed form used at the ledger boundary.
func (d Digest) PrefixedHex() string {
	return "0x" + d.Hex()
}

func (d Digest) String() string {
	return d.Hex()
}

// Bytes returns a copy of the digest bytes.
func (d Digest) Bytes() []byte {
	result := make([]byte, Size)
	copy(result, d[:])
	return result
}

// IsZero reports whether d is the all-zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Compare orders digests by byte value.
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HexAll renders digests with the 0x prefix, the form proofs travel in.
func HexAll(values []Digest) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		result = append(result, value.PrefixedHex())
	}
	return result
}
