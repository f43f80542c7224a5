package digest

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestComputeKnownVectors(t *testing.T) {
	assert.Equal(t,
		MustParse("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
		Compute(nil),
	)
	assert.Equal(t,
		MustParse("0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"),
		Compute([]byte("abc")),
	)
}

func TestMustParsePanicsOnInvalidInput(t *testing.T) {
	assert.Panics(t, func() { MustParse("0x1234") })
}

func TestComputeIsLiteral(t *testing.T) {
	// trailing whitespace and line endings are part of the content
	assert.NotEqual(t, Compute([]byte("record\n")), Compute([]byte("record")))
	assert.NotEqual(t, Compute([]byte("a\r\nb")), Compute([]byte("a\nb")))
}

func TestComputeReaderMatchesCompute(t *testing.T) {
	content := bytes.Repeat([]byte("transcript"), 4096)
	fromReader, err := ComputeReader(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, Compute(content), fromReader)
}

func TestConcatOrderMatters(t *testing.T) {
	a := Compute([]byte("A"))
	b := Compute([]byte("B"))
	assert.NotEqual(t, Concat(a, b), Concat(b, a))

	joined := append(a.Bytes(), b.Bytes()...)
	assert.Equal(t, Compute(joined), Concat(a, b))
}

func TestParse(t *testing.T) {
	d := Compute([]byte("abc"))

	cases := []string{
		d.Hex(),
		d.PrefixedHex(),
		strings.ToUpper(d.Hex()),
		"  " + d.PrefixedHex() + " ",
	}
	for _, input := range cases {
		parsed, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, d, parsed)
	}

	_, err := Parse("0x1234")
	assert.Error(t, err)

	_, err = Parse(strings.Repeat("zz", Size))
	assert.Error(t, err)
}

func TestParseAllReportsIndex(t *testing.T) {
	good := Compute([]byte("x")).PrefixedHex()
	_, err := ParseAll([]string{good, "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")
}

func TestJSONUsesHex(t *testing.T) {
	d := Compute([]byte("abc"))
	payload, err := json.Marshal(struct {
		Hash Digest `json:"hash"`
	}{Hash: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hash":"`+d.Hex()+`"}`, string(payload))

	var decoded struct {
		Hash Digest `json:"hash"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"hash":"`+d.PrefixedHex()+`"}`), &decoded))
	assert.Equal(t, d, decoded.Hash)
}

func TestComputeDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.SliceOf(rapid.Byte()).Draw(t, "content")
		first := Compute(content)
		second := Compute(append([]byte(nil), content...))
		if first != second {
			t.Fatalf("digest changed between invocations: %s != %s", first, second)
		}
	})
}

func TestSingleByteFlipChangesDigest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "content")
		index := rapid.IntRange(0, len(content)-1).Draw(t, "index")

		flipped := append([]byte(nil), content...)
		flipped[index] ^= 0x01
		if Compute(content) == Compute(flipped) {
			t.Fatalf("flipping byte %d did not change digest", index)
		}
	})
}
