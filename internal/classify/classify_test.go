package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyASCIIText(t *testing.T) {
	res := Classify([]byte("hello"))

	assert.Equal(t, Text, res.Kind)
	assert.Equal(t, "utf-8", res.Encoding, "utf-8 is tried first and accepts plain ASCII")
	assert.Equal(t, "hello", res.Rendered)
}

func TestClassifyTextWithLineBreaks(t *testing.T) {
	// CR, LF and tab count as printable; a chatty line protocol stays text.
	res := Classify([]byte("GET /status\r\n\tAccept: */*\r\n"))

	assert.Equal(t, Text, res.Kind)
	assert.Equal(t, "utf-8", res.Encoding)
}

func TestClassifyUTF16Text(t *testing.T) {
	// "hello" in UTF-16LE. The UTF-8 and ASCII decodes both succeed but see
	// every other rune as NUL (ratio 0.5), so the chain falls through to the
	// 16-bit decoding.
	buf := []byte{'h', 0, 'e', 0, 'l', 0, 'l', 0, 'o', 0}

	res := Classify(buf)

	require.Equal(t, Text, res.Kind)
	assert.Equal(t, "utf-16le", res.Encoding)
	assert.Equal(t, "hello", res.Rendered)
}

func TestClassifyBinary(t *testing.T) {
	// Odd length keeps the UTF-16 stage from accepting low-byte noise.
	buf := []byte{0x00, 0x01, 0x02, 0x03, 0x04}

	res := Classify(buf)

	require.Equal(t, Binary, res.Kind)
	assert.Equal(t, "00-01-02-03-04", res.Rendered)
	assert.Empty(t, res.Encoding)
}

func TestClassifyThresholdIsStrict(t *testing.T) {
	// 10 runes, 7 printable: ratio is exactly 0.70, which must NOT pass.
	// The é (0xC3 0xA9) makes the buffer 11 bytes, so the ASCII decode fails
	// on the high byte and the UTF-16 decode fails on the odd length.
	buf := append([]byte("abcdef\xc3\xa9"), 0x01, 0x02, 0x03)

	res := Classify(buf)

	assert.Equal(t, Binary, res.Kind, "ratio of exactly 0.70 must classify binary")
}

func TestClassifyJustAboveThreshold(t *testing.T) {
	// 10 runes, 8 printable: 0.80 > 0.70 passes as UTF-8.
	buf := append([]byte("abcdefg\xc3\xa9"), 0x01, 0x02)

	res := Classify(buf)

	require.Equal(t, Text, res.Kind)
	assert.Equal(t, "utf-8", res.Encoding)
}

func TestClassifyEmptyBufferNeverText(t *testing.T) {
	res := Classify(nil)

	assert.Equal(t, Binary, res.Kind)
	assert.Empty(t, res.Rendered)

	res = Classify([]byte{})
	assert.Equal(t, Binary, res.Kind)
}

func TestClassifyIdempotent(t *testing.T) {
	buffers := [][]byte{
		[]byte("hello"),
		{0x00, 0x01, 0x02, 0x03, 0x04},
		{'h', 0, 'i', 0},
		append([]byte("abcdef\xc3\xa9"), 0x01, 0x02, 0x03),
	}

	for _, buf := range buffers {
		first := Classify(buf)
		second := Classify(buf)
		assert.Equal(t, first, second, "classification must be deterministic for %v", buf)
	}
}

func TestHexPairs(t *testing.T) {
	assert.Equal(t, "68-65-6C-6C-6F", HexPairs([]byte("hello")))
	assert.Equal(t, "00", HexPairs([]byte{0}))
	assert.Equal(t, "", HexPairs(nil))
	assert.Equal(t, "FF-00", HexPairs([]byte{0xFF, 0x00}))
}

func TestPrintableRatio(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"all printable", "hello", 1.0},
		{"crlf and tab printable", "a\r\n\tb", 1.0},
		{"all control", "\x01\x02\x03\x04", 0.0},
		{"half and half", "ab\x01\x02", 0.5},
		{"empty", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, printableRatio(tt.in), 1e-9)
		})
	}
}

func TestDecodeASCIIRejectsHighBytes(t *testing.T) {
	_, err := decodeASCII([]byte{'a', 0x80})
	require.Error(t, err)

	s, err := decodeASCII([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", s)
}

func TestDecodeUTF16RejectsOddLength(t *testing.T) {
	_, err := decodeUTF16LE([]byte{0x68, 0x00, 0x69})
	require.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", Text.String())
	assert.Equal(t, "binary", Binary.String())
}
