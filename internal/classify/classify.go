// Package classify labels captured pipe buffers as text or binary.
//
// A buffer is decoded under a fixed priority of encodings (UTF-8, then 7-bit
// ASCII, then UTF-16LE). The first decoding whose printable-character ratio
// strictly exceeds the threshold wins and the buffer is reported as text in
// that encoding. When every decoding fails or falls at or below the
// threshold, the buffer is binary and rendered as hex pairs.
package classify

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Kind is the classification outcome.
type Kind int

const (
	Binary Kind = iota
	Text
)

func (k Kind) String() string {
	if k == Text {
		return "text"
	}
	return "binary"
}

// printableThreshold is strict: a ratio of exactly 0.70 is still binary.
const printableThreshold = 0.70

// Result is one classified buffer. Classification is pure: the same bytes
// always produce the same Result.
type Result struct {
	Kind     Kind
	Encoding string // "utf-8", "ascii" or "utf-16le"; empty for binary
	Rendered string // decoded text, or hex pairs for binary
	Charset  string // best-effort charset hint for binary buffers
}

type decoding struct {
	name   string
	decode func([]byte) (string, error)
}

var decodings = []decoding{
	{"utf-8", decodeUTF8},
	{"ascii", decodeASCII},
	{"utf-16le", decodeUTF16LE},
}

// Classify labels buf. An empty buffer is never text; callers treat
// zero-length reads as stream closure before classification, so this is a
// backstop.
func Classify(buf []byte) Result {
	if len(buf) > 0 {
		for _, d := range decodings {
			s, err := d.decode(buf)
			if err != nil {
				continue
			}
			if printableRatio(s) > printableThreshold {
				return Result{Kind: Text, Encoding: d.name, Rendered: s}
			}
		}
	}

	return Result{
		Kind:     Binary,
		Rendered: HexPairs(buf),
		Charset:  charsetHint(buf),
	}
}

func decodeUTF8(buf []byte) (string, error) {
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("invalid utf-8")
	}
	return string(buf), nil
}

func decodeASCII(buf []byte) (string, error) {
	for _, b := range buf {
		if b >= 0x80 {
			return "", fmt.Errorf("byte 0x%02X outside 7-bit range", b)
		}
	}
	return string(buf), nil
}

func decodeUTF16LE(buf []byte) (string, error) {
	if len(buf)%2 != 0 {
		return "", fmt.Errorf("odd length %d", len(buf))
	}
	dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(buf)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// printableRatio counts a rune as printable unless it is a control character
// other than carriage-return, line-feed or tab.
func printableRatio(s string) float64 {
	total, printable := 0, 0
	for _, r := range s {
		total++
		if !unicode.IsControl(r) || r == '\r' || r == '\n' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}

// HexPairs renders bytes as uppercase hex pairs joined by hyphens
// (e.g. 68-65-6C-6C-6F).
func HexPairs(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(buf)*3 - 1)
	for i, c := range buf {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}

// charsetHint asks the charset detector for its best guess on a binary
// buffer. Low-confidence guesses and detector errors yield no hint.
func charsetHint(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	res, err := chardet.NewTextDetector().DetectBest(buf)
	if err != nil || res == nil || res.Confidence < 50 {
		return ""
	}
	return res.Charset
}
