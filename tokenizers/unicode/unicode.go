// Package unicode provides the codepoint-level primitives the tokenizer core
// builds on: UTF-8 decode/encode, per-codepoint category flags, simple case
// folding, and the GPT-2 byte-to-unicode mapping used by byte-level BPE
// vocabularies. Category classification is deliberately built on the standard
// library's own unicode tables rather than a hand-rolled range table, mirroring
// how the rest of this codebase already classifies runes.
package unicode

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Cpt is a single Unicode codepoint.
type Cpt = rune

// Flags holds the per-codepoint classification used by the pretokenizer scanners.
type Flags struct {
	IsWhitespace  bool
	IsLetter      bool
	IsNumber      bool
	IsPunctuation bool
	IsSymbol      bool
	IsAccentMark  bool
	IsLowercase   bool
	IsUppercase   bool
	IsNFD         bool
}

// Bitmask view of Flags, in case callers want a compact representation.
type Bits uint16

const (
	BitWhitespace Bits = 1 << iota
	BitLetter
	BitNumber
	BitPunctuation
	BitSymbol
	BitAccentMark
	BitLowercase
	BitUppercase
	BitNFD
)

// Bits returns the bitmask view of f.
func (f Flags) Bits() Bits {
	var b Bits
	if f.IsWhitespace {
		b |= BitWhitespace
	}
	if f.IsLetter {
		b |= BitLetter
	}
	if f.IsNumber {
		b |= BitNumber
	}
	if f.IsPunctuation {
		b |= BitPunctuation
	}
	if f.IsSymbol {
		b |= BitSymbol
	}
	if f.IsAccentMark {
		b |= BitAccentMark
	}
	if f.IsLowercase {
		b |= BitLowercase
	}
	if f.IsUppercase {
		b |= BitUppercase
	}
	if f.IsNFD {
		b |= BitNFD
	}
	return b
}

// CptFlags classifies a single codepoint. Built directly on the standard
// library's unicode category tables (unicode.Is, unicode.IsSpace), the same
// approach the rest of this codebase uses for normalization and pretokenization.
func CptFlags(cp Cpt) Flags {
	return Flags{
		IsWhitespace:  unicode.IsSpace(cp),
		IsLetter:      unicode.IsLetter(cp),
		IsNumber:      unicode.IsNumber(cp),
		IsPunctuation: unicode.IsPunct(cp),
		IsSymbol:      unicode.IsSymbol(cp),
		IsAccentMark:  unicode.Is(unicode.Mn, cp),
		IsLowercase:   unicode.IsLower(cp),
		IsUppercase:   unicode.IsUpper(cp),
		IsNFD:         norm.NFD.IsNormalString(string(cp)),
	}
}

// ToLower implements simple, single-codepoint case folding — sufficient for
// ASCII and Latin-extended letters, which is all the Llama-3 pretokenizer's
// case-insensitive contraction matching needs.
func ToLower(cp Cpt) Cpt {
	return unicode.ToLower(cp)
}

// Utf8Len returns the byte length of the UTF-8 sequence starting with firstByte,
// in 1..4. Invalid lead bytes fall through to 1 rather than erroring, matching
// the tolerant behavior pretokenizers need when scanning untrusted text.
func Utf8Len(firstByte byte) int {
	switch {
	case firstByte&0x80 == 0x00:
		return 1
	case firstByte&0xE0 == 0xC0:
		return 2
	case firstByte&0xF0 == 0xE0:
		return 3
	case firstByte&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// DecodeUtf8 decodes s into a sequence of codepoints, replacing invalid
// sequences with U+FFFD one byte at a time (matching utf8.DecodeRuneInString's
// own recovery behavior).
func DecodeUtf8(s string) []Cpt {
	cpts := make([]Cpt, 0, len(s))
	for _, r := range s {
		cpts = append(cpts, r)
	}
	return cpts
}

// EncodeCpt encodes a single codepoint as UTF-8 bytes. Invalid codepoints
// (negative, surrogate halves, or out of Unicode's range) encode as U+FFFD.
func EncodeCpt(cp Cpt) []byte {
	if !utf8.ValidRune(cp) {
		cp = utf8.RuneError
	}
	buf := make([]byte, utf8.RuneLen(cp))
	utf8.EncodeRune(buf, cp)
	return buf
}

// byteToUnicode and its inverse implement GPT-2's byte-to-unicode mapping:
// printable ASCII and the two high Latin-1 printable ranges map to themselves;
// everything else (mostly control characters and whitespace) maps, in byte
// order, to consecutive codepoints starting at U+0100. Vocabulary tokens for raw bytes
// in GPT-2-family models are keyed on this exact mapping.
var byteToUnicode [256]rune
var unicodeToByte map[rune]byte

func init() {
	unicodeToByte = make(map[rune]byte, 256)
	n := 0
	for b := 0; b < 256; b++ {
		if (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff) {
			byteToUnicode[b] = rune(b)
		} else {
			byteToUnicode[b] = rune(256 + n)
			n++
		}
		unicodeToByte[byteToUnicode[b]] = byte(b)
	}
}

// ByteToUTF8 returns the GPT-2 byte-to-unicode mapping of b, as a string
// holding exactly one (possibly multi-byte) UTF-8 character.
func ByteToUTF8(b byte) string {
	return string(byteToUnicode[b])
}

// UTF8ToByte reverses ByteToUTF8. ok is false if r is not a mapped codepoint.
func UTF8ToByte(r rune) (b byte, ok bool) {
	b, ok = unicodeToByte[r]
	return
}
