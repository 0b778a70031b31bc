// Package pretokenize implements the pretokenization scanners (C2): splitting
// raw text into the chunks a BPE/SPM session merges independently. Two
// patterns are hand-rolled as single-pass state machines for speed — GPT-2's
// and Llama-3's — and a third, generic fallback runs a caller-compiled
// standard-library regexp for any other model family.
package pretokenize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	utok "github.com/gomlx/gguf-tokenize/tokenizers/unicode"
)

// Pattern selects which pretokenization scanner Split uses.
type Pattern int

const (
	PatternGPT2 Pattern = iota
	PatternLlama3
	PatternGeneric
)

// gpt2ContractionMap holds the English contraction suffixes GPT-2's pattern
// splits off as their own chunk. GPT-2's real pattern
// ('s|'t|'re|'ve|'m|'ll|'d) carries no case-insensitivity flag, so only the
// exact lowercase spellings match.
var gpt2ContractionMap = map[string]bool{
	"'s": true, "'t": true, "'re": true, "'ve": true, "'m": true, "'ll": true, "'d": true,
}

// llama3ContractionMap holds the same suffixes case-folded, since Llama-3's
// pattern wraps this alternation in an explicit (?i:...) flag. Grounded on
// the common llama.cpp/tiktoken contraction list: 's, 't, 're, 've, 'm, 'll, 'd.
var llama3ContractionMap = map[string]bool{
	"'s": true, "'S": true,
	"'t": true, "'T": true,
	"'re": true, "'RE": true, "'Re": true, "'rE": true,
	"'ve": true, "'VE": true, "'Ve": true, "'vE": true,
	"'m": true, "'M": true,
	"'ll": true, "'LL": true, "'Ll": true, "'lL": true,
	"'d": true, "'D": true,
}

// tryContraction returns the length in bytes of a contraction suffix
// starting at s[0] found in m, or 0 if none matches. Longest candidates are
// tried first so "'ll" is not mistaken for "'l" followed by "l".
func tryContraction(s string, m map[string]bool) int {
	for _, n := range []int{3, 2} {
		if len(s) >= n && m[s[:n]] {
			return n
		}
	}
	return 0
}

// Split dispatches to the scanner p selects.
func Split(text string, p Pattern, generic *regexp.Regexp) ([]string, error) {
	switch p {
	case PatternGPT2:
		return SplitGPT2(text), nil
	case PatternLlama3:
		return SplitLlama3(text), nil
	case PatternGeneric:
		if generic == nil {
			return nil, errors.New("pretokenize: PatternGeneric requires a compiled regexp")
		}
		return SplitGeneric(text, generic), nil
	default:
		return nil, errors.Errorf("pretokenize: unknown pattern %d", p)
	}
}

// SplitGPT2 implements GPT-2's pretokenization regex as a single left-to-right
// scan, in priority order: contraction suffix, an optional leading space
// followed by a letter run, an optional leading space followed by a digit
// run, an optional leading space followed by a run of "other" (non-space,
// non-letter, non-digit) characters, a trailing-whitespace run not followed
// by non-space (i.e. whitespace that owns no following chunk), and finally a
// bare whitespace run. Equivalent to:
//
//	's|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+
func SplitGPT2(text string) []string {
	var chunks []string
	i := 0
	n := len(text)
	for i < n {
		if c := tryContraction(text[i:], gpt2ContractionMap); c > 0 {
			chunks = append(chunks, text[i:i+c])
			i += c
			continue
		}

		start := i
		leadSpace := 0
		if text[i] == ' ' {
			leadSpace = 1
		}

		rest := text[i+leadSpace:]
		if rest == "" {
			// A single trailing space with nothing after it: falls through to
			// the whitespace-run rules below.
		} else if isLetterStart(rest) {
			end := i + leadSpace
			end += runLength(text[end:], isLetterRune)
			chunks = append(chunks, text[start:end])
			i = end
			continue
		} else if isDigitStart(rest) {
			end := i + leadSpace
			end += runLength(text[end:], isDigitRune)
			chunks = append(chunks, text[start:end])
			i = end
			continue
		} else if isOtherStart(rest) {
			end := i + leadSpace
			end += runLength(text[end:], isOtherRune)
			chunks = append(chunks, text[start:end])
			i = end
			continue
		}

		// Whitespace handling: a run of whitespace that is NOT immediately
		// followed by a non-space character consumes everything including
		// that final boundary; otherwise the run stops one rune short, so the
		// following chunk's leading-space rule can claim it.
		wsLen := runLength(text[i:], isWhitespaceRune)
		if wsLen == 0 {
			// Shouldn't happen for valid UTF-8 input, but guarantees progress.
			_, sz := decodeFirst(text[i:])
			chunks = append(chunks, text[i:i+sz])
			i += sz
			continue
		}
		afterWS := text[i+wsLen:]
		if afterWS == "" || wsLen == 1 {
			chunks = append(chunks, text[i:i+wsLen])
			i += wsLen
			continue
		}
		// \s+(?!\S): drop the last whitespace rune from this chunk so the next
		// scan iteration sees " <nonspace...>" and applies the leading-space rule.
		lastRuneStart := prevRuneStart(text, i+wsLen)
		chunks = append(chunks, text[i:lastRuneStart])
		i = lastRuneStart
	}
	return chunks
}

// SplitLlama3 implements Llama-3's pretokenization regex as a single scan:
//
//	(?i:'s|'t|'re|'ve|'m|'ll|'d)|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+
//
// The key difference from GPT-2: digit runs cap at 3 codepoints, and a
// "other" chunk may absorb trailing newlines.
func SplitLlama3(text string) []string {
	var chunks []string
	i := 0
	n := len(text)
	for i < n {
		if c := tryContraction(text[i:], llama3ContractionMap); c > 0 {
			chunks = append(chunks, text[i:i+c])
			i += c
			continue
		}

		// [^\r\n\p{L}\p{N}]?\p{L}+: an optional single non-letter/digit/newline
		// codepoint, then one or more letters.
		if end, ok := tryWordLlama3(text[i:]); ok {
			chunks = append(chunks, text[i:i+end])
			i += end
			continue
		}

		// \p{N}{1,3}: up to 3 digit codepoints, no leading space.
		if r, _ := decodeFirst(text[i:]); isDigitRune(r) {
			end := i
			count := 0
			for count < 3 {
				r, sz := decodeFirst(text[end:])
				if !isDigitRune(r) {
					break
				}
				end += sz
				count++
			}
			chunks = append(chunks, text[i:end])
			i = end
			continue
		}

		// ?[^\s\p{L}\p{N}]+[\r\n]*: optional leading space, then a run of
		// "other" characters, then any trailing newlines.
		start := i
		leadSpace := 0
		if text[i] == ' ' {
			leadSpace = 1
		}
		rest := text[i+leadSpace:]
		if rest != "" && isOtherStart(rest) {
			end := i + leadSpace
			end += runLength(text[end:], isOtherRune)
			end += runLength(text[end:], isCRLFRune)
			chunks = append(chunks, text[start:end])
			i = end
			continue
		}

		// \s*[\r\n]+: any whitespace run that contains at least one newline,
		// cut just after its last CR/LF; whitespace after that is left for
		// the rules below.
		if end, ok := tryWhitespaceWithNewline(text[i:]); ok {
			chunks = append(chunks, text[i:i+end])
			i += end
			continue
		}

		// \s+(?!\S) / \s+: same trailing-boundary rule as GPT-2.
		wsLen := runLength(text[i:], isWhitespaceRune)
		if wsLen == 0 {
			_, sz := decodeFirst(text[i:])
			chunks = append(chunks, text[i:i+sz])
			i += sz
			continue
		}
		afterWS := text[i+wsLen:]
		if afterWS == "" || wsLen == 1 {
			chunks = append(chunks, text[i:i+wsLen])
			i += wsLen
			continue
		}
		lastRuneStart := prevRuneStart(text, i+wsLen)
		chunks = append(chunks, text[i:lastRuneStart])
		i = lastRuneStart
	}
	return chunks
}

// tryWordLlama3 matches [^\r\n\p{L}\p{N}]?\p{L}+ at the start of s.
func tryWordLlama3(s string) (end int, ok bool) {
	pos := 0
	r, sz := decodeFirst(s)
	if r == 0 {
		return 0, false
	}
	if r != '\r' && r != '\n' && !isLetterRune(r) && !isDigitRune(r) {
		nr, _ := decodeFirst(s[sz:])
		if isLetterRune(nr) {
			pos = sz
		}
	}
	letterStart := pos
	letterLen := runLength(s[letterStart:], isLetterRune)
	if letterLen == 0 {
		return 0, false
	}
	return letterStart + letterLen, true
}

func tryWhitespaceWithNewline(s string) (end int, ok bool) {
	wsLen := runLength(s, isWhitespaceRune)
	last := strings.LastIndexAny(s[:wsLen], "\r\n")
	if last < 0 {
		return 0, false
	}
	return last + 1, true
}

// SplitGeneric splits text on pattern, the fallback for any model family
// whose pretokenizer is expressed as an arbitrary regular expression rather
// than one of the two hand-rolled fast paths. pattern is expected to use
// FindAllString semantics (each match is one chunk); unmatched characters
// between matches are each emitted as their own single-codepoint chunk so no
// input byte is silently dropped. The regexp runs directly over the original
// text; no collapsed sentinel text is built and pattern classes are not
// rewritten, so only what the RE2 engine supports (no lookahead) is usable.
func SplitGeneric(text string, pattern *regexp.Regexp) []string {
	var chunks []string
	locs := pattern.FindAllStringIndex(text, -1)
	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			chunks = append(chunks, splitRunes(text[pos:loc[0]])...)
		}
		chunks = append(chunks, text[loc[0]:loc[1]])
		pos = loc[1]
	}
	if pos < len(text) {
		chunks = append(chunks, splitRunes(text[pos:])...)
	}
	return chunks
}

func splitRunes(s string) []string {
	var out []string
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// --- rune classification and scanning helpers ---

func decodeFirst(s string) (r rune, size int) {
	if s == "" {
		return 0, 0
	}
	r, size = utf8.DecodeRuneInString(s)
	return r, size
}

func prevRuneStart(s string, pos int) int {
	if pos == 0 {
		return 0
	}
	i := pos - 1
	for i > 0 && isContinuationByte(s[i]) {
		i--
	}
	return i
}

func isContinuationByte(b byte) bool { return b&0xC0 == 0x80 }

func runLength(s string, accept func(rune) bool) int {
	n := 0
	for n < len(s) {
		r, sz := decodeFirst(s[n:])
		if sz == 0 || !accept(r) {
			break
		}
		n += sz
	}
	return n
}

func isLetterStart(s string) bool {
	r, _ := decodeFirst(s)
	return isLetterRune(r)
}

func isDigitStart(s string) bool {
	r, _ := decodeFirst(s)
	return isDigitRune(r)
}

func isOtherStart(s string) bool {
	r, _ := decodeFirst(s)
	return isOtherRune(r)
}

func isLetterRune(r rune) bool {
	f := utok.CptFlags(r)
	return f.IsLetter
}

func isDigitRune(r rune) bool {
	f := utok.CptFlags(r)
	return f.IsNumber
}

func isWhitespaceRune(r rune) bool {
	f := utok.CptFlags(r)
	return f.IsWhitespace
}

func isCRLFRune(r rune) bool { return r == '\r' || r == '\n' }

func isOtherRune(r rune) bool {
	return !isWhitespaceRune(r) && !isLetterRune(r) && !isDigitRune(r)
}
