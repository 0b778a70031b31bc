// Package fragment implements the special-token partitioner (C4): splitting
// raw input text into a sequence of fragments that are either plain text
// spans (destined for a BPE/SPM session) or already-resolved special token
// ids, so that a special token's literal text is never itself merge-split.
package fragment

import (
	"strings"

	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
)

// Kind tags a Fragment's payload.
type Kind int

const (
	KindRawText Kind = iota
	KindToken
)

// Fragment is either a raw text span (Owner[Offset:Offset+Length]) or an
// already-resolved special token id. Raw spans are offsets into Owner rather
// than copied substrings, so partitioning a long input allocates nothing per
// fragment beyond the slice header.
type Fragment struct {
	Kind   Kind
	Owner  string
	Offset int
	Length int
	Token  vocab.TokenId
}

// Text returns the fragment's raw text span. Only meaningful for KindRawText.
func (f Fragment) Text() string {
	return f.Owner[f.Offset : f.Offset+f.Length]
}

func rawText(owner string, offset, length int) Fragment {
	return Fragment{Kind: KindRawText, Owner: owner, Offset: offset, Length: length}
}

func token(id vocab.TokenId) Fragment {
	return Fragment{Kind: KindToken, Token: id}
}

// List is a sequence of fragments, built left to right during partitioning.
type List []Fragment

// PartitionSpecial splits text on every occurrence of a special token's
// literal text, replacing the match with a KindToken fragment and leaving the
// surrounding text as KindRawText fragments.
//
// parseSpecial gates recognition per candidate token, not globally: a token
// is only skipped (left as ordinary text) when parseSpecial is false AND its
// attribute intersects {Control, Unknown}. A UserDefined-only special token
// is still split out regardless of parseSpecial, matching §4.4 step 1.
//
// Vocab.SpecialTokens is already sorted by descending text length (see
// vocab.Vocabulary), so scanning special tokens in that order and taking the
// first match at each raw span guarantees the longest applicable special
// token wins at every position, regardless of id order.
func PartitionSpecial(v *vocab.Vocabulary, text string, parseSpecial bool) List {
	if len(text) == 0 {
		return nil
	}

	frags := List{rawText(text, 0, len(text))}
	for _, id := range v.SpecialTokens() {
		td, err := v.GetTokenData(id)
		if err != nil || td.Text == "" {
			continue
		}
		if !parseSpecial && td.Attribute.Has(vocab.Control|vocab.Unknown) {
			continue
		}
		frags = splitOnLiteral(frags, id, td.Text, td.Attribute)
	}
	return compact(frags)
}

// splitOnLiteral rewrites every raw fragment in frags that contains literal,
// splitting it into raw/token/raw triples around each non-overlapping match.
// Already-resolved token fragments are left untouched, so an earlier (longer)
// special token's match can never be re-split by a later, shorter one.
//
// If attr carries LStrip, whitespace immediately preceding the match is
// absorbed into the token (removed from the preceding raw span); if it
// carries RStrip, whitespace immediately following the match is absorbed the
// same way, per §4.4 steps 2 and 4.
func splitOnLiteral(frags List, id vocab.TokenId, literal string, attr vocab.TokenAttribute) List {
	var out List
	for _, f := range frags {
		if f.Kind != KindRawText {
			out = append(out, f)
			continue
		}
		text := f.Text()
		pos := 0
		for {
			idx := strings.Index(text[pos:], literal)
			if idx < 0 {
				if pos < len(text) {
					out = append(out, rawText(f.Owner, f.Offset+pos, len(text)-pos))
				}
				break
			}
			matchStart := pos + idx
			matchEnd := matchStart + len(literal)

			if attr.Has(vocab.LStrip) {
				for matchStart > pos && isStrippableByte(text[matchStart-1]) {
					matchStart--
				}
			}
			if matchStart > pos {
				out = append(out, rawText(f.Owner, f.Offset+pos, matchStart-pos))
			}
			out = append(out, token(id))

			if attr.Has(vocab.RStrip) {
				for matchEnd < len(text) && isStrippableByte(text[matchEnd]) {
					matchEnd++
				}
			}
			pos = matchEnd
		}
	}
	return out
}

// isStrippableByte reports whether b is whitespace eligible for LStrip/RStrip
// trimming around a special token match.
func isStrippableByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// compact drops zero-length raw fragments that can arise from adjacent
// special-token matches.
func compact(frags List) List {
	out := frags[:0]
	for _, f := range frags {
		if f.Kind == KindRawText && f.Length == 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}
