// Package gguftok is the public tokenizer entry point (C7): tokenize/detokenize
// over a Vocabulary, dispatching to the byte-level BPE or unigram-scored SPM
// session the vocabulary's family selected, and implementing the shared
// tokenizers/api.Tokenizer contract so callers can treat a GGUF-sourced
// tokenizer like any other registered implementation.
package gguftok

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/gguf-tokenize/tokenizers/api"
	"github.com/gomlx/gguf-tokenize/tokenizers/bpe"
	"github.com/gomlx/gguf-tokenize/tokenizers/fragment"
	"github.com/gomlx/gguf-tokenize/tokenizers/pretokenize"
	"github.com/gomlx/gguf-tokenize/tokenizers/spm"
	utok "github.com/gomlx/gguf-tokenize/tokenizers/unicode"
	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
)

// spaceReplacement is SentencePiece's canonical stand-in for the space
// character, U+2581 LOWER ONE EIGHTH BLOCK ("▁").
const spaceReplacement = "▁"

// Tokenizer wraps a Vocabulary with the pretokenization pattern and merge
// session its family needs. It is not safe for concurrent use: the
// underlying bpe/spm session reuses its symbol buffers across calls.
type Tokenizer struct {
	V *vocab.Vocabulary

	// Pattern selects the pretokenization scanner for BPE vocabularies.
	// Ignored for SPM vocabularies, which do not pretokenize by regex.
	Pattern        pretokenize.Pattern
	GenericPattern *regexp.Regexp

	bpeSession *bpe.Session
	spmSession *spm.Session
}

// New creates a Tokenizer bound to v, defaulting to the GPT-2 pretokenization
// pattern for byte-level BPE vocabularies.
func New(v *vocab.Vocabulary) *Tokenizer {
	t := &Tokenizer{V: v, Pattern: pretokenize.PatternGPT2}
	switch v.VocabType() {
	case vocab.TypeBPE:
		t.bpeSession = bpe.NewSession(v)
	case vocab.TypeSPM:
		t.spmSession = spm.NewSession(v)
	}
	return t
}

// Tokenize converts text into a sequence of token ids. addSpecial prepends
// bos (if the vocabulary's add_bos_token applies) and appends eos exactly
// once after every fragment has been processed — never per-fragment, which
// would duplicate eos whenever a special token split the input into more
// than one text span. parseSpecial controls whether literal special-token
// text is recognized and split out (fragment.PartitionSpecial) or always
// treated as ordinary text to merge.
func (t *Tokenizer) Tokenize(text string, addSpecial, parseSpecial bool) ([]vocab.TokenId, error) {
	if t.V.VocabType() != vocab.TypeBPE && t.V.VocabType() != vocab.TypeSPM {
		return nil, errors.Wrapf(vocab.ErrUnsupportedVocabType, "gguftok: vocabulary type %v", t.V.VocabType())
	}

	prepped := text
	if t.V.VocabType() == vocab.TypeSPM {
		prepped = prepareSPMText(text, t.V)
	}

	var ids []vocab.TokenId
	if addSpecial && t.V.AddBOS && t.V.BOS != vocab.NullToken {
		ids = append(ids, t.V.BOS)
	}

	frags := fragment.PartitionSpecial(t.V, prepped, parseSpecial)
	if addSpecial && t.V.AddBOS && len(frags) > 0 && frags[0].Kind == fragment.KindToken && frags[0].Token == t.V.BOS {
		t.V.Warn("gguftok: input already begins with the bos token; bos emitted twice")
	}

	var err error
	for _, f := range frags {
		if f.Kind == fragment.KindToken {
			ids = append(ids, f.Token)
			continue
		}
		ids, err = t.mergeFragment(ids, f.Text())
		if err != nil {
			return nil, err
		}
	}

	if addSpecial && t.V.AddEOS && t.V.EOS != vocab.NullToken {
		ids = append(ids, t.V.EOS)
	}
	return ids, nil
}

func (t *Tokenizer) mergeFragment(dst []vocab.TokenId, raw string) ([]vocab.TokenId, error) {
	if t.V.VocabType() == vocab.TypeBPE {
		if t.Pattern == pretokenize.PatternGeneric {
			t.V.Warn("gguftok: pretokenizer fallback engaged (no hand-rolled scanner for this model family)")
		}
		chunks, err := pretokenize.Split(raw, t.Pattern, t.GenericPattern)
		if err != nil {
			return nil, errors.Wrap(err, "gguftok: pretokenize")
		}
		for _, c := range chunks {
			var err error
			dst, err = t.bpeSession.Merge(dst, c)
			if err != nil {
				return nil, errors.Wrap(err, "gguftok: bpe merge")
			}
		}
		return dst, nil
	}
	dst, err := t.spmSession.Merge(dst, raw)
	if err != nil {
		return nil, errors.Wrap(err, "gguftok: spm merge")
	}
	return dst, nil
}

// prepareSPMText applies SentencePiece's text-level preprocessing ahead of
// fragmentation: an optional leading space (so the first piece of a sentence
// merges identically to an internal word boundary), then replacing every
// literal space with the canonical "▁" stand-in.
func prepareSPMText(text string, v *vocab.Vocabulary) string {
	if v.AddSpacePrefix && !strings.HasPrefix(text, " ") {
		text = " " + text
	}
	if v.EscapeWhitespaces {
		text = strings.ReplaceAll(text, " ", spaceReplacement)
	}
	return text
}

// Detokenize converts a sequence of token ids back into text. skipSpecial
// omits the text of any id in the vocabulary's special-token set. For SPM
// vocabularies, "<0xHH>" byte-fallback tokens are written back as raw bytes.
func (t *Tokenizer) Detokenize(ids []vocab.TokenId, skipSpecial bool) (string, error) {
	var sb strings.Builder
	isBPE := t.V.VocabType() == vocab.TypeBPE

	for _, id := range ids {
		td, err := t.V.GetTokenData(id)
		if err != nil {
			return "", errors.Wrapf(err, "gguftok: detokenize")
		}
		if skipSpecial && td.Attribute.IsSpecial() {
			continue
		}
		if isBPE {
			sb.WriteString(unmapBPEText(td.Text))
			continue
		}
		if len(td.Text) == 6 && strings.HasPrefix(td.Text, "<0x") && td.Text[5] == '>' {
			if b, err := strconv.ParseUint(td.Text[3:5], 16, 8); err == nil {
				sb.WriteByte(byte(b))
				continue
			}
		}
		sb.WriteString(td.Text)
	}

	out := sb.String()
	if !isBPE && t.V.EscapeWhitespaces {
		out = strings.ReplaceAll(out, spaceReplacement, " ")
		if t.V.AddSpacePrefix {
			out = strings.TrimPrefix(out, " ")
		}
	}
	return out, nil
}

// unmapBPEText reverses the GPT-2 byte-to-unicode mapping a stream of mapped
// codepoints back into raw bytes. A codepoint with no byte mapping (should
// not occur for a well-formed BPE vocabulary) is dropped.
func unmapBPEText(mapped string) string {
	out := make([]byte, 0, len(mapped))
	for _, r := range mapped {
		if b, ok := utok.UTF8ToByte(r); ok {
			out = append(out, b)
		}
	}
	return string(out)
}

// --- tokenizers/api.Tokenizer implementation ---

// Encode implements api.Tokenizer, tokenizing with special tokens added and
// parsed.
func (t *Tokenizer) Encode(text string) []int {
	ids, err := t.Tokenize(text, true, true)
	if err != nil {
		return nil
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// Decode implements api.Tokenizer.
func (t *Tokenizer) Decode(ids []int) string {
	converted := make([]vocab.TokenId, len(ids))
	for i, id := range ids {
		converted[i] = vocab.TokenId(id)
	}
	out, err := t.Detokenize(converted, false)
	if err != nil {
		return ""
	}
	return out
}

// SpecialTokenID implements api.Tokenizer.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id vocab.TokenId
	switch token {
	case api.TokBeginningOfSentence:
		id = t.V.BOS
	case api.TokEndOfSentence:
		id = t.V.EOS
	case api.TokUnknown:
		id = t.V.Unk
	case api.TokPad:
		id = t.V.Pad
	case api.TokMask:
		id = t.V.Mask
	default:
		return 0, errors.Errorf("gguftok: unsupported special token %v", token)
	}
	if id == vocab.NullToken {
		return 0, errors.Errorf("gguftok: special token %v not present in vocabulary", token)
	}
	return int(id), nil
}

var _ api.Tokenizer = (*Tokenizer)(nil)
