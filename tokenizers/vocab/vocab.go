// Package vocab implements the tokenizer vocabulary (C3): the bidirectional
// token↔id mapping, per-token attributes and scores, the special-token
// catalogue, and the BPE merge-rank table. A Vocabulary is built once by Load
// and is immutable for the rest of its lifetime — sessions only ever borrow it.
package vocab

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"

	utok "github.com/gomlx/gguf-tokenize/tokenizers/unicode"
)

// TokenId identifies a single vocabulary entry.
type TokenId = uint32

// NullToken is the sentinel for an unset scalar slot (bos, eos, pad, ...).
const NullToken TokenId = 1<<32 - 1

// TokenAttribute is a bit flag set describing a token's role.
type TokenAttribute uint32

const (
	Undefined   TokenAttribute = 0
	Unknown     TokenAttribute = 1 << 0
	Unused      TokenAttribute = 1 << 1
	Normal      TokenAttribute = 1 << 2
	Control     TokenAttribute = 1 << 3
	UserDefined TokenAttribute = 1 << 4
	Byte        TokenAttribute = 1 << 5
	Normalized  TokenAttribute = 1 << 6
	LStrip      TokenAttribute = 1 << 7
	RStrip      TokenAttribute = 1 << 8
	SingleWord  TokenAttribute = 1 << 9
)

const specialMask = Control | UserDefined | Unknown

// Has reports whether a intersects flag.
func (a TokenAttribute) Has(flag TokenAttribute) bool { return a&flag != 0 }

// IsSpecial reports whether a intersects the special-token mask
// {Control, UserDefined, Unknown}.
func (a TokenAttribute) IsSpecial() bool { return a&specialMask != 0 }

// TokenData is a single vocabulary entry.
type TokenData struct {
	Text      string
	Score     float32
	Attribute TokenAttribute
}

// Type identifies which tokenization algorithm a vocabulary uses.
type Type int

const (
	TypeNone Type = iota
	TypeSPM
	TypeBPE
	TypeWPM
	TypeUGM
	TypeRWKV
)

func (t Type) String() string {
	switch t {
	case TypeSPM:
		return "SPM"
	case TypeBPE:
		return "BPE"
	case TypeWPM:
		return "WPM"
	case TypeUGM:
		return "UGM"
	case TypeRWKV:
		return "RWKV"
	default:
		return "None"
	}
}

// Source is the contract consumed from the (out-of-scope) container parser:
// an already-parsed vocabulary, ready to be frozen into a Vocabulary by Load.
type Source struct {
	ModelName  string
	Tokens     []string
	Scores     []float32 // optional; defaults to 0.0 per token
	TokenTypes []int32   // optional; defaults to Normal
	Merges     []string  // "left right", enumeration order = rank

	// Metadata booleans. nil means "absent" (fall back to the family default).
	AddSpacePrefix         *bool
	RemoveExtraWhitespaces *bool
	AddBOSToken            *bool
	AddEOSToken            *bool

	// Warnf, if set, receives Load-time non-fatal warnings (an uncatalogued
	// Control token, ...). It becomes the resulting Vocabulary's Warnf sink,
	// so callers that want to observe load-time warnings must set this here
	// rather than assigning Vocabulary.Warnf after Load returns — by then
	// scanCatalogue has already run against the default no-op sink.
	Warnf func(format string, args ...any)
}

// getBool implements the loader's boolean-combination rule: a present metadata
// value always wins over the family default, which is only consulted when the
// metadata key is entirely absent. This reproduces get_bool(model, config) from
// the reference loader bit-for-bit: when present, the metadata value is
// returned regardless of the family default.
func getBool(metadata *bool, familyDefault bool) bool {
	if metadata != nil {
		return *metadata
	}
	return familyDefault
}

// bpePair is a merge key: two token texts that combine with a known rank.
type bpePair struct {
	left, right string
}

// Vocabulary is the frozen, immutable vocabulary used by tokenize/detokenize.
type Vocabulary struct {
	idToToken []TokenData
	tokenToID map[string]TokenId
	bpeRanks  map[bpePair]int

	// specialTokens holds the ids whose attribute intersects the special mask,
	// sorted by descending token text length (see DESIGN.md: this resolves the
	// partitioner's longest-match Open Question regardless of id ordering).
	specialTokens []TokenId

	vocabType Type

	BOS, EOS, EOT, EOM, Unk, Sep, Pad, Mask TokenId
	Linefeed                                TokenId
	FimPre, FimSuf, FimMid, FimPad, FimRep, FimSep TokenId

	specialEOG map[TokenId]bool

	AddBOS, AddEOS                                    bool
	AddSpacePrefix, IgnoreMerges                       bool
	CleanSpaces, RemoveExtraWhitespaces, EscapeWhitespaces bool
	TreatWhitespaceAsSuffix                            bool

	// Warnf receives non-fatal warnings (duplicate BOS, pretokenizer fallback
	// engaged, a non-special token marked Control, ...). Never written to
	// stdout by the core (see SPEC_FULL.md §7); defaults to a no-op.
	Warnf func(format string, args ...any)
}

// catalogue entries: literal text -> which scalar slot it resolves.
type catalogueEntry struct {
	slot     *TokenId
	literals []string
}

// Load builds a frozen Vocabulary from src. model_name selects the family:
// "gpt2" produces a BPE vocabulary, "llama" produces an SPM vocabulary; any
// other value is a MalformedVocabulary error (the switch is intentionally
// left open for future families, per the external contract).
func Load(src Source) (*Vocabulary, error) {
	if len(src.Tokens) == 0 {
		return nil, errors.Wrap(ErrMalformedVocabulary, "vocab: no tokens provided")
	}

	v := &Vocabulary{
		idToToken:  make([]TokenData, len(src.Tokens)),
		tokenToID:  make(map[string]TokenId, len(src.Tokens)),
		bpeRanks:   make(map[bpePair]int, len(src.Merges)),
		specialEOG: make(map[TokenId]bool),
		BOS:        NullToken, EOS: NullToken, EOT: NullToken, EOM: NullToken,
		Unk: NullToken, Sep: NullToken, Pad: NullToken, Mask: NullToken,
		Linefeed: NullToken,
		FimPre:   NullToken, FimSuf: NullToken, FimMid: NullToken,
		FimPad: NullToken, FimRep: NullToken, FimSep: NullToken,
		Warnf: func(string, ...any) {},
	}
	if src.Warnf != nil {
		v.Warnf = src.Warnf
	}

	switch src.ModelName {
	case "gpt2":
		v.vocabType = TypeBPE
		v.CleanSpaces = true
		v.EscapeWhitespaces = false
	case "llama":
		v.vocabType = TypeSPM
		v.AddSpacePrefix = true
		v.EscapeWhitespaces = true
	default:
		return nil, errors.Wrapf(ErrMalformedVocabulary, "vocab: unsupported model_name %q", src.ModelName)
	}

	v.AddBOS = getBool(src.AddBOSToken, v.vocabType == TypeSPM)
	v.AddEOS = getBool(src.AddEOSToken, false)
	v.AddSpacePrefix = getBool(src.AddSpacePrefix, v.AddSpacePrefix)
	v.RemoveExtraWhitespaces = getBool(src.RemoveExtraWhitespaces, false)

	for id, text := range src.Tokens {
		var score float32
		if id < len(src.Scores) {
			score = src.Scores[id]
		}
		attr := Normal
		if id < len(src.TokenTypes) {
			attr = TokenAttribute(src.TokenTypes[id])
		}
		if !utf8.ValidString(text) {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "vocab: token %d is not valid UTF-8", id)
		}
		v.idToToken[id] = TokenData{Text: text, Score: score, Attribute: attr}
		if _, exists := v.tokenToID[text]; !exists {
			v.tokenToID[text] = TokenId(id)
		}
	}

	for rank, merge := range src.Merges {
		left, right, ok := splitMerge(merge)
		if !ok {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "vocab: malformed merge entry %q", merge)
		}
		v.bpeRanks[bpePair{left, right}] = rank
	}

	v.scanCatalogue()
	v.buildSpecialTokens()

	if v.vocabType == TypeBPE {
		v.Linefeed = v.computeBPELinefeed()
	} else {
		v.Linefeed = v.byteOrTextLookupSPM("\n")
	}

	return v, nil
}

func splitMerge(merge string) (left, right string, ok bool) {
	for i := 0; i < len(merge); i++ {
		if merge[i] == ' ' {
			return merge[:i], merge[i+1:], true
		}
	}
	return "", "", false
}

// Special-token literal catalogue, per family (see SPEC_FULL.md §6).
var eotLiterals = []string{
	"<|eot_id|>", "<|im_end|>", "<|end|>", "<end_of_turn>", "<|endoftext|>",
	"< EOT >", "_< EOT >", "<｜end▁of▁sentence｜>",
}
var eomLiterals = []string{"<|eom_id|>"}
var fimPreLiterals = []string{"<|fim_prefix|>", "<fim-prefix>", "<｜fim▁begin｜>", "<PRE>", "▁<PRE>"}
var fimSufLiterals = []string{"<|fim_suffix|>", "<fim-suffix>", "<｜fim▁hole｜>", "<SUF>", "▁<SUF>"}
var fimMidLiterals = []string{"<|fim_middle|>", "<fim-middle>", "<｜fim▁end｜>", "<MID>", "▁<MID>"}
var fimPadLiterals = []string{"<|fim_pad|>", "<fim-pad>", "<PAD>"}
var fimRepLiterals = []string{"<|fim_repo|>", "<|repo_name|>", "<fim-repo>", "<REPO>"}
var fimSepLiterals = []string{"<|file_sep|>"}

// scanCatalogue matches the fixed special-token literal catalogue against the
// vocabulary and populates the corresponding scalar slots. A catalogue hit
// ORs the Control bit into the token's attribute if not already present. Note
// that EOT synonyms populate `eos`, not `eot` — `eot` is a declared slot that
// this catalogue never assigns, matching the reference loader exactly.
func (v *Vocabulary) scanCatalogue() {
	entries := []catalogueEntry{
		{&v.EOS, eotLiterals},
		{&v.EOM, eomLiterals},
		{&v.FimPre, fimPreLiterals},
		{&v.FimSuf, fimSufLiterals},
		{&v.FimMid, fimMidLiterals},
		{&v.FimPad, fimPadLiterals},
		{&v.FimRep, fimRepLiterals},
		{&v.FimSep, fimSepLiterals},
	}
	for _, e := range entries {
		for _, lit := range e.literals {
			id, ok := v.tokenToID[lit]
			if !ok {
				continue
			}
			*e.slot = id
			if !v.idToToken[id].Attribute.Has(Control) {
				v.idToToken[id].Attribute |= Control
			}
			break
		}
	}

	for id := range v.idToToken {
		tid := TokenId(id)
		if tid == v.FimPad || tid == v.FimRep || tid == v.FimSep {
			v.specialEOG[tid] = true
		}
	}
	for _, lit := range eotLiterals {
		if id, ok := v.tokenToID[lit]; ok {
			v.specialEOG[id] = true
		}
	}
	for _, lit := range eomLiterals {
		if id, ok := v.tokenToID[lit]; ok {
			v.specialEOG[id] = true
		}
	}

	// Warn about any token marked Control that the catalogue never assigned
	// to a scalar slot and that isn't in the end-of-generation set: the
	// vocabulary declared it a control token, but this loader has no
	// recognized role for it, so it will be treated as an ordinary special
	// token by the partitioner without any of bos/eos/eot/fim semantics.
	for id, td := range v.idToToken {
		tid := TokenId(id)
		if td.Attribute.Has(Control) && !v.specialEOG[tid] && !v.isCatalogued(tid) {
			v.Warn("vocab: token %d (%q) marked Control but not recognized by the special-token catalogue", tid, td.Text)
		}
	}
}

// isCatalogued reports whether id was assigned to one of the scalar
// catalogue slots during scanCatalogue.
func (v *Vocabulary) isCatalogued(id TokenId) bool {
	switch id {
	case v.EOS, v.EOM, v.FimPre, v.FimSuf, v.FimMid, v.FimPad, v.FimRep, v.FimSep:
		return true
	default:
		return false
	}
}

// buildSpecialTokens collects every token whose attribute intersects the
// special mask, then sorts the result by descending text length. This is the
// documented fix for the partitioner's longest-match Open Question: the
// reference iterates special tokens in id order, which only finds the longest
// match by accident; sorting by length guarantees it regardless of id order.
func (v *Vocabulary) buildSpecialTokens() {
	var ids []TokenId
	for id, td := range v.idToToken {
		if td.Attribute.IsSpecial() {
			ids = append(ids, TokenId(id))
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := len(v.idToToken[ids[i]].Text), len(v.idToToken[ids[j]].Text)
		if li != lj {
			return li > lj
		}
		return ids[i] < ids[j]
	})
	v.specialTokens = ids
}

// SpecialTokens returns the ids of all special tokens, sorted by descending
// text length (see buildSpecialTokens).
func (v *Vocabulary) SpecialTokens() []TokenId { return v.specialTokens }

// VocabType reports which tokenization algorithm this vocabulary uses.
func (v *Vocabulary) VocabType() Type { return v.vocabType }

// NTokens returns the number of tokens in the vocabulary.
func (v *Vocabulary) NTokens() int { return len(v.idToToken) }

// TextToToken returns the id of the exact token text str, or NullToken.
func (v *Vocabulary) TextToToken(str string) TokenId {
	if id, ok := v.tokenToID[str]; ok {
		return id
	}
	return NullToken
}

// GetTokenData returns the TokenData for id, or ErrOutOfRange.
func (v *Vocabulary) GetTokenData(id TokenId) (TokenData, error) {
	if int(id) >= len(v.idToToken) {
		return TokenData{}, errors.Wrapf(ErrOutOfRange, "vocab: token id %d >= n_tokens %d", id, len(v.idToToken))
	}
	return v.idToToken[id], nil
}

// IsEOG reports whether id is in the special end-of-generation set (the union
// of fim_pad, fim_rep, fim_sep when set, and all catalogued EOT/EOM literals
// present in the vocabulary).
func (v *Vocabulary) IsEOG(id TokenId) bool { return v.specialEOG[id] }

// FindBPERank returns the merge rank for the pair (left, right), or -1 if the
// pair has no recorded merge.
func (v *Vocabulary) FindBPERank(left, right string) int {
	if r, ok := v.bpeRanks[bpePair{left, right}]; ok {
		return r
	}
	return -1
}

// ByteToToken implements the byte-fallback lookup (§4.3): for SPM/UGM
// vocabularies it tries "<0xHH>" (uppercase hex) then the raw single-byte
// string; for BPE/WPM it looks up byte_to_utf8(byte). Both fail fatally
// (MissingByteToken) if no mapping is found, since a complete vocabulary must
// cover every byte value.
func (v *Vocabulary) ByteToToken(b byte) (TokenId, error) {
	if v.vocabType == TypeBPE || v.vocabType == TypeWPM {
		mapped := utok.ByteToUTF8(b)
		if id, ok := v.tokenToID[mapped]; ok {
			return id, nil
		}
		return NullToken, errors.Wrapf(ErrMissingByteToken, "vocab: no token for byte %#x via byte_to_utf8", b)
	}
	hex := fmt.Sprintf("<0x%02X>", b)
	if id, ok := v.tokenToID[hex]; ok {
		return id, nil
	}
	raw := string([]byte{b})
	if id, ok := v.tokenToID[raw]; ok {
		return id, nil
	}
	return NullToken, errors.Wrapf(ErrMissingByteToken, "vocab: no token for byte %#x via <0xHH> or raw byte", b)
}

// computeBPELinefeed resolves the linefeed slot for byte-level BPE
// vocabularies: the newline byte never falls in GPT-2's printable ranges, so
// it always routes through byte_to_utf8 to a codepoint at U+0100 or above.
func (v *Vocabulary) computeBPELinefeed() TokenId {
	if id, err := v.ByteToToken('\n'); err == nil {
		return id
	}
	return NullToken
}

// byteOrTextLookupSPM is the SPM-family linefeed lookup: try the byte-fallback
// table directly rather than round-tripping through a BPE-style session.
func (v *Vocabulary) byteOrTextLookupSPM(s string) TokenId {
	if id, ok := v.tokenToID[s]; ok {
		return id
	}
	if len(s) == 1 {
		if id, err := v.ByteToToken(s[0]); err == nil {
			return id
		}
	}
	return NullToken
}

// Warn reports a non-fatal condition through the pluggable sink. Exported so
// callers outside this package (e.g. the gguftok tokenize entry point) can
// route their own warnings through the same sink a Vocabulary was configured
// with.
func (v *Vocabulary) Warn(format string, args ...any) {
	if v.Warnf != nil {
		v.Warnf(format, args...)
	}
}
