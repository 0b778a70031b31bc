// Package spm implements the SentencePiece-style unigram-scored BPE session
// (C6): merging codepoint symbols by highest merged-piece score rather than
// by a fixed merge rank, with recursive resegmentation and single-byte
// fallback via "<0xHH>" tokens for anything never seen in training.
package spm

import (
	"container/heap"
	"fmt"

	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
)

// symbol is one link in the chunk's symbol chain, same shape as the
// byte-level BPE session's but with no byte-mapping step: SPM symbols start
// as raw single-codepoint decompositions of the original text.
type symbol struct {
	text       string
	prev, next int
	size       int // codepoint count, used for the bigram staleness check
}

// bigram is a candidate merge of two adjacent symbols, scored by the
// resulting merged piece's vocabulary score. Ties break toward the earlier
// (smaller index) left symbol, matching a stable left-to-right scan.
type bigram struct {
	left, right int
	score       float32
	size        int // left.size + right.size at push time
}

type bigramHeap []bigram

func (h bigramHeap) Len() int { return len(h) }
func (h bigramHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score // larger score first
	}
	return h[i].left < h[j].left
}
func (h bigramHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *bigramHeap) Push(x any)   { *h = append(*h, x.(bigram)) }
func (h *bigramHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Session runs unigram-scored BPE merges over chunks drawn from one
// vocabulary.
type Session struct {
	v       *vocab.Vocabulary
	symbols []symbol
	queue   bigramHeap

	// revMerge maps a merged piece's text to the pair of component texts it
	// was built from, captured at merge time. Keying on text rather than
	// chain indices means a later merge reusing the same index never
	// invalidates an earlier entry.
	revMerge map[string][2]string
}

// NewSession creates an SPM session bound to v.
func NewSession(v *vocab.Vocabulary) *Session {
	return &Session{v: v, revMerge: make(map[string][2]string)}
}

// Merge runs unigram-scored BPE over a single pretokenized chunk (already
// decomposed into raw codepoints, no byte-mapping step — unlike the
// byte-level BPE session, SPM symbols are the original text's own
// codepoints) and appends the resulting token ids to dst.
func (s *Session) Merge(dst []vocab.TokenId, chunk string) ([]vocab.TokenId, error) {
	if chunk == "" {
		return dst, nil
	}

	s.resetSymbols(chunk)
	for k := range s.revMerge {
		delete(s.revMerge, k)
	}
	s.seedQueue()

	for s.queue.Len() > 0 {
		bg := heap.Pop(&s.queue).(bigram)
		if !s.stillValid(bg) {
			continue
		}
		s.applyMerge(bg)
	}

	return s.emit(dst)
}

func (s *Session) resetSymbols(chunk string) {
	s.symbols = s.symbols[:0]
	runes := []rune(chunk)
	for i, r := range runes {
		prev, next := i-1, i+1
		if next >= len(runes) {
			next = -1
		}
		s.symbols = append(s.symbols, symbol{text: string(r), prev: prev, next: next, size: 1})
	}
}

func (s *Session) seedQueue() {
	s.queue = s.queue[:0]
	for i := 0; i+1 < len(s.symbols); i++ {
		s.tryAddBigram(i, i+1)
	}
	heap.Init(&s.queue)
}

// tryAddBigram pushes a candidate merge only if the concatenated piece is
// itself a known vocabulary entry — unigram scoring never invents new
// pieces, it only ever re-merges toward pieces the training run already saw.
func (s *Session) tryAddBigram(left, right int) {
	merged := s.symbols[left].text + s.symbols[right].text
	id := s.v.TextToToken(merged)
	if id == vocab.NullToken {
		return
	}
	td, err := s.v.GetTokenData(id)
	if err != nil {
		return
	}
	heap.Push(&s.queue, bigram{
		left:  left,
		right: right,
		score: td.Score,
		size:  s.symbols[left].size + s.symbols[right].size,
	})
}

// stillValid uses the combined codepoint-count check (size) rather than text
// concatenation to detect staleness: a symbol's size only ever grows via
// merges, so a mismatch proves an intervening merge already consumed one of
// this bigram's two sides.
func (s *Session) stillValid(bg bigram) bool {
	left, right := s.symbols[bg.left], s.symbols[bg.right]
	if left.size == 0 || right.size == 0 {
		return false
	}
	if left.next != bg.right {
		return false
	}
	return left.size+right.size == bg.size
}

func (s *Session) applyMerge(bg bigram) {
	left, right := &s.symbols[bg.left], &s.symbols[bg.right]
	mergedText := left.text + right.text
	s.revMerge[mergedText] = [2]string{left.text, right.text}

	left.text = mergedText
	left.size += right.size
	left.next = right.next
	if right.next != -1 {
		s.symbols[right.next].prev = bg.left
	}
	right.size = 0 // tombstone

	if left.prev != -1 {
		s.tryAddBigram(left.prev, bg.left)
	}
	if left.next != -1 {
		s.tryAddBigram(bg.left, left.next)
	}
}

// emit walks the surviving symbol chain and resolves each symbol to its
// final token sequence, recursively resegmenting any merged piece that is
// itself not a single vocabulary token back into the sub-pieces it was built
// from (resegment), and falling back to per-byte "<0xHH>" tokens for any
// piece that was never seen during training at all.
func (s *Session) emit(dst []vocab.TokenId) ([]vocab.TokenId, error) {
	i := 0
	for i != -1 {
		dst = s.resegment(dst, s.symbols[i].text)
		i = s.symbols[i].next
	}
	return dst, nil
}

// resegment resolves text to token ids: directly, if text is itself a
// vocabulary entry; by recursing into its recorded left/right merge
// components, if it is a merged piece that is not itself in the vocabulary
// (can happen once byte fallback mixes in during an earlier step); or by
// falling back to one "<0xHH>" token per raw byte otherwise.
func (s *Session) resegment(dst []vocab.TokenId, text string) []vocab.TokenId {
	if id := s.v.TextToToken(text); id != vocab.NullToken {
		return append(dst, id)
	}
	if parts, ok := s.revMerge[text]; ok {
		dst = s.resegment(dst, parts[0])
		dst = s.resegment(dst, parts[1])
		return dst
	}
	return s.byteFallback(dst, text)
}

func (s *Session) byteFallback(dst []vocab.TokenId, text string) []vocab.TokenId {
	for i := 0; i < len(text); i++ {
		hexToken := fmt.Sprintf("<0x%02X>", text[i])
		if id := s.v.TextToToken(hexToken); id != vocab.NullToken {
			dst = append(dst, id)
			continue
		}
		if id, err := s.v.ByteToToken(text[i]); err == nil {
			dst = append(dst, id)
		}
	}
	return dst
}
