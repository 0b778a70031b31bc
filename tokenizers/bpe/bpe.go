// Package bpe implements the byte-level BPE session (C5): merging a
// pretokenized chunk's symbols using the vocabulary's merge-rank table, via
// a doubly-linked symbol chain and a rank-ordered priority queue, the same
// shape GPT-2-family tokenizers use.
package bpe

import (
	"container/heap"

	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
	utok "github.com/gomlx/gguf-tokenize/tokenizers/unicode"
)

// symbol is one link in the chunk's symbol chain. prev/next are indices into
// the session's symbol slice; -1 marks a chain end. An empty text tombstones
// a symbol that has been absorbed into a merge.
type symbol struct {
	text       string
	prev, next int
}

// bigram is a candidate adjacent-pair merge, ordered by ascending rank (lower
// rank merges first) and, for ties, by ascending left position.
type bigram struct {
	left, right int // symbol chain indices
	rank        int
	text        string // left.text + right.text, used to detect staleness
}

type bigramHeap []bigram

func (h bigramHeap) Len() int { return len(h) }
func (h bigramHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].left < h[j].left
}
func (h bigramHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *bigramHeap) Push(x any)        { *h = append(*h, x.(bigram)) }
func (h *bigramHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Session runs byte-level BPE merges over chunks drawn from one vocabulary.
// Symbol and queue buffers are reused across calls to Merge to avoid
// per-chunk allocation churn on repeated tokenize calls.
type Session struct {
	v       *vocab.Vocabulary
	symbols []symbol
	queue   bigramHeap
}

// NewSession creates a BPE session bound to v.
func NewSession(v *vocab.Vocabulary) *Session {
	return &Session{v: v}
}

// Merge runs byte-level BPE over a single pretokenized chunk and appends the
// resulting token ids to dst.
//
// The chunk's raw bytes are first translated through the GPT-2 byte-to-unicode
// mapping (byte_to_utf8), and the merge loop operates entirely on that mapped
// text — not on the chunk's original bytes. This is required both because
// bpe_ranks is itself keyed on byte-mapped merge pairs, and because it is the
// only reading under which two literal ASCII spaces collapse to the single
// byte-mapped "double space" token a real GPT-2 vocabulary assigns them,
// rather than two separate single-space tokens.
func (s *Session) Merge(dst []vocab.TokenId, chunk string) ([]vocab.TokenId, error) {
	if chunk == "" {
		return dst, nil
	}

	mapped := mapBytes(chunk)

	if s.v.IgnoreMerges {
		if id := s.v.TextToToken(mapped); id != vocab.NullToken {
			return append(dst, id), nil
		}
	}

	s.resetSymbols(mapped)
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

// mapBytes translates every byte of chunk through the GPT-2 byte-to-unicode
// table, returning the mapped string used for symbol decomposition.
func mapBytes(chunk string) string {
	var out []byte
	for i := 0; i < len(chunk); i++ {
		out = append(out, utok.ByteToUTF8(chunk[i])...)
	}
	return string(out)
}

// resetSymbols decomposes mapped text into one symbol per mapped codepoint
// (each codepoint corresponds to exactly one original byte).
func (s *Session) resetSymbols(mapped string) {
	s.symbols = s.symbols[:0]
	runes := []rune(mapped)
	for i, r := range runes {
		prev, next := i-1, i+1
		if next >= len(runes) {
			next = -1
		}
		s.symbols = append(s.symbols, symbol{text: string(r), prev: prev, next: next})
	}
}

func (s *Session) seedQueue() {
	s.queue = s.queue[:0]
	for i := 0; i+1 < len(s.symbols); i++ {
		s.tryAddBigram(i, i+1)
	}
	heap.Init(&s.queue)
}

func (s *Session) tryAddBigram(left, right int) {
	lt, rt := s.symbols[left].text, s.symbols[right].text
	rank := s.v.FindBPERank(lt, rt)
	if rank < 0 {
		return
	}
	heap.Push(&s.queue, bigram{left: left, right: right, rank: rank, text: lt + rt})
}

// stillValid checks the popped bigram's symbols are still chain-adjacent and
// their concatenation still matches what was recorded at push time — a
// symbol may have been absorbed by an intervening merge, in which case this
// heap entry is stale and must be discarded without side effects.
func (s *Session) stillValid(bg bigram) bool {
	left, right := s.symbols[bg.left], s.symbols[bg.right]
	if left.text == "" || right.text == "" {
		return false
	}
	if left.next != bg.right {
		return false
	}
	return left.text+right.text == bg.text
}

func (s *Session) applyMerge(bg bigram) {
	left, right := &s.symbols[bg.left], &s.symbols[bg.right]
	left.text = left.text + right.text
	left.next = right.next
	if right.next != -1 {
		s.symbols[right.next].prev = bg.left
	}
	right.text = "" // tombstone

	if left.prev != -1 {
		s.tryAddBigram(left.prev, bg.left)
	}
	if left.next != -1 {
		s.tryAddBigram(bg.left, left.next)
	}
}

// emit walks the surviving symbol chain and resolves each symbol's final
// vocabulary id. A symbol that is itself a vocabulary entry resolves
// directly; otherwise it is split back into its individual single-mapped-rune
// pieces (each corresponding to one original byte) and each piece is looked
// up on its own, silently skipping any that are themselves missing.
func (s *Session) emit(dst []vocab.TokenId) ([]vocab.TokenId, error) {
	i := 0
	for i < len(s.symbols) && s.symbols[i].text == "" {
		i++
	}
	for i != -1 {
		text := s.symbols[i].text
		if id := s.v.TextToToken(text); id != vocab.NullToken {
			dst = append(dst, id)
		} else {
			for _, r := range text {
				if id := s.v.TextToToken(string(r)); id != vocab.NullToken {
					dst = append(dst, id)
				}
			}
		}
		i = s.symbols[i].next
	}
	return dst, nil
}
