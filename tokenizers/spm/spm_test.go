package spm

import (
	"testing"

	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
)

func llamaVocab(t *testing.T, tokens []string, scores []float32) *vocab.Vocabulary {
	t.Helper()
	// Every vocabulary needs <0xHH> byte-fallback tokens to be complete; add
	// a representative handful rather than all 256 to keep fixtures small.
	tokens = append(tokens, "<0x61>", "<0x62>", "<0x63>", "<0x20>")
	scores = append(scores, 0, 0, 0, 0)
	v, err := vocab.Load(vocab.Source{
		ModelName: "llama",
		Tokens:    tokens,
		Scores:    scores,
	})
	if err != nil {
		t.Fatalf("vocab.Load: %v", err)
	}
	return v
}

func TestMergePrefersHighestScore(t *testing.T) {
	// Pieces: "a", "b", "c", "ab" (score 1), "bc" (score 2), "abc" (score 3).
	// With "bc" scoring higher than "ab", bc merges first; then if "abc" is
	// known, the final merge to "abc" should still happen since it has the
	// highest score once both adjacent merges are candidates.
	tokens := []string{"a", "b", "c", "ab", "bc", "abc"}
	scores := []float32{0, 0, 0, 1, 2, 3}
	v := llamaVocab(t, tokens, scores)
	s := NewSession(v)
	ids, err := s.Merge(nil, "abc")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids, want 1 merged token: %v", len(ids), ids)
	}
	want := v.TextToToken("abc")
	if ids[0] != want {
		t.Errorf("ids[0] = %d, want %d (abc)", ids[0], want)
	}
}

func TestMergeNoKnownMergeStaysSplit(t *testing.T) {
	tokens := []string{"a", "b"}
	scores := []float32{0, 0}
	v := llamaVocab(t, tokens, scores)
	s := NewSession(v)
	ids, err := s.Merge(nil, "ab")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2 (no merge known): %v", len(ids), ids)
	}
}

func TestMergeByteFallback(t *testing.T) {
	tokens := []string{"a", "<0x7A>"} // "z" itself has no direct entry
	scores := []float32{0, 0}
	v := llamaVocab(t, tokens, scores)
	s := NewSession(v)
	ids, err := s.Merge(nil, "z")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids, want 1 byte-fallback token: %v", len(ids), ids)
	}
	want := v.TextToToken("<0x7A>")
	if ids[0] != want {
		t.Errorf("ids[0] = %d, want %d (<0x7A>)", ids[0], want)
	}
}

func TestMergeEmptyChunk(t *testing.T) {
	v := llamaVocab(t, []string{"a"}, []float32{0})
	s := NewSession(v)
	ids, err := s.Merge(nil, "")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %d ids for empty chunk, want 0", len(ids))
	}
}

func TestMergeResetsBetweenCalls(t *testing.T) {
	tokens := []string{"a", "b", "ab"}
	scores := []float32{0, 0, 1}
	v := llamaVocab(t, tokens, scores)
	s := NewSession(v)

	first, err := s.Merge(nil, "ab")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	second, err := s.Merge(nil, "ab")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(first) != len(second) || (len(first) > 0 && first[0] != second[0]) {
		t.Errorf("Merge was not deterministic across calls: %v vs %v", first, second)
	}
}
