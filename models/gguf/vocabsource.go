package gguf

import (
	"fmt"

	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
)

// Standard GGUF tokenizer metadata keys. See the llama.cpp GGUF tokenizer
// metadata convention this key set follows.
const (
	keyModel                  = "tokenizer.ggml.model"
	keyTokens                 = "tokenizer.ggml.tokens"
	keyScores                 = "tokenizer.ggml.scores"
	keyTokenType              = "tokenizer.ggml.token_type"
	keyMerges                 = "tokenizer.ggml.merges"
	keyAddSpacePrefix         = "tokenizer.ggml.add_space_prefix"
	keyRemoveExtraWhitespaces = "tokenizer.ggml.remove_extra_whitespaces"
	keyAddBOS                 = "tokenizer.ggml.add_bos_token"
	keyAddEOS                 = "tokenizer.ggml.add_eos_token"
)

// VocabularySource builds a vocab.Source from this file's tokenizer metadata.
// It never interprets tensor payloads; it only reads the KV block that was
// already parsed by Open. The caller still needs to pass the result through
// vocab.Load.
func (f *File) VocabularySource() (vocab.Source, error) {
	modelKV, ok := f.GetKeyValue(keyModel)
	if !ok {
		return vocab.Source{}, fmt.Errorf("gguf: missing required key %q", keyModel)
	}
	tokensKV, ok := f.GetKeyValue(keyTokens)
	if !ok {
		return vocab.Source{}, fmt.Errorf("gguf: missing required key %q", keyTokens)
	}

	src := vocab.Source{
		ModelName: modelKV.String(),
		Tokens:    tokensKV.Strings(),
	}

	if kv, ok := f.GetKeyValue(keyScores); ok {
		src.Scores = toFloat32Slice(kv.Floats())
	}
	if kv, ok := f.GetKeyValue(keyTokenType); ok {
		src.TokenTypes = toInt32Slice(kv.Ints())
	}
	if kv, ok := f.GetKeyValue(keyMerges); ok {
		src.Merges = kv.Strings()
	}

	src.AddSpacePrefix = boolPtr(f, keyAddSpacePrefix)
	src.RemoveExtraWhitespaces = boolPtr(f, keyRemoveExtraWhitespaces)
	src.AddBOSToken = boolPtr(f, keyAddBOS)
	src.AddEOSToken = boolPtr(f, keyAddEOS)

	return src, nil
}

func boolPtr(f *File, key string) *bool {
	kv, ok := f.GetKeyValue(key)
	if !ok {
		return nil
	}
	b := kv.Bool()
	return &b
}

func toFloat32Slice(in []float64) []float32 {
	if in == nil {
		return nil
	}
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func toInt32Slice(in []int64) []int32 {
	if in == nil {
		return nil
	}
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
