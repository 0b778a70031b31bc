package gguf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularySourceGPT2(t *testing.T) {
	path := buildMinimalGGUF(t, 6, 0,
		func(b *ggufBuilder) {
			b.writeKVString("general.architecture", "gpt2")
			b.writeKVString("tokenizer.ggml.model", "gpt2")
			b.writeKVStringArray("tokenizer.ggml.tokens", []string{"a", "b", "ab"})
			b.writeKVStringArray("tokenizer.ggml.merges", []string{"a b"})
			b.writeKVBool("tokenizer.ggml.add_bos_token", false)
			b.writeKVBool("tokenizer.ggml.add_eos_token", true)
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)

	src, err := f.VocabularySource()
	require.NoError(t, err)

	assert.Equal(t, "gpt2", src.ModelName)
	assert.Equal(t, []string{"a", "b", "ab"}, src.Tokens)
	assert.Equal(t, []string{"a b"}, src.Merges)
	require.NotNil(t, src.AddBOSToken)
	assert.False(t, *src.AddBOSToken)
	require.NotNil(t, src.AddEOSToken)
	assert.True(t, *src.AddEOSToken)
	assert.Nil(t, src.AddSpacePrefix)
}

func TestVocabularySourceMissingModel(t *testing.T) {
	path := buildMinimalGGUF(t, 1, 0,
		func(b *ggufBuilder) {
			b.writeKVStringArray("tokenizer.ggml.tokens", []string{"a"})
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)

	_, err = f.VocabularySource()
	assert.ErrorContains(t, err, "tokenizer.ggml.model")
}

func TestOpenMmapMatchesOpen(t *testing.T) {
	path := buildMinimalGGUF(t, 1, 0,
		func(b *ggufBuilder) {
			b.writeKVString("general.architecture", "llama")
		},
		nil, nil)

	viaOpen, err := Open(path)
	require.NoError(t, err)
	viaMmap, err := OpenMmap(path)
	require.NoError(t, err)

	assert.Equal(t, viaOpen.Version, viaMmap.Version)
	assert.Equal(t, viaOpen.Architecture(), viaMmap.Architecture())
}
