package vocab

import "github.com/pkg/errors"

// Sentinel errors returned (wrapped) by this package.
var (
	// ErrMalformedVocabulary is returned by Load when the Source fails a
	// basic structural check (no tokens, unknown model_name, invalid
	// UTF-8 token text, an unparsable merge line).
	ErrMalformedVocabulary = errors.New("vocab: malformed vocabulary")

	// ErrOutOfRange is returned when a token id exceeds n_tokens.
	ErrOutOfRange = errors.New("vocab: token id out of range")

	// ErrMissingByteToken is returned when a byte has no corresponding
	// vocabulary entry under either byte-fallback convention.
	ErrMissingByteToken = errors.New("vocab: missing byte-fallback token")

	// ErrUnsupportedVocabType is returned when tokenize/detokenize is
	// attempted on a vocabulary whose type is neither BPE nor SPM.
	ErrUnsupportedVocabType = errors.New("vocab: unsupported vocabulary type")
)
