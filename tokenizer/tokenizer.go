// Package tokenizer provides text tokenization for the generation CLI and
// the generate package.
//
// Supported tokenizers:
//   - TikToken: OpenAI BPE tokenizers (r50k_base is the GPT-2 vocabulary)
//
// Example usage:
//
//	import "github.com/born-ml/cachedbert/tokenizer"
//
//	tok, err := tokenizer.NewTikToken(tokenizer.GPT2Encoding)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tokens, err := tok.Encode("Hello world") // [15496 995]
//	text, err := tok.Decode(tokens)
package tokenizer

import (
	"github.com/born-ml/cachedbert/internal/tokenizer"
)

// Tokenizer converts between text and token ids.
type Tokenizer = tokenizer.Tokenizer

// TikToken wraps a tiktoken encoding.
type TikToken = tokenizer.TikToken

// Encoding names accepted by NewTikToken.
const (
	GPT2Encoding   = tokenizer.GPT2Encoding
	P50kEncoding   = tokenizer.P50kEncoding
	CL100kEncoding = tokenizer.CL100kEncoding
)

// NewTikToken loads the named encoding. The first call may download the
// BPE ranks.
func NewTikToken(name string) (*TikToken, error) {
	return tokenizer.NewTikToken(name)
}

// CheckVocab reports an error when tok can produce ids that a model with
// modelVocab embeddings cannot look up.
func CheckVocab(tok Tokenizer, modelVocab int) error {
	return tokenizer.CheckVocab(tok, modelVocab)
}
