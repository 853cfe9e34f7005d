// Package tokenizer converts text to the token ids consumed by the decoder
// and back.
//
// The GPT-2 checkpoints use the r50k_base byte-level BPE vocabulary (50257
// ids, <|endoftext|> = 50256), which TikToken provides:
//
//	tok, err := tokenizer.NewTikToken(tokenizer.GPT2Encoding)
//	if err != nil {
//	    return err
//	}
//	ids, err := tok.Encode("Hello, world!")
package tokenizer

import "fmt"

// Tokenizer is the interface the generator uses for text.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int32, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int32) (string, error)

	// VocabSize returns the total vocabulary size.
	VocabSize() int

	// EosToken returns the end-of-text token ID, or -1 if there is none.
	EosToken() int32
}

// CheckVocab reports an error when tok can produce ids that a model with
// modelVocab embeddings cannot look up.
func CheckVocab(tok Tokenizer, modelVocab int) error {
	if tok.VocabSize() > modelVocab {
		return fmt.Errorf("tokenizer vocabulary (%d) exceeds model vocabulary (%d)", tok.VocabSize(), modelVocab)
	}
	return nil
}
