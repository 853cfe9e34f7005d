package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding names understood by NewTikToken.
const (
	// GPT2Encoding is the byte-level BPE shared by GPT-2 and GPT-3 base models.
	GPT2Encoding = "r50k_base"
	// P50kEncoding adds whitespace tokens for code (Codex).
	P50kEncoding = "p50k_base"
	// CL100kEncoding is the GPT-3.5/GPT-4 vocabulary.
	CL100kEncoding = "cl100k_base"
)

type encodingInfo struct {
	vocab int
	eos   int32
}

var encodings = map[string]encodingInfo{
	GPT2Encoding:   {vocab: 50257, eos: 50256},
	P50kEncoding:   {vocab: 50281, eos: 50256},
	CL100kEncoding: {vocab: 100277, eos: 100257},
}

// TikToken wraps pkoukk/tiktoken-go.
//
// tiktoken-go fetches the BPE ranks on first use and caches them in
// TIKTOKEN_CACHE_DIR when set.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
	info     encodingInfo
}

// NewTikToken loads one of the encodings listed above.
func NewTikToken(name string) (*TikToken, error) {
	info, ok := encodings[name]
	if !ok {
		return nil, fmt.Errorf("unsupported tiktoken encoding %q", name)
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", name, err)
	}
	return &TikToken{encoding: enc, name: name, info: info}, nil
}

// Encode converts text to token IDs. Special-token text is encoded as
// ordinary text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	ids := t.encoding.Encode(text, nil, nil)
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id) //nolint:gosec // ids are below the vocabulary size
	}
	return out, nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int32) (string, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		if tok < 0 || int(tok) >= t.info.vocab {
			return "", fmt.Errorf("token %d outside %s vocabulary", tok, t.name)
		}
		ids[i] = int(tok)
	}
	return t.encoding.Decode(ids), nil
}

// VocabSize returns the number of ids including special tokens.
func (t *TikToken) VocabSize() int {
	return t.info.vocab
}

// EosToken returns the <|endoftext|> id.
func (t *TikToken) EosToken() int32 {
	return t.info.eos
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
