package cachedbert

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config holds the model hyperparameters shared by the decoder and encoder
// stacks. It is treated as immutable once a model is built from it.
type Config struct {
	// VocabSize is the size of the token vocabulary (50257 for GPT-2).
	VocabSize int `json:"vocab_size" yaml:"vocab_size"`

	// HiddenSize is the model width (768 for GPT-2 small).
	HiddenSize int `json:"hidden_size" yaml:"hidden_size"`

	// NumHiddenLayers is the number of transformer layers.
	NumHiddenLayers int `json:"num_hidden_layers" yaml:"num_hidden_layers"`

	// NumAttentionHeads must divide HiddenSize.
	NumAttentionHeads int `json:"num_attention_heads" yaml:"num_attention_heads"`

	// IntermediateSize is the feed-forward width (typically 4 * HiddenSize).
	IntermediateSize int `json:"intermediate_size" yaml:"intermediate_size"`

	// MaxPositionEmbeddings bounds past_length + seq_len.
	MaxPositionEmbeddings int `json:"max_position_embeddings" yaml:"max_position_embeddings"`

	// TypeVocabSize is the number of segment (token type) ids.
	TypeVocabSize int `json:"type_vocab_size" yaml:"type_vocab_size"`

	HiddenDropoutProb    float32 `json:"hidden_dropout_prob" yaml:"hidden_dropout_prob"`
	AttentionDropoutProb float32 `json:"attention_dropout_prob" yaml:"attention_dropout_prob"`
	LayerNormEps         float32 `json:"layer_norm_eps" yaml:"layer_norm_eps"`
}

// GPT2SmallConfig returns the 124M parameter GPT-2 shape.
func GPT2SmallConfig() Config {
	return Config{
		VocabSize:             50257,
		HiddenSize:            768,
		NumHiddenLayers:       12,
		NumAttentionHeads:     12,
		IntermediateSize:      3072,
		MaxPositionEmbeddings: 1024,
		TypeVocabSize:         2,
		HiddenDropoutProb:     0.1,
		AttentionDropoutProb:  0.1,
		LayerNormEps:          1e-5,
	}
}

// GPT2MediumConfig returns the 355M parameter GPT-2 shape.
func GPT2MediumConfig() Config {
	cfg := GPT2SmallConfig()
	cfg.HiddenSize = 1024
	cfg.NumHiddenLayers = 24
	cfg.NumAttentionHeads = 16
	cfg.IntermediateSize = 4096
	return cfg
}

// RobertaBaseConfig returns the RoBERTa base encoder shape.
func RobertaBaseConfig() Config {
	return Config{
		VocabSize:             50265,
		HiddenSize:            768,
		NumHiddenLayers:       12,
		NumAttentionHeads:     12,
		IntermediateSize:      3072,
		MaxPositionEmbeddings: 514,
		TypeVocabSize:         1,
		HiddenDropoutProb:     0.1,
		AttentionDropoutProb:  0.1,
		LayerNormEps:          1e-5,
	}
}

// GPT2DistillConfig returns the 6-layer distilled GPT-2 shape.
func GPT2DistillConfig() Config {
	cfg := GPT2SmallConfig()
	cfg.NumHiddenLayers = 6
	return cfg
}

// GPT2LargeConfig returns the 774M parameter GPT-2 shape.
func GPT2LargeConfig() Config {
	cfg := GPT2SmallConfig()
	cfg.HiddenSize = 1280
	cfg.NumHiddenLayers = 36
	cfg.NumAttentionHeads = 20
	cfg.IntermediateSize = 5120
	return cfg
}

// GPT2XLConfig returns the 1.5B parameter GPT-2 shape.
func GPT2XLConfig() Config {
	cfg := GPT2SmallConfig()
	cfg.HiddenSize = 1600
	cfg.NumHiddenLayers = 48
	cfg.NumAttentionHeads = 25
	cfg.IntermediateSize = 6400
	return cfg
}

// RobertaLargeConfig returns the RoBERTa large encoder shape.
func RobertaLargeConfig() Config {
	cfg := RobertaBaseConfig()
	cfg.HiddenSize = 1024
	cfg.NumHiddenLayers = 24
	cfg.NumAttentionHeads = 16
	cfg.IntermediateSize = 4096
	return cfg
}

var presets = map[string]func() Config{
	"gpt2-distill":  GPT2DistillConfig,
	"gpt2-small":    GPT2SmallConfig,
	"gpt2-medium":   GPT2MediumConfig,
	"gpt2-large":    GPT2LargeConfig,
	"gpt2-xl":       GPT2XLConfig,
	"roberta-base":  RobertaBaseConfig,
	"roberta-large": RobertaLargeConfig,
}

// PresetNames returns the names accepted by Preset, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a named configuration. "gpt2" is an alias of "gpt2-small".
func Preset(name string) (Config, error) {
	name = strings.ToLower(name)
	if name == "gpt2" {
		name = "gpt2-small"
	}
	fn, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return fn(), nil
}

// HeadDim returns HiddenSize / NumAttentionHeads.
func (c Config) HeadDim() int {
	return c.HiddenSize / c.NumAttentionHeads
}

// Validate checks the model-shape invariants.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"vocab_size", c.VocabSize},
		{"hidden_size", c.HiddenSize},
		{"num_hidden_layers", c.NumHiddenLayers},
		{"num_attention_heads", c.NumAttentionHeads},
		{"intermediate_size", c.IntermediateSize},
		{"max_position_embeddings", c.MaxPositionEmbeddings},
		{"type_vocab_size", c.TypeVocabSize},
	}
	for _, f := range positive {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, f.name, f.value)
		}
	}

	if c.HiddenSize%c.NumAttentionHeads != 0 {
		return fmt.Errorf("%w: hidden_size (%d) must be divisible by num_attention_heads (%d)",
			ErrInvalidConfig, c.HiddenSize, c.NumAttentionHeads)
	}
	if c.HiddenDropoutProb < 0 || c.HiddenDropoutProb >= 1 {
		return fmt.Errorf("%w: hidden_dropout_prob must be in [0, 1), got %v", ErrInvalidConfig, c.HiddenDropoutProb)
	}
	if c.AttentionDropoutProb < 0 || c.AttentionDropoutProb >= 1 {
		return fmt.Errorf("%w: attention_dropout_prob must be in [0, 1), got %v", ErrInvalidConfig, c.AttentionDropoutProb)
	}
	if c.LayerNormEps <= 0 {
		return fmt.Errorf("%w: layer_norm_eps must be positive, got %v", ErrInvalidConfig, c.LayerNormEps)
	}
	return nil
}

// mustValidate panics on an invalid config. Model constructors use it: an
// invalid shape is a programming error at that point.
func (c Config) mustValidate(op string) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
}

// configFile mirrors Config with pointer fields so that absent keys can be
// told apart from zero values.
type configFile struct {
	VocabSize             *int     `json:"vocab_size" yaml:"vocab_size"`
	HiddenSize            *int     `json:"hidden_size" yaml:"hidden_size"`
	NumHiddenLayers       *int     `json:"num_hidden_layers" yaml:"num_hidden_layers"`
	NumAttentionHeads     *int     `json:"num_attention_heads" yaml:"num_attention_heads"`
	IntermediateSize      *int     `json:"intermediate_size" yaml:"intermediate_size"`
	MaxPositionEmbeddings *int     `json:"max_position_embeddings" yaml:"max_position_embeddings"`
	TypeVocabSize         *int     `json:"type_vocab_size" yaml:"type_vocab_size"`
	HiddenDropoutProb     *float32 `json:"hidden_dropout_prob" yaml:"hidden_dropout_prob"`
	AttentionDropoutProb  *float32 `json:"attention_dropout_prob" yaml:"attention_dropout_prob"`
	LayerNormEps          *float32 `json:"layer_norm_eps" yaml:"layer_norm_eps"`
}

func (f *configFile) toConfig() (Config, error) {
	var missing []string
	intField := func(name string, v *int) int {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}
	floatField := func(name string, v *float32) float32 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}

	cfg := Config{
		VocabSize:             intField("vocab_size", f.VocabSize),
		HiddenSize:            intField("hidden_size", f.HiddenSize),
		NumHiddenLayers:       intField("num_hidden_layers", f.NumHiddenLayers),
		NumAttentionHeads:     intField("num_attention_heads", f.NumAttentionHeads),
		IntermediateSize:      intField("intermediate_size", f.IntermediateSize),
		MaxPositionEmbeddings: intField("max_position_embeddings", f.MaxPositionEmbeddings),
		TypeVocabSize:         intField("type_vocab_size", f.TypeVocabSize),
		HiddenDropoutProb:     floatField("hidden_dropout_prob", f.HiddenDropoutProb),
		AttentionDropoutProb:  floatField("attention_dropout_prob", f.AttentionDropoutProb),
		LayerNormEps:          floatField("layer_norm_eps", f.LayerNormEps),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: missing required fields: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return cfg, cfg.Validate()
}

// Format identifies a config encoding.
type Format string

// Supported config encodings.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseConfig decodes and validates a config. Unknown and missing fields are
// errors; there are no defaults for model-shape fields.
func ParseConfig(data []byte, format Format) (Config, error) {
	var f configFile
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return Config{}, fmt.Errorf("%w: decode yaml: %v", ErrInvalidConfig, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return Config{}, fmt.Errorf("%w: decode json: %v", ErrInvalidConfig, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}
	return f.toConfig()
}

// LoadConfig reads a config file; the format follows the extension
// (.yaml/.yml or .json).
func LoadConfig(path string) (Config, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return Config{}, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// EncodeConfig writes cfg in the given format.
func EncodeConfig(cfg Config, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(cfg)
	case FormatJSON:
		return json.MarshalIndent(cfg, "", "  ")
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}
}
