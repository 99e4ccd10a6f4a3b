package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the hyperparameter bag handed to the model constructors and the
// training loop. It is treated as immutable once Validate has passed.
type Config struct {
	// Model shape
	VocabSize     int     `yaml:"vocab_size"`     // filled from the tokenizer
	ContextLength int     `yaml:"context_length"` // max tokens the model sees at once
	EmbeddingSize int     `yaml:"embedding_size"`
	NAttnHeads    int     `yaml:"n_attn_heads"` // dHead = EmbeddingSize/NAttnHeads
	NBlocks       int     `yaml:"n_blocks"`
	Dropout       float64 `yaml:"dropout"`
	LayerNormBias bool    `yaml:"layer_norm_bias"` // also gates linear biases inside blocks
	Device        string  `yaml:"device"`

	// Training loop
	BatchSize    int     `yaml:"batch_size"`
	MaxIters     int     `yaml:"max_iters"`
	EvalInterval int     `yaml:"eval_interval"`
	EvalIters    int     `yaml:"eval_iters"`
	LearningRate float64 `yaml:"learning_rate"`
	AdamBeta1    float64 `yaml:"adam_beta1"`
	AdamBeta2    float64 `yaml:"adam_beta2"`
	AdamEps      float64 `yaml:"adam_eps"`
	WeightDecay  float64 `yaml:"weight_decay"` // AdamW-style; biases and norms are never decayed
	GradClip     float64 `yaml:"grad_clip"`    // <=0 disables

	// Tokenizer + data
	TargetVocabSize int     `yaml:"target_vocab_size"` // 0 = character level
	TrainSplit      float64 `yaml:"train_split"`

	// Run
	Corpus       string `yaml:"corpus"`
	Model        string `yaml:"model"` // gpt | rnn
	Seed         uint64 `yaml:"seed"`
	Prompt       string `yaml:"prompt"`
	MaxNewTokens int    `yaml:"max_new_tokens"`
}

// Model variants
const (
	ModelGPT = "gpt"
	ModelRNN = "rnn"
)

// Default mirrors the archived GPT run: small enough for a laptop CPU.
func Default() Config {
	return Config{
		ContextLength: 16,
		EmbeddingSize: 128,
		NAttnHeads:    8,
		NBlocks:       6,
		Dropout:       0,
		LayerNormBias: false,
		Device:        DeviceCPU,

		BatchSize:    4,
		MaxIters:     1000,
		EvalInterval: 100,
		EvalIters:    200,
		LearningRate: 1e-5,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEps:      1e-8,
		WeightDecay:  0.01,
		GradClip:     1.0,

		TargetVocabSize: 356,
		TrainSplit:      0.9,

		Corpus:       "input_smaller.txt",
		Model:        ModelGPT,
		Seed:         1337,
		Prompt:       "We are accounted poor citizens",
		MaxNewTokens: 10,
	}
}

// Load reads a yaml file on top of Default. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, fmt.Errorf("config file not found at %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as yaml; used to record the resolved settings of a run.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// HeadSize returns the per-head width.
func (c Config) HeadSize() int {
	return c.EmbeddingSize / c.NAttnHeads
}

// HiddenSize is the width of the position-wise feed-forward layer.
func (c Config) HiddenSize() int {
	return 4 * c.EmbeddingSize
}
