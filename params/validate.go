package params

import (
	"fmt"

	"github.com/rayendito/GPTnano/utils"
)

// Validate checks the settings needed before the tokenizer has run.
// VocabSize is checked separately by ValidateModel once it is known.
func (c Config) Validate() error {
	switch {
	case c.ContextLength <= 0:
		return fmt.Errorf("%w: context_length must be positive, got %d", utils.ErrInvalidArgument, c.ContextLength)
	case c.EmbeddingSize <= 0:
		return fmt.Errorf("%w: embedding_size must be positive, got %d", utils.ErrInvalidArgument, c.EmbeddingSize)
	case c.NBlocks <= 0:
		return fmt.Errorf("%w: n_blocks must be positive, got %d", utils.ErrInvalidArgument, c.NBlocks)
	case c.NAttnHeads <= 0:
		return fmt.Errorf("%w: n_attn_heads must be positive, got %d", utils.ErrInvalidArgument, c.NAttnHeads)
	case c.EmbeddingSize%c.NAttnHeads != 0:
		return fmt.Errorf("%w: embedding_size (%d) must be divisible by n_attn_heads (%d), try %d",
			utils.ErrInvalidArgument, c.EmbeddingSize, c.NAttnHeads, utils.ChooseValidHeads(c.EmbeddingSize, c.NAttnHeads))
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("%w: dropout must be in [0, 1), got %g", utils.ErrInvalidArgument, c.Dropout)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", utils.ErrInvalidArgument, c.BatchSize)
	case c.MaxIters < 0:
		return fmt.Errorf("%w: max_iters must not be negative, got %d", utils.ErrInvalidArgument, c.MaxIters)
	case c.EvalInterval <= 0:
		return fmt.Errorf("%w: eval_interval must be positive, got %d", utils.ErrInvalidArgument, c.EvalInterval)
	case c.EvalIters <= 0:
		return fmt.Errorf("%w: eval_iters must be positive, got %d", utils.ErrInvalidArgument, c.EvalIters)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive, got %g", utils.ErrInvalidArgument, c.LearningRate)
	case c.TargetVocabSize < 0:
		return fmt.Errorf("%w: target_vocab_size must not be negative, got %d", utils.ErrInvalidArgument, c.TargetVocabSize)
	case c.TrainSplit <= 0 || c.TrainSplit >= 1:
		return fmt.Errorf("%w: train_split must be in (0, 1), got %g", utils.ErrInvalidArgument, c.TrainSplit)
	case c.Model != ModelGPT && c.Model != ModelRNN:
		return fmt.Errorf("%w: model must be %q or %q, got %q", utils.ErrInvalidArgument, ModelGPT, ModelRNN, c.Model)
	}
	return nil
}

// ValidateModel additionally requires a known vocabulary size.
func (c Config) ValidateModel() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("%w: vocab_size must be positive, got %d", utils.ErrInvalidArgument, c.VocabSize)
	}
	return nil
}

// WithVocabSize returns a copy with the tokenizer's vocabulary size filled in.
func (c Config) WithVocabSize(n int) Config {
	c.VocabSize = n
	return c
}
