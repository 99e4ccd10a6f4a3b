package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rayendito/GPTnano/params"
)

// options holds the raw flag values. Only flags the user actually set are
// copied onto the loaded config, so the yaml file keeps precedence over
// flag defaults.
type options struct {
	configFile string
	dumpConfig string
	verbose    bool
	vocabOut   string
	flags      params.Config
}

func bindRunFlags(cmd *cobra.Command, o *options) {
	d := params.Default()
	f := cmd.Flags()
	f.StringVar(&o.flags.Model, "model", d.Model, "model variant: gpt or rnn")
	f.StringVar(&o.flags.Device, "device", d.Device, "compute device: cpu or accelerate")
	f.Uint64Var(&o.flags.Seed, "seed", d.Seed, "random seed")
	f.StringVarP(&o.flags.Prompt, "prompt", "p", d.Prompt, "seed text for the final sample")
	f.IntVarP(&o.flags.MaxNewTokens, "max-new-tokens", "n", d.MaxNewTokens, "tokens to sample after training")
	f.IntVar(&o.flags.BatchSize, "batch-size", d.BatchSize, "sequences per batch")
	f.IntVar(&o.flags.MaxIters, "max-iters", d.MaxIters, "training iterations")
	f.IntVar(&o.flags.EvalInterval, "eval-interval", d.EvalInterval, "iterations between loss reports")
	f.IntVar(&o.flags.EvalIters, "eval-iters", d.EvalIters, "batches averaged per loss estimate")
	f.Float64Var(&o.flags.LearningRate, "learning-rate", d.LearningRate, "AdamW learning rate")
	f.Float64Var(&o.flags.WeightDecay, "weight-decay", d.WeightDecay, "AdamW weight decay")
	f.Float64Var(&o.flags.GradClip, "grad-clip", d.GradClip, "global gradient norm limit, 0 disables")
	f.IntVar(&o.flags.ContextLength, "context-length", d.ContextLength, "tokens per training window")
	f.IntVar(&o.flags.EmbeddingSize, "embedding-size", d.EmbeddingSize, "model width")
	f.IntVar(&o.flags.NAttnHeads, "n-attn-heads", d.NAttnHeads, "attention heads")
	f.IntVar(&o.flags.NBlocks, "n-blocks", d.NBlocks, "transformer or recurrent blocks")
	f.Float64Var(&o.flags.Dropout, "dropout", d.Dropout, "dropout probability")
	f.BoolVar(&o.flags.LayerNormBias, "layer-norm-bias", d.LayerNormBias, "learn biases in norms and block projections")
	f.Float64Var(&o.flags.TrainSplit, "train-split", d.TrainSplit, "fraction of the corpus used for training")
	f.StringVarP(&o.dumpConfig, "dump-config", "o", "", "write the resolved config as yaml to this path")
}

func bindSharedFlags(cmd *cobra.Command, o *options) {
	d := params.Default()
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configFile, "config", "c", "", "yaml config file")
	f.StringVar(&o.flags.Corpus, "corpus", d.Corpus, "text corpus to train on")
	f.IntVar(&o.flags.TargetVocabSize, "target-vocab-size", d.TargetVocabSize, "vocabulary size, 0 for characters only")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug output")
}

// resolveConfig applies defaults, then the yaml file, then explicit flags.
func (o *options) resolveConfig(cmd *cobra.Command) (params.Config, error) {
	cfg, err := params.Load(o.configFile)
	if err != nil {
		return cfg, err
	}
	set := map[string]func(){
		"model":             func() { cfg.Model = o.flags.Model },
		"device":            func() { cfg.Device = o.flags.Device },
		"seed":              func() { cfg.Seed = o.flags.Seed },
		"prompt":            func() { cfg.Prompt = o.flags.Prompt },
		"max-new-tokens":    func() { cfg.MaxNewTokens = o.flags.MaxNewTokens },
		"batch-size":        func() { cfg.BatchSize = o.flags.BatchSize },
		"max-iters":         func() { cfg.MaxIters = o.flags.MaxIters },
		"eval-interval":     func() { cfg.EvalInterval = o.flags.EvalInterval },
		"eval-iters":        func() { cfg.EvalIters = o.flags.EvalIters },
		"learning-rate":     func() { cfg.LearningRate = o.flags.LearningRate },
		"weight-decay":      func() { cfg.WeightDecay = o.flags.WeightDecay },
		"grad-clip":         func() { cfg.GradClip = o.flags.GradClip },
		"context-length":    func() { cfg.ContextLength = o.flags.ContextLength },
		"embedding-size":    func() { cfg.EmbeddingSize = o.flags.EmbeddingSize },
		"n-attn-heads":      func() { cfg.NAttnHeads = o.flags.NAttnHeads },
		"n-blocks":          func() { cfg.NBlocks = o.flags.NBlocks },
		"dropout":           func() { cfg.Dropout = o.flags.Dropout },
		"layer-norm-bias":   func() { cfg.LayerNormBias = o.flags.LayerNormBias },
		"train-split":       func() { cfg.TrainSplit = o.flags.TrainSplit },
		"corpus":            func() { cfg.Corpus = o.flags.Corpus },
		"target-vocab-size": func() { cfg.TargetVocabSize = o.flags.TargetVocabSize },
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
	return cfg, nil
}
