package cmd

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rayendito/GPTnano/IO"
	"github.com/rayendito/GPTnano/params"
	"github.com/rayendito/GPTnano/rnn"
	"github.com/rayendito/GPTnano/train"
	"github.com/rayendito/GPTnano/transformer"
	"github.com/rayendito/GPTnano/utils"
)

// NewRootCmd builds the command tree. The root command trains a model on the
// corpus and prints a sample; `vocab` only exports the tokenizer.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "gptnano",
		Short:         "train a toy character-level GPT or RNN on a text file",
		Long:          `gptnano tokenizes one text file, trains a small transformer or recurrent language model on it and samples from the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, o)
		},
	}
	bindSharedFlags(root, o)
	bindRunFlags(root, o)
	root.AddCommand(newVocabCmd(o))
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func runTrain(cmd *cobra.Command, o *options) error {
	logger := newLogger(cmd.ErrOrStderr(), o.verbose)
	cfg, err := o.resolveConfig(cmd)
	if err != nil {
		return err
	}

	device, err := params.ResolveDevice(cfg.Device)
	if errors.Is(err, utils.ErrDeviceUnavailable) {
		logger.Warnf("%v", err)
	}
	cfg.Device = device
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Debugf("device %s, model %s, seed %d", cfg.Device, cfg.Model, cfg.Seed)

	tk, data, err := loadTokens(cfg, logger)
	if err != nil {
		return err
	}
	cfg = cfg.WithVocabSize(tk.VocabSize())
	trainIDs, valIDs, err := IO.Split(data, cfg.TrainSplit)
	if err != nil {
		return err
	}
	logger.Infof("%d train / %d val tokens", len(trainIDs), len(valIDs))

	if o.dumpConfig != "" {
		if err := params.Save(cfg, o.dumpConfig); err != nil {
			return fmt.Errorf("dump config: %w", err)
		}
		logger.Debugf("resolved config written to %s", o.dumpConfig)
	}

	rng := utils.NewRand(cfg.Seed)
	model, err := newModel(cfg, rng)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	trainer := train.New(cfg, model, trainIDs, valIDs, rng, logger, out)
	if err := trainer.Run(); err != nil {
		return err
	}
	if o.verbose {
		var val []float64
		for _, l := range trainer.History() {
			val = append(val, l.Val)
		}
		logger.Debugf("val loss per report:")
		train.PlotLosses(cmd.ErrOrStderr(), val)
	}

	seed, err := tk.Encode(cfg.Prompt)
	if err != nil {
		return fmt.Errorf("encode prompt: %w", err)
	}
	if n := tk.Dropped(cfg.Prompt); n > 0 {
		logger.Debugf("dropped %d prompt characters missing from the vocabulary", n)
	}
	model.SetTraining(false)
	ids, err := model.Generate(seed, cfg.MaxNewTokens, rng)
	if err != nil {
		return err
	}
	text, err := tk.Decode(ids)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintln(out, text)
	return nil
}

// loadTokens reads the corpus, builds the tokenizer and encodes the corpus.
func loadTokens(cfg params.Config, logger *logrus.Logger) (*IO.Tokenizer, []int, error) {
	text, err := IO.LoadCorpus(cfg.Corpus)
	if err != nil {
		return nil, nil, err
	}
	tk, err := IO.Build(text, cfg.TargetVocabSize)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("vocabulary: %d tokens (%s, %d merges)", tk.VocabSize(), tk.Mode(), tk.Merges())
	data, err := tk.Encode(text)
	if err != nil {
		return nil, nil, err
	}
	return tk, data, nil
}

func newModel(cfg params.Config, rng *rand.Rand) (train.Model, error) {
	switch cfg.Model {
	case params.ModelRNN:
		return rnn.New(cfg, rng)
	default:
		return transformer.New(cfg, rng)
	}
}
