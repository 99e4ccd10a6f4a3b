package train

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/rayendito/GPTnano/IO"
	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/params"
)

// Losses are mean losses over EvalIters random batches of each split.
type Losses struct {
	Train float64
	Val   float64
}

type Trainer struct {
	cfg   params.Config
	model Model
	train []int
	val   []int
	rng   *rand.Rand
	log   *logrus.Logger
	out   io.Writer
	opt   *optimizations.AdamW

	history []Losses
}

// New wires a model to its data. Report lines go to out, diagnostics to logger.
func New(cfg params.Config, model Model, train, val []int, rng *rand.Rand, logger *logrus.Logger, out io.Writer) *Trainer {
	return &Trainer{
		cfg:   cfg,
		model: model,
		train: train,
		val:   val,
		rng:   rng,
		log:   logger,
		out:   out,
		opt: &optimizations.AdamW{
			LR:          cfg.LearningRate,
			Beta1:       cfg.AdamBeta1,
			Beta2:       cfg.AdamBeta2,
			Eps:         cfg.AdamEps,
			WeightDecay: cfg.WeightDecay,
		},
	}
}

// EstimateLoss averages the loss of EvalIters batches per split with
// dropout off. The model is left in training mode.
func (tr *Trainer) EstimateLoss() (Losses, error) {
	tr.model.SetTraining(false)
	defer tr.model.SetTraining(true)

	var res Losses
	for _, split := range []struct {
		name string
		data []int
		dst  *float64
	}{
		{"train", tr.train, &res.Train},
		{"val", tr.val, &res.Val},
	} {
		losses := make([]float64, tr.cfg.EvalIters)
		for k := range losses {
			b, err := IO.SampleBatch(split.data, tr.cfg.ContextLength, tr.cfg.BatchSize, tr.rng)
			if err != nil {
				return Losses{}, fmt.Errorf("%s split: %w", split.name, err)
			}
			o, err := tr.model.Forward(b.Inputs, b.Targets)
			if err != nil {
				return Losses{}, err
			}
			losses[k] = o.Loss
		}
		*split.dst = stat.Mean(losses, nil)
	}
	return res, nil
}

// Step runs one optimisation step on a fresh train batch and returns its loss.
func (tr *Trainer) Step() (float64, error) {
	b, err := IO.SampleBatch(tr.train, tr.cfg.ContextLength, tr.cfg.BatchSize, tr.rng)
	if err != nil {
		return 0, fmt.Errorf("train split: %w", err)
	}
	ps := tr.model.Params()
	loss, err := tr.model.ForwardBackward(b.Inputs, b.Targets)
	if err != nil {
		return 0, err
	}
	if s := optimizations.ClipGradNorm(ps, tr.cfg.GradClip); s < 1 {
		tr.log.Debugf("clipped grads by %.4f at step %d", s, tr.opt.T+1)
	}
	tr.opt.Step(ps)
	tr.model.ZeroGrad()
	return loss, nil
}

// Run trains for MaxIters steps, writing a report line every EvalInterval
// steps. The first error stops training.
func (tr *Trainer) Run() error {
	tr.log.Infof("model has %d parameters", tr.model.NumParams())
	tr.model.SetTraining(true)
	tr.model.ZeroGrad()
	for it := 0; it < tr.cfg.MaxIters; it++ {
		if it%tr.cfg.EvalInterval == 0 {
			l, err := tr.EstimateLoss()
			if err != nil {
				return err
			}
			fmt.Fprintf(tr.out, "step %d: train loss %.4f, val loss %.4f\n", it, l.Train, l.Val)
			tr.history = append(tr.history, l)
		}
		loss, err := tr.Step()
		if err != nil {
			return err
		}
		tr.log.Debugf("step %d: batch loss %.4f", it, loss)
	}
	return nil
}

// History is every report Run has written, in order.
func (tr *Trainer) History() []Losses { return tr.history }
