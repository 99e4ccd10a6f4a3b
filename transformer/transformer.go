package transformer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/layers"
	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/params"
	"github.com/rayendito/GPTnano/utils"
)

// GPT is a decoder-only transformer language model. Activations for one
// sequence are (EmbeddingSize x T); a batch is processed row by row.
type GPT struct {
	Cfg    params.Config
	Tok    *layers.Embedding // (d x vocab)
	Pos    *layers.Embedding // (d x context)
	Blocks []*Block
	LnF    *optimizations.LayerNorm
	Head   *layers.Linear // (vocab x d)

	training bool
	rng      *rand.Rand

	// cache for backprop of the last forwardRow
	embMask *mat.Dense
	final   *mat.Dense
}

func New(cfg params.Config, rng *rand.Rand) (*GPT, error) {
	if err := cfg.ValidateModel(); err != nil {
		return nil, err
	}
	d := cfg.EmbeddingSize
	g := &GPT{
		Cfg:    cfg,
		Tok:    layers.NewEmbedding("tok_emb", d, cfg.VocabSize, rng),
		Pos:    layers.NewEmbedding("pos_emb", d, cfg.ContextLength, rng),
		Blocks: make([]*Block, cfg.NBlocks),
		LnF:    optimizations.NewLayerNorm("ln_f", d, 1e-5, cfg.LayerNormBias),
		Head:   layers.NewLinear("lm_head", d, cfg.VocabSize, false, rng),
		rng:    rng,
	}
	for i := range g.Blocks {
		g.Blocks[i] = NewBlock(i, cfg, rng)
	}
	return g, nil
}

func (g *GPT) Params() []*optimizations.Param {
	ps := []*optimizations.Param{g.Tok.Table, g.Pos.Table}
	for _, b := range g.Blocks {
		ps = append(ps, b.Params()...)
	}
	ps = append(ps, g.LnF.Params()...)
	return append(ps, g.Head.Params()...)
}

func (g *GPT) NumParams() int { return optimizations.CountParams(g.Params()) }

func (g *GPT) ZeroGrad() { optimizations.ZeroGrad(g.Params()) }

// SetTraining switches dropout on or off.
func (g *GPT) SetTraining(on bool) {
	g.training = on
	for _, b := range g.Blocks {
		b.SetTraining(on)
	}
}

// Forward returns per-row logits and, when targets is non-nil, the mean
// cross entropy over all B*T positions.
func (g *GPT) Forward(ids, targets [][]int) (*layers.Output, error) {
	B, T, err := layers.CheckBatch(ids, targets, g.Cfg.VocabSize, g.Cfg.ContextLength)
	if err != nil {
		return nil, err
	}
	out := &layers.Output{Logits: make([]*mat.Dense, B), HasLoss: targets != nil}
	for b := 0; b < B; b++ {
		out.Logits[b] = g.forwardRow(ids[b])
		if targets != nil {
			l, _ := layers.SequenceCrossEntropy(out.Logits[b], targets[b], 1)
			out.Loss += l
		}
	}
	if out.HasLoss {
		out.Loss /= float64(B * T)
	}
	return out, nil
}

// ForwardBackward runs forward and backward for every row, accumulating
// gradients of the mean loss into each Param.G. It returns the mean loss.
func (g *GPT) ForwardBackward(ids, targets [][]int) (float64, error) {
	if targets == nil {
		return 0, fmt.Errorf("%w: targets are required for backward", utils.ErrInvalidArgument)
	}
	B, T, err := layers.CheckBatch(ids, targets, g.Cfg.VocabSize, g.Cfg.ContextLength)
	if err != nil {
		return 0, err
	}
	scale := 1.0 / float64(B*T)
	total := 0.0
	for b := 0; b < B; b++ {
		logits := g.forwardRow(ids[b])
		l, dLogits := layers.SequenceCrossEntropy(logits, targets[b], scale)
		total += l
		g.backwardRow(ids[b], dLogits)
	}
	return total * scale, nil
}

// Generate appends maxNewTokens sampled ids to seed. The model only ever sees
// the last ContextLength ids.
func (g *GPT) Generate(seed []int, maxNewTokens int, rng *rand.Rand) ([]int, error) {
	if maxNewTokens < 1 {
		return nil, fmt.Errorf("%w: max new tokens must be >= 1, got %d", utils.ErrInvalidArgument, maxNewTokens)
	}
	if _, _, err := layers.CheckBatch([][]int{seed}, nil, g.Cfg.VocabSize, 0); err != nil {
		return nil, err
	}
	out := append(make([]int, 0, len(seed)+maxNewTokens), seed...)
	for i := 0; i < maxNewTokens; i++ {
		window := out[max(0, len(out)-g.Cfg.ContextLength):]
		logits := g.forwardRow(window)
		out = append(out, layers.SampleLastColumn(logits, rng))
	}
	return out, nil
}

func (g *GPT) forwardRow(ids []int) *mat.Dense {
	x := g.Tok.Forward(ids)
	x.Add(x, g.Pos.Forward(layers.Positions(len(ids))))
	x, g.embMask = layers.Dropout(x, g.Cfg.Dropout, g.training, g.rng)
	for _, b := range g.Blocks {
		x = b.Forward(x)
	}
	g.final = g.LnF.Forward(x)
	return g.Head.Forward(g.final) // (vocab x T)
}

func (g *GPT) backwardRow(ids []int, dLogits *mat.Dense) {
	dX := g.Head.Backward(g.final, dLogits)
	dX = g.LnF.Backward(dX)
	for i := len(g.Blocks) - 1; i >= 0; i-- {
		dX = g.Blocks[i].Backward(dX)
	}
	dX = layers.DropoutBackward(dX, g.embMask)
	g.Tok.Backward(ids, dX)
	g.Pos.Backward(layers.Positions(len(ids)), dX)
}
