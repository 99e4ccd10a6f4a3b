package rnn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/layers"
	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/params"
	"github.com/rayendito/GPTnano/utils"
)

// RNN is a recurrent language model: token embedding, NBlocks stacked
// recurrent blocks (block k+1 reads block k's output at the same timestep)
// and a linear head on the last block.
type RNN struct {
	Cfg    params.Config
	Tok    *layers.Embedding // (d x vocab)
	Blocks []*RecurrentBlock
	Head   *layers.Linear // (vocab x d)

	training bool
	rng      *rand.Rand
}

func New(cfg params.Config, rng *rand.Rand) (*RNN, error) {
	if err := cfg.ValidateModel(); err != nil {
		return nil, err
	}
	d := cfg.EmbeddingSize
	m := &RNN{
		Cfg:    cfg,
		Tok:    layers.NewEmbedding("tok_emb", d, cfg.VocabSize, rng),
		Blocks: make([]*RecurrentBlock, cfg.NBlocks),
		Head:   layers.NewLinear("lm_head", d, cfg.VocabSize, true, rng),
		rng:    rng,
	}
	for i := range m.Blocks {
		m.Blocks[i] = NewRecurrentBlock(i, d, rng)
	}
	return m, nil
}

// NewState returns a zero hidden state for batch sequences.
func (m *RNN) NewState(batch int) State {
	return NewState(len(m.Blocks), m.Cfg.EmbeddingSize, batch)
}

func (m *RNN) Params() []*optimizations.Param {
	ps := []*optimizations.Param{m.Tok.Table}
	for _, b := range m.Blocks {
		ps = append(ps, b.Params()...)
	}
	return append(ps, m.Head.Params()...)
}

func (m *RNN) NumParams() int { return optimizations.CountParams(m.Params()) }

func (m *RNN) ZeroGrad() { optimizations.ZeroGrad(m.Params()) }

func (m *RNN) SetTraining(on bool) { m.training = on }

// trace is what one pass keeps for BPTT.
type trace struct {
	ids     [][]int        // per timestep, the B ids of that column
	embMask []*mat.Dense   // per timestep
	in      [][]*mat.Dense // [t][k] input to block k
	hPrev   [][]*mat.Dense // [t][k] state block k started from
	h       [][]*mat.Dense // [t][k] block k output
}

// Forward runs every row from a zero state.
func (m *RNN) Forward(ids, targets [][]int) (*layers.Output, error) {
	B, _, err := layers.CheckBatch(ids, targets, m.Cfg.VocabSize, 0)
	if err != nil {
		return nil, err
	}
	out, _, _ := m.run(m.NewState(B), ids, false)
	if targets != nil {
		lossOf(out, targets, nil)
	}
	return out, nil
}

// Run continues from state and returns the state after the last timestep.
// The state passed in is not modified.
func (m *RNN) Run(state State, ids [][]int) (*layers.Output, State, error) {
	B, _, err := layers.CheckBatch(ids, nil, m.Cfg.VocabSize, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(state) != len(m.Blocks) || state.Batch() != B {
		return nil, nil, fmt.Errorf("%w: state for %d blocks x %d rows, input has %d rows",
			utils.ErrInvalidArgument, len(state), state.Batch(), B)
	}
	out, next, _ := m.run(state, ids, false)
	return out, next, nil
}

// ForwardBackward runs from a zero state and backpropagates through every
// timestep of the window, accumulating grads of the mean loss.
func (m *RNN) ForwardBackward(ids, targets [][]int) (float64, error) {
	if targets == nil {
		return 0, fmt.Errorf("%w: targets are required for backward", utils.ErrInvalidArgument)
	}
	B, T, err := layers.CheckBatch(ids, targets, m.Cfg.VocabSize, 0)
	if err != nil {
		return 0, err
	}
	out, _, tr := m.run(m.NewState(B), ids, true)
	dLogits := make([]*mat.Dense, B)
	lossOf(out, targets, dLogits)

	K := len(m.Blocks)
	dNext := make([]*mat.Dense, K) // dL/dh flowing back from t+1
	for k := range dNext {
		dNext[k] = mat.NewDense(m.Cfg.EmbeddingSize, B, nil)
	}
	for t := T - 1; t >= 0; t-- {
		dLog := mat.NewDense(m.Cfg.VocabSize, B, nil)
		for b := 0; b < B; b++ {
			dLog.SetCol(b, mat.Col(nil, t, dLogits[b]))
		}
		dX := m.Head.Backward(tr.h[t][K-1], dLog)
		for k := K - 1; k >= 0; k-- {
			dH := utils.ToDense(utils.Add(dX, dNext[k]))
			dX, dNext[k] = m.Blocks[k].StepBackward(tr.in[t][k], tr.hPrev[t][k], tr.h[t][k], dH)
		}
		dX = layers.DropoutBackward(dX, tr.embMask[t])
		m.Tok.Backward(tr.ids[t], dX)
	}
	return out.Loss, nil
}

// Generate warms the state up on the whole seed, then feeds one sampled
// token at a time with the carried state.
func (m *RNN) Generate(seed []int, maxNewTokens int, rng *rand.Rand) ([]int, error) {
	if maxNewTokens < 1 {
		return nil, fmt.Errorf("%w: max new tokens must be >= 1, got %d", utils.ErrInvalidArgument, maxNewTokens)
	}
	state := m.NewState(1)
	out, state, err := m.Run(state, [][]int{seed})
	if err != nil {
		return nil, err
	}
	ids := append(make([]int, 0, len(seed)+maxNewTokens), seed...)
	ids = append(ids, layers.SampleLastColumn(out.Logits[0], rng))
	for i := 1; i < maxNewTokens; i++ {
		out, state, err = m.Run(state, [][]int{{ids[len(ids)-1]}})
		if err != nil {
			return nil, err
		}
		ids = append(ids, layers.SampleLastColumn(out.Logits[0], rng))
	}
	return ids, nil
}

// run is the timestep loop shared by every entry point. ids must already be
// validated and state must match them.
func (m *RNN) run(state State, ids [][]int, keep bool) (*layers.Output, State, *trace) {
	B, T := len(ids), len(ids[0])
	K := len(m.Blocks)
	h := state.clone()
	out := &layers.Output{Logits: make([]*mat.Dense, B)}
	for b := range out.Logits {
		out.Logits[b] = mat.NewDense(m.Cfg.VocabSize, T, nil)
	}
	var tr *trace
	if keep {
		tr = &trace{
			ids:     make([][]int, T),
			embMask: make([]*mat.Dense, T),
			in:      make([][]*mat.Dense, T),
			hPrev:   make([][]*mat.Dense, T),
			h:       make([][]*mat.Dense, T),
		}
	}

	col := make([]int, B)
	for t := 0; t < T; t++ {
		for b := 0; b < B; b++ {
			col[b] = ids[b][t]
		}
		x, mask := layers.Dropout(m.Tok.Forward(col), m.Cfg.Dropout, m.training, m.rng) // (d x B)
		if keep {
			tr.ids[t] = append([]int(nil), col...)
			tr.embMask[t] = mask
			tr.in[t] = make([]*mat.Dense, K)
			tr.hPrev[t] = make([]*mat.Dense, K)
			tr.h[t] = make([]*mat.Dense, K)
		}
		for k, rb := range m.Blocks {
			hk := rb.Step(x, h[k])
			if keep {
				tr.in[t][k], tr.hPrev[t][k], tr.h[t][k] = x, h[k], hk
			}
			h[k] = hk
			x = hk
		}
		logits := m.Head.Forward(x) // (vocab x B)
		for b := 0; b < B; b++ {
			out.Logits[b].SetCol(t, mat.Col(nil, b, logits))
		}
	}
	return out, h, tr
}

// lossOf fills out.Loss with the mean cross entropy. When dLogits is non-nil
// it also receives each row's gradient of that mean.
func lossOf(out *layers.Output, targets [][]int, dLogits []*mat.Dense) {
	B := len(targets)
	_, T := out.Logits[0].Dims()
	scale := 1.0 / float64(B*T)
	total := 0.0
	for b := 0; b < B; b++ {
		l, d := layers.SequenceCrossEntropy(out.Logits[b], targets[b], scale)
		total += l
		if dLogits != nil {
			dLogits[b] = d
		}
	}
	out.Loss = total * scale
	out.HasLoss = true
}
