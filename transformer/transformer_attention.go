package transformer

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/layers"
	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/utils"
)

// Attention is causal multi-head self attention over a (dModel x T) input.
type Attention struct {
	H       int
	DModel  int
	DHead   int
	Wquery  []*optimizations.Param // per head (dHead x dModel)
	Wkey    []*optimizations.Param
	Wvalue  []*optimizations.Param
	Woutput *layers.Linear
	Dropout float64

	training bool
	rng      *rand.Rand

	// cache for backprop
	X        *mat.Dense
	Q, K, V  []*mat.Dense
	A        []*mat.Dense
	O_cat    *mat.Dense
	dropMask *mat.Dense

	maskCache map[int]*mat.Dense
}

func NewAttention(name string, dModel, nHeads int, bias bool, dropout float64, rng *rand.Rand) *Attention {
	if dModel%nHeads != 0 {
		panic("dModel must be divisible by nHeads")
	}
	dHead := dModel / nHeads
	attn := &Attention{
		H:         nHeads,
		DModel:    dModel,
		DHead:     dHead,
		Wquery:    make([]*optimizations.Param, nHeads),
		Wkey:      make([]*optimizations.Param, nHeads),
		Wvalue:    make([]*optimizations.Param, nHeads),
		Woutput:   layers.NewLinear(name+".proj", dModel, dModel, bias, rng),
		Dropout:   dropout,
		rng:       rng,
		Q:         make([]*mat.Dense, nHeads),
		K:         make([]*mat.Dense, nHeads),
		V:         make([]*mat.Dense, nHeads),
		A:         make([]*mat.Dense, nHeads),
		maskCache: make(map[int]*mat.Dense),
	}
	newW := func(kind string) *optimizations.Param {
		w := mat.NewDense(dHead, dModel, utils.RandomArray(rng, dHead*dModel, float64(dModel)))
		return optimizations.NewParam(name+"."+kind, w, true)
	}
	for h := 0; h < nHeads; h++ {
		attn.Wquery[h] = newW("q")
		attn.Wkey[h] = newW("k")
		attn.Wvalue[h] = newW("v")
	}
	return attn
}

func (attn *Attention) Params() []*optimizations.Param {
	ps := make([]*optimizations.Param, 0, 3*attn.H+2)
	for h := 0; h < attn.H; h++ {
		ps = append(ps, attn.Wquery[h], attn.Wkey[h], attn.Wvalue[h])
	}
	return append(ps, attn.Woutput.Params()...)
}

func (attn *Attention) Forward(X *mat.Dense) *mat.Dense {
	attn.X = X
	_, T := X.Dims()
	headsCat := mat.NewDense(attn.DModel, T, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))

	mask, ok := attn.maskCache[T]
	if !ok {
		mask = utils.CausalMask(T)
		attn.maskCache[T] = mask
	}

	for h := 0; h < attn.H; h++ {
		q := mat.NewDense(attn.DHead, T, nil)
		k := mat.NewDense(attn.DHead, T, nil)
		v := mat.NewDense(attn.DHead, T, nil)
		q.Mul(attn.Wquery[h].W, X)
		k.Mul(attn.Wkey[h].W, X)
		v.Mul(attn.Wvalue[h].W, X)
		// S = (Q^T K)/sqrt(dHead), row i attends over columns j <= i
		s := mat.NewDense(T, T, nil)
		s.Mul(q.T(), k)
		s.Scale(rescale, s)
		a := utils.RowSoftmaxMaskedInPlace(mat.NewDense(T, T, nil), s, mask)
		// O = V * A^T
		o := mat.NewDense(attn.DHead, T, nil)
		o.Mul(v, a.T())

		base := h * attn.DHead
		headsCat.Slice(base, base+attn.DHead, 0, T).(*mat.Dense).Copy(o)
		attn.Q[h], attn.K[h], attn.V[h], attn.A[h] = q, k, v, a
	}
	attn.O_cat = headsCat

	Y := attn.Woutput.Forward(headsCat)
	Y, attn.dropMask = layers.Dropout(Y, attn.Dropout, attn.training, attn.rng)
	return Y
}

// Backward accumulates every head's grads and returns dX.
func (attn *Attention) Backward(dY *mat.Dense) *mat.Dense {
	dY = layers.DropoutBackward(dY, attn.dropMask)
	_, T := attn.X.Dims()
	dOcat := attn.Woutput.Backward(attn.O_cat, dY)

	dXtotal := mat.NewDense(attn.DModel, T, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))
	row := 0
	for h := 0; h < attn.H; h++ {
		dO := dOcat.Slice(row, row+attn.DHead, 0, T)
		row += attn.DHead

		// O = V * A^T
		dV := utils.ToDense(utils.Dot(dO, attn.A[h]))       // (dHead x T)
		dA_T := utils.ToDense(utils.Dot(attn.V[h].T(), dO)) // (T x T)

		// A = softmax_row(S)
		dS := utils.SoftmaxBackward(dA_T.T(), attn.A[h])

		// S = Q^T K / sqrt(dHead)
		dQ := utils.Scale(rescale, utils.Dot(attn.K[h], dS.T())) // (dHead x T)
		dK := utils.Scale(rescale, utils.Dot(attn.Q[h], dS))     // (dHead x T)

		attn.Wquery[h].Accumulate(utils.Dot(dQ, attn.X.T()))
		attn.Wkey[h].Accumulate(utils.Dot(dK, attn.X.T()))
		attn.Wvalue[h].Accumulate(utils.Dot(dV, attn.X.T()))

		dXtotal.Add(dXtotal, utils.Dot(attn.Wquery[h].W.T(), dQ))
		dXtotal.Add(dXtotal, utils.Dot(attn.Wkey[h].W.T(), dK))
		dXtotal.Add(dXtotal, utils.Dot(attn.Wvalue[h].W.T(), dV))
	}
	return dXtotal
}
