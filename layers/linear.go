package layers

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/utils"
)

// Linear computes W*X (+ b) over every column of X.
type Linear struct {
	In, Out int
	W       *optimizations.Param // (out x in)
	B       *optimizations.Param // (out x 1); nil without bias
}

func NewLinear(name string, in, out int, bias bool, rng *rand.Rand) *Linear {
	l := &Linear{
		In:  in,
		Out: out,
		W:   optimizations.NewParam(name+".w", mat.NewDense(out, in, utils.RandomArray(rng, out*in, float64(in))), true),
	}
	if bias {
		l.B = optimizations.NewParam(name+".b", mat.NewDense(out, 1, nil), false)
	}
	return l
}

func (l *Linear) Params() []*optimizations.Param {
	if l.B == nil {
		return []*optimizations.Param{l.W}
	}
	return []*optimizations.Param{l.W, l.B}
}

func (l *Linear) Forward(X mat.Matrix) *mat.Dense {
	y := utils.ToDense(utils.Dot(l.W.W, X))
	if l.B != nil {
		y = utils.AddBias(y, l.B.W)
	}
	return y
}

// Backward accumulates dW (and db) for the forward input X and returns dX.
func (l *Linear) Backward(X, dY mat.Matrix) *mat.Dense {
	l.W.Accumulate(utils.Dot(dY, X.T()))
	if l.B != nil {
		l.B.Accumulate(utils.SumCols(dY))
	}
	return utils.ToDense(utils.Dot(l.W.W.T(), dY))
}
