package rnn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/utils"
)

// RecurrentBlock computes h_t = tanh(Wx x_t + Wh h_{t-1} + b).
type RecurrentBlock struct {
	Size int
	Wx   *optimizations.Param // (size x size)
	Wh   *optimizations.Param // (size x size)
	B    *optimizations.Param // (size x 1)
}

func NewRecurrentBlock(i, size int, rng *rand.Rand) *RecurrentBlock {
	name := fmt.Sprintf("blocks.%d", i)
	return &RecurrentBlock{
		Size: size,
		Wx:   optimizations.NewParam(name+".wx", mat.NewDense(size, size, utils.RandomArray(rng, size*size, float64(size))), true),
		Wh:   optimizations.NewParam(name+".wh", mat.NewDense(size, size, utils.RandomArray(rng, size*size, float64(size))), true),
		B:    optimizations.NewParam(name+".b", mat.NewDense(size, 1, nil), false),
	}
}

func (rb *RecurrentBlock) Params() []*optimizations.Param {
	return []*optimizations.Param{rb.Wx, rb.Wh, rb.B}
}

// Step advances one timestep for a (size x batch) input and previous state.
func (rb *RecurrentBlock) Step(x, hPrev *mat.Dense) *mat.Dense {
	pre := utils.ToDense(utils.Add(utils.Dot(rb.Wx.W, x), utils.Dot(rb.Wh.W, hPrev)))
	return utils.Apply(utils.TanhApply, utils.AddBias(pre, rb.B.W)).(*mat.Dense)
}

// StepBackward takes dL/dh for the output h of Step(x, hPrev), accumulates
// the block's grads and returns dL/dx and dL/dhPrev.
func (rb *RecurrentBlock) StepBackward(x, hPrev, h, dH *mat.Dense) (dX, dHPrev *mat.Dense) {
	dPre := utils.Multiply(dH, utils.TanhPrimeFromOutput(h))
	rb.Wx.Accumulate(utils.Dot(dPre, x.T()))
	rb.Wh.Accumulate(utils.Dot(dPre, hPrev.T()))
	rb.B.Accumulate(utils.SumCols(dPre))
	dX = utils.ToDense(utils.Dot(rb.Wx.W.T(), dPre))
	dHPrev = utils.ToDense(utils.Dot(rb.Wh.W.T(), dPre))
	return dX, dHPrev
}
