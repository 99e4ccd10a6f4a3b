package transformer

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/layers"
	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/utils"
)

// MLP is the position-wise feed-forward layer: Output(gelu(Hidden(x))).
type MLP struct {
	Inputs, Hiddens, Outputs int
	Hidden, Output           *layers.Linear
	Dropout                  float64

	training bool
	rng      *rand.Rand

	// cache for backprop
	lastInput, hiddenPreAct, hiddenOutputs, dropMask *mat.Dense
}

func NewMLP(name string, dModel, hidden int, bias bool, dropout float64, rng *rand.Rand) *MLP {
	return &MLP{
		Inputs:  dModel,
		Hiddens: hidden,
		Outputs: dModel,
		Hidden:  layers.NewLinear(name+".fc", dModel, hidden, bias, rng),
		Output:  layers.NewLinear(name+".proj", hidden, dModel, bias, rng),
		Dropout: dropout,
		rng:     rng,
	}
}

func (mlp *MLP) Params() []*optimizations.Param {
	return append(mlp.Hidden.Params(), mlp.Output.Params()...)
}

func (mlp *MLP) Forward(X *mat.Dense) *mat.Dense {
	mlp.lastInput = X
	mlp.hiddenPreAct = mlp.Hidden.Forward(X)                                        // (h x T)
	mlp.hiddenOutputs = utils.Apply(utils.GeluApply, mlp.hiddenPreAct).(*mat.Dense) // (h x T)
	out := mlp.Output.Forward(mlp.hiddenOutputs)                                    // (d x T)
	out, mlp.dropMask = layers.Dropout(out, mlp.Dropout, mlp.training, mlp.rng)
	return out
}

func (mlp *MLP) Backward(grad *mat.Dense) *mat.Dense {
	grad = layers.DropoutBackward(grad, mlp.dropMask)
	hiddenGradOut := mlp.Output.Backward(mlp.hiddenOutputs, grad) // dL/d(hidden_out)
	hiddenErrors := utils.Multiply(hiddenGradOut, utils.GeluPrime(mlp.hiddenPreAct))
	return mlp.Hidden.Backward(mlp.lastInput, hiddenErrors)
}
