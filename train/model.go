package train

import (
	"math/rand/v2"

	"github.com/rayendito/GPTnano/layers"
	"github.com/rayendito/GPTnano/optimizations"
)

// Model is what the training loop needs from a language model. Both
// transformer.GPT and rnn.RNN implement it.
type Model interface {
	Forward(ids, targets [][]int) (*layers.Output, error)
	ForwardBackward(ids, targets [][]int) (float64, error)
	Generate(seed []int, maxNewTokens int, rng *rand.Rand) ([]int, error)
	Params() []*optimizations.Param
	ZeroGrad()
	SetTraining(on bool)
	NumParams() int
}
