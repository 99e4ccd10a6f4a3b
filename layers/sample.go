package layers

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rayendito/GPTnano/utils"
)

// Sample draws one index from a probability vector.
func Sample(probs []float64, rng *rand.Rand) int {
	return int(distuv.NewCategorical(probs, rng).Rand())
}

// SampleLastColumn softmaxes the last column of (vocab x T) logits and draws
// the next token id.
func SampleLastColumn(logits *mat.Dense, rng *rand.Rand) int {
	V, T := logits.Dims()
	raw := make([]float64, V)
	for i := 0; i < V; i++ {
		raw[i] = logits.At(i, T-1)
	}
	return Sample(utils.Softmax(raw), rng)
}
