package layers

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/utils"
)

// SequenceCrossEntropy scores (vocab x T) logits against T targets.
// It returns the summed loss and dL/dlogits multiplied by scale, so a caller
// averaging over B*T positions passes scale = 1/(B*T).
func SequenceCrossEntropy(logits *mat.Dense, targets []int, scale float64) (float64, *mat.Dense) {
	V, T := logits.Dims()
	if len(targets) != T {
		panic("SequenceCrossEntropy: target length mismatch")
	}
	dLogits := mat.NewDense(V, T, nil)
	sum := 0.0
	for t := 0; t < T; t++ {
		loss, g := utils.CrossEntropyWithIndex(utils.Col(logits, t), targets[t])
		sum += loss
		for i := 0; i < V; i++ {
			dLogits.Set(i, t, g.At(i, 0)*scale)
		}
	}
	return sum, dLogits
}
