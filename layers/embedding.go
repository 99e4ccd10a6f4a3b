package layers

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/utils"
)

// Embedding maps token ids to columns of a (dModel x |V|) table.
type Embedding struct {
	Table *optimizations.Param
}

func NewEmbedding(name string, dModel, n int, rng *rand.Rand) *Embedding {
	w := mat.NewDense(dModel, n, utils.RandomArray(rng, dModel*n, float64(dModel)))
	return &Embedding{Table: optimizations.NewParam(name, w, true)}
}

func (e *Embedding) Dims() (dModel, n int) {
	return e.Table.W.Dims()
}

// Forward returns (dModel x len(ids)), one column per id.
func (e *Embedding) Forward(ids []int) *mat.Dense {
	d, _ := e.Table.W.Dims()
	out := mat.NewDense(d, len(ids), nil)
	for t, id := range ids {
		for i := 0; i < d; i++ {
			out.Set(i, t, e.Table.W.At(i, id))
		}
	}
	return out
}

// Backward scatters dX columns back into the rows of the table they came from.
func (e *Embedding) Backward(ids []int, dX *mat.Dense) {
	d, _ := e.Table.W.Dims()
	g := e.Table.G
	for t, id := range ids {
		for i := 0; i < d; i++ {
			g.Set(i, id, g.At(i, id)+dX.At(i, t))
		}
	}
}

// Positions returns the ids 0..T-1 used to index a positional table.
func Positions(T int) []int {
	out := make([]int, T)
	for i := range out {
		out[i] = i
	}
	return out
}
