package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Guard functions

// ChooseValidHeads returns the largest head count <= preferred that divides dModel.
func ChooseValidHeads(dModel, preferred int) int {
	if preferred <= 0 {
		return 1
	}
	if dModel%preferred == 0 {
		return preferred
	}
	limit := min(preferred, dModel)
	for h := limit; h >= 1; h-- {
		if dModel%h == 0 {
			return h
		}
	}
	return 1
}

// RandomArray draws size values uniformly from +-1/sqrt(v).
func RandomArray(rng *rand.Rand, size int, v float64) []float64 {
	lo := -1.0 / math.Sqrt(v+1e-12)
	hi := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := range out {
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return out
}

// NewRand returns the seeded source every component draws from.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Helper functions

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

func ZerosLike(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

func OnesLike(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(r, c, data)
}

func MatrixNorm(m mat.Matrix) float64 {
	return mat.Norm(m, 2)
}

// Clipping

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := MatrixNorm(g)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / gn
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}
