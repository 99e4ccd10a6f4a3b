package layers

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes each element with probability p and rescales the survivors
// by 1/(1-p). The returned mask is nil when nothing was dropped.
func Dropout(X *mat.Dense, p float64, training bool, rng *rand.Rand) (*mat.Dense, *mat.Dense) {
	if !training || p <= 0 {
		return X, nil
	}
	r, c := X.Dims()
	mask := mat.NewDense(r, c, nil)
	keep := 1.0 / (1.0 - p)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if rng.Float64() >= p {
				mask.Set(i, j, keep)
			}
		}
	}
	out := mat.NewDense(r, c, nil)
	out.MulElem(X, mask)
	return out, mask
}

// DropoutBackward routes dY through the mask from the forward pass.
func DropoutBackward(dY, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return dY
	}
	r, c := dY.Dims()
	out := mat.NewDense(r, c, nil)
	out.MulElem(dY, mask)
	return out
}
