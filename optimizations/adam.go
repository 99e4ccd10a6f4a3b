package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/utils"
)

// Param is one learnable tensor with its gradient accumulator and Adam moments.
type Param struct {
	Name  string
	W     *mat.Dense
	G     *mat.Dense
	M, V  *mat.Dense
	Decay bool // weight decay applies to weights only, not biases or norms
}

// NewParam wraps w and allocates zeroed grad and moment buffers.
func NewParam(name string, w *mat.Dense, decay bool) *Param {
	return &Param{
		Name:  name,
		W:     w,
		G:     utils.ZerosLike(w),
		M:     utils.ZerosLike(w),
		V:     utils.ZerosLike(w),
		Decay: decay,
	}
}

// Accumulate adds g into the gradient buffer.
func (p *Param) Accumulate(g mat.Matrix) {
	p.G.Add(p.G, g)
}

// Size is the number of scalars in the tensor.
func (p *Param) Size() int {
	r, c := p.W.Dims()
	return r * c
}

type AdamW struct {
	LR          float64
	Beta1       float64 // default 0.9
	Beta2       float64 // default 0.999
	Eps         float64 // default 1e-8
	WeightDecay float64
	T           int
}

// Step applies one bias-corrected AdamW update to every param.
func (opt *AdamW) Step(ps []*Param) {
	opt.T++
	for _, p := range ps {
		wd := 0.0
		if p.Decay {
			wd = opt.WeightDecay
		}
		AdamUpdateInPlace(p.W, p.G, p.M, p.V, opt.T, opt.LR, opt.Beta1, opt.Beta2, opt.Eps, wd)
	}
}

// ZeroGrad clears every gradient buffer.
func ZeroGrad(ps []*Param) {
	for _, p := range ps {
		p.G.Zero()
	}
}

// ClipGradNorm scales all gradients so their global norm is <= maxNorm.
func ClipGradNorm(ps []*Param, maxNorm float64) float64 {
	grads := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		grads[i] = p.G
	}
	return utils.ClipGrads(maxNorm, grads...)
}

// CountParams sums the scalar count of every tensor.
func CountParams(ps []*Param) int {
	n := 0
	for _, p := range ps {
		n += p.Size()
	}
	return n
}

// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction (AdamW).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	c1 := 1.0 / (1.0 - math.Pow(beta1, float64(t)))
	c2 := 1.0 / (1.0 - math.Pow(beta2, float64(t)))
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			update := mhat/(math.Sqrt(vhat)+eps) + weightDecay*p.At(i, j)
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, p.At(i, j)-lr*update)
		}
	}
}
