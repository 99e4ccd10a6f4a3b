package layers

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/utils"
)

func TestEmbeddingScatter(t *testing.T) {
	e := NewEmbedding("emb", 3, 4, utils.NewRand(1))
	ids := []int{2, 0, 2}
	x := e.Forward(ids)
	for t2, id := range ids {
		for i := 0; i < 3; i++ {
			if x.At(i, t2) != e.Table.W.At(i, id) {
				t.Fatalf("column %d is not row %d of the table", t2, id)
			}
		}
	}
	dX := mat.NewDense(3, 3, []float64{
		1, 10, 100,
		2, 20, 200,
		3, 30, 300,
	})
	e.Backward(ids, dX)
	// id 2 appears twice and collects both columns
	if e.Table.G.At(0, 2) != 101 || e.Table.G.At(2, 0) != 30 || e.Table.G.At(1, 1) != 0 {
		t.Fatalf("grad table %v", mat.Formatted(e.Table.G))
	}
}

func TestLinearGrad(t *testing.T) {
	rng := utils.NewRand(2)
	l := NewLinear("lin", 3, 2, true, rng)
	X := mat.NewDense(3, 4, utils.RandomArray(rng, 12, 1))
	R := mat.NewDense(2, 4, utils.RandomArray(rng, 8, 1))
	loss := func() float64 { return mat.Sum(utils.Multiply(l.Forward(X), R)) }

	dX := l.Backward(X, R)
	const eps = 1e-6
	for _, p := range l.Params() {
		r, c := p.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				w0 := p.W.At(i, j)
				p.W.Set(i, j, w0+eps)
				lp := loss()
				p.W.Set(i, j, w0-eps)
				lm := loss()
				p.W.Set(i, j, w0)
				if num := (lp - lm) / (2 * eps); math.Abs(num-p.G.At(i, j)) > 1e-6 {
					t.Fatalf("%s[%d,%d]: num=%v ana=%v", p.Name, i, j, num, p.G.At(i, j))
				}
			}
		}
	}
	want := utils.Dot(l.W.W.T(), R)
	if !mat.EqualApprox(dX, want, 1e-12) {
		t.Fatal("dX != W^T dY")
	}
	if len(NewLinear("nb", 3, 2, false, rng).Params()) != 1 {
		t.Fatal("linear without bias has a bias param")
	}
}

func TestDropout(t *testing.T) {
	rng := utils.NewRand(3)
	X := utils.OnesLike(mat.NewDense(50, 40, nil))

	out, mask := Dropout(X, 0.5, false, rng)
	if out != X || mask != nil {
		t.Fatal("eval mode must pass X through")
	}
	out, mask = Dropout(X, 0, true, rng)
	if out != X || mask != nil {
		t.Fatal("p=0 must pass X through")
	}

	out, mask = Dropout(X, 0.25, true, rng)
	zeros := 0
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			switch v := out.At(i, j); {
			case v == 0:
				zeros++
			case math.Abs(v-1/0.75) > 1e-12:
				t.Fatalf("kept value %v not rescaled", v)
			}
		}
	}
	if frac := float64(zeros) / float64(r*c); frac < 0.18 || frac > 0.32 {
		t.Fatalf("dropped fraction %v", frac)
	}
	dY := DropoutBackward(X, mask)
	if !mat.Equal(dY, out) {
		t.Fatal("backward does not reuse the forward mask")
	}
}

func TestSequenceCrossEntropy(t *testing.T) {
	logits := mat.NewDense(3, 2, []float64{
		0.1, 2,
		0.2, -1,
		0.3, 0.5,
	})
	sum, d := SequenceCrossEntropy(logits, []int{2, 0}, 0.5)
	l0, g0 := utils.CrossEntropyWithIndex(utils.Col(logits, 0), 2)
	l1, _ := utils.CrossEntropyWithIndex(utils.Col(logits, 1), 0)
	if math.Abs(sum-(l0+l1)) > 1e-12 {
		t.Fatalf("sum = %v, want %v", sum, l0+l1)
	}
	if math.Abs(d.At(1, 0)-0.5*g0.At(1, 0)) > 1e-12 {
		t.Fatal("gradient not scaled")
	}
}

func TestSample(t *testing.T) {
	rng := utils.NewRand(4)
	for i := 0; i < 50; i++ {
		if got := Sample([]float64{0, 0, 1, 0}, rng); got != 2 {
			t.Fatalf("one-hot draw returned %d", got)
		}
	}
	counts := make([]int, 2)
	for i := 0; i < 4000; i++ {
		counts[Sample([]float64{0.25, 0.75}, rng)]++
	}
	if frac := float64(counts[1]) / 4000; math.Abs(frac-0.75) > 0.05 {
		t.Fatalf("empirical p = %v", frac)
	}

	logits := mat.NewDense(3, 2, []float64{
		100, -100,
		-100, -100,
		-100, 100,
	})
	if got := SampleLastColumn(logits, rng); got != 2 {
		t.Fatalf("SampleLastColumn = %d", got)
	}
}

func TestCheckBatch(t *testing.T) {
	B, T, err := CheckBatch([][]int{{0, 1}, {2, 3}}, [][]int{{1, 2}, {3, 0}}, 4, 2)
	if err != nil || B != 2 || T != 2 {
		t.Fatalf("B=%d T=%d err=%v", B, T, err)
	}
	if _, _, err := CheckBatch([][]int{{0, 1, 2}}, nil, 4, 0); err != nil {
		t.Fatalf("unbounded length: %v", err)
	}
	bad := []struct {
		ids, targets [][]int
	}{
		{nil, nil},
		{[][]int{{}}, nil},
		{[][]int{{0, 1, 2}}, nil},
		{[][]int{{0, 4}}, nil},
		{[][]int{{0, 1}}, [][]int{{1, -1}}},
		{[][]int{{0, 1}}, [][]int{{1, 2}, {1, 2}}},
	}
	for i, tt := range bad {
		if _, _, err := CheckBatch(tt.ids, tt.targets, 4, 2); !errors.Is(err, utils.ErrInvalidArgument) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
}

func TestPositions(t *testing.T) {
	p := Positions(3)
	if len(p) != 3 || p[0] != 0 || p[2] != 2 {
		t.Fatalf("Positions(3) = %v", p)
	}
}
