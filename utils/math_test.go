package utils

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1, 2, 3, 1000})
	if math.Abs(floats.Sum(p)-1) > 1e-12 {
		t.Fatalf("sum = %v", floats.Sum(p))
	}
	if floats.MaxIdx(p) != 3 {
		t.Fatalf("argmax = %d", floats.MaxIdx(p))
	}
	if len(Softmax(nil)) != 0 {
		t.Fatal("empty input")
	}
}

func TestCausalMaskSoftmax(t *testing.T) {
	T := 4
	s := mat.NewDense(T, T, nil)
	a := RowSoftmaxMaskedInPlace(mat.NewDense(T, T, nil), s, CausalMask(T))
	for i := 0; i < T; i++ {
		for j := 0; j < T; j++ {
			want := 0.0
			if j <= i {
				want = 1 / float64(i+1)
			}
			if math.Abs(a.At(i, j)-want) > 1e-12 {
				t.Fatalf("A[%d,%d] = %v, want %v", i, j, a.At(i, j), want)
			}
		}
	}
	for i, rs := range RowSums(a) {
		if math.Abs(rs-1) > 1e-12 {
			t.Fatalf("row %d sums to %v", i, rs)
		}
	}
}

func TestCrossEntropyWithIndex(t *testing.T) {
	logits := mat.NewDense(3, 1, []float64{0.5, -1, 2})
	loss, g := CrossEntropyWithIndex(logits, 2)
	p := Softmax([]float64{0.5, -1, 2})
	if math.Abs(loss+math.Log(p[2])) > 1e-9 {
		t.Fatalf("loss = %v, want %v", loss, -math.Log(p[2]))
	}
	const eps = 1e-6
	for i := 0; i < 3; i++ {
		x0 := logits.At(i, 0)
		logits.Set(i, 0, x0+eps)
		lp, _ := CrossEntropyWithIndex(logits, 2)
		logits.Set(i, 0, x0-eps)
		lm, _ := CrossEntropyWithIndex(logits, 2)
		logits.Set(i, 0, x0)
		if num := (lp - lm) / (2 * eps); math.Abs(num-g.At(i, 0)) > 1e-6 {
			t.Fatalf("grad[%d]: num=%v ana=%v", i, num, g.At(i, 0))
		}
	}
}

func TestGeluPrime(t *testing.T) {
	xs := []float64{-3, -0.5, 0, 0.7, 2.5}
	m := mat.NewDense(1, len(xs), xs)
	d := GeluPrime(m)
	const eps = 1e-6
	for j, x := range xs {
		num := (GeluApply(0, 0, x+eps) - GeluApply(0, 0, x-eps)) / (2 * eps)
		if math.Abs(num-d.At(0, j)) > 1e-6 {
			t.Fatalf("gelu'(%v): num=%v ana=%v", x, num, d.At(0, j))
		}
	}
}

func TestTanhPrimeFromOutput(t *testing.T) {
	y := mat.NewDense(1, 2, []float64{math.Tanh(0.3), math.Tanh(-1.2)})
	d := TanhPrimeFromOutput(y)
	for j, x := range []float64{0.3, -1.2} {
		want := 1 / (math.Cosh(x) * math.Cosh(x))
		if math.Abs(d.At(0, j)-want) > 1e-12 {
			t.Fatalf("tanh'(%v) = %v, want %v", x, d.At(0, j), want)
		}
	}
}

func TestClipGrads(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{3, 0})
	b := mat.NewDense(1, 1, []float64{4})
	if s := ClipGrads(10, a, b); s != 1 {
		t.Fatalf("norm 5 under limit 10 was scaled by %v", s)
	}
	s := ClipGrads(1, a, b)
	if math.Abs(s-0.2) > 1e-12 {
		t.Fatalf("scale = %v, want 0.2", s)
	}
	n := math.Hypot(MatrixNorm(a), MatrixNorm(b))
	if math.Abs(n-1) > 1e-12 {
		t.Fatalf("norm after clip = %v", n)
	}
	if ClipGrads(0, a, b) != 1 {
		t.Fatal("maxNorm 0 must disable clipping")
	}
}

func TestChooseValidHeads(t *testing.T) {
	tests := []struct{ d, pref, want int }{
		{128, 8, 8},
		{12, 8, 6},
		{7, 4, 1},
		{16, 0, 1},
	}
	for _, tt := range tests {
		if got := ChooseValidHeads(tt.d, tt.pref); got != tt.want {
			t.Errorf("ChooseValidHeads(%d, %d) = %d, want %d", tt.d, tt.pref, got, tt.want)
		}
	}
}

func TestAddBiasSumCols(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	out := AddBias(m, mat.NewDense(2, 1, []float64{10, 20}))
	if out.At(0, 2) != 13 || out.At(1, 0) != 24 {
		t.Fatalf("AddBias = %v", mat.Formatted(out))
	}
	s := SumCols(m)
	if s.At(0, 0) != 6 || s.At(1, 0) != 15 {
		t.Fatalf("SumCols = %v", mat.Formatted(s))
	}
}

func TestNewRandIsDeterministic(t *testing.T) {
	a, b := NewRand(1337), NewRand(1337)
	for i := 0; i < 10; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatal("same seed produced different streams")
		}
	}
}
