package train

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rayendito/GPTnano/IO"
	"github.com/rayendito/GPTnano/params"
	"github.com/rayendito/GPTnano/rnn"
	"github.com/rayendito/GPTnano/transformer"
	"github.com/rayendito/GPTnano/utils"
)

var (
	_ Model = (*transformer.GPT)(nil)
	_ Model = (*rnn.RNN)(nil)
)

const corpus = "First Citizen:\nBefore we proceed any further, hear me speak.\n\nAll:\nSpeak, speak.\n"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T, model string) (params.Config, Model, []int, []int) {
	t.Helper()
	tk, err := IO.Build(corpus, 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := tk.Encode(corpus)
	if err != nil {
		t.Fatal(err)
	}
	trainIDs, valIDs, err := IO.Split(data, 0.8)
	if err != nil {
		t.Fatal(err)
	}

	cfg := params.Default().WithVocabSize(tk.VocabSize())
	cfg.Model = model
	cfg.ContextLength = 6
	cfg.EmbeddingSize = 8
	cfg.NAttnHeads = 2
	cfg.NBlocks = 1
	cfg.BatchSize = 2
	cfg.MaxIters = 25
	cfg.EvalInterval = 10
	cfg.EvalIters = 3
	cfg.LearningRate = 1e-2

	var m Model
	switch model {
	case params.ModelGPT:
		m, err = transformer.New(cfg, utils.NewRand(cfg.Seed))
	case params.ModelRNN:
		m, err = rnn.New(cfg, utils.NewRand(cfg.Seed))
	}
	if err != nil {
		t.Fatal(err)
	}
	return cfg, m, trainIDs, valIDs
}

func TestRunWritesReportLines(t *testing.T) {
	for _, model := range []string{params.ModelGPT, params.ModelRNN} {
		t.Run(model, func(t *testing.T) {
			cfg, m, trainIDs, valIDs := setup(t, model)
			var out bytes.Buffer
			tr := New(cfg, m, trainIDs, valIDs, utils.NewRand(1), quietLogger(), &out)
			if err := tr.Run(); err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			if len(lines) != 3 {
				t.Fatalf("got %d report lines, want 3:\n%s", len(lines), out.String())
			}
			for i, line := range lines {
				prefix := []string{"step 0: ", "step 10: ", "step 20: "}[i]
				if !strings.HasPrefix(line, prefix) || !strings.Contains(line, ", val loss ") {
					t.Fatalf("line %d = %q", i, line)
				}
			}
		})
	}
}

func TestTrainingLowersLoss(t *testing.T) {
	cfg, m, trainIDs, valIDs := setup(t, params.ModelGPT)
	cfg.MaxIters = 100
	cfg.EvalInterval = 100
	cfg.EvalIters = 20
	tr := New(cfg, m, trainIDs, valIDs, utils.NewRand(1), quietLogger(), io.Discard)
	before, err := tr.EstimateLoss()
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	after, err := tr.EstimateLoss()
	if err != nil {
		t.Fatal(err)
	}
	if after.Train >= before.Train {
		t.Fatalf("train loss did not drop: %.4f -> %.4f", before.Train, after.Train)
	}
}

func TestStepLeavesGradsZeroed(t *testing.T) {
	cfg, m, trainIDs, valIDs := setup(t, params.ModelRNN)
	tr := New(cfg, m, trainIDs, valIDs, utils.NewRand(1), quietLogger(), io.Discard)
	if _, err := tr.Step(); err != nil {
		t.Fatal(err)
	}
	for _, p := range m.Params() {
		r, c := p.G.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if p.G.At(i, j) != 0 {
					t.Fatalf("%s grad not cleared", p.Name)
				}
			}
		}
	}
}

func TestRunFailsOnShortSplit(t *testing.T) {
	cfg, m, trainIDs, _ := setup(t, params.ModelGPT)
	tr := New(cfg, m, trainIDs, []int{1, 2}, utils.NewRand(1), quietLogger(), io.Discard)
	if err := tr.Run(); !errors.Is(err, utils.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestHistoryAndPlot(t *testing.T) {
	cfg, m, trainIDs, valIDs := setup(t, params.ModelRNN)
	tr := New(cfg, m, trainIDs, valIDs, utils.NewRand(1), quietLogger(), io.Discard)
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	h := tr.History()
	if len(h) != 3 {
		t.Fatalf("history has %d entries", len(h))
	}
	vals := make([]float64, len(h))
	for i, l := range h {
		vals[i] = l.Val
	}
	var buf bytes.Buffer
	PlotLosses(&buf, vals)
	rows := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(rows) != 12 {
		t.Fatalf("plot has %d rows:\n%s", len(rows), buf.String())
	}
	// the largest loss reaches the top row
	if !strings.Contains(rows[0], "█") {
		t.Fatalf("top row empty:\n%s", buf.String())
	}

	buf.Reset()
	PlotLosses(&buf, nil)
	if buf.String() != "no data to plot\n" {
		t.Fatalf("empty plot = %q", buf.String())
	}
}
