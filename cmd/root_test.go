package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/rayendito/GPTnano/params"
)

const corpus = "First Citizen:\nBefore we proceed any further, hear me speak.\n\nAll:\nSpeak, speak.\n"

func writeCorpus(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(p, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

var tiny = []string{
	"--target-vocab-size", "0",
	"--context-length", "6",
	"--embedding-size", "8",
	"--n-attn-heads", "2",
	"--n-blocks", "1",
	"--batch-size", "2",
	"--max-iters", "4",
	"--eval-interval", "2",
	"--eval-iters", "2",
	"--train-split", "0.8",
	"--prompt", "Speak",
	"--max-new-tokens", "5",
}

func TestTrainCommand(t *testing.T) {
	for _, model := range []string{params.ModelGPT, params.ModelRNN} {
		t.Run(model, func(t *testing.T) {
			args := append([]string{"--corpus", writeCorpus(t), "--model", model}, tiny...)
			stdout, stderr, err := run(t, args...)
			if err != nil {
				t.Fatalf("run: %v\nstderr:\n%s", err, stderr)
			}
			// two report lines, then the sample, which may itself contain newlines
			parts := strings.SplitN(stdout, "\n", 3)
			if len(parts) != 3 {
				t.Fatalf("stdout:\n%s", stdout)
			}
			if !strings.HasPrefix(parts[0], "step 0: train loss ") || !strings.HasPrefix(parts[1], "step 2: ") {
				t.Fatalf("report lines:\n%s", stdout)
			}
			// 5 character tokens after the prompt; the corpus is plain ASCII
			sample := strings.TrimSuffix(parts[2], "\n")
			if !strings.HasPrefix(sample, "Speak") || len(sample) != len("Speak")+5 {
				t.Fatalf("sample %q", sample)
			}
			if !strings.Contains(stderr, "[INF] vocabulary:") {
				t.Fatalf("stderr:\n%s", stderr)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	yaml := "max_iters: 2\neval_interval: 1\nn_blocks: 3\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	dump := filepath.Join(dir, "resolved.yaml")
	args := []string{"--corpus", writeCorpus(t), "--config", cfgPath, "--dump-config", dump}
	args = append(args, tiny...)
	// flags given explicitly win over the file; max-iters and n-blocks come from tiny
	if _, stderr, err := run(t, args...); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	cfg, err := params.Load(dump)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxIters != 4 || cfg.NBlocks != 1 {
		t.Fatalf("flags did not override file: max_iters %d, n_blocks %d", cfg.MaxIters, cfg.NBlocks)
	}
	if cfg.EvalInterval != 2 || cfg.VocabSize == 0 {
		t.Fatalf("resolved config %+v", cfg)
	}

	// without the flag the file value is used
	args = []string{"--corpus", writeCorpus(t), "--config", cfgPath, "--dump-config", dump,
		"--target-vocab-size", "0", "--context-length", "6", "--embedding-size", "8",
		"--n-attn-heads", "2", "--batch-size", "2", "--eval-iters", "1", "--train-split", "0.8",
		"--prompt", "Speak", "--max-new-tokens", "1"}
	if _, stderr, err := run(t, args...); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	cfg, _ = params.Load(dump)
	if cfg.MaxIters != 2 || cfg.NBlocks != 3 || cfg.EvalInterval != 1 {
		t.Fatalf("file values lost: %+v", cfg)
	}
}

func TestUnavailableDeviceFallsBack(t *testing.T) {
	args := append([]string{"--corpus", writeCorpus(t), "--device", "tpu"}, tiny...)
	_, stderr, err := run(t, args...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "[WRN]") {
		t.Fatalf("expected a warning, stderr:\n%s", stderr)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	args := append([]string{"--corpus", writeCorpus(t)}, tiny...)
	args = append(args, "--n-attn-heads", "3")
	if _, _, err := run(t, args...); err == nil {
		t.Fatal("expected an error for heads not dividing the embedding size")
	}
}

func TestVocabCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "vocab.json")
	_, stderr, err := run(t, "vocab", "--corpus", writeCorpus(t), "--target-vocab-size", "0", "--out", out)
	if err != nil {
		t.Fatalf("vocab: %v\n%s", err, stderr)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var data struct {
		TokenToID map[string]int
		IDToToken []string
	}
	if err := json.Unmarshal(b, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.IDToToken) == 0 || data.IDToToken[0] != "F" {
		t.Fatalf("IDToToken = %q", data.IDToToken)
	}
}

func TestVerbosePlotsLosses(t *testing.T) {
	args := append([]string{"--corpus", writeCorpus(t), "-v"}, tiny...)
	_, stderr, err := run(t, args...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "[DBG] val loss per report:") || !strings.Contains(stderr, "──") {
		t.Fatalf("stderr:\n%s", stderr)
	}
}
