package IO

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rayendito/GPTnano/utils"
)

// LoadCorpus reads the whole text file in one go.
func LoadCorpus(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read corpus: %w", err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: corpus %s is empty", utils.ErrInsufficientData, path)
	}
	return string(b), nil
}

// Split cuts data into a leading train part of int(frac*len) ids and the
// remaining validation part. Nothing is shuffled.
func Split(data []int, frac float64) ([]int, []int, error) {
	if frac <= 0 || frac > 1 {
		return nil, nil, fmt.Errorf("%w: train split %v not in (0, 1]", utils.ErrInvalidArgument, frac)
	}
	n := int(frac * float64(len(data)))
	return data[:n], data[n:], nil
}

// ExportVocabJSON writes TokenToID and IDToToken as indented JSON.
func (tk *Tokenizer) ExportVocabJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data := map[string]any{
		"TokenToID": tk.vocab.TokenToID,
		"IDToToken": tk.vocab.IDToToken,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
