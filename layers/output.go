package layers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/utils"
)

// Output is what a model forward pass produces.
type Output struct {
	Logits  []*mat.Dense // one (vocab x T) matrix per batch row
	Loss    float64      // mean cross entropy over all B*T positions
	HasLoss bool         // false when no targets were given
}

// CheckBatch validates a (B x T) id block and optional targets of the same
// shape. maxT <= 0 means the sequence length is unbounded.
func CheckBatch(ids, targets [][]int, vocabSize, maxT int) (B, T int, err error) {
	B = len(ids)
	if B == 0 || len(ids[0]) == 0 {
		return 0, 0, fmt.Errorf("%w: empty batch", utils.ErrInvalidArgument)
	}
	T = len(ids[0])
	if maxT > 0 && T > maxT {
		return 0, 0, fmt.Errorf("%w: sequence length %d exceeds context length %d", utils.ErrInvalidArgument, T, maxT)
	}
	if targets != nil && len(targets) != B {
		return 0, 0, fmt.Errorf("%w: %d target rows for %d input rows", utils.ErrInvalidArgument, len(targets), B)
	}
	for b := 0; b < B; b++ {
		if len(ids[b]) != T {
			return 0, 0, fmt.Errorf("%w: ragged batch, row %d has %d ids, want %d", utils.ErrInvalidArgument, b, len(ids[b]), T)
		}
		if err := checkIDs(ids[b], vocabSize); err != nil {
			return 0, 0, err
		}
		if targets == nil {
			continue
		}
		if len(targets[b]) != T {
			return 0, 0, fmt.Errorf("%w: target row %d has %d ids, want %d", utils.ErrInvalidArgument, b, len(targets[b]), T)
		}
		if err := checkIDs(targets[b], vocabSize); err != nil {
			return 0, 0, err
		}
	}
	return B, T, nil
}

func checkIDs(ids []int, vocabSize int) error {
	for _, id := range ids {
		if id < 0 || id >= vocabSize {
			return fmt.Errorf("%w: id %d outside vocabulary of %d", utils.ErrInvalidArgument, id, vocabSize)
		}
	}
	return nil
}
