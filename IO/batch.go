package IO

import (
	"fmt"
	"math/rand/v2"

	"github.com/rayendito/GPTnano/utils"
)

// Batch holds batchSize windows of one segment; Targets are Inputs shifted by one.
type Batch struct {
	Inputs  [][]int
	Targets [][]int
	Offsets []int
}

// SampleBatch draws batchSize offsets uniformly from every position whose
// target window still fits in segment.
func SampleBatch(segment []int, contextLength, batchSize int, rng *rand.Rand) (Batch, error) {
	if contextLength <= 0 || batchSize <= 0 {
		return Batch{}, fmt.Errorf("%w: context length %d, batch size %d", utils.ErrInvalidArgument, contextLength, batchSize)
	}
	if len(segment) < contextLength+1 {
		return Batch{}, fmt.Errorf("%w: segment of %d ids, need at least %d", utils.ErrInsufficientData, len(segment), contextLength+1)
	}
	b := Batch{
		Inputs:  make([][]int, batchSize),
		Targets: make([][]int, batchSize),
		Offsets: make([]int, batchSize),
	}
	for i := 0; i < batchSize; i++ {
		o := rng.IntN(len(segment) - contextLength)
		b.Offsets[i] = o
		b.Inputs[i] = append([]int(nil), segment[o:o+contextLength]...)
		b.Targets[i] = append([]int(nil), segment[o+1:o+contextLength+1]...)
	}
	return b, nil
}
