package rnn

import "gonum.org/v1/gonum/mat"

// State holds the hidden state of every recurrent block, one
// (embedding x batch) matrix per block. It is passed into and returned from
// each run instead of living on the blocks.
type State []*mat.Dense

// NewState returns an all-zero state.
func NewState(nBlocks, size, batch int) State {
	s := make(State, nBlocks)
	for i := range s {
		s[i] = mat.NewDense(size, batch, nil)
	}
	return s
}

// Reset zeroes every block's hidden state in place.
func (s State) Reset() {
	for _, h := range s {
		h.Zero()
	}
}

// Batch is the number of sequences the state was built for.
func (s State) Batch() int {
	if len(s) == 0 {
		return 0
	}
	_, b := s[0].Dims()
	return b
}

func (s State) clone() State {
	out := make(State, len(s))
	for i, h := range s {
		out[i] = mat.DenseCopyOf(h)
	}
	return out
}
