package IO

import (
	"fmt"
	"strings"

	"github.com/rayendito/GPTnano/utils"
)

const (
	ModeChar  = "char"
	ModeMerge = "merge"
)

// Vocabulary is the bijection between tokens and ids in [0, len(IDToToken)).
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

func (v *Vocabulary) add(tok string) int {
	if id, ok := v.TokenToID[tok]; ok {
		return id
	}
	id := len(v.IDToToken)
	v.TokenToID[tok] = id
	v.IDToToken = append(v.IDToToken, tok)
	return id
}

// Merge is one learned rule: adjacent Left, Right become ID.
type Merge struct {
	Left, Right, ID int
}

type Tokenizer struct {
	vocab  Vocabulary
	base   map[rune]int // single characters, in first-seen order
	merges []Merge      // in rank order
}

// Build scans corpus and returns a tokenizer whose vocabulary has exactly
// targetVocabSize entries. Zero, or the number of distinct characters, gives a
// pure character vocabulary.
func Build(corpus string, targetVocabSize int) (*Tokenizer, error) {
	if corpus == "" {
		return nil, fmt.Errorf("%w: empty corpus", utils.ErrInsufficientData)
	}
	if targetVocabSize < 0 {
		return nil, fmt.Errorf("%w: target vocab size %d", utils.ErrInvalidArgument, targetVocabSize)
	}

	tk := &Tokenizer{
		vocab: Vocabulary{TokenToID: map[string]int{}},
		base:  map[rune]int{},
	}
	for _, r := range corpus {
		if _, ok := tk.base[r]; !ok {
			tk.base[r] = tk.vocab.add(string(r))
		}
	}

	nChars := len(tk.vocab.IDToToken)
	if targetVocabSize == 0 || targetVocabSize == nChars {
		return tk, nil
	}
	if targetVocabSize < nChars {
		return nil, fmt.Errorf("%w: target vocab size %d below the %d distinct characters",
			utils.ErrInvalidArgument, targetVocabSize, nChars)
	}

	seq := tk.baseIDs(corpus)
	for len(tk.vocab.IDToToken) < targetVocabSize {
		pair, ok := mostFrequentPair(seq)
		if !ok {
			return nil, fmt.Errorf("%w: no adjacent pairs left at vocab size %d, target %d",
				utils.ErrInvalidArgument, len(tk.vocab.IDToToken), targetVocabSize)
		}
		id := tk.vocab.add(tk.vocab.IDToToken[pair[0]] + tk.vocab.IDToToken[pair[1]])
		m := Merge{Left: pair[0], Right: pair[1], ID: id}
		tk.merges = append(tk.merges, m)
		seq = applyMerge(seq, m)
	}
	return tk, nil
}

func (tk *Tokenizer) VocabSize() int { return len(tk.vocab.IDToToken) }

func (tk *Tokenizer) Mode() string {
	if len(tk.merges) == 0 {
		return ModeChar
	}
	return ModeMerge
}

// Merges is the number of learned merge rules.
func (tk *Tokenizer) Merges() int { return len(tk.merges) }

func (tk *Tokenizer) Vocabulary() Vocabulary { return tk.vocab }

// Encode maps text to ids. In char mode an unknown character is an error;
// in merge mode unknown characters are dropped before merges are applied.
func (tk *Tokenizer) Encode(text string) ([]int, error) {
	if tk.Mode() == ModeChar {
		ids := make([]int, 0, len(text))
		for _, r := range text {
			id, ok := tk.base[r]
			if !ok {
				return nil, fmt.Errorf("%w: %q", utils.ErrUnknownToken, r)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	seq := tk.baseIDs(text)
	for _, m := range tk.merges {
		seq = applyMerge(seq, m)
	}
	return seq, nil
}

// Dropped reports how many characters of text Encode would drop in merge mode.
func (tk *Tokenizer) Dropped(text string) int {
	n := 0
	for _, r := range text {
		if _, ok := tk.base[r]; !ok {
			n++
		}
	}
	return n
}

func (tk *Tokenizer) Decode(ids []int) (string, error) {
	var sb strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(tk.vocab.IDToToken) {
			return "", fmt.Errorf("%w: id %d outside vocabulary of %d", utils.ErrUnknownToken, id, len(tk.vocab.IDToToken))
		}
		sb.WriteString(tk.vocab.IDToToken[id])
	}
	return sb.String(), nil
}

// baseIDs maps every known character to its id and skips the rest.
func (tk *Tokenizer) baseIDs(text string) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		if id, ok := tk.base[r]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
