package transformer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/rayendito/GPTnano/optimizations"
	"github.com/rayendito/GPTnano/params"
	"github.com/rayendito/GPTnano/utils"
)

// Block is one pre-norm transformer layer:
// x = x + Attn(Ln1(x)); x = x + Mlp(Ln2(x)).
type Block struct {
	Attn *Attention
	Mlp  *MLP
	Ln1  *optimizations.LayerNorm
	Ln2  *optimizations.LayerNorm
}

func NewBlock(i int, cfg params.Config, rng *rand.Rand) *Block {
	name := fmt.Sprintf("blocks.%d", i)
	d := cfg.EmbeddingSize
	return &Block{
		Attn: NewAttention(name+".attn", d, cfg.NAttnHeads, cfg.LayerNormBias, cfg.Dropout, rng),
		Mlp:  NewMLP(name+".mlp", d, cfg.HiddenSize(), cfg.LayerNormBias, cfg.Dropout, rng),
		Ln1:  optimizations.NewLayerNorm(name+".ln1", d, 1e-5, cfg.LayerNormBias),
		Ln2:  optimizations.NewLayerNorm(name+".ln2", d, 1e-5, cfg.LayerNormBias),
	}
}

func (b *Block) Params() []*optimizations.Param {
	ps := b.Ln1.Params()
	ps = append(ps, b.Attn.Params()...)
	ps = append(ps, b.Ln2.Params()...)
	return append(ps, b.Mlp.Params()...)
}

func (b *Block) SetTraining(on bool) {
	b.Attn.training = on
	b.Mlp.training = on
}

func (b *Block) Forward(X *mat.Dense) *mat.Dense {
	xRes := utils.ToDense(utils.Add(X, b.Attn.Forward(b.Ln1.Forward(X))))
	return utils.ToDense(utils.Add(xRes, b.Mlp.Forward(b.Ln2.Forward(xRes))))
}

func (b *Block) Backward(grad *mat.Dense) *mat.Dense {
	// Y = xRes + MLP(Ln2(xRes)); xRes = X + Attn(Ln1(X))
	dXres := b.Ln2.Backward(b.Mlp.Backward(grad))
	dXres.Add(dXres, grad)
	dX := b.Ln1.Backward(b.Attn.Backward(dXres))
	dX.Add(dX, dXres)
	return dX
}
