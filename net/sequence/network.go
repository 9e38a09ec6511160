// Package sequence implements the sequence pair classification network:
// token, segment and hashed bigram embeddings, masked mean pooling, layer
// norm, a tanh pooler and a linear classifier, with a hand written backward pass.
package sequence

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Parameter names, following the BERT checkpoint layout.
const (
	WordEmbeddings  = "embeddings.word_embeddings.weight"
	TypeEmbeddings  = "embeddings.token_type_embeddings.weight"
	NgramEmbeddings = "embeddings.ngram_embeddings.weight"
	LayerNormGamma  = "embeddings.LayerNorm.gamma"
	LayerNormBeta   = "embeddings.LayerNorm.beta"
	PoolerWeight    = "pooler.dense.weight"
	PoolerBias      = "pooler.dense.bias"
	ClassifierW     = "classifier.weight"
	ClassifierBias  = "classifier.bias"
)

const ngramSalt = 0x5bd1e995

// Parameter is a named weight matrix and its accumulated gradient.
type Parameter struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense

	half bool
}

func newParameter(name string, r, c int) *Parameter {
	return &Parameter{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// Data is the row major backing slice of the value.
func (p *Parameter) Data() []float64 {
	return p.Value.RawMatrix().Data
}

// GradData is the row major backing slice of the gradient.
func (p *Parameter) GradData() []float64 {
	return p.Grad.RawMatrix().Data
}

// SetData overwrites the value in place, rounding to half precision in half mode.
func (p *Parameter) SetData(data []float64) {
	copy(p.Data(), data)
	if p.half {
		roundHalf(p.Data())
	}
}

// Head reports whether the parameter belongs to the task specific classifier.
func (p *Parameter) Head() bool {
	return strings.HasPrefix(p.Name, "classifier.")
}

// Network is the sequence classification model. Replicas made by
// NewDataParallel share the values and own their gradients.
type Network struct {
	Config    Config
	NumLabels int

	half bool

	words, types, ngrams *Parameter
	gamma, beta          *Parameter
	poolW, poolB         *Parameter
	clsW, clsB           *Parameter
}

// New creates a randomly initialised network.
func New(c Config, numLabels int, seed int64) (*Network, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if numLabels < 2 {
		return nil, errors.Errorf("need at least 2 labels, got %d", numLabels)
	}
	h := c.HiddenSize
	n := &Network{
		Config:    c,
		NumLabels: numLabels,
		words:     newParameter(WordEmbeddings, c.VocabSize, h),
		types:     newParameter(TypeEmbeddings, c.TypeVocabSize, h),
		ngrams:    newParameter(NgramEmbeddings, c.NgramBuckets, h),
		gamma:     newParameter(LayerNormGamma, 1, h),
		beta:      newParameter(LayerNormBeta, 1, h),
		poolW:     newParameter(PoolerWeight, h, h),
		poolB:     newParameter(PoolerBias, 1, h),
		clsW:      newParameter(ClassifierW, numLabels, h),
		clsB:      newParameter(ClassifierBias, 1, numLabels),
	}

	rng := rand.New(rand.NewSource(seed))
	for _, p := range []*Parameter{n.words, n.types, n.ngrams, n.poolW, n.clsW} {
		normal(rng, p.Data(), c.InitializerRange)
	}
	for i := range n.gamma.Data() {
		n.gamma.Data()[i] = 1
	}
	return n, nil
}

func normal(rng *rand.Rand, data []float64, std float64) {
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
}

// Parameters lists the parameters in a fixed order.
func (n *Network) Parameters() []*Parameter {
	return []*Parameter{n.words, n.types, n.ngrams, n.gamma, n.beta, n.poolW, n.poolB, n.clsW, n.clsB}
}

// Parameter finds a parameter by name.
func (n *Network) Parameter(name string) *Parameter {
	for _, p := range n.Parameters() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ZeroGrad clears all gradients.
func (n *Network) ZeroGrad() {
	for _, p := range n.Parameters() {
		p.Grad.Zero()
	}
}

// Half switches the network to emulated half precision: values, activations
// and gradients are rounded to float16, and overflow becomes infinity.
func (n *Network) Half() {
	n.half = true
	for _, p := range n.Parameters() {
		p.half = true
		roundHalf(p.Data())
	}
}

// IsHalf reports whether the network runs in half precision.
func (n *Network) IsHalf() bool {
	return n.half
}

// NumParams counts scalar parameters.
func (n *Network) NumParams() (o int) {
	for _, p := range n.Parameters() {
		o += len(p.Data())
	}
	return
}

// replica shares the values of n with fresh gradient buffers.
func (n *Network) replica() *Network {
	r := *n
	share := func(p *Parameter) *Parameter {
		rows, cols := p.Value.Dims()
		return &Parameter{Name: p.Name, Value: p.Value, Grad: mat.NewDense(rows, cols, nil), half: p.half}
	}
	r.words, r.types, r.ngrams = share(n.words), share(n.types), share(n.ngrams)
	r.gamma, r.beta = share(n.gamma), share(n.beta)
	r.poolW, r.poolB = share(n.poolW), share(n.poolB)
	r.clsW, r.clsB = share(n.clsW), share(n.clsB)
	return &r
}
