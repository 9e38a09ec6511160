package sequence

import (
	"math"

	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/hash"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Output is the result of a pass over a batch.
type Output struct {
	// Loss is the mean soft label cross entropy over the batch, unscaled.
	Loss float64

	// Logits has one row per example and one column per label.
	Logits *mat.Dense
}

// Predictions returns the arg-max label of every row.
func (o Output) Predictions() []int {
	rows, _ := o.Logits.Dims()
	p := make([]int, rows)
	for i := range p {
		p[i] = features.ArgMax(o.Logits.RawRowView(i))
	}
	return p
}

// Probabilities returns the row wise softmax of the logits.
func (o Output) Probabilities() *mat.Dense {
	rows, cols := o.Logits.Dims()
	probs := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		softmax(probs.RawRowView(i), o.Logits.RawRowView(i))
	}
	return probs
}

// Accuracy is the fraction of rows whose arg-max matches the label's arg-max.
func Accuracy(b features.Batch, o Output) float64 {
	if b.Size() == 0 {
		return 0
	}
	var hits int
	labels := b.Labels()
	for i, p := range o.Predictions() {
		if p == labels[i] {
			hits++
		}
	}
	return float64(hits) / float64(b.Size())
}

// activations of one example, kept for the backward pass.
type activations struct {
	bigrams []uint32
	count   int
	inv     float64 // 1/sqrt(var+eps)
	xhat    []float64
	y       []float64
	pooled  []float64
	logits  []float64
	probs   []float64
}

func (n *Network) newActivations() *activations {
	h := n.Config.HiddenSize
	return &activations{
		xhat:   make([]float64, h),
		y:      make([]float64, h),
		pooled: make([]float64, h),
		logits: make([]float64, n.NumLabels),
		probs:  make([]float64, n.NumLabels),
	}
}

// forwardOne runs one example and returns its loss against dist.
func (n *Network) forwardOne(ids []uint32, mask, segs []int, dist []float64, a *activations) (float64, error) {
	if len(mask) != len(ids) || len(segs) != len(ids) {
		return 0, errors.Errorf("ragged input: %d ids, %d mask, %d segments", len(ids), len(mask), len(segs))
	}
	if len(dist) != n.NumLabels {
		return 0, errors.Errorf("label distribution has %d classes, network has %d", len(dist), n.NumLabels)
	}
	h := n.Config.HiddenSize

	// embeddings, mean pooled over real tokens
	if cap(a.bigrams) < len(ids) {
		a.bigrams = make([]uint32, len(ids))
	}
	a.bigrams = a.bigrams[:len(ids)]
	hash.Vectorized(a.bigrams, ids, ngramSalt, uint32(n.Config.NgramBuckets))

	m := a.xhat
	for i := range m {
		m[i] = 0
	}
	a.count = 0
	for t, id := range ids {
		if mask[t] == 0 {
			continue
		}
		if int(id) >= n.Config.VocabSize {
			return 0, errors.Errorf("token id %d out of vocabulary of %d", id, n.Config.VocabSize)
		}
		if segs[t] < 0 || segs[t] >= n.Config.TypeVocabSize {
			return 0, errors.Errorf("segment id %d out of range", segs[t])
		}
		floats.Add(m, n.words.Value.RawRowView(int(id)))
		floats.Add(m, n.types.Value.RawRowView(segs[t]))
		if t > 0 && mask[t-1] != 0 {
			floats.Add(m, n.ngrams.Value.RawRowView(int(a.bigrams[t-1])))
		}
		a.count++
	}
	if a.count == 0 {
		return 0, errors.New("example has no real tokens")
	}
	floats.Scale(1/float64(a.count), m)
	n.round(m)

	// layer norm
	mu := floats.Sum(m) / float64(h)
	floats.AddConst(-mu, m)
	variance := floats.Dot(m, m) / float64(h)
	a.inv = 1 / math.Sqrt(variance+n.Config.LayerNormEps)
	floats.Scale(a.inv, m)
	floats.MulTo(a.y, n.gamma.Data(), a.xhat)
	floats.Add(a.y, n.beta.Data())
	n.round(a.y)

	// pooler
	pooled := mat.NewVecDense(h, a.pooled)
	pooled.MulVec(n.poolW.Value, mat.NewVecDense(h, a.y))
	floats.Add(a.pooled, n.poolB.Data())
	for i, v := range a.pooled {
		a.pooled[i] = math.Tanh(v)
	}
	n.round(a.pooled)

	// classifier
	logits := mat.NewVecDense(n.NumLabels, a.logits)
	logits.MulVec(n.clsW.Value, pooled)
	floats.Add(a.logits, n.clsB.Data())
	n.round(a.logits)

	lse := softmax(a.probs, a.logits)
	var loss float64
	for k, q := range dist {
		if q != 0 {
			loss -= q * (a.logits[k] - lse)
		}
	}
	return loss, nil
}

// backwardOne accumulates coef times the gradient of the example loss.
func (n *Network) backwardOne(ids []uint32, mask, segs []int, dist []float64, coef float64, a *activations) {
	h := n.Config.HiddenSize

	var sumQ float64
	for _, q := range dist {
		sumQ += q
	}
	dz := make([]float64, n.NumLabels)
	for k := range dz {
		dz[k] = coef * (sumQ*a.probs[k] - dist[k])
	}
	dzv := mat.NewVecDense(n.NumLabels, dz)
	pv := mat.NewVecDense(h, a.pooled)
	n.clsW.Grad.RankOne(n.clsW.Grad, 1, dzv, pv)
	floats.Add(n.clsB.GradData(), dz)

	dp := mat.NewVecDense(h, nil)
	dp.MulVec(n.clsW.Value.T(), dzv)
	da := dp.RawVector().Data
	for i, p := range a.pooled {
		da[i] *= 1 - p*p
	}
	yv := mat.NewVecDense(h, a.y)
	n.poolW.Grad.RankOne(n.poolW.Grad, 1, dp, yv)
	floats.Add(n.poolB.GradData(), da)

	dyv := mat.NewVecDense(h, nil)
	dyv.MulVec(n.poolW.Value.T(), dp)
	dy := dyv.RawVector().Data

	dgamma := n.gamma.GradData()
	for i := range dy {
		dgamma[i] += dy[i] * a.xhat[i]
	}
	floats.Add(n.beta.GradData(), dy)

	dxhat := dy
	floats.Mul(dxhat, n.gamma.Data())
	meanD := floats.Sum(dxhat) / float64(h)
	meanDX := floats.Dot(dxhat, a.xhat) / float64(h)
	de := make([]float64, h)
	scale := a.inv / float64(a.count)
	for i := range de {
		de[i] = scale * (dxhat[i] - meanD - a.xhat[i]*meanDX)
	}

	for t, id := range ids {
		if mask[t] == 0 {
			continue
		}
		floats.Add(n.words.Grad.RawRowView(int(id)), de)
		floats.Add(n.types.Grad.RawRowView(segs[t]), de)
		if t > 0 && mask[t-1] != 0 {
			floats.Add(n.ngrams.Grad.RawRowView(int(a.bigrams[t-1])), de)
		}
	}
}

// Forward evaluates a batch without touching gradients.
func (n *Network) Forward(b features.Batch) (Output, error) {
	return n.pass(b, 0, false)
}

// ForwardBackward evaluates a batch and adds scale times the gradient of the
// mean batch loss to the parameter gradients.
func (n *Network) ForwardBackward(b features.Batch, scale float64) (Output, error) {
	return n.pass(b, scale, true)
}

func (n *Network) pass(b features.Batch, scale float64, backward bool) (Output, error) {
	size := b.Size()
	if size == 0 {
		return Output{}, errors.New("empty batch")
	}
	out := Output{Logits: mat.NewDense(size, n.NumLabels, nil)}
	a := n.newActivations()
	coef := scale / float64(size)
	for i := 0; i < size; i++ {
		loss, err := n.forwardOne(b.InputIDs[i], b.InputMask[i], b.SegmentIDs[i], b.LabelDist[i], a)
		if err != nil {
			return Output{}, errors.Wrapf(err, "example %d", i)
		}
		out.Loss += loss
		copy(out.Logits.RawRowView(i), a.logits)
		if backward {
			n.backwardOne(b.InputIDs[i], b.InputMask[i], b.SegmentIDs[i], b.LabelDist[i], coef, a)
		}
	}
	out.Loss /= float64(size)
	if backward && n.half {
		for _, p := range n.Parameters() {
			roundHalf(p.GradData())
		}
	}
	return out, nil
}

func (n *Network) round(data []float64) {
	if n.half {
		roundHalf(data)
	}
}

// softmax writes the softmax of logits into dst and returns the log-sum-exp.
func softmax(dst, logits []float64) float64 {
	lse := floats.LogSumExp(logits)
	for i, z := range logits {
		dst[i] = math.Exp(z - lse)
	}
	return lse
}
