package sequence

import (
	"bytes"
	"math"
	"testing"

	"github.com/neurlang/pseudolabel/features"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	VocabSize:        12,
	TypeVocabSize:    2,
	HiddenSize:       5,
	NgramBuckets:     7,
	InitializerRange: 0.5,
	LayerNormEps:     1e-5,
}

func testBatch() features.Batch {
	return features.Batch{
		InputIDs:   [][]uint32{{2, 5, 6, 3, 7, 3, 0}, {2, 4, 3, 0, 0, 0, 0}, {2, 8, 9, 10, 3, 0, 0}, {2, 11, 3, 4, 4, 3, 0}},
		InputMask:  [][]int{{1, 1, 1, 1, 1, 1, 0}, {1, 1, 1, 0, 0, 0, 0}, {1, 1, 1, 1, 1, 0, 0}, {1, 1, 1, 1, 1, 1, 0}},
		SegmentIDs: [][]int{{0, 0, 0, 0, 1, 1, 0}, {0, 0, 0, 0, 0, 0, 0}, {0, 0, 0, 0, 0, 0, 0}, {0, 0, 0, 1, 1, 1, 0}},
		LabelDist:  [][]float64{{0.2, 0.5, 0.3}, {1, 0, 0}, {0, 0, 1}, {0.6, 0.1, 0.3}},
	}
}

func testNetwork(t *testing.T) *Network {
	n, err := New(testConfig, 3, 1)
	require.NoError(t, err)
	// move the layer norm away from identity so its gradient is exercised
	for i := range n.gamma.Data() {
		n.gamma.Data()[i] = 1 + 0.1*float64(i)
		n.beta.Data()[i] = 0.05 * float64(i)
	}
	return n
}

func TestGradientCheck(t *testing.T) {
	n := testNetwork(t)
	b := testBatch()

	_, err := n.ForwardBackward(b, 1)
	require.NoError(t, err)

	const h = 1e-6
	for _, p := range n.Parameters() {
		data, grad := p.Data(), p.GradData()
		for i := range data {
			orig := data[i]
			data[i] = orig + h
			plus, err := n.Forward(b)
			require.NoError(t, err)
			data[i] = orig - h
			minus, err := n.Forward(b)
			require.NoError(t, err)
			data[i] = orig

			numeric := (plus.Loss - minus.Loss) / (2 * h)
			assert.InDelta(t, numeric, grad[i], 1e-6, "%s[%d]", p.Name, i)
		}
	}
}

func TestLossAndAccuracy(t *testing.T) {
	n := testNetwork(t)
	b := testBatch()
	out, err := n.Forward(b)
	require.NoError(t, err)

	assert.True(t, out.Loss >= 0)
	acc := Accuracy(b, out)
	assert.True(t, acc >= 0 && acc <= 1)

	probs := out.Probabilities()
	rows, cols := probs.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		var sum float64
		for _, p := range probs.RawRowView(i) {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
}

func TestForwardErrors(t *testing.T) {
	n := testNetwork(t)
	b := testBatch()
	b.InputIDs[0][1] = 99
	_, err := n.Forward(b)
	assert.Error(t, err)

	_, err = n.Forward(features.Batch{})
	assert.Error(t, err)

	b = testBatch()
	b.InputMask[1] = []int{0, 0, 0, 0, 0, 0, 0}
	_, err = n.Forward(b)
	assert.Error(t, err)
}

func TestDataParallelMatchesSingle(t *testing.T) {
	single := testNetwork(t)
	multi := testNetwork(t)
	b := testBatch()

	want, err := single.ForwardBackward(b, 2)
	require.NoError(t, err)

	dp := NewDataParallel(multi, 2)
	assert.Equal(t, 2, dp.Devices())
	got, err := dp.ForwardBackward(b, 2)
	require.NoError(t, err)

	assert.InDelta(t, want.Loss, got.Loss, 1e-12)
	assert.InDeltaSlice(t, want.Logits.RawMatrix().Data, got.Logits.RawMatrix().Data, 1e-12)
	for i, p := range single.Parameters() {
		assert.InDeltaSlice(t, p.GradData(), multi.Parameters()[i].GradData(), 1e-12, p.Name)
	}
	for _, r := range dp.replicas {
		for _, p := range r.Parameters() {
			assert.Equal(t, 0.0, p.Grad.Norm(1), p.Name)
		}
	}
}

func TestZeroGrad(t *testing.T) {
	n := testNetwork(t)
	_, err := n.ForwardBackward(testBatch(), 1)
	require.NoError(t, err)
	n.ZeroGrad()
	for _, p := range n.Parameters() {
		assert.Equal(t, 0.0, p.Grad.Norm(1), p.Name)
	}
}

func TestHalf(t *testing.T) {
	edge := []float64{70000, 1.0001, math.NaN()}
	roundHalf(edge)
	assert.True(t, math.IsInf(edge[0], 1))
	assert.Equal(t, 1.0, edge[1])
	assert.True(t, math.IsNaN(edge[2]))

	n := testNetwork(t)
	n.Half()
	assert.True(t, n.IsHalf())
	for _, p := range n.Parameters() {
		for _, v := range p.Data() {
			assert.Equal(t, round16(v), v)
		}
	}
	_, err := n.ForwardBackward(testBatch(), 1)
	require.NoError(t, err)
	for _, p := range n.Parameters() {
		for _, v := range p.GradData() {
			assert.Equal(t, round16(v), v)
		}
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	n := testNetwork(t)
	var buf bytes.Buffer
	require.NoError(t, n.WriteCompressedWeights(&buf))

	m, err := New(testConfig, 3, 2)
	require.NoError(t, err)
	require.NoError(t, m.ReadCompressedWeights(bytes.NewReader(buf.Bytes()), true))
	for i, p := range n.Parameters() {
		assert.Equal(t, p.Data(), m.Parameters()[i].Data(), p.Name)
	}

	// a two label network only takes the encoder
	two, err := New(testConfig, 2, 3)
	require.NoError(t, err)
	head := append([]float64(nil), two.clsW.Data()...)
	assert.Error(t, two.ReadCompressedWeights(bytes.NewReader(buf.Bytes()), true))
	require.NoError(t, two.ReadCompressedWeights(bytes.NewReader(buf.Bytes()), false))
	assert.Equal(t, n.words.Data(), two.words.Data())
	assert.Equal(t, head, two.clsW.Data())
}

func TestFromPretrained(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bert/config.json",
		[]byte(`{"vocab_size": 12, "hidden_size": 5, "ngram_buckets": 7}`), 0644))

	n, err := FromPretrained(fs, "/bert", 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n.Config.TypeVocabSize)
	assert.Equal(t, 0.02, n.Config.InitializerRange)

	require.NoError(t, n.WriteCompressedWeightsToFile(fs, "/bert/"+WeightsFile))
	m, err := FromPretrained(fs, "/bert", 3, 9)
	require.NoError(t, err)
	assert.Equal(t, n.clsW.Data(), m.clsW.Data())

	_, err = FromPretrained(fs, "/missing", 3, 1)
	assert.Error(t, err)
}

func round16(v float64) float64 {
	o := []float64{v}
	roundHalf(o)
	return o[0]
}

func TestFitsVocab(t *testing.T) {
	assert.NoError(t, testConfig.FitsVocab(12))
	assert.NoError(t, testConfig.FitsVocab(5))
	assert.Equal(t, ErrVocabSize, errors.Cause(testConfig.FitsVocab(13)))
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, workers(1))
	w := workers(1 << 20)
	assert.True(t, w >= 1 && w < 1<<20, "workers %d", w)
	assert.True(t, workers(2) <= 2)
}
