package optimizer

import (
	"bytes"
	"math"
	"testing"

	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNetwork(t *testing.T) *sequence.Network {
	n, err := sequence.New(sequence.Config{
		VocabSize:        6,
		TypeVocabSize:    2,
		HiddenSize:       3,
		NgramBuckets:     4,
		InitializerRange: 0.1,
		LayerNormEps:     1e-12,
	}, 2, 1)
	require.NoError(t, err)
	return n
}

func fill(n *sequence.Network, v float64) {
	for _, p := range n.Parameters() {
		g := p.GradData()
		for i := range g {
			g[i] = v
		}
	}
}

func TestWarmupLinear(t *testing.T) {
	for _, tc := range []struct {
		x, warmup, want float64
	}{
		{0, 0.1, 0},
		{0.05, 0.1, 0.5},
		{0.1, 0.1, 0.9},
		{0.5, 0.1, 0.5},
		{1, 0.1, 0},
		{0.3, 0, 0.7},
	} {
		assert.InDelta(t, tc.want, WarmupLinear(tc.x, tc.warmup), 1e-12, "%+v", tc)
	}
}

func TestGroups(t *testing.T) {
	o := NewBertAdam(testNetwork(t).Parameters(), DefaultConfig(1e-3, 0.1, 10), false)
	decay, plain := o.Groups()
	assert.Equal(t, []string{
		sequence.WordEmbeddings, sequence.TypeEmbeddings, sequence.NgramEmbeddings,
		sequence.PoolerWeight, sequence.ClassifierW,
	}, decay)
	assert.Equal(t, []string{
		sequence.LayerNormGamma, sequence.LayerNormBeta, sequence.PoolerBias, sequence.ClassifierBias,
	}, plain)
}

func TestStep(t *testing.T) {
	n := testNetwork(t)
	c := DefaultConfig(0.1, 0, -1)
	c.WeightDecay = 0
	c.MaxGradNorm = 0
	o := NewBertAdam(n.Parameters(), c, false)

	bias := n.Parameter(sequence.ClassifierBias)
	before := bias.Data()[0]
	bias.GradData()[0] = 2

	o.Step()
	// m = 0.2, v = 0.004, update = 0.2 / (sqrt(0.004) + 1e-6)
	want := before - 0.1*0.2/(math.Sqrt(0.004)+1e-6)
	assert.InDelta(t, want, bias.Data()[0], 1e-12)
	assert.Equal(t, 1, o.Steps())
}

func TestScheduledLR(t *testing.T) {
	o := NewBertAdam(testNetwork(t).Parameters(), DefaultConfig(1, 0.5, 4), false)
	var got []float64
	for i := 0; i < 4; i++ {
		got = append(got, o.ScheduledLR())
		o.Step()
	}
	assert.InDeltaSlice(t, []float64{0, 0.5, 0.5, 0.25}, got, 1e-12)
}

func TestClipping(t *testing.T) {
	n := testNetwork(t)
	c := DefaultConfig(0, 0, -1)
	o := NewBertAdam(n.Parameters(), c, false)
	fill(n, 10)
	o.Step()
	for _, p := range n.Parameters() {
		norm := 0.0
		for _, g := range p.GradData() {
			norm += g * g
		}
		assert.InDelta(t, 1, math.Sqrt(norm), 1e-5, p.Name)
	}
}

func TestMasterNaN(t *testing.T) {
	n := testNetwork(t)
	o := NewBertAdam(n.Parameters(), DefaultConfig(0.1, 0, -1), true)
	assert.True(t, o.Master())

	fill(n, 0.5)
	n.Parameters()[3].GradData()[1] = math.Inf(1)
	assert.True(t, o.SetGrads(true))

	n.Parameters()[3].GradData()[1] = 0.5
	require.False(t, o.SetGrads(true))

	words := n.Parameter(sequence.WordEmbeddings)
	before := append([]float64(nil), words.Data()...)
	o.Step()
	assert.Equal(t, before, words.Data(), "model untouched until CopyToModel")
	o.CopyToModel()
	assert.NotEqual(t, before, words.Data())
}

func TestStateRoundTrip(t *testing.T) {
	n := testNetwork(t)
	o := NewBertAdam(n.Parameters(), DefaultConfig(0.1, 0.1, 10), true)
	fill(n, 0.3)
	o.SetGrads(false)
	o.Step()
	o.Step()

	var buf bytes.Buffer
	require.NoError(t, o.WriteCompressedState(&buf))

	r := NewBertAdam(n.Parameters(), DefaultConfig(0.1, 0.1, 10), true)
	require.NoError(t, r.ReadCompressedState(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, 2, r.Steps())
	assert.Equal(t, o.ScheduledLR(), r.ScheduledLR())
	for i := range o.params {
		assert.Equal(t, o.params[i].m, r.params[i].m)
		assert.Equal(t, o.params[i].data, r.params[i].data)
	}

	other := NewBertAdam(testNetwork(t).Parameters()[:2], DefaultConfig(0.1, 0.1, 10), false)
	require.NoError(t, other.ReadCompressedState(bytes.NewReader(buf.Bytes())))
}
