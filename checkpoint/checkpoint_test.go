package checkpoint

import (
	"math"
	"testing"

	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/neurlang/pseudolabel/optimizer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testConfig = sequence.Config{
	VocabSize:        6,
	TypeVocabSize:    2,
	HiddenSize:       3,
	NgramBuckets:     4,
	InitializerRange: 0.1,
	LayerNormEps:     1e-12,
}

func testNetwork(t *testing.T, labels int, seed int64) *sequence.Network {
	n, err := sequence.New(testConfig, labels, seed)
	require.NoError(t, err)
	return n
}

func TestBestTracker(t *testing.T) {
	b := NewBestTracker(nil)
	var updates []int
	for i, loss := range []float64{0.9, 0.7, 0.8, 0.6} {
		if b.Observe(loss) {
			updates = append(updates, i+1)
		}
	}
	assert.Equal(t, []int{1, 2, 4}, updates)

	assert.False(t, b.Observe(0.6), "ties are not a new minimum")
	assert.False(t, b.Observe(math.NaN()))
	assert.Equal(t, []float64{0.9, 0.7, 0.8, 0.6, 0.6}, b.History())

	resumed := NewBestTracker(b.History())
	assert.False(t, resumed.Observe(0.65))
	assert.True(t, resumed.Observe(0.5))
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewSaver(fs, "/out", zap.NewNop())

	n := testNetwork(t, 3, 1)
	opt := optimizer.NewBertAdam(n.Parameters(), optimizer.DefaultConfig(0.1, 0, 10), true)
	for _, p := range n.Parameters() {
		for i := range p.GradData() {
			p.GradData()[i] = 0.1
		}
	}
	opt.SetGrads(false)
	opt.Step()
	opt.CopyToModel()
	require.NoError(t, s.Save(n, opt, Name("run", 2)))

	for _, f := range []string{"/out/run2.model.sz", "/out/run2.optim.sz"} {
		ok, err := afero.Exists(fs, f)
		require.NoError(t, err)
		assert.True(t, ok, f)
	}

	m := testNetwork(t, 3, 7)
	mopt := optimizer.NewBertAdam(m.Parameters(), optimizer.DefaultConfig(0.1, 0, 10), true)
	require.NoError(t, s.Load(m, mopt, "run2", true))
	assert.Equal(t, 1, mopt.Steps())
	for i, p := range n.Parameters() {
		assert.Equal(t, p.Data(), m.Parameters()[i].Data(), p.Name)
	}

	// network only bootstrap leaves the optimizer fresh
	k := testNetwork(t, 3, 8)
	kopt := optimizer.NewBertAdam(k.Parameters(), optimizer.DefaultConfig(0.1, 0, 10), true)
	require.NoError(t, s.Load(k, kopt, "run2", false))
	assert.Equal(t, 0, kopt.Steps())

	// shape mismatch
	assert.Error(t, s.Load(testNetwork(t, 2, 1), nil, "run2", false))
	assert.Error(t, s.Load(m, nil, "missing", false))
}

func TestBestMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewSaver(fs, "/out", nil)

	_, ok, err := s.Best("run")
	require.NoError(t, err)
	assert.False(t, ok)

	n := testNetwork(t, 3, 1)
	want := Marker{Name: "run2", Epoch: 2, Loss: 0.4, History: []float64{0.5, 0.4}}
	require.NoError(t, s.SaveBest(n, "run", want))

	got, ok, err := s.Best("run")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	exists, _ := afero.Exists(fs, "/out/run_best.model.sz")
	assert.True(t, exists)
}
