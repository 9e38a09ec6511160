package inference

import (
	"strings"
	"testing"

	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPredict(t *testing.T) {
	n, err := sequence.New(sequence.Config{
		VocabSize:        8,
		TypeVocabSize:    2,
		HiddenSize:       4,
		NgramBuckets:     4,
		InitializerRange: 0.2,
		LayerNormEps:     1e-12,
	}, 3, 1)
	require.NoError(t, err)

	fs := make([]features.Feature, 5)
	for i := range fs {
		fs[i] = features.Feature{
			InputIDs:   []uint32{2, uint32(4 + i%3), 3, 0},
			InputMask:  []int{1, 1, 1, 0},
			SegmentIDs: []int{0, 0, 0, 0},
			LabelDist:  []float64{0, 1, 0},
		}
	}
	loader := features.DataLoader{Features: fs, Sampler: features.SequentialSampler{N: 5}, BatchSize: 2}

	probs, err := Predict(sequence.NewDataParallel(n, 1), loader)
	require.NoError(t, err)
	rows, cols := probs.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 3, cols)
	// identical inputs give identical rows
	assert.Equal(t, probs.RawRowView(0), probs.RawRowView(3))
}

func TestTableRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	probs := mat.NewDense(2, 3, []float64{0.5, 0.25, 0.25, 0.1, 0.2, 0.7})
	require.NoError(t, WriteTable(fs, "/preds.csv", probs))

	data, err := afero.ReadFile(fs, "/preds.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "agreed,disagreed,unrelated\n"))

	got, err := ReadTable(fs, "/preds.csv")
	require.NoError(t, err)
	assert.True(t, mat.Equal(probs, got))

	err = WriteTable(fs, "/bad.csv", mat.NewDense(1, 2, nil))
	assert.Equal(t, ErrColumns, errors.Cause(err))
}
