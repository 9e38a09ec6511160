package sequence

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// WeightsFile holds optional pretrained weights inside a pretrained model directory.
const WeightsFile = "weights.model.sz"

// FromPretrained builds a network from config.json in dir, loading weights.model.sz
// when present. The classifier is freshly initialised unless the saved one fits numLabels.
func FromPretrained(fs afero.Fs, dir string, numLabels int, seed int64) (*Network, error) {
	c, err := ReadConfig(fs, dir)
	if err != nil {
		return nil, err
	}
	n, err := New(c, numLabels, seed)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, WeightsFile)
	if ok, _ := afero.Exists(fs, path); !ok {
		return n, nil
	}
	if err := n.ReadCompressedWeightsFromFile(fs, path, false); err != nil {
		return nil, err
	}
	return n, nil
}
