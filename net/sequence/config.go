package sequence

import (
	"encoding/json"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ConfigFile is the network configuration inside a pretrained model directory.
const ConfigFile = "config.json"

// Config sizes the network.
type Config struct {
	VocabSize        int     `json:"vocab_size"`
	TypeVocabSize    int     `json:"type_vocab_size"`
	HiddenSize       int     `json:"hidden_size"`
	NgramBuckets     int     `json:"ngram_buckets"`
	InitializerRange float64 `json:"initializer_range"`
	LayerNormEps     float64 `json:"layer_norm_eps"`
}

// DefaultConfig is used for the fields config.json leaves out.
var DefaultConfig = Config{
	VocabSize:        30522,
	TypeVocabSize:    2,
	HiddenSize:       64,
	NgramBuckets:     1 << 14,
	InitializerRange: 0.02,
	LayerNormEps:     1e-12,
}

// ReadConfig reads config.json from a pretrained model directory.
func ReadConfig(fs afero.Fs, dir string) (Config, error) {
	path := filepath.Join(dir, ConfigFile)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to read %s", path)
	}
	c := DefaultConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrapf(err, "unable to parse %s", path)
	}
	return c, c.Validate()
}

// ErrVocabSize is returned when a tokenizer vocabulary has more ids than the word embeddings.
var ErrVocabSize = errors.New("vocabulary larger than the network's word embeddings")

// FitsVocab checks that every id of a vocabulary of size tokens has a word embedding.
func (c Config) FitsVocab(size int) error {
	if size > c.VocabSize {
		return errors.Wrapf(ErrVocabSize, "%d tokens, %d embeddings", size, c.VocabSize)
	}
	return nil
}

// Validate rejects non-positive sizes.
func (c Config) Validate() error {
	if c.VocabSize < 1 || c.TypeVocabSize < 1 || c.HiddenSize < 1 || c.NgramBuckets < 1 {
		return errors.Errorf("invalid network config %+v", c)
	}
	if c.InitializerRange < 0 || c.LayerNormEps <= 0 {
		return errors.Errorf("invalid network config %+v", c)
	}
	return nil
}
