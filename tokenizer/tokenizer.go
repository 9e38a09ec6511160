package tokenizer

import (
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// VocabFile is the vocabulary file name inside a pretrained model directory.
const VocabFile = "vocab.txt"

const cacheSize = 1 << 16

// Tokenizer runs basic tokenization followed by WordPiece.
type Tokenizer struct {
	vocab Vocab
	basic basic
	wp    wordPiece
}

// New creates a tokenizer over the vocabulary.
func New(vocab Vocab, lowerCase bool) (*Tokenizer, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create wordpiece cache")
	}
	return &Tokenizer{
		vocab: vocab,
		basic: basic{
			lower:      lowerCase,
			neverSplit: map[string]bool{Pad: true, Unk: true, Cls: true, Sep: true},
		},
		wp: wordPiece{vocab: vocab, cache: cache},
	}, nil
}

// FromPretrained loads vocab.txt from a pretrained model directory.
func FromPretrained(fs afero.Fs, dir string, lowerCase bool) (*Tokenizer, error) {
	vocab, err := LoadVocab(fs, filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, err
	}
	return New(vocab, lowerCase)
}

// Tokenize splits text into vocabulary tokens.
func (t *Tokenizer) Tokenize(text string) (o []string) {
	for _, word := range t.basic.tokenize(text) {
		o = append(o, t.wp.tokenize(word)...)
	}
	return
}

// IDs maps tokens to ids.
func (t *Tokenizer) IDs(tokens []string) []uint32 {
	o := make([]uint32, len(tokens))
	for i, tok := range tokens {
		o[i] = t.vocab.ID(tok)
	}
	return o
}

// Vocab returns the underlying vocabulary.
func (t *Tokenizer) Vocab() Vocab {
	return t.vocab
}
