// Package tokenizer implements BERT style basic and WordPiece tokenization
package tokenizer

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Special tokens.
const (
	Pad = "[PAD]"
	Unk = "[UNK]"
	Cls = "[CLS]"
	Sep = "[SEP]"
)

// Vocab maps tokens to ids. A token's id is its line number in vocab.txt.
type Vocab struct {
	ids    map[string]uint32
	tokens []string
}

// NewVocab builds a vocabulary from tokens in id order.
func NewVocab(tokens []string) Vocab {
	v := Vocab{ids: make(map[string]uint32, len(tokens)), tokens: tokens}
	for i, tok := range tokens {
		if _, ok := v.ids[tok]; !ok {
			v.ids[tok] = uint32(i)
		}
	}
	return v
}

// LoadVocab reads one token per line.
func LoadVocab(fs afero.Fs, path string) (Vocab, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Vocab{}, errors.Wrapf(err, "unable to open vocab %s", path)
	}
	defer f.Close()

	var tokens []string
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	for s.Scan() {
		tokens = append(tokens, strings.TrimRight(s.Text(), "\r\n"))
	}
	if err := s.Err(); err != nil {
		return Vocab{}, errors.Wrapf(err, "unable to read vocab %s", path)
	}
	v := NewVocab(tokens)
	for _, special := range []string{Pad, Unk, Cls, Sep} {
		if !v.Has(special) {
			return Vocab{}, errors.Errorf("vocab %s lacks %s", path, special)
		}
	}
	return v, nil
}

// Size is the number of ids.
func (v Vocab) Size() int {
	return len(v.tokens)
}

// Has reports whether the token is in the vocabulary.
func (v Vocab) Has(tok string) bool {
	_, ok := v.ids[tok]
	return ok
}

// ID returns the token's id, or the [UNK] id when absent.
func (v Vocab) ID(tok string) uint32 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return v.ids[Unk]
}

// Token returns the token for an id.
func (v Vocab) Token(id uint32) string {
	if int(id) < len(v.tokens) {
		return v.tokens[id]
	}
	return Unk
}
