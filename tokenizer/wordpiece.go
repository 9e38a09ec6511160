package tokenizer

import (
	lru "github.com/hashicorp/golang-lru"
)

const maxInputCharsPerWord = 100

// wordPiece splits words into subwords by greedy longest match first.
type wordPiece struct {
	vocab Vocab
	cache *lru.Cache
}

func (w wordPiece) tokenize(word string) []string {
	if w.cache != nil {
		if v, ok := w.cache.Get(word); ok {
			return v.([]string)
		}
	}
	o := w.split(word)
	if w.cache != nil {
		w.cache.Add(word, o)
	}
	return o
}

func (w wordPiece) split(word string) []string {
	chars := []rune(word)
	if len(chars) > maxInputCharsPerWord {
		return []string{Unk}
	}
	var o []string
	for start := 0; start < len(chars); {
		end := len(chars)
		var piece string
		for ; start < end; end-- {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if w.vocab.Has(sub) {
				piece = sub
				break
			}
		}
		if piece == "" {
			return []string{Unk}
		}
		o = append(o, piece)
		start = end
	}
	return o
}
