// Package features encodes examples into fixed length model inputs and batches them
package features

import (
	"strings"

	"github.com/neurlang/pseudolabel/datasets"
	"github.com/neurlang/pseudolabel/logging"
	"github.com/neurlang/pseudolabel/tokenizer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Feature is the fixed length encoding of one example.
type Feature struct {
	InputIDs   []uint32
	InputMask  []int // 1 real token, 0 padding
	SegmentIDs []int // 0 sentence A, 1 sentence B
	LabelDist  []float64
}

// LabelID is the arg-max class of the label distribution.
func (f *Feature) LabelID() int {
	return ArgMax(f.LabelDist)
}

// Tokenizer turns text into vocabulary ids.
type Tokenizer interface {
	Tokenize(text string) []string
	IDs(tokens []string) []uint32
}

// ErrSeqLength is returned when the maximum length cannot hold the special tokens.
var ErrSeqLength = errors.New("max_seq_length too small")

// ConvertExamplesToFeatures encodes examples as
// [CLS] A [SEP] or [CLS] A [SEP] B [SEP], truncated and zero padded to maxSeqLength.
func ConvertExamplesToFeatures(examples []datasets.Example, labels []string, maxSeqLength int,
	tok Tokenizer, log *zap.Logger) ([]Feature, error) {
	if maxSeqLength < 3 {
		return nil, errors.Wrapf(ErrSeqLength, "got %d", maxSeqLength)
	}
	log = logging.OrNop(log)

	o := make([]Feature, 0, len(examples))
	for i, ex := range examples {
		a := tok.Tokenize(ex.TextA)
		var b []string
		if ex.TextB != "" {
			b = tok.Tokenize(ex.TextB)
			a, b = truncateSeqPair(a, b, maxSeqLength-3)
		} else if len(a) > maxSeqLength-2 {
			a = a[:maxSeqLength-2]
		}

		tokens := make([]string, 0, maxSeqLength)
		segments := make([]int, 0, maxSeqLength)
		tokens = append(tokens, tokenizer.Cls)
		tokens = append(tokens, a...)
		tokens = append(tokens, tokenizer.Sep)
		for range tokens {
			segments = append(segments, 0)
		}
		if len(b) > 0 {
			tokens = append(tokens, b...)
			tokens = append(tokens, tokenizer.Sep)
			for len(segments) < len(tokens) {
				segments = append(segments, 1)
			}
		}

		ids := tok.IDs(tokens)
		mask := make([]int, len(ids), maxSeqLength)
		for j := range mask {
			mask[j] = 1
		}
		for len(ids) < maxSeqLength {
			ids = append(ids, 0)
			mask = append(mask, 0)
			segments = append(segments, 0)
		}

		dist, err := ex.Distribution(labels)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to encode label of example %d", i)
		}

		if i < 5 {
			log.Debug("example",
				zap.String("guid", ex.GUID),
				zap.String("tokens", strings.Join(tokens, " ")),
				zap.Uint32s("input_ids", ids),
				zap.Float64s("label", dist))
		}

		o = append(o, Feature{
			InputIDs:   ids,
			InputMask:  mask,
			SegmentIDs: segments,
			LabelDist:  dist,
		})
	}
	return o, nil
}

// truncateSeqPair drops one token at a time from the end of the longer sequence.
func truncateSeqPair(a, b []string, maxLength int) ([]string, []string) {
	for len(a)+len(b) > maxLength {
		if len(a) > len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}
	return a, b
}

// ArgMax returns the index of the first maximum, or -1 for an empty slice.
func ArgMax(v []float64) int {
	best := -1
	for i, x := range v {
		if best < 0 || x > v[best] {
			best = i
		}
	}
	return best
}
