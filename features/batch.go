package features

import (
	"math/rand"
)

// Batch stacks features into parallel slices.
type Batch struct {
	InputIDs   [][]uint32
	InputMask  [][]int
	SegmentIDs [][]int
	LabelDist  [][]float64
}

// NewBatch collects the features at the given indices.
func NewBatch(features []Feature, indices []int) Batch {
	var b Batch
	for _, i := range indices {
		f := &features[i]
		b.InputIDs = append(b.InputIDs, f.InputIDs)
		b.InputMask = append(b.InputMask, f.InputMask)
		b.SegmentIDs = append(b.SegmentIDs, f.SegmentIDs)
		b.LabelDist = append(b.LabelDist, f.LabelDist)
	}
	return b
}

// Size is the number of examples in the batch.
func (b Batch) Size() int {
	return len(b.InputIDs)
}

// Slice returns the examples [lo, hi) sharing the underlying rows.
func (b Batch) Slice(lo, hi int) Batch {
	return Batch{
		InputIDs:   b.InputIDs[lo:hi],
		InputMask:  b.InputMask[lo:hi],
		SegmentIDs: b.SegmentIDs[lo:hi],
		LabelDist:  b.LabelDist[lo:hi],
	}
}

// Labels returns the arg-max class of every label distribution.
func (b Batch) Labels() []int {
	o := make([]int, len(b.LabelDist))
	for i, d := range b.LabelDist {
		o[i] = ArgMax(d)
	}
	return o
}

// Sampler yields the order in which examples are visited in an epoch.
type Sampler interface {
	Indices(epoch int) []int
}

// SequentialSampler visits examples in order.
type SequentialSampler struct {
	N int
}

func (s SequentialSampler) Indices(int) []int {
	o := make([]int, s.N)
	for i := range o {
		o[i] = i
	}
	return o
}

// RandomSampler visits examples in a fresh permutation each epoch, derived from Seed.
type RandomSampler struct {
	N    int
	Seed int64
}

func (s RandomSampler) Indices(epoch int) []int {
	return rand.New(rand.NewSource(s.Seed + int64(epoch))).Perm(s.N)
}

// DistributedSampler gives rank its share of a per-epoch permutation.
// The permutation is padded by wrapping around so that every rank gets the same count.
type DistributedSampler struct {
	N         int
	Rank      int
	WorldSize int
	Seed      int64
}

func (s DistributedSampler) Indices(epoch int) []int {
	if s.N == 0 || s.WorldSize < 1 {
		return nil
	}
	perm := rand.New(rand.NewSource(s.Seed + int64(epoch))).Perm(s.N)
	perRank := (s.N + s.WorldSize - 1) / s.WorldSize
	total := perRank * s.WorldSize
	for i := 0; len(perm) < total; i++ {
		perm = append(perm, perm[i])
	}
	o := make([]int, 0, perRank)
	for i := s.Rank; i < total; i += s.WorldSize {
		o = append(o, perm[i])
	}
	return o
}

// DataLoader cuts the sampler order into batches; the last batch may be short.
type DataLoader struct {
	Features  []Feature
	Sampler   Sampler
	BatchSize int
}

// Batches returns the batches of one epoch, or none when BatchSize is not positive.
func (d DataLoader) Batches(epoch int) (o []Batch) {
	if d.BatchSize < 1 {
		return nil
	}
	indices := d.Sampler.Indices(epoch)
	for lo := 0; lo < len(indices); lo += d.BatchSize {
		hi := lo + d.BatchSize
		if hi > len(indices) {
			hi = len(indices)
		}
		o = append(o, NewBatch(d.Features, indices[lo:hi]))
	}
	return
}
