package sequence

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/neurlang/pseudolabel/features"
	"github.com/neurlang/pseudolabel/parallel"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DataParallel splits each batch into contiguous shards evaluated concurrently
// by replicas of one network. Replica losses and gradients are averaged.
type DataParallel struct {
	net      *Network
	replicas []*Network
}

// NewDataParallel replicates net over devices replicas. One device runs the network directly.
func NewDataParallel(net *Network, devices int) *DataParallel {
	d := &DataParallel{net: net}
	if devices > 1 {
		for i := 0; i < devices; i++ {
			d.replicas = append(d.replicas, net.replica())
		}
	}
	return d
}

// Network returns the wrapped network.
func (d *DataParallel) Network() *Network {
	return d.net
}

// Devices is the number of replicas a batch is split over.
func (d *DataParallel) Devices() int {
	if len(d.replicas) == 0 {
		return 1
	}
	return len(d.replicas)
}

// Forward evaluates a batch without gradients.
func (d *DataParallel) Forward(b features.Batch) (Output, error) {
	return d.run(b, 0, false)
}

// ForwardBackward evaluates a batch and adds scale times the averaged replica gradients to the network.
func (d *DataParallel) ForwardBackward(b features.Batch, scale float64) (Output, error) {
	return d.run(b, scale, true)
}

func (d *DataParallel) run(b features.Batch, scale float64, backward bool) (Output, error) {
	if len(d.replicas) == 0 {
		if backward {
			return d.net.ForwardBackward(b, scale)
		}
		return d.net.Forward(b)
	}

	shards := parallel.Shards(b.Size(), len(d.replicas))
	if len(shards) == 0 {
		return Output{}, errors.New("empty batch")
	}
	outs := make([]Output, len(shards))
	errs := make([]error, len(shards))
	coef := scale / float64(len(shards))
	parallel.ForEach(len(shards), workers(len(shards)), func(i int) {
		shard := b.Slice(shards[i][0], shards[i][1])
		if backward {
			outs[i], errs[i] = d.replicas[i].ForwardBackward(shard, coef)
		} else {
			outs[i], errs[i] = d.replicas[i].Forward(shard)
		}
	})
	for i, err := range errs {
		if err != nil {
			return Output{}, errors.Wrapf(err, "replica %d", i)
		}
	}

	out := Output{Logits: outs[0].Logits}
	var losses float64
	for i, o := range outs {
		losses += o.Loss
		if i > 0 {
			var stacked mat.Dense
			stacked.Stack(out.Logits, o.Logits)
			out.Logits = &stacked
		}
	}
	out.Loss = losses / float64(len(outs))

	if backward {
		main := d.net.Parameters()
		for _, r := range d.replicas[:len(shards)] {
			for j, p := range r.Parameters() {
				floats.Add(main[j].GradData(), p.GradData())
				p.Grad.Zero()
			}
		}
		if d.net.half {
			for _, p := range main {
				roundHalf(p.GradData())
			}
		}
	}
	return out, nil
}

// workers bounds the concurrent replicas by the logical cores cpuid reports.
func workers(replicas int) int {
	cores := cpuid.CPU.LogicalCores
	if cores < 1 {
		cores = runtime.NumCPU()
	}
	if replicas < cores {
		return replicas
	}
	return cores
}
