// Package optimizer implements BertAdam: Adam with a warmup-linear schedule,
// decoupled weight decay and per parameter gradient clipping, without bias correction.
package optimizer

import (
	"math"
	"strings"

	"github.com/neurlang/pseudolabel/net/sequence"
	"gonum.org/v1/gonum/floats"
)

// Config holds the BertAdam hyperparameters.
type Config struct {
	LR          float64
	Warmup      float64 // fraction of TTotal spent warming up
	TTotal      int     // schedule length in steps, -1 for a constant rate
	B1          float64
	B2          float64
	E           float64
	WeightDecay float64 // applied to parameters outside the no decay group
	MaxGradNorm float64 // per parameter clip norm, 0 disables clipping
}

// DefaultConfig returns the BERT fine-tuning defaults for a learning rate and schedule.
func DefaultConfig(lr, warmup float64, tTotal int) Config {
	return Config{
		LR:          lr,
		Warmup:      warmup,
		TTotal:      tTotal,
		B1:          0.9,
		B2:          0.999,
		E:           1e-6,
		WeightDecay: 0.01,
		MaxGradNorm: 1.0,
	}
}

var noDecay = []string{"bias", "gamma", "beta"}

// NoDecay reports whether the named parameter is excluded from weight decay.
func NoDecay(name string) bool {
	for _, nd := range noDecay {
		if strings.Contains(name, nd) {
			return true
		}
	}
	return false
}

type param struct {
	model       *sequence.Parameter
	data        []float64 // the model's own values, or the master copy
	grad        []float64
	weightDecay float64
	m, v        []float64
}

// BertAdam optimizes network parameters in place, or float64 master copies of
// them when created with master set.
type BertAdam struct {
	Config
	params []*param
	master bool
	step   int
}

// NewBertAdam groups params by weight decay and allocates the moment buffers.
func NewBertAdam(params []*sequence.Parameter, c Config, master bool) *BertAdam {
	o := &BertAdam{Config: c, master: master}
	for _, p := range params {
		q := &param{model: p, weightDecay: c.WeightDecay}
		if NoDecay(p.Name) {
			q.weightDecay = 0
		}
		if master {
			q.data = append([]float64(nil), p.Data()...)
			q.grad = make([]float64, len(q.data))
		} else {
			q.data = p.Data()
			q.grad = p.GradData()
		}
		q.m = make([]float64, len(q.data))
		q.v = make([]float64, len(q.data))
		o.params = append(o.params, q)
	}
	return o
}

// Master reports whether the optimizer holds master parameters.
func (o *BertAdam) Master() bool {
	return o.master
}

// Steps is the number of updates applied so far.
func (o *BertAdam) Steps() int {
	return o.step
}

// Groups returns the parameter names with and without weight decay.
func (o *BertAdam) Groups() (decay, plain []string) {
	for _, p := range o.params {
		if p.weightDecay > 0 {
			decay = append(decay, p.model.Name)
		} else {
			plain = append(plain, p.model.Name)
		}
	}
	return
}

// ScheduledLR is the learning rate the next step applies.
func (o *BertAdam) ScheduledLR() float64 {
	if o.TTotal == -1 {
		return o.LR
	}
	if o.TTotal <= 0 {
		return 0
	}
	return o.LR * WarmupLinear(float64(o.step)/float64(o.TTotal), o.Warmup)
}

// SetGrads copies the model gradients into the master gradients. With testNaN
// it reports whether any gradient is NaN or infinite, and then copies nothing.
// It is a no-op without master parameters.
func (o *BertAdam) SetGrads(testNaN bool) (isNaN bool) {
	if !o.master {
		return false
	}
	if testNaN {
		for _, p := range o.params {
			for _, g := range p.model.GradData() {
				if math.IsNaN(g) || math.IsInf(g, 0) {
					return true
				}
			}
		}
	}
	for _, p := range o.params {
		copy(p.grad, p.model.GradData())
	}
	return false
}

// CopyToModel writes the master parameters back into the network.
func (o *BertAdam) CopyToModel() {
	if !o.master {
		return
	}
	for _, p := range o.params {
		p.model.SetData(p.data)
	}
}

// SyncFromModel refreshes the master parameters from the network values.
func (o *BertAdam) SyncFromModel() {
	if !o.master {
		return
	}
	for _, p := range o.params {
		copy(p.data, p.model.Data())
	}
}

// Step applies one update.
func (o *BertAdam) Step() {
	lr := o.ScheduledLR()
	for _, p := range o.params {
		if o.MaxGradNorm > 0 {
			if norm := floats.Norm(p.grad, 2); norm > o.MaxGradNorm {
				floats.Scale(o.MaxGradNorm/(norm+1e-6), p.grad)
			}
		}
		for i, g := range p.grad {
			p.m[i] = o.B1*p.m[i] + (1-o.B1)*g
			p.v[i] = o.B2*p.v[i] + (1-o.B2)*g*g
			update := p.m[i] / (math.Sqrt(p.v[i]) + o.E)
			if p.weightDecay > 0 {
				update += p.weightDecay * p.data[i]
			}
			p.data[i] -= lr * update
		}
	}
	o.step++
}
