package optimizer

import (
	"encoding/json"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

type paramState struct {
	Name   string    `json:"name"`
	M      []float64 `json:"exp_avg"`
	V      []float64 `json:"exp_avg_sq"`
	Master []float64 `json:"master,omitempty"`
}

type state struct {
	Step   int          `json:"step"`
	Params []paramState `json:"params"`
}

// WriteCompressedState writes the moments, step count and master parameters to a writer
func (o *BertAdam) WriteCompressedState(w io.Writer) error {
	sw := snappy.NewBufferedWriter(w)
	s := state{Step: o.step}
	for _, p := range o.params {
		ps := paramState{Name: p.model.Name, M: p.m, V: p.v}
		if o.master {
			ps.Master = p.data
		}
		s.Params = append(s.Params, ps)
	}
	if err := json.NewEncoder(sw).Encode(&s); err != nil {
		return errors.Wrapf(err, "unable to encode optimizer state")
	}
	return sw.Close()
}

// ReadCompressedState restores a state written by WriteCompressedState. Master
// parameters missing from the state are taken from the network.
func (o *BertAdam) ReadCompressedState(r io.Reader) error {
	var s state
	if err := json.NewDecoder(snappy.NewReader(r)).Decode(&s); err != nil {
		return errors.Wrapf(err, "unable to decode optimizer state")
	}
	saved := make(map[string]paramState, len(s.Params))
	for _, ps := range s.Params {
		saved[ps.Name] = ps
	}
	for _, p := range o.params {
		ps, ok := saved[p.model.Name]
		if !ok {
			return errors.Errorf("optimizer state for %s missing", p.model.Name)
		}
		if len(ps.M) != len(p.m) || len(ps.V) != len(p.v) {
			return errors.Errorf("optimizer state for %s has %d values, want %d", p.model.Name, len(ps.M), len(p.m))
		}
		if ps.Master != nil && len(ps.Master) != len(p.data) {
			return errors.Errorf("master copy of %s has %d values, want %d", p.model.Name, len(ps.Master), len(p.data))
		}
	}
	for _, p := range o.params {
		ps := saved[p.model.Name]
		copy(p.m, ps.M)
		copy(p.v, ps.V)
		if o.master {
			if ps.Master != nil {
				copy(p.data, ps.Master)
			} else {
				copy(p.data, p.model.Data())
			}
		}
	}
	o.step = s.Step
	return nil
}
