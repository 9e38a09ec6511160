package sequence

import (
	"encoding/json"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type tensor struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type weights struct {
	Config    Config   `json:"config"`
	NumLabels int      `json:"num_labels"`
	Params    []tensor `json:"params"`
}

// WriteCompressedWeightsToFile writes model weights to a snappy file
func (n *Network) WriteCompressedWeightsToFile(fs afero.Fs, name string) error {
	file, err := fs.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", name)
	}
	err = n.WriteCompressedWeights(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteCompressedWeights writes model weights to a writer
func (n *Network) WriteCompressedWeights(w io.Writer) error {
	sw := snappy.NewBufferedWriter(w)
	out := weights{Config: n.Config, NumLabels: n.NumLabels}
	for _, p := range n.Parameters() {
		rows, cols := p.Value.Dims()
		out.Params = append(out.Params, tensor{Name: p.Name, Rows: rows, Cols: cols, Data: p.Data()})
	}
	if err := json.NewEncoder(sw).Encode(&out); err != nil {
		return errors.Wrapf(err, "unable to encode weights")
	}
	return sw.Close()
}

// ReadCompressedWeightsFromFile reads model weights from a snappy file
func (n *Network) ReadCompressedWeightsFromFile(fs afero.Fs, name string, strict bool) error {
	file, err := fs.Open(name)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", name)
	}
	defer file.Close()
	return errors.Wrapf(n.ReadCompressedWeights(file, strict), "unable to load %s", name)
}

// ReadCompressedWeights reads model weights from a reader. In strict mode every
// parameter must be present with its exact shape. Otherwise classifier
// parameters that are missing or differently shaped keep their current values.
func (n *Network) ReadCompressedWeights(r io.Reader, strict bool) error {
	var in weights
	if err := json.NewDecoder(snappy.NewReader(r)).Decode(&in); err != nil {
		return errors.Wrapf(err, "unable to decode weights")
	}
	saved := make(map[string]tensor, len(in.Params))
	for _, t := range in.Params {
		saved[t.Name] = t
	}
	for _, p := range n.Parameters() {
		t, ok := saved[p.Name]
		rows, cols := p.Value.Dims()
		switch {
		case ok && t.Rows == rows && t.Cols == cols && len(t.Data) == rows*cols:
			p.SetData(t.Data)
		case !strict && p.Head():
		case !ok:
			return errors.Errorf("parameter %s missing", p.Name)
		default:
			return errors.Errorf("parameter %s has shape %dx%d, want %dx%d", p.Name, t.Rows, t.Cols, rows, cols)
		}
	}
	return nil
}
