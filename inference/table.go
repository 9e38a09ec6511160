package inference

import (
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
)

// Columns are the class names of the probability table.
var Columns = []string{"agreed", "disagreed", "unrelated"}

// ErrColumns is returned when the probabilities do not have one column per table class.
var ErrColumns = errors.New("probability table needs exactly 3 classes")

type row struct {
	Agreed    float64 `csv:"agreed"`
	Disagreed float64 `csv:"disagreed"`
	Unrelated float64 `csv:"unrelated"`
}

// WriteTable writes probs as a csv with the agreed, disagreed and unrelated columns.
func WriteTable(fs afero.Fs, path string, probs *mat.Dense) error {
	rows, cols := probs.Dims()
	if cols != len(Columns) {
		return errors.Wrapf(ErrColumns, "got %d", cols)
	}
	records := make([]*row, rows)
	for i := range records {
		r := probs.RawRowView(i)
		records[i] = &row{Agreed: r[0], Disagreed: r[1], Unrelated: r[2]}
	}

	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	err = gocsv.Marshal(&records, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "unable to write %s", path)
}

// ReadTable reads a table written by WriteTable.
func ReadTable(fs afero.Fs, path string) (*mat.Dense, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	var records []*row
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return nil, errors.Wrapf(err, "unable to parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s is empty", path)
	}
	data := make([]float64, 0, 3*len(records))
	for _, r := range records {
		data = append(data, r.Agreed, r.Disagreed, r.Unrelated)
	}
	return mat.NewDense(len(records), 3, data), nil
}
