package datasets

import (
	"bufio"
	"encoding/csv"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Processor parses the data files of one task into examples.
type Processor interface {
	// Labels lists the class names; a label's index is its class id.
	Labels() []string

	// TrainExamples reads the training split. A positive subset keeps only the first subset rows.
	TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error)

	// DevExamples reads the evaluation split. A positive subset keeps only the first subset rows.
	DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error)
}

// Processors maps lower-case task names to processor constructors.
var Processors = map[string]func() Processor{
	"cola":        func() Processor { return colaProcessor{} },
	"mnli":        func() Processor { return mnliProcessor{} },
	"mrpc":        func() Processor { return mrpcProcessor{} },
	"wsdm":        func() Processor { return wsdmProcessor{} },
	"arct":        func() Processor { return arctProcessor{} },
	"wsdm_pseudo": func() Processor { return wsdmPseudoProcessor{} },
	"mnli_pseudo": func() Processor { return mnliPseudoProcessor{} },
}

// ErrUnknownTask is returned by Lookup for unregistered task names.
var ErrUnknownTask = errors.New("task not found")

// Lookup returns the processor registered for the task name, ignoring case.
func Lookup(task string) (Processor, error) {
	fn, ok := Processors[strings.ToLower(task)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTask, "%s (known: %s)", task, strings.Join(TaskNames(), ", "))
	}
	return fn(), nil
}

// TaskNames lists the registered task names in sorted order.
func TaskNames() (o []string) {
	for name := range Processors {
		o = append(o, name)
	}
	sort.Strings(o)
	return
}

// readTable unmarshals a delimited file into out, a pointer to a slice of tagged structs.
// Tab separated files are split verbatim; only comma separated files honour quotes.
func readTable(fs afero.Fs, dir, name string, comma rune, header bool, out interface{}) error {
	path := filepath.Join(dir, name)
	f, err := fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	var r gocsv.CSVReader
	if comma == '\t' {
		r = &tsvReader{r: bufio.NewReader(f)}
	} else {
		cr := csv.NewReader(f)
		cr.Comma = comma
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		r = cr
	}

	if header {
		err = gocsv.UnmarshalCSV(r, out)
	} else {
		err = gocsv.UnmarshalCSVWithoutHeaders(r, out)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to parse %s", path)
	}
	return nil
}

// tsvReader splits each line on tabs with no quote handling, the way the GLUE
// files are meant to be read. Blank lines are skipped.
type tsvReader struct {
	r *bufio.Reader
}

func (t *tsvReader) Read() ([]string, error) {
	for {
		line, err := t.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			return strings.Split(line, "\t"), nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

func (t *tsvReader) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		rec, err := t.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}
