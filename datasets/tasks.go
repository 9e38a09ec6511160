package datasets

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

const (
	trainSet = "train"
	devSet   = "dev"
)

var (
	binaryLabels = []string{"0", "1"}
	nliLabels    = []string{"contradiction", "entailment", "neutral"}
	wsdmLabels   = []string{"agreed", "disagreed", "unrelated"}
)

// colaProcessor reads the headerless CoLA tsv files.
type colaProcessor struct{}

type colaRow struct {
	Source   string `csv:"source"`
	Label    string `csv:"label"`
	Author   string `csv:"author"`
	Sentence string `csv:"sentence"`
}

func (colaProcessor) Labels() []string { return binaryLabels }

func (p colaProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "train.tsv", trainSet, subset)
}

func (p colaProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "dev.tsv", devSet, subset)
}

func (colaProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []colaRow
	if err := readTable(fs, dir, name, '\t', false, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  fmt.Sprintf("%s-%d", set, i),
			TextA: r.Sentence,
			Label: r.Label,
		})
	}
	return subsetOf(o, subset), nil
}

// mrpcProcessor reads the MRPC tsv files with a header row.
type mrpcProcessor struct{}

type mrpcRow struct {
	Quality string `csv:"Quality"`
	String1 string `csv:"#1 String"`
	String2 string `csv:"#2 String"`
}

func (mrpcProcessor) Labels() []string { return binaryLabels }

func (p mrpcProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "train.tsv", trainSet, subset)
}

func (p mrpcProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "dev.tsv", devSet, subset)
}

func (mrpcProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []mrpcRow
	if err := readTable(fs, dir, name, '\t', true, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  fmt.Sprintf("%s-%d", set, i),
			TextA: r.String1,
			TextB: r.String2,
			Label: r.Quality,
		})
	}
	return subsetOf(o, subset), nil
}

// mnliProcessor reads the MultiNLI tsv files; evaluation uses the matched dev split.
type mnliProcessor struct{}

type mnliRow struct {
	PairID    string `csv:"pairID"`
	Sentence1 string `csv:"sentence1"`
	Sentence2 string `csv:"sentence2"`
	GoldLabel string `csv:"gold_label"`
}

func (mnliProcessor) Labels() []string { return nliLabels }

func (p mnliProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "train.tsv", trainSet, subset)
}

func (p mnliProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "dev_matched.tsv", devSet, subset)
}

func (mnliProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []mnliRow
	if err := readTable(fs, dir, name, '\t', true, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  guid(set, r.PairID, i),
			TextA: r.Sentence1,
			TextB: r.Sentence2,
			Label: r.GoldLabel,
		})
	}
	return subsetOf(o, subset), nil
}

// wsdmProcessor reads the fake news pair csv files with hard labels.
type wsdmProcessor struct{}

type wsdmRow struct {
	ID     string `csv:"id"`
	Title1 string `csv:"title1_en"`
	Title2 string `csv:"title2_en"`
	Label  string `csv:"label"`
}

func (wsdmProcessor) Labels() []string { return wsdmLabels }

func (p wsdmProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "train.csv", trainSet, subset)
}

func (p wsdmProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "dev.csv", devSet, subset)
}

func (wsdmProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []wsdmRow
	if err := readTable(fs, dir, name, ',', true, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  guid(set, r.ID, i),
			TextA: r.Title1,
			TextB: r.Title2,
			Label: strings.TrimSpace(r.Label),
		})
	}
	return subsetOf(o, subset), nil
}

// wsdmPseudoProcessor reads fake news pairs carrying pseudo-label probabilities.
type wsdmPseudoProcessor struct{}

type wsdmPseudoRow struct {
	ID        string  `csv:"id"`
	Title1    string  `csv:"title1_en"`
	Title2    string  `csv:"title2_en"`
	Agreed    float64 `csv:"agreed"`
	Disagreed float64 `csv:"disagreed"`
	Unrelated float64 `csv:"unrelated"`
}

func (wsdmPseudoProcessor) Labels() []string { return wsdmLabels }

func (p wsdmPseudoProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "pseudo_train.csv", trainSet, subset)
}

func (p wsdmPseudoProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "pseudo_dev.csv", devSet, subset)
}

func (wsdmPseudoProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []wsdmPseudoRow
	if err := readTable(fs, dir, name, ',', true, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  guid(set, r.ID, i),
			TextA: r.Title1,
			TextB: r.Title2,
			Probs: []float64{r.Agreed, r.Disagreed, r.Unrelated},
		})
	}
	return subsetOf(o, subset), nil
}

// mnliPseudoProcessor reads NLI pairs carrying pseudo-label probabilities.
type mnliPseudoProcessor struct{}

type mnliPseudoRow struct {
	PairID        string  `csv:"pairID"`
	Sentence1     string  `csv:"sentence1"`
	Sentence2     string  `csv:"sentence2"`
	Contradiction float64 `csv:"contradiction"`
	Entailment    float64 `csv:"entailment"`
	Neutral       float64 `csv:"neutral"`
}

func (mnliPseudoProcessor) Labels() []string { return nliLabels }

func (p mnliPseudoProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "pseudo_train.tsv", trainSet, subset)
}

func (p mnliPseudoProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "pseudo_dev.tsv", devSet, subset)
}

func (mnliPseudoProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []mnliPseudoRow
	if err := readTable(fs, dir, name, '\t', true, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  guid(set, r.PairID, i),
			TextA: r.Sentence1,
			TextB: r.Sentence2,
			Probs: []float64{r.Contradiction, r.Entailment, r.Neutral},
		})
	}
	return subsetOf(o, subset), nil
}

// arctProcessor reads the argument reasoning comprehension files. Sentence A
// is the reason followed by the claim, sentence B lists both warrants and the
// label names the warrant that links them.
type arctProcessor struct{}

type arctRow struct {
	ID       string `csv:"#id"`
	Warrant0 string `csv:"warrant0"`
	Warrant1 string `csv:"warrant1"`
	Label    string `csv:"correctLabelW0orW1"`
	Reason   string `csv:"reason"`
	Claim    string `csv:"claim"`
}

func (arctProcessor) Labels() []string { return binaryLabels }

func (p arctProcessor) TrainExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "train-full.txt", trainSet, subset)
}

func (p arctProcessor) DevExamples(fs afero.Fs, dir string, subset int) ([]Example, error) {
	return p.read(fs, dir, "dev-full.txt", devSet, subset)
}

func (arctProcessor) read(fs afero.Fs, dir, name, set string, subset int) ([]Example, error) {
	var rows []arctRow
	if err := readTable(fs, dir, name, '\t', true, &rows); err != nil {
		return nil, err
	}
	var o []Example
	for i, r := range rows {
		o = append(o, Example{
			GUID:  guid(set, r.ID, i),
			TextA: r.Reason + " " + r.Claim,
			TextB: r.Warrant0 + " " + r.Warrant1,
			Label: strings.TrimSpace(r.Label),
		})
	}
	return subsetOf(o, subset), nil
}

func guid(set, id string, i int) string {
	if id == "" {
		return fmt.Sprintf("%s-%d", set, i)
	}
	return set + "-" + id
}
