// Package dataset loads tabular fatigue data, standardizes features and
// makes the reproducible train/test split.
package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"pibnn_lib/tensor"
)

// ErrColumnNotFound is returned when a requested column is missing from the
// header.
var ErrColumnNotFound = errors.New("column not found")

// Table holds the selected feature columns and the target column.
type Table struct {
	Features []string
	Target   string
	X        *tensor.Tensor // (rows, len(Features))
	Y        *tensor.Tensor // (rows, 1)
}

// Rows is the number of records.
func (t *Table) Rows() int { return t.X.Rows() }

// Subset returns the records at idx, in that order.
func (t *Table) Subset(idx []int) *Table {
	return &Table{
		Features: t.Features,
		Target:   t.Target,
		X:        t.X.SelectRows(idx),
		Y:        t.Y.SelectRows(idx),
	}
}

// Load reads a CSV file with a header row.
func Load(path string, features []string, target string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dataset")
	}
	defer file.Close()

	t, err := Read(bufio.NewReader(file), features, target)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return t, nil
}

// Read parses CSV with a header row and picks out the named columns. Pass an
// empty target to read features only, as inference does.
func Read(reader io.Reader, features []string, target string) (*Table, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	// Row width is checked below with a better message.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("empty dataset")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	featIdx := make([]int, len(features))
	for i, name := range features {
		if featIdx[i], err = columnIndex(header, name); err != nil {
			return nil, err
		}
	}
	targetIdx := -1
	if target != "" {
		if targetIdx, err = columnIndex(header, target); err != nil {
			return nil, err
		}
	}

	var xs, ys []float64
	lineNum := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading record")
		}
		lineNum++
		if len(record) != len(header) {
			return nil, errInvalidRow{lineNum: lineNum, fields: len(record), expected: len(header)}
		}
		for i, j := range featIdx {
			v, err := parseField(record[j])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d, column %q", lineNum, features[i])
			}
			xs = append(xs, v)
		}
		if targetIdx >= 0 {
			v, err := parseField(record[targetIdx])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d, column %q", lineNum, target)
			}
			ys = append(ys, v)
		}
	}

	rows := lineNum - 1
	if rows == 0 {
		return nil, errors.New("dataset has no records")
	}
	t := &Table{
		Features: features,
		Target:   target,
		X:        &tensor.Tensor{Data: xs, Shape: []int{rows, len(features)}},
		Y:        tensor.New(rows, 1),
	}
	if targetIdx >= 0 {
		t.Y = tensor.Column(ys)
	}
	return t, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrColumnNotFound, "%q (have %s)", name, strings.Join(header, ", "))
}

func parseField(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing value")
	}
	return v, nil
}

type errInvalidRow struct {
	lineNum  int
	fields   int
	expected int
}

func (e errInvalidRow) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.fields)
}

// WriteReport writes one row per point with the true value (if any), the
// predicted mean and the interval bounds.
func WriteReport(w io.Writer, truth, mean, lower, upper []float64) error {
	cw := csv.NewWriter(w)
	header := []string{"mean", "lower", "upper"}
	if truth != nil {
		header = append([]string{"true"}, header...)
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing report header")
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := range mean {
		row := []string{format(mean[i]), format(lower[i]), format(upper[i])}
		if truth != nil {
			row = append([]string{format(truth[i])}, row...)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing report row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing report")
}
