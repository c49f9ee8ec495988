// Package dataset reads and writes the text records exchanged with the
// optimizer: training items (a target colour and the weights that produced
// it) and result records (one optimizer run per line).
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
)

// ErrInvalidRecord is returned for lines that do not parse.
var ErrInvalidRecord = errors.New("invalid record")

// TrainingHeader is the header line of a training file.
var TrainingHeader = []string{"target_lab", "target_weights"}

// TrainingItem is a target colour paired with the weights that produced it.
type TrainingItem struct {
	Target  colorspace.Lab
	Weights []float64
}

// Fields encodes the item as "L;a;b" and "w1;...;wN". Weights are rounded
// to two decimals.
func (t TrainingItem) Fields() []string {
	rounded := make([]float64, len(t.Weights))
	for i, w := range t.Weights {
		rounded[i] = math.Round(w*100) / 100
	}
	return []string{FormatLab(t.Target), FormatVector(rounded)}
}

// String returns the item as one record line without a newline.
func (t TrainingItem) String() string {
	return strings.Join(t.Fields(), ",")
}

// ParseTrainingItem parses "L;a;b,w1;...;wN".
func ParseTrainingItem(line string) (TrainingItem, error) {
	lab, weights, ok := strings.Cut(strings.TrimSpace(line), ",")
	if !ok {
		return TrainingItem{}, fmt.Errorf("%w: %q has no weights", ErrInvalidRecord, line)
	}
	return parseTrainingFields(lab, weights)
}

func parseTrainingFields(labField, weightField string) (TrainingItem, error) {
	lab, err := ParseLab(labField)
	if err != nil {
		return TrainingItem{}, err
	}
	weights, err := ParseVector(weightField)
	if err != nil {
		return TrainingItem{}, err
	}
	return TrainingItem{Target: lab, Weights: weights}, nil
}

// ReadTraining reads a training file. The header line is skipped and blank
// lines are ignored.
func ReadTraining(r io.Reader) ([]TrainingItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(TrainingHeader)
	cr.ReuseRecord = true

	var items []TrainingItem
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		if first {
			first = false
			if rec[0] == TrainingHeader[0] {
				continue
			}
		}
		item, err := parseTrainingFields(rec[0], rec[1])
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// LoadTraining reads the training file at path.
func LoadTraining(path string) ([]TrainingItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training set: %w", err)
	}
	defer f.Close()

	items, err := ReadTraining(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// TrainingWriter writes training items one per line after the header.
type TrainingWriter struct {
	w     *csv.Writer
	count int
}

// NewTrainingWriter writes the header and returns the writer.
func NewTrainingWriter(w io.Writer) (*TrainingWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(TrainingHeader); err != nil {
		return nil, err
	}
	return &TrainingWriter{w: cw}, nil
}

// Write appends one item.
func (tw *TrainingWriter) Write(item TrainingItem) error {
	if err := tw.w.Write(item.Fields()); err != nil {
		return err
	}
	tw.count++
	return nil
}

// Count returns the number of items written.
func (tw *TrainingWriter) Count() int { return tw.count }

// Flush writes buffered data to the underlying writer.
func (tw *TrainingWriter) Flush() error {
	tw.w.Flush()
	return tw.w.Error()
}

// WriteTraining writes the header and all items.
func WriteTraining(w io.Writer, items []TrainingItem) error {
	tw, err := NewTrainingWriter(w)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := tw.Write(item); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// FormatLab encodes a colour as "L;a;b" at full precision.
func FormatLab(c colorspace.Lab) string {
	return FormatVector([]float64{c.L, c.A, c.B})
}

// ParseLab decodes "L;a;b".
func ParseLab(s string) (colorspace.Lab, error) {
	v, err := ParseVector(s)
	if err != nil {
		return colorspace.Lab{}, err
	}
	if len(v) != 3 {
		return colorspace.Lab{}, fmt.Errorf("%w: expected 3 Lab values, got %d in %q", ErrInvalidRecord, len(v), s)
	}
	return colorspace.Lab{L: v[0], A: v[1], B: v[2]}, nil
}

// FormatVector joins values with ';' using the shortest exact representation.
func FormatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}

// ParseVector splits a ';'-joined list of numbers. An empty string is an
// empty vector.
func ParseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	v := make([]float64, len(parts))
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidRecord, p)
		}
		v[i] = x
	}
	return v, nil
}
