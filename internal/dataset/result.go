package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/opt"
)

// ResultHeader names the fixed leading columns of a result file. Parameter
// columns follow in the order the parameters were supplied.
var ResultHeader = []string{
	"targetLab",
	"resultLab",
	"initialLab",
	"targetWeights",
	"resultWeights",
	"initialWeights",
	"optimizer",
	"numberOfEvaluations",
	"mixingError",
	"penalties",
	"normalizer",
	"initialGuessType",
	"runtimeMs",
	"converged",
}

// Result is one optimizer run over one training item.
type Result struct {
	TargetLab      colorspace.Lab
	ResultLab      colorspace.Lab
	InitialLab     colorspace.Lab
	TargetWeights  []float64
	ResultWeights  []float64
	InitialWeights []float64
	Optimizer      string
	Evaluations    int
	MixingError    string
	Penalties      []string
	Normalizer     string
	InitialGuess   string
	Runtime        time.Duration
	Converged      bool
	Params         opt.Params
}

// Header returns the result header for the given parameter keys.
func Header(paramKeys []string) []string {
	return append(append([]string(nil), ResultHeader...), paramKeys...)
}

// Fields encodes r under the given parameter keys. Missing parameters are
// written as empty columns.
func (r Result) Fields(paramKeys []string) []string {
	fields := []string{
		FormatLab(r.TargetLab),
		FormatLab(r.ResultLab),
		FormatLab(r.InitialLab),
		FormatVector(r.TargetWeights),
		FormatVector(r.ResultWeights),
		FormatVector(r.InitialWeights),
		r.Optimizer,
		strconv.Itoa(r.Evaluations),
		r.MixingError,
		strings.Join(r.Penalties, ";"),
		r.Normalizer,
		r.InitialGuess,
		strconv.FormatInt(r.Runtime.Milliseconds(), 10),
		strconv.FormatBool(r.Converged),
	}
	for _, key := range paramKeys {
		v, ok := r.Params.Get(key)
		if !ok {
			fields = append(fields, "")
			continue
		}
		fields = append(fields, formatParam(v))
	}
	return fields
}

func formatParam(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// ResultWriter writes result records under a header fixed at creation.
type ResultWriter struct {
	w    *csv.Writer
	keys []string
}

// NewResultWriter writes the header for paramKeys and returns the writer.
func NewResultWriter(w io.Writer, paramKeys []string) (*ResultWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(paramKeys)); err != nil {
		return nil, err
	}
	return &ResultWriter{w: cw, keys: append([]string(nil), paramKeys...)}, nil
}

// Write appends one record and flushes it.
func (rw *ResultWriter) Write(r Result) error {
	if err := rw.w.Write(r.Fields(rw.keys)); err != nil {
		return err
	}
	rw.w.Flush()
	return rw.w.Error()
}

// ReadResults reads a result file written by ResultWriter. Columns are
// located by header name; the Lab columns are required.
func ReadResults(r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty result file", ErrInvalidRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"targetLab", "resultLab"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidRecord, required)
		}
	}
	var paramKeys []string
	if len(header) > len(ResultHeader) {
		paramKeys = header[len(ResultHeader):]
	}

	var results []Result
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		line, _ := cr.FieldPos(0)
		res, err := parseResult(rec, col, paramKeys, len(ResultHeader))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func parseResult(rec []string, col map[string]int, paramKeys []string, paramStart int) (Result, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var res Result
	var err error
	if res.TargetLab, err = ParseLab(get("targetLab")); err != nil {
		return Result{}, err
	}
	if res.ResultLab, err = ParseLab(get("resultLab")); err != nil {
		return Result{}, err
	}
	if s := get("initialLab"); s != "" {
		if res.InitialLab, err = ParseLab(s); err != nil {
			return Result{}, err
		}
	}
	for name, dst := range map[string]*[]float64{
		"targetWeights":  &res.TargetWeights,
		"resultWeights":  &res.ResultWeights,
		"initialWeights": &res.InitialWeights,
	} {
		if *dst, err = ParseVector(get(name)); err != nil {
			return Result{}, err
		}
	}
	res.Optimizer = get("optimizer")
	if s := get("numberOfEvaluations"); s != "" {
		if res.Evaluations, err = strconv.Atoi(s); err != nil {
			return Result{}, fmt.Errorf("%w: numberOfEvaluations %q", ErrInvalidRecord, s)
		}
	}
	res.MixingError = get("mixingError")
	if s := get("penalties"); s != "" {
		res.Penalties = strings.Split(s, ";")
	}
	res.Normalizer = get("normalizer")
	res.InitialGuess = get("initialGuessType")
	if s := get("runtimeMs"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Result{}, fmt.Errorf("%w: runtimeMs %q", ErrInvalidRecord, s)
		}
		res.Runtime = time.Duration(ms) * time.Millisecond
	}
	if s := get("converged"); s != "" {
		if res.Converged, err = strconv.ParseBool(s); err != nil {
			return Result{}, fmt.Errorf("%w: converged %q", ErrInvalidRecord, s)
		}
	}
	for i, key := range paramKeys {
		idx := paramStart + i
		if idx >= len(rec) || rec[idx] == "" {
			continue
		}
		p, err := opt.ParseParam(key + "=" + rec[idx])
		if err != nil {
			return Result{}, err
		}
		res.Params = append(res.Params, p)
	}
	return res, nil
}

// LoadResults reads the result file at path.
func LoadResults(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results: %w", err)
	}
	defer f.Close()

	results, err := ReadResults(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}

// Summary condenses a result file into one sample: the optimizer and
// parameters of its first record and the mean distance between target and
// result colours.
type Summary struct {
	Optimizer string
	Params    opt.Params
	MeanError float64
	Count     int
}

// Summarize computes the mean of metric over all results.
func Summarize(results []Result, metric colorspace.Metric) (Summary, error) {
	if len(results) == 0 {
		return Summary{}, fmt.Errorf("%w: no result records", ErrInvalidRecord)
	}
	var sum float64
	for _, r := range results {
		sum += metric.Distance(r.ResultLab, r.TargetLab)
	}
	return Summary{
		Optimizer: results[0].Optimizer,
		Params:    results[0].Params,
		MeanError: sum / float64(len(results)),
		Count:     len(results),
	}, nil
}
