package features

import (
	"fmt"

	"github.com/Skufu/cardioscreen/internal/patient"
)

// Strategy names, chosen once at configuration time.
const (
	StrategyPipeline = "pipeline"
	StrategyManual   = "manual"
)

// Aligned is the outcome of aligning one record.
type Aligned struct {
	Raw    []patient.Field
	Vector Vector
}

// Aligner turns a raw record into the vector the classifier was trained on.
type Aligner interface {
	Align(rec patient.Record) (Aligned, error)
	Strategy() string
}

// NewAligner returns the aligner for strategy. transform is required for the
// pipeline strategy and ignored otherwise. exclude lists raw fields dropped
// before the record is assembled.
func NewAligner(strategy string, cols Columns, transform *Transform, exclude []string) (Aligner, error) {
	if cols.Len() == 0 {
		return nil, fmt.Errorf("features: aligner needs a trained column list")
	}
	for _, e := range exclude {
		if !patient.Known(e) {
			return nil, fmt.Errorf("features: cannot exclude unknown field %q", e)
		}
	}

	switch strategy {
	case StrategyPipeline:
		if transform == nil {
			return nil, fmt.Errorf("features: %s strategy needs a transform", strategy)
		}
		if transform.Width() != cols.Len() {
			return nil, fmt.Errorf("%w: transform produces %d values, column list has %d",
				ErrShapeMismatch, transform.Width(), cols.Len())
		}
		return &pipelineAligner{cols: cols, transform: transform, exclude: exclude}, nil
	case StrategyManual:
		return &manualAligner{cols: cols, exclude: exclude}, nil
	default:
		return nil, fmt.Errorf("features: unknown strategy %q", strategy)
	}
}

type pipelineAligner struct {
	cols      Columns
	transform *Transform
	exclude   []string
}

func (a *pipelineAligner) Strategy() string { return StrategyPipeline }

func (a *pipelineAligner) Align(rec patient.Record) (Aligned, error) {
	raw := rec.Fields(a.exclude)
	m := make(map[string]float64, len(raw))
	for _, f := range raw {
		m[f.Name] = f.Value
	}

	values, err := a.transform.Apply(m)
	if err != nil {
		return Aligned{}, err
	}
	vec, err := newVector(a.cols, values)
	if err != nil {
		return Aligned{}, err
	}
	return Aligned{Raw: raw, Vector: vec}, nil
}

type manualAligner struct {
	cols    Columns
	exclude []string
}

func (a *manualAligner) Strategy() string { return StrategyManual }

func (a *manualAligner) Align(rec patient.Record) (Aligned, error) {
	raw := rec.Fields(a.exclude)
	values := make([]float64, a.cols.Len())
	// Columns the expansion never produces stay 0; expanded columns absent
	// from the trained list are dropped.
	for _, f := range raw {
		name := f.Name
		val := f.Value
		if patient.Categorical(f.Name) {
			name = OneHotName(f.Name, f.Value)
			val = 1
		}
		if i := a.cols.Index(name); i >= 0 {
			values[i] = val
		}
	}
	vec, err := newVector(a.cols, values)
	if err != nil {
		return Aligned{}, err
	}
	return Aligned{Raw: raw, Vector: vec}, nil
}

// OneHotName is the indicator column name for a categorical level.
func OneHotName(field string, level float64) string {
	return field + "_" + formatLevel(level)
}
