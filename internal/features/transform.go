package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Step kinds of a column transform.
const (
	StepScale       = "scale"
	StepOneHot      = "onehot"
	StepPassthrough = "passthrough"
)

// TransformError is a request-level failure of the preprocessing transform,
// typically a value outside the domain the transform was fit on.
type TransformError struct {
	Column string
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform: column %q: %s", e.Column, e.Reason)
}

// Step is one block of a column transform. Output blocks are concatenated in
// step order.
type Step struct {
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	Columns       []string    `json:"columns"`
	Mean          []float64   `json:"mean,omitempty"`
	Scale         []float64   `json:"scale,omitempty"`
	Categories    [][]float64 `json:"categories,omitempty"`
	Drop          string      `json:"drop,omitempty"`
	HandleUnknown string      `json:"handle_unknown,omitempty"`
}

// Transform is a fitted scaling and categorical-encoding pipeline.
type Transform struct {
	Steps []Step `json:"steps"`

	width int
}

// ParseTransform decodes and checks a transform document.
func ParseTransform(raw []byte) (*Transform, error) {
	var t Transform
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("transform: decode: %w", err)
	}
	if err := t.init(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Transform) init() error {
	if len(t.Steps) == 0 {
		return fmt.Errorf("transform: no steps")
	}
	t.width = 0
	for i, s := range t.Steps {
		switch s.Kind {
		case StepScale:
			if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
				return fmt.Errorf("transform: step %d (%s): mean/scale length must match %d columns", i, s.Name, len(s.Columns))
			}
			t.width += len(s.Columns)
		case StepOneHot:
			if len(s.Categories) != len(s.Columns) {
				return fmt.Errorf("transform: step %d (%s): categories length must match %d columns", i, s.Name, len(s.Columns))
			}
			switch s.HandleUnknown {
			case "", "error", "ignore":
			default:
				return fmt.Errorf("transform: step %d (%s): unknown handle_unknown %q", i, s.Name, s.HandleUnknown)
			}
			for j, col := range s.Columns {
				if len(s.Categories[j]) == 0 {
					return fmt.Errorf("transform: step %d (%s): column %q has no categories", i, s.Name, col)
				}
				t.width += len(s.Categories[j]) - s.dropped(j)
			}
		case StepPassthrough:
			t.width += len(s.Columns)
		default:
			return fmt.Errorf("transform: step %d: unknown kind %q", i, s.Kind)
		}
	}
	return nil
}

// dropped returns how many indicator columns are dropped for the j-th column.
func (s Step) dropped(j int) int {
	switch s.Drop {
	case "first":
		return 1
	case "if_binary":
		if len(s.Categories[j]) == 2 {
			return 1
		}
	}
	return 0
}

// Width returns the number of output values.
func (t *Transform) Width() int { return t.width }

// Inputs returns every input column the transform reads.
func (t *Transform) Inputs() []string {
	var out []string
	for _, s := range t.Steps {
		out = append(out, s.Columns...)
	}
	return out
}

// OutputNames returns generated names for the output values, in order.
func (t *Transform) OutputNames() []string {
	out := make([]string, 0, t.width)
	for _, s := range t.Steps {
		prefix := s.Name
		if prefix == "" {
			prefix = s.Kind
		}
		switch s.Kind {
		case StepOneHot:
			for j, col := range s.Columns {
				for _, level := range s.Categories[j][s.dropped(j):] {
					out = append(out, prefix+"__"+col+"_"+formatLevel(level))
				}
			}
		default:
			for _, col := range s.Columns {
				out = append(out, prefix+"__"+col)
			}
		}
	}
	return out
}

// Apply runs the transform over one record's fields.
func (t *Transform) Apply(fields map[string]float64) ([]float64, error) {
	out := make([]float64, 0, t.width)
	for _, s := range t.Steps {
		for j, col := range s.Columns {
			v, ok := fields[col]
			if !ok {
				return nil, &TransformError{Column: col, Reason: "missing from input"}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &TransformError{Column: col, Reason: "value is not finite"}
			}

			switch s.Kind {
			case StepScale:
				scale := s.Scale[j]
				if scale == 0 {
					scale = 1
				}
				out = append(out, (v-s.Mean[j])/scale)
			case StepOneHot:
				enc, err := s.encode(j, v)
				if err != nil {
					return nil, err
				}
				out = append(out, enc...)
			case StepPassthrough:
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (s Step) encode(j int, v float64) ([]float64, error) {
	cats := s.Categories[j]
	skip := s.dropped(j)
	enc := make([]float64, len(cats)-skip)
	for k, level := range cats {
		if level != v {
			continue
		}
		if k >= skip {
			enc[k-skip] = 1
		}
		return enc, nil
	}
	if s.HandleUnknown == "ignore" {
		return enc, nil
	}
	return nil, &TransformError{
		Column: s.Columns[j],
		Reason: fmt.Sprintf("found unknown category %s during transform", formatLevel(v)),
	}
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
