package features

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch means a vector does not match the trained column contract.
// It indicates an artifact/aligner mismatch, never a user input problem.
var ErrShapeMismatch = errors.New("features: vector shape does not match trained columns")

// Columns is the ordered list of feature names a classifier was fit against.
// It is read-only once built.
type Columns struct {
	names []string
	index map[string]int
}

// NewColumns builds a column list. Empty and duplicate names are rejected.
func NewColumns(names []string) (Columns, error) {
	if len(names) == 0 {
		return Columns{}, fmt.Errorf("features: empty column list")
	}
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return Columns{}, fmt.Errorf("features: empty column name at position %d", i)
		}
		if prev, ok := idx[n]; ok {
			return Columns{}, fmt.Errorf("features: duplicate column %q at positions %d and %d", n, prev, i)
		}
		idx[n] = i
	}
	cp := make([]string, len(names))
	copy(cp, names)
	return Columns{names: cp, index: idx}, nil
}

// Len returns the number of columns.
func (c Columns) Len() int { return len(c.names) }

// Names returns a copy of the column names in trained order.
func (c Columns) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Index returns the position of name, or -1.
func (c Columns) Index(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Vector is a feature vector labelled with the trained columns.
type Vector struct {
	Columns Columns
	Values  []float64
}

// Len returns the vector length.
func (v Vector) Len() int { return len(v.Values) }

// Get returns the value at the named column.
func (v Vector) Get(name string) (float64, bool) {
	i := v.Columns.Index(name)
	if i < 0 || i >= len(v.Values) {
		return 0, false
	}
	return v.Values[i], true
}

// Map returns the vector as column name to value.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Values))
	for i, n := range v.Columns.names {
		if i < len(v.Values) {
			m[n] = v.Values[i]
		}
	}
	return m
}

func newVector(cols Columns, values []float64) (Vector, error) {
	if len(values) != cols.Len() {
		return Vector{}, fmt.Errorf("%w: got %d values for %d columns", ErrShapeMismatch, len(values), cols.Len())
	}
	return Vector{Columns: cols, Values: values}, nil
}
