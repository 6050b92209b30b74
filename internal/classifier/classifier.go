package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Skufu/cardioscreen/internal/features"
)

// ErrShapeMismatch is returned when a vector does not have the length the
// model was fit against. It is the same sentinel as features.ErrShapeMismatch.
var ErrShapeMismatch = features.ErrShapeMismatch

// ErrInvalidProbability is returned when a model produces a value that is not
// a finite probability.
var ErrInvalidProbability = errors.New("classifier: non-finite probability")

// Classifier returns the positive-class probability for a feature vector.
// Implementations are deterministic and safe for concurrent use.
type Classifier interface {
	PredictProbability(v []float64) (float64, error)
	// Arity is the expected vector length, or 0 when the model does not declare one.
	Arity() int
	Close() error
	Kind() string
}

// Document kinds.
const (
	KindLogistic  = "logistic"
	KindCommittee = "committee"
	KindONNX      = "onnx"
)

// Logistic is a fitted logistic regression.
type Logistic struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (m *Logistic) PredictProbability(v []float64) (float64, error) {
	if len(v) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(v), len(m.Coefficients))
	}
	z := m.Intercept
	for i, c := range m.Coefficients {
		z += c * v[i]
	}
	return checkProbability(sigmoid(z))
}

func (m *Logistic) Arity() int { return len(m.Coefficients) }
func (m *Logistic) Close() error { return nil }
func (m *Logistic) Kind() string { return KindLogistic }

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Committee averages the probabilities of its members (soft voting).
type Committee struct {
	members []Classifier
	weights []float64
	total   float64
	arity   int
}

// NewCommittee builds a soft-voting committee. weights may be nil for equal
// weighting. Members must agree on their input length.
func NewCommittee(members []Classifier, weights []float64) (*Committee, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("classifier: committee has no members")
	}
	if weights == nil {
		weights = make([]float64, len(members))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(members) {
		return nil, fmt.Errorf("classifier: committee has %d members but %d weights", len(members), len(weights))
	}

	c := &Committee{members: members, weights: weights}
	for i, m := range members {
		if weights[i] < 0 {
			return nil, fmt.Errorf("classifier: committee weight %d is negative", i)
		}
		c.total += weights[i]
		a := m.Arity()
		if a == 0 {
			continue
		}
		if c.arity != 0 && a != c.arity {
			return nil, fmt.Errorf("classifier: committee member %d expects %d features, others expect %d", i, a, c.arity)
		}
		c.arity = a
	}
	if c.total == 0 {
		return nil, fmt.Errorf("classifier: committee weights sum to zero")
	}
	return c, nil
}

func (c *Committee) PredictProbability(v []float64) (float64, error) {
	if c.arity != 0 && len(v) != c.arity {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(v), c.arity)
	}
	var sum float64
	for i, m := range c.members {
		p, err := m.PredictProbability(v)
		if err != nil {
			return 0, fmt.Errorf("classifier: committee member %d: %w", i, err)
		}
		sum += c.weights[i] * p
	}
	return checkProbability(sum / c.total)
}

func (c *Committee) Arity() int { return c.arity }
func (c *Committee) Kind() string { return KindCommittee }

func (c *Committee) Close() error {
	var errs []error
	for _, m := range c.members {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type document struct {
	Kind         string            `json:"kind"`
	Coefficients []float64         `json:"coefficients"`
	Intercept    float64           `json:"intercept"`
	Voting       string            `json:"voting"`
	Members      []json.RawMessage `json:"members"`
	Weights      []float64         `json:"weights"`
}

// Parse decodes a JSON model document (logistic or committee).
func Parse(raw []byte) (Classifier, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("classifier: decode: %w", err)
	}

	switch doc.Kind {
	case KindLogistic:
		if len(doc.Coefficients) == 0 {
			return nil, fmt.Errorf("classifier: logistic model has no coefficients")
		}
		return &Logistic{Coefficients: doc.Coefficients, Intercept: doc.Intercept}, nil
	case KindCommittee:
		if doc.Voting != "" && doc.Voting != "soft" {
			return nil, fmt.Errorf("classifier: unsupported voting %q", doc.Voting)
		}
		members := make([]Classifier, 0, len(doc.Members))
		for i, m := range doc.Members {
			member, err := Parse(m)
			if err != nil {
				return nil, fmt.Errorf("classifier: member %d: %w", i, err)
			}
			members = append(members, member)
		}
		return NewCommittee(members, doc.Weights)
	default:
		return nil, fmt.Errorf("classifier: unknown model kind %q", doc.Kind)
	}
}

// checkProbability rejects NaN and infinities, and clamps rounding noise
// into [0, 1].
func checkProbability(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	return clamp01(p), nil
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
