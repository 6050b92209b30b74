package screening

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Skufu/cardioscreen/internal/artifact"
	"github.com/Skufu/cardioscreen/internal/classifier"
	"github.com/Skufu/cardioscreen/internal/decision"
	"github.com/Skufu/cardioscreen/internal/features"
	"github.com/Skufu/cardioscreen/internal/patient"
	"github.com/Skufu/cardioscreen/internal/presentation"
)

// ErrInvalidProbability means the classifier output was not a probability in
// [0, 1]. No verdict is produced for it.
var ErrInvalidProbability = classifier.ErrInvalidProbability

// Result is one completed screening.
type Result struct {
	Payload          presentation.Payload
	HeartRateReserve int
	Raw              []patient.Field
	Vector           features.Vector
}

// Service runs records through alignment, the classifier and the decision
// policy. It holds only read-only state and is safe for concurrent use.
type Service struct {
	res     *artifact.Resources
	policy  decision.Policy
	variant string
	logger  *slog.Logger
}

func NewService(res *artifact.Resources, policy decision.Policy, variant string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{res: res, policy: policy, variant: variant, logger: logger}
}

// Screen produces a verdict for rec. A *features.TransformError means the
// input is outside what the transform was fit on; any other error is internal.
func (s *Service) Screen(rec patient.Record) (Result, error) {
	start := time.Now()

	aligned, err := s.res.Aligner.Align(rec)
	if err != nil {
		var terr *features.TransformError
		if errors.As(err, &terr) {
			s.logger.Warn("screening rejected by transform", "variant", s.variant, "column", terr.Column, "reason", terr.Reason)
			return Result{}, err
		}
		return Result{}, fmt.Errorf("screening: align: %w", err)
	}

	p, err := s.res.Classifier.PredictProbability(aligned.Vector.Values)
	if err != nil {
		return Result{}, fmt.Errorf("screening: predict: %w", err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		s.logger.Error("classifier returned invalid probability", "variant", s.variant, "probability", p)
		return Result{}, fmt.Errorf("screening: %w: %v", ErrInvalidProbability, p)
	}

	verdict := s.policy.Decide(p)
	s.logger.Info("screening completed",
		"variant", s.variant,
		"verdict", verdict.String(),
		"probability", p,
		"threshold", s.policy.Threshold,
		"duration", time.Since(start),
	)

	return Result{
		Payload:          presentation.Present(verdict, p),
		HeartRateReserve: rec.HeartRateReserve(),
		Raw:              aligned.Raw,
		Vector:           aligned.Vector,
	}, nil
}

// Variant returns the configured model variant name.
func (s *Service) Variant() string { return s.variant }

// Threshold returns the decision threshold in use.
func (s *Service) Threshold() float64 { return s.policy.Threshold }

// Resources returns the shared artifacts.
func (s *Service) Resources() *artifact.Resources { return s.res }
