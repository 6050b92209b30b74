package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skufu/cardioscreen/internal/classifier"
	"github.com/Skufu/cardioscreen/internal/features"
)

// MissingError reports a required artifact that does not exist.
type MissingError struct {
	Artifact string // logical role: classifier, columns, transform
	Name     string
	Location string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("artifact: %s artifact %q not found in %s", e.Artifact, e.Name, e.Location)
}

// CorruptError reports an artifact that exists but could not be read or decoded.
type CorruptError struct {
	Artifact string
	Name     string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("artifact: %s artifact %q is unusable: %v", e.Artifact, e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Manifest names the artifacts of one deployed model variant.
type Manifest struct {
	Classifier string
	Columns    string
	// Transform is required by the pipeline strategy and unused by manual.
	Transform string
	Strategy  string
	Exclude   []string
	ONNXLib   string
}

// Resources are the loaded, read-only artifacts shared by all requests.
type Resources struct {
	Classifier classifier.Classifier
	Columns    features.Columns
	Transform  *features.Transform
	Aligner    features.Aligner
	Source     string
	LoadedAt   time.Time
}

// Close releases native model resources.
func (r *Resources) Close() error {
	if r == nil || r.Classifier == nil {
		return nil
	}
	return r.Classifier.Close()
}

// Loader loads a manifest once per process.
type Loader struct {
	src      Source
	manifest Manifest
	logger   *slog.Logger

	once  sync.Once
	res   *Resources
	err   error
	ready atomic.Pointer[Resources]
}

func NewLoader(src Source, m Manifest, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, manifest: m, logger: logger}
}

// Load reads and decodes every artifact on the first call. Later and
// concurrent calls get the same Resources or the same error.
func (l *Loader) Load(ctx context.Context) (*Resources, error) {
	l.once.Do(func() {
		start := time.Now()
		l.res, l.err = l.load(ctx)
		if l.err != nil {
			l.logger.Error("artifact load failed", "source", l.src.Describe(), "error", l.err)
			return
		}
		l.ready.Store(l.res)
		l.logger.Info("artifacts loaded",
			"source", l.src.Describe(),
			"classifier", l.manifest.Classifier,
			"kind", l.res.Classifier.Kind(),
			"columns", l.res.Columns.Len(),
			"strategy", l.res.Aligner.Strategy(),
			"duration", time.Since(start),
		)
	})
	return l.res, l.err
}

// Loaded returns the resources if Load has already succeeded. It never
// triggers a load.
func (l *Loader) Loaded() (*Resources, bool) {
	res := l.ready.Load()
	return res, res != nil
}

func (l *Loader) load(ctx context.Context) (*Resources, error) {
	m := l.manifest
	if m.Classifier == "" || m.Columns == "" {
		return nil, fmt.Errorf("artifact: manifest needs classifier and columns names")
	}
	if m.Strategy == features.StrategyPipeline && m.Transform == "" {
		return nil, fmt.Errorf("artifact: %s strategy needs a transform artifact", m.Strategy)
	}

	rawCols, err := l.read(ctx, "columns", m.Columns)
	if err != nil {
		return nil, err
	}
	cols, err := decodeColumns(rawCols)
	if err != nil {
		return nil, &CorruptError{Artifact: "columns", Name: m.Columns, Err: err}
	}

	var transform *features.Transform
	if m.Strategy == features.StrategyPipeline {
		raw, err := l.read(ctx, "transform", m.Transform)
		if err != nil {
			return nil, err
		}
		if err := validateDocument("transform", raw); err != nil {
			return nil, &CorruptError{Artifact: "transform", Name: m.Transform, Err: err}
		}
		transform, err = features.ParseTransform(raw)
		if err != nil {
			return nil, &CorruptError{Artifact: "transform", Name: m.Transform, Err: err}
		}
	}

	aligner, err := features.NewAligner(m.Strategy, cols, transform, m.Exclude)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	rawModel, err := l.read(ctx, "classifier", m.Classifier)
	if err != nil {
		return nil, err
	}
	model, err := decodeClassifier(m.Classifier, rawModel, m.ONNXLib)
	if err != nil {
		return nil, &CorruptError{Artifact: "classifier", Name: m.Classifier, Err: err}
	}
	if err := checkArity(model, cols); err != nil {
		return nil, err
	}

	return &Resources{
		Classifier: model,
		Columns:    cols,
		Transform:  transform,
		Aligner:    aligner,
		Source:     l.src.Describe(),
		LoadedAt:   time.Now(),
	}, nil
}

// checkArity closes model when it does not fit cols.
func checkArity(model classifier.Classifier, cols features.Columns) error {
	a := model.Arity()
	if a == 0 || a == cols.Len() {
		return nil
	}
	err := fmt.Errorf("artifact: %w: classifier expects %d features, column list has %d",
		features.ErrShapeMismatch, a, cols.Len())
	if cerr := model.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("artifact: close classifier: %w", cerr))
	}
	return err
}

func (l *Loader) read(ctx context.Context, role, name string) ([]byte, error) {
	data, err := l.src.Read(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, &MissingError{Artifact: role, Name: name, Location: l.src.Describe()}
	}
	if err != nil {
		return nil, &CorruptError{Artifact: role, Name: name, Err: err}
	}
	if len(data) == 0 {
		return nil, &CorruptError{Artifact: role, Name: name, Err: errors.New("empty file")}
	}
	return data, nil
}

func decodeColumns(raw []byte) (features.Columns, error) {
	if err := validateDocument("columns", raw); err != nil {
		return features.Columns{}, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return features.Columns{}, err
	}
	return features.NewColumns(names)
}

func decodeClassifier(name string, raw []byte, onnxLib string) (classifier.Classifier, error) {
	if strings.HasSuffix(strings.ToLower(name), ".onnx") {
		return classifier.LoadONNX(raw, onnxLib)
	}
	if err := validateDocument("model", raw); err != nil {
		return nil, err
	}
	return classifier.Parse(raw)
}
