package classifier

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX runs an exported classifier graph (sklearn via skl2onnx, or keras via
// tf2onnx) with ONNX Runtime.
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	numInputs  int64
	// outWidth is 2 for [N, 2] class probabilities, 1 for a sigmoid output.
	outWidth int64
}

// LoadONNX creates an inference session from serialized model bytes. libPath
// points at the onnxruntime shared library; empty uses the platform default.
func LoadONNX(model []byte, libPath string) (*ONNX, error) {
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(model)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected a single input tensor, got %d", len(inputs))
	}
	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("onnx: input %q must be float32, got %v", in.Name, in.DataType)
	}
	if len(in.Dimensions) != 2 {
		return nil, fmt.Errorf("onnx: expected 2D input tensor, got %v", in.Dimensions)
	}

	out, width, err := probabilityOutput(outputs)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(model, []string{in.Name}, []string{out}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNX{
		session:    session,
		inputName:  in.Name,
		outputName: out,
		numInputs:  in.Dimensions[1],
		outWidth:   width,
	}, nil
}

// probabilityOutput picks the class probability tensor. skl2onnx exports
// "label" and "probabilities"; keras exports a single [N, 1] sigmoid.
func probabilityOutput(outputs []ort.InputOutputInfo) (string, int64, error) {
	var fallback *ort.InputOutputInfo
	for i := range outputs {
		o := &outputs[i]
		if o.DataType != ort.TensorElementDataTypeFloat || len(o.Dimensions) != 2 {
			continue
		}
		w := o.Dimensions[1]
		if w != 1 && w != 2 {
			continue
		}
		if o.Name == "probabilities" {
			return o.Name, w, nil
		}
		if fallback == nil {
			fallback = o
		}
	}
	if fallback == nil {
		return "", 0, fmt.Errorf("onnx: no float [N, 1] or [N, 2] probability output (export with zipmap disabled)")
	}
	return fallback.Name, fallback.Dimensions[1], nil
}

func (m *ONNX) PredictProbability(v []float64) (float64, error) {
	if m.numInputs > 0 && int64(len(v)) != m.numInputs {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(v), m.numInputs)
	}

	data := make([]float32, len(v))
	for i, x := range v {
		data[i] = float32(x)
	}
	in, err := ort.NewTensor(ort.NewShape(1, int64(len(v))), data)
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.outWidth))
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}

	probs := out.GetData()
	if m.outWidth == 2 {
		return checkProbability(float64(probs[1]))
	}
	return checkProbability(float64(probs[0]))
}

func (m *ONNX) Arity() int {
	if m.numInputs < 0 {
		return 0
	}
	return int(m.numInputs)
}

func (m *ONNX) Kind() string { return KindONNX }

// Close releases the ONNX session resources.
func (m *ONNX) Close() error {
	return m.session.Destroy()
}
