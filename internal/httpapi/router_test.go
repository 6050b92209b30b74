package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/cardioscreen/internal/artifact"
	"github.com/Skufu/cardioscreen/internal/classifier"
	"github.com/Skufu/cardioscreen/internal/decision"
	"github.com/Skufu/cardioscreen/internal/features"
	"github.com/Skufu/cardioscreen/internal/screening"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

const scenarioA = `{
	"age": 55, "sex": 1, "trestbps": 130, "chol": 240,
	"thalach": 150, "resting_hr": 70, "fbs": 0, "cp": 0,
	"exang": 0, "restecg": 0, "oldpeak": 1.0, "slope": 0, "ca": 0, "thal": 0
}`

var testColumns = []string{"age", "oldpeak", "heart_rate_reserve", "cp_0", "cp_1", "thal_2"}

func newTestService(t *testing.T, intercept float64) *screening.Service {
	t.Helper()
	cols, err := features.NewColumns(testColumns)
	if err != nil {
		t.Fatal(err)
	}
	aligner, err := features.NewAligner(features.StrategyManual, cols, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	model := &classifier.Logistic{Coefficients: make([]float64, len(testColumns)), Intercept: intercept}
	res := &artifact.Resources{Classifier: model, Columns: cols, Aligner: aligner, Source: "test"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return screening.NewService(res, decision.Policy{Threshold: 0.20}, "committee", logger)
}

func postScreening(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRouterHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{Service: newTestService(t, 0), DB: fakeDB{}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		deps Deps
		want int
	}{
		{"no db", Deps{Service: newTestService(t, 0)}, http.StatusOK},
		{"db ok", Deps{Service: newTestService(t, 0), DB: fakeDB{}}, http.StatusOK},
		{"db down", Deps{Service: newTestService(t, 0), DB: fakeDB{err: errors.New("refused")}}, http.StatusServiceUnavailable},
		{"not loaded", Deps{}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(tt.deps)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/readyz", nil)
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestScreeningPositive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// sigmoid(0) = 0.5 >= 0.20
	router := NewRouter(Deps{Service: newTestService(t, 0)})

	w := postScreening(router, "/api/screenings", scenarioA)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["verdict"] != "POSITIVE" || body["severity"] != "high" {
		t.Fatalf("expected positive high-severity verdict, got %v", body)
	}
	if body["probabilityPercent"] != "50.0%" {
		t.Fatalf("expected 50.0%%, got %v", body["probabilityPercent"])
	}
	if body["heartRateReserve"] != float64(80) {
		t.Fatalf("expected heart rate reserve 80, got %v", body["heartRateReserve"])
	}
	if _, ok := body["debug"]; ok {
		t.Fatalf("debug view should be omitted by default")
	}
}

func TestScreeningNegative(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// sigmoid(-3) ~ 0.047 < 0.20
	router := NewRouter(Deps{Service: newTestService(t, -3)})

	w := postScreening(router, "/api/screenings", scenarioA)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"verdict":"NEGATIVE"`) || !strings.Contains(w.Body.String(), `"severity":"low"`) {
		t.Fatalf("expected negative verdict, got %s", w.Body.String())
	}
}

func TestScreeningDebugView(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{Service: newTestService(t, 0)})

	body := strings.Replace(scenarioA, `"thalach": 150`, `"thalach": 60`, 1)
	w := postScreening(router, "/api/screenings?debug=true", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		HeartRateReserve int `json:"heartRateReserve"`
		Debug            struct {
			Raw    map[string]float64 `json:"raw"`
			Vector struct {
				Columns []string  `json:"columns"`
				Values  []float64 `json:"values"`
			} `json:"vector"`
		} `json:"debug"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.HeartRateReserve != -10 || resp.Debug.Raw["heart_rate_reserve"] != -10 {
		t.Fatalf("negative reserve must flow through unchanged, got %+v", resp)
	}
	if strings.Join(resp.Debug.Vector.Columns, ",") != strings.Join(testColumns, ",") {
		t.Fatalf("vector columns %v do not follow trained order", resp.Debug.Vector.Columns)
	}
	want := []float64{55, 1.0, -10, 1, 0, 0}
	for i, v := range want {
		if resp.Debug.Vector.Values[i] != v {
			t.Fatalf("vector[%d] = %v, want %v", i, resp.Debug.Vector.Values[i], v)
		}
	}
}

func TestScreeningValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{Service: newTestService(t, 0)})

	body := strings.Replace(scenarioA, `"trestbps": 130`, `"trestbps": 20`, 1)
	body = strings.Replace(body, `"thal": 0`, `"thal": 7`, 1)
	w := postScreening(router, "/api/screenings", body)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for validation failure, got %d", w.Code)
	}
	lower := strings.ToLower(w.Body.String())
	if !strings.Contains(lower, "validation_failed") || !strings.Contains(lower, "trestbps") || !strings.Contains(lower, "thal") {
		t.Fatalf("expected validation error response, got %s", w.Body.String())
	}
}

func TestScreeningMissingField(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{Service: newTestService(t, 0)})

	body := strings.Replace(scenarioA, `"sex": 1,`, ``, 1)
	w := postScreening(router, "/api/screenings", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"sex":"is required"`) {
		t.Fatalf("expected sex to be reported, got %s", w.Body.String())
	}
}

func TestScreeningMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{Service: newTestService(t, 0)})

	w := postScreening(router, "/api/screenings", `{"age": "old"`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScreeningTransformFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tr, err := features.ParseTransform([]byte(`{"steps":[{"kind":"onehot","handle_unknown":"error","columns":["thal"],"categories":[[1,2,3]]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	cols, _ := features.NewColumns(tr.OutputNames())
	aligner, err := features.NewAligner(features.StrategyPipeline, cols, tr, []string{"fbs"})
	if err != nil {
		t.Fatal(err)
	}
	model := &classifier.Logistic{Coefficients: make([]float64, cols.Len())}
	res := &artifact.Resources{Classifier: model, Columns: cols, Transform: tr, Aligner: aligner}
	svc := screening.NewService(res, decision.Policy{Threshold: 0.20}, "neural", slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := NewRouter(Deps{Service: svc})

	w := postScreening(router, "/api/screenings", scenarioA)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "transform_failed") || !strings.Contains(w.Body.String(), "unknown category") {
		t.Fatalf("expected transform diagnostic, got %s", w.Body.String())
	}

	// The process keeps serving after a request-level failure.
	okBody := strings.Replace(scenarioA, `"thal": 0`, `"thal": 2`, 1)
	w = postScreening(router, "/api/screenings", okBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after recovery, got %d: %s", w.Code, w.Body.String())
	}
}

func TestModelInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{Service: newTestService(t, 0)})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/model", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"strategy":"manual"`) || !strings.Contains(w.Body.String(), `"threshold":0.2`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("12345"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("01234567890"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestRouterServesStaticFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>screen</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	router := NewRouter(Deps{Service: newTestService(t, 0), StaticRoot: root})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<h1>screen</h1>") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestScreeningWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Deps{})

	w := postScreening(router, "/api/screenings", scenarioA)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
}
