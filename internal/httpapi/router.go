package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Skufu/cardioscreen/internal/features"
	"github.com/Skufu/cardioscreen/internal/screening"
)

// HealthChecker is satisfied by *pgxpool.Pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Router dependencies. DB may be nil when no database is configured.
type Deps struct {
	Service    *screening.Service
	DB         HealthChecker
	StaticRoot string
}

func NewRouter(d Deps) *gin.Engine {
	registerJSONFieldNames()

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	if d.StaticRoot != "" {
		router.Static("/static", d.StaticRoot)
		router.StaticFile("/", filepath.Join(d.StaticRoot, "index.html"))
		router.StaticFile("/styles.css", filepath.Join(d.StaticRoot, "styles.css"))
		router.StaticFile("/app.js", filepath.Join(d.StaticRoot, "app.js"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		body := gin.H{"status": "ok", "artifacts": "loaded", "db": "disabled"}
		if d.Service == nil {
			body["status"] = "degraded"
			body["artifacts"] = "not loaded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		if d.DB == nil {
			c.JSON(http.StatusOK, body)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.DB.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["db"] = fmt.Sprintf("unhealthy: %v", err)
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["db"] = "ok"
		c.JSON(http.StatusOK, body)
	})

	h := &handler{svc: d.Service}
	api := router.Group("/api")
	{
		api.POST("/screenings", h.screen)
		api.GET("/model", h.model)
	}

	return router
}

type handler struct {
	svc *screening.Service
}

func (h *handler) screen(c *gin.Context) {
	if h.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}

	var req screeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields, ok := validationFields(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_failed", "fields": fields})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	result, err := h.svc.Screen(req.record())
	if err != nil {
		var terr *features.TransformError
		if errors.As(err, &terr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "transform_failed",
				"details": fmt.Sprintf("Error processing the data: %v", terr),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "screening failed", "details": err.Error()})
		return
	}

	resp := screeningResponse{
		Payload:          result.Payload,
		HeartRateReserve: result.HeartRateReserve,
		Variant:          h.svc.Variant(),
		Threshold:        h.svc.Threshold(),
	}
	if c.Query("debug") == "true" {
		resp.Debug = newDebugView(result)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) model(c *gin.Context) {
	if h.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}
	res := h.svc.Resources()
	c.JSON(http.StatusOK, gin.H{
		"variant":    h.svc.Variant(),
		"strategy":   res.Aligner.Strategy(),
		"threshold":  h.svc.Threshold(),
		"classifier": res.Classifier.Kind(),
		"columns":    res.Columns.Names(),
		"source":     res.Source,
		"loadedAt":   res.LoadedAt,
	})
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// DetectStaticRoot looks for web/index.html in the working directory and up
// to two parents.
func DetectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		web := filepath.Join(dir, "web")
		if fileExists(filepath.Join(web, "index.html")) {
			return web
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
