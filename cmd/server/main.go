package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/cardioscreen/internal/bootstrap"
	"github.com/Skufu/cardioscreen/internal/config"
	"github.com/Skufu/cardioscreen/internal/httpapi"
	"github.com/Skufu/cardioscreen/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	logger := logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	app, err := bootstrap.Open(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("refusing to start: %v", err)
	}
	defer app.Close()

	deps := httpapi.Deps{Service: app.Service, StaticRoot: httpapi.DetectStaticRoot()}
	if cfg.EnableDB && app.DB != nil {
		deps.DB = app.DB
	}
	router := httpapi.NewRouter(deps)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port, "variant", cfg.Model.Variant, "threshold", cfg.Model.Threshold)
	waitForShutdown(server)
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
