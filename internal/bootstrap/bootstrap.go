package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/cardioscreen/internal/artifact"
	"github.com/Skufu/cardioscreen/internal/config"
	"github.com/Skufu/cardioscreen/internal/decision"
	"github.com/Skufu/cardioscreen/internal/screening"
)

// App is the once-initialized, read-only state every entry point shares.
type App struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	Resources *artifact.Resources
	Service   *screening.Service
}

// Open connects the database when one is configured and loads the model
// artifacts. Any failure is fatal for the caller: nothing is half-open.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg}

	if cfg.NeedsDB() {
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		app.DB = pool
	}

	svc, res, err := buildService(ctx, cfg, app.DB, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Service = svc
	app.Resources = res
	return app, nil
}

// Close releases model sessions and the database pool.
func (a *App) Close() {
	if a.Resources != nil {
		a.Resources.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildService(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*screening.Service, *artifact.Resources, error) {
	policy, err := decision.NewPolicy(cfg.Model.Threshold)
	if err != nil {
		return nil, nil, err
	}

	src, err := newSource(cfg.Model, pool)
	if err != nil {
		return nil, nil, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := artifact.NewLoader(src, cfg.Model.Manifest(), logger).Load(loadCtx)
	if err != nil {
		return nil, nil, err
	}
	return screening.NewService(res, policy, cfg.Model.Variant, logger), res, nil
}

func newSource(m config.ModelConfig, pool *pgxpool.Pool) (artifact.Source, error) {
	switch m.Source {
	case config.SourcePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres artifact source needs a database connection")
		}
		return artifact.NewPGSource(pool, m.ArtifactTable), nil
	default:
		return artifact.DirSource{Root: m.ArtifactDir}, nil
	}
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}
