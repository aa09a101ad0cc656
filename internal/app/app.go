// Package app assembles an Engine and its backing services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/config"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/database"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/engine"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/remote"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/scoring"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/suggest"
)

// App is a fully wired engine plus the resources it owns.
type App struct {
	Config *config.Config
	Engine *engine.Engine
	Logger *zap.Logger

	db *database.DBManager
}

// New builds the engine described by cfg. With the database enabled the
// persisted snapshot is restored before New returns.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	scorer, err := scoring.New(cfg.Suggestions.ScoringStrategy)
	if err != nil {
		return nil, err
	}
	picker, err := suggest.NewPicker(cfg.Suggestions.ReasonMode, cfg.Suggestions.ReasonSeed)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithScorer(scorer),
		engine.WithPicker(picker),
		engine.WithLogger(logger.Named("engine")),
	}

	a := &App{Config: cfg, Logger: logger}

	if cfg.Database.Enabled {
		dm, err := database.NewDBManager(&database.Config{
			URL:            cfg.Database.URL,
			AuthToken:      cfg.Database.AuthToken,
			MaxOpenConns:   cfg.Database.MaxOpenConns,
			MaxIdleConns:   cfg.Database.MaxIdleConns,
			ConnMaxIdleSec: cfg.Database.ConnMaxIdleSec,
			ConnMaxLifeSec: cfg.Database.ConnMaxLifeSec,
		})
		if err != nil {
			return nil, err
		}
		a.db = dm
		opts = append(opts, engine.WithEntitySink(dm), engine.WithInteractionSink(dm))
	}

	switch cfg.Feedback.Sink {
	case config.BackendLibSQL:
		if a.db == nil {
			return nil, a.fail(errors.New("libsql feedback sink requires the database"))
		}
		opts = append(opts, engine.WithFeedbackSink(a.db))
	case config.BackendHTTP:
		sink, err := remote.NewFeedbackSink(cfg.Feedback.URL, cfg.Feedback.Timeout, nil)
		if err != nil {
			return nil, a.fail(err)
		}
		opts = append(opts, engine.WithFeedbackSink(sink))
	}

	if cfg.Remote.Backend == config.BackendHTTP {
		b := cfg.Remote.Breaker
		rc, err := remote.NewHTTPClient(remote.Config{
			URL:     cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.Remote.Timeout,
			Breaker: remote.BreakerConfig{
				MaxRequests:  b.MaxRequests,
				Interval:     b.Interval,
				OpenTimeout:  b.OpenTimeout,
				MinRequests:  b.MinRequests,
				FailureRatio: b.FailureRatio,
			},
		}, logger.Named("remote"))
		if err != nil {
			return nil, a.fail(err)
		}
		opts = append(opts, engine.WithRemote(rc))
	}

	eng, err := engine.New(engine.Settings{
		DefaultMaxResults: cfg.Suggestions.DefaultMaxResults,
		MaxResultsLimit:   cfg.Suggestions.MaxResultsLimit,
		CacheTTL:          cfg.Suggestions.CacheTTL,
		SweepThreshold:    cfg.Suggestions.CacheSweepThreshold,
		PersistTimeout:    cfg.Feedback.Timeout,
	}, opts...)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Engine = eng

	if a.db != nil {
		snap, err := a.db.LoadSnapshot(ctx)
		if err != nil {
			return nil, a.fail(fmt.Errorf("failed to restore state: %w", err))
		}
		eng.Restore(snap)
	}

	logger.Info("engine ready",
		zap.String("scoring", scorer.Name()),
		zap.String("reasons", cfg.Suggestions.ReasonMode),
		zap.String("remote", cfg.Remote.Backend),
		zap.String("feedback_sink", cfg.Feedback.Sink),
		zap.Bool("database", a.db != nil),
	)
	return a, nil
}

func (a *App) fail(err error) error {
	if a.db != nil {
		_ = a.db.Close()
	}
	return err
}

// DB returns the database manager, or nil when persistence is disabled.
func (a *App) DB() *database.DBManager { return a.db }

// Ping checks the database when one is configured.
func (a *App) Ping(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Ping(ctx)
}

// Close drains pending persistence, then closes the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Engine != nil {
		if err := a.Engine.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
