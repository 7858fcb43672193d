// session-purge is a scheduled Lambda that removes intake sessions which were
// started but never finished.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/gyn-triage/internal/app/bootstrap"
	appconfig "github.com/wolfman30/gyn-triage/internal/config"
	"github.com/wolfman30/gyn-triage/internal/sessions"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

type purgeResult struct {
	Deleted int64  `json:"deleted"`
	Cutoff  string `json:"cutoff"`
}

type purger struct {
	store     sessions.Store
	olderThan time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

func (p *purger) handle(ctx context.Context, evt events.CloudWatchEvent) (purgeResult, error) {
	cutoff := p.now().UTC().Add(-p.olderThan)
	if !evt.Time.IsZero() {
		cutoff = evt.Time.UTC().Add(-p.olderThan)
	}

	n, err := p.store.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("session purge failed", "error", err, "event_id", evt.ID)
		return purgeResult{}, err
	}
	p.logger.Info("purged unfinished sessions", "deleted", n, "cutoff", cutoff, "event_id", evt.ID)
	return purgeResult{Deleted: n, Cutoff: cutoff.Format(time.RFC3339)}, nil
}

func newPurger(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*purger, error) {
	if cfg.SessionPurgeAfter <= 0 {
		return nil, fmt.Errorf("SESSION_PURGE_AFTER must be positive, got %s", cfg.SessionPurgeAfter)
	}
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errors.New("DATABASE_URL is required")
	}
	return &purger{
		store:     sessions.NewPostgresStore(pool),
		olderThan: cfg.SessionPurgeAfter,
		now:       time.Now,
		logger:    logger,
	}, nil
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	p, err := newPurger(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("session purge misconfigured", "error", err)
		panic(err)
	}
	lambda.Start(p.handle)
}
