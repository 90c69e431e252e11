// Package cleanup enforces the retention policies spanning the Learned-
// Facts Store and the Telemetry Store.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/facts"
	"github.com/anna-project/annad/pkg/telemetry"
)

// Service periodically enforces retention policies:
//   - Prunes zero-use Learned Facts past their retention window (§4.2)
//   - Deletes Telemetry Store rows older than the retention window (§4.3)
//
// Both underlying prune operations are idempotent and safe to call more
// than once for the same window.
type Service struct {
	config    *config.RetentionConfig
	facts     *facts.Store
	telemetry *telemetry.Store
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService constructs a cleanup Service.
func NewService(cfg *config.RetentionConfig, factsStore *facts.Store, telemetryStore *telemetry.Store) *Service {
	return &Service{
		config:    cfg,
		facts:     factsStore,
		telemetry: telemetryStore,
		now:       time.Now,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"learned_fact_max_age", s.config.LearnedFactMaxAge,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneFacts()
	s.pruneTelemetry(ctx)
}

func (s *Service) pruneFacts() {
	if s.facts == nil {
		return
	}
	if err := s.facts.PruneOldFacts(); err != nil {
		slog.Error("retention: prune learned facts failed", "error", err)
	}
}

func (s *Service) pruneTelemetry(ctx context.Context) {
	if s.telemetry == nil {
		return
	}
	cutoff := s.now().Add(-s.config.TelemetryMaxAge)
	n, err := s.telemetry.PruneOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("retention: prune telemetry failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("retention: pruned telemetry rows", "count", n)
	}
}
