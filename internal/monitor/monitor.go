// Package monitor re-checks active domains in the background so
// configuration drift at the registrar is noticed without a dealer
// pressing the verify button.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/indrav/forecourt/internal/lifecycle"
	"github.com/indrav/forecourt/internal/registry"
)

// Lister enumerates the records worth re-checking.
type Lister interface {
	ListActive(ctx context.Context) ([]*registry.Record, error)
}

// Verifier runs one verification pass for a domain.
type Verifier interface {
	Verify(ctx context.Context, tenantID, domainID string) (*lifecycle.VerifyResult, error)
}

// Monitor periodically re-verifies every active domain.
type Monitor struct {
	lister   Lister
	verifier Verifier
	interval time.Duration
	logger   *slog.Logger
}

// New creates a monitor. interval <= 0 defaults to 10 minutes.
func New(lister Lister, verifier Verifier, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		lister:   lister,
		verifier: verifier,
		interval: interval,
		logger:   logger,
	}
}

// Run loops until the context is cancelled. The first sweep happens
// after one interval, not at startup, so a restart storm does not
// hammer the resolver.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("domain monitor started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("domain monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one verification pass over all active domains.
func (m *Monitor) Sweep(ctx context.Context) {
	records, err := m.lister.ListActive(ctx)
	if err != nil {
		m.logger.Error("failed to list active domains", "error", err)
		return
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}

		wasVerified := rec.Status == registry.StatusVerified

		// Empty tenant skips the ownership check.
		res, err := m.verifier.Verify(ctx, "", rec.ID)
		if err != nil {
			m.logger.Warn("background verification failed",
				"domain_id", rec.ID,
				"hostname", rec.Hostname,
				"error", err)
			continue
		}

		if wasVerified && !res.Check.AllVerified {
			m.logger.Warn("verified domain lost its DNS records",
				"domain_id", rec.ID,
				"hostname", rec.Hostname,
				"message", res.Check.Message)
		}
	}

	m.logger.Debug("domain sweep complete", "domains", len(records))
}
