// Package lifecycle drives a custom domain through its states: a dealer
// connects a hostname, DNS verification moves it from pending to
// verified, and removal frees the hostname for reconnection.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/indrav/forecourt/internal/dnscheck"
	"github.com/indrav/forecourt/internal/history"
	"github.com/indrav/forecourt/internal/hostname"
	"github.com/indrav/forecourt/internal/metrics"
	"github.com/indrav/forecourt/internal/registry"
)

// ErrNotOwner means the caller asked to manage a domain that belongs to
// a different dealer.
var ErrNotOwner = errors.New("domain belongs to another dealer")

// Store is the registry surface the service needs.
type Store interface {
	Create(ctx context.Context, tenantID, hostname string) (*registry.Record, error)
	GetByID(ctx context.Context, id string) (*registry.Record, error)
	FindActiveByTenant(ctx context.Context, tenantID string) (*registry.Record, error)
	MarkVerified(ctx context.Context, id string) (*registry.Record, error)
	Remove(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*registry.Record, error)
}

// Checker runs DNS verification for a hostname.
type Checker interface {
	Check(ctx context.Context, hostname string) (*dnscheck.Result, error)
	Instructions() []dnscheck.Instruction
}

// History records verification outcomes. Optional.
type History interface {
	Append(check history.Check) error
	ListByDomain(domainID string, limit int) ([]history.Check, error)
}

// Service coordinates validation, the registry and DNS verification.
type Service struct {
	store     Store
	checker   Checker
	validator *hostname.Validator
	history   History
	logger    *slog.Logger
}

// NewService creates a lifecycle service. history may be nil.
func NewService(store Store, checker Checker, validator *hostname.Validator, hist History, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		checker:   checker,
		validator: validator,
		history:   hist,
		logger:    logger,
	}
}

// ConnectResult is what a dealer gets back after connecting a domain:
// the stored record plus the DNS records they must now create.
type ConnectResult struct {
	Record       *registry.Record       `json:"record"`
	Instructions []dnscheck.Instruction `json:"instructions"`
}

// Connect validates and claims a hostname for a dealer. The record
// starts in pending_dns; nothing is looked up yet.
func (s *Service) Connect(ctx context.Context, tenantID, rawDomain string) (*ConnectResult, error) {
	host, err := s.validator.Normalize(rawDomain)
	if err != nil {
		metrics.IncConnect("invalid")
		return nil, err
	}

	rec, err := s.store.Create(ctx, tenantID, host)
	if err != nil {
		metrics.IncConnect("conflict")
		return nil, err
	}

	metrics.IncConnect("success")
	s.logger.Info("domain connected",
		"domain_id", rec.ID,
		"tenant_id", tenantID,
		"hostname", host)

	return &ConnectResult{
		Record:       rec,
		Instructions: s.checker.Instructions(),
	}, nil
}

// VerifyResult pairs the (possibly updated) record with the outcome of
// the DNS check that produced it.
type VerifyResult struct {
	Record *registry.Record `json:"record"`
	Check  *dnscheck.Result `json:"check"`
}

// Verify runs a DNS check for the domain and promotes it to verified
// when every record matches. A non-matching check is not an error; the
// caller gets the per-record diagnostics either way.
func (s *Service) Verify(ctx context.Context, tenantID, domainID string) (*VerifyResult, error) {
	rec, err := s.loadOwned(ctx, tenantID, domainID)
	if err != nil {
		metrics.IncVerify("error")
		return nil, err
	}
	if rec.Status == registry.StatusRemoved {
		metrics.IncVerify("removed")
		return nil, registry.ErrRemoved
	}

	start := time.Now()
	check, err := s.checker.Check(ctx, rec.Hostname)
	metrics.ObserveDNSCheck(time.Since(start).Seconds())
	if err != nil {
		metrics.IncVerify("unavailable")
		s.logger.Error("dns check failed",
			"domain_id", rec.ID,
			"hostname", rec.Hostname,
			"error", err)
		return nil, err
	}

	if check.AllVerified {
		rec, err = s.store.MarkVerified(ctx, rec.ID)
		if err != nil {
			metrics.IncVerify("error")
			return nil, err
		}
		metrics.IncVerify("verified")
		s.logger.Info("domain verified",
			"domain_id", rec.ID,
			"hostname", rec.Hostname)
	} else {
		metrics.IncVerify("pending")
		s.logger.Info("domain not yet verified",
			"domain_id", rec.ID,
			"hostname", rec.Hostname,
			"message", check.Message)
	}

	s.recordCheck(rec, check)

	return &VerifyResult{Record: rec, Check: check}, nil
}

// Remove disconnects a domain. Removing an already removed domain is a
// no-op so retries stay safe.
func (s *Service) Remove(ctx context.Context, tenantID, domainID string) error {
	rec, err := s.loadOwned(ctx, tenantID, domainID)
	if err != nil {
		metrics.IncRemove("error")
		return err
	}

	if err := s.store.Remove(ctx, rec.ID); err != nil {
		metrics.IncRemove("error")
		return err
	}

	metrics.IncRemove("success")
	s.logger.Info("domain removed",
		"domain_id", rec.ID,
		"tenant_id", tenantID,
		"hostname", rec.Hostname)
	return nil
}

// Status returns the dealer's active domain, or registry.ErrNotFound if
// they have none.
func (s *Service) Status(ctx context.Context, tenantID string) (*registry.Record, error) {
	return s.store.FindActiveByTenant(ctx, tenantID)
}

// Checks returns the recorded verification history for a domain the
// dealer owns, newest first.
func (s *Service) Checks(ctx context.Context, tenantID, domainID string, limit int) ([]history.Check, error) {
	if _, err := s.loadOwned(ctx, tenantID, domainID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListByDomain(domainID, limit)
}

// Instructions returns the DNS records a dealer must configure.
func (s *Service) Instructions() []dnscheck.Instruction {
	return s.checker.Instructions()
}

// loadOwned fetches a record and checks the caller owns it. An empty
// tenantID skips the ownership check (internal callers).
func (s *Service) loadOwned(ctx context.Context, tenantID, domainID string) (*registry.Record, error) {
	rec, err := s.store.GetByID(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, domainID)
	}
	return rec, nil
}

func (s *Service) recordCheck(rec *registry.Record, check *dnscheck.Result) {
	if s.history == nil {
		return
	}
	err := s.history.Append(history.Check{
		DomainID:    rec.ID,
		Hostname:    rec.Hostname,
		CheckedAt:   time.Now().UTC(),
		AllVerified: check.AllVerified,
		Records:     check.Records,
	})
	if err != nil {
		s.logger.Warn("failed to record verification check",
			"domain_id", rec.ID,
			"error", err)
	}
}
