// Package registry persists domain records and owns their lifecycle state.
package registry

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a domain record.
type Status string

const (
	StatusPendingDNS Status = "pending_dns"
	StatusVerified   Status = "verified"
	StatusRemoved    Status = "removed"
)

// Store errors. The API layer translates these into user-facing messages.
var (
	ErrNotFound        = errors.New("domain record not found")
	ErrRemoved         = errors.New("domain record has been removed")
	ErrDomainTaken     = errors.New("domain is already connected to another dealer")
	ErrTenantHasDomain = errors.New("dealer already has a connected domain")
)

// Record is a tenant's custom domain.
//
// Invariants, enforced by the store's partial unique indexes:
//   - at most one non-removed record per tenant
//   - at most one non-removed record per hostname across all tenants
//
// Removed is terminal. A removed record is never reused; reconnecting the
// same hostname creates a fresh record.
type Record struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Hostname   string     `json:"hostname"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	RemovedAt  *time.Time `json:"removed_at,omitempty"`
}

// Active reports whether the record still occupies its tenant and hostname.
func (r *Record) Active() bool {
	return r.Status != StatusRemoved
}

// Filter narrows List results.
type Filter struct {
	TenantID string
	Status   Status
	Limit    int
}
