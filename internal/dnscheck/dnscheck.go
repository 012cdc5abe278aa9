// Package dnscheck verifies that a custom domain points at the hosting
// platform.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/indrav/forecourt/internal/metrics"
)

// Platform record values surfaced to dealers. These must stay in lockstep
// with what the engine checks, so both read the same constants.
const (
	DefaultExpectedA     = "76.76.21.21"
	DefaultExpectedCNAME = "cname.vercel-dns.com"
)

// ErrUnavailable means the resolution infrastructure itself was unreachable.
// This is distinct from a domain that simply has not propagated yet.
var ErrUnavailable = errors.New("dns resolution unavailable")

// RecordStatus is the per-record diagnostic for one required DNS record.
type RecordStatus struct {
	Type     string `json:"type"` // A, CNAME
	Name     string `json:"name"` // @, www
	Expected string `json:"expected"`
	Observed string `json:"observed,omitempty"`
	Matched  bool   `json:"matched"`
	Error    string `json:"error,omitempty"`

	// hard marks a transport-level resolver failure as opposed to a
	// missing record.
	hard bool
}

// Result is the outcome of one verification pass over a hostname.
type Result struct {
	Hostname    string         `json:"hostname"`
	AllVerified bool           `json:"all_verified"`
	Records     []RecordStatus `json:"records"`
	Message     string         `json:"message"`
}

// Instruction is one row of the registrar-facing DNS table.
type Instruction struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	TTL   string `json:"ttl"`
}

// Engine resolves the required records for a hostname and compares them
// against the platform's values.
type Engine struct {
	resolver      Resolver
	expectedA     string
	expectedCNAME string
}

// NewEngine creates an Engine. Empty expected values fall back to the
// platform defaults.
func NewEngine(resolver Resolver, expectedA, expectedCNAME string) *Engine {
	if expectedA == "" {
		expectedA = DefaultExpectedA
	}
	if expectedCNAME == "" {
		expectedCNAME = DefaultExpectedCNAME
	}
	return &Engine{
		resolver:      resolver,
		expectedA:     expectedA,
		expectedCNAME: normalizeName(expectedCNAME),
	}
}

// Check verifies the apex A record and the www CNAME for hostname. A lookup
// that fails (NXDOMAIN, timeout, servfail) is reported as a non-match for
// that record, not as an engine failure; only when every lookup fails at the
// transport level does Check return ErrUnavailable.
func (e *Engine) Check(ctx context.Context, hostname string) (*Result, error) {
	apex := e.checkA(ctx, hostname)
	www := e.checkCNAME(ctx, "www."+hostname)

	if apex.hard && www.hard {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, apex.Error)
	}

	result := &Result{
		Hostname:    hostname,
		Records:     []RecordStatus{apex, www},
		AllVerified: apex.Matched && www.Matched,
	}
	result.Message = buildMessage(result)
	return result, nil
}

func (e *Engine) checkA(ctx context.Context, host string) RecordStatus {
	status := RecordStatus{
		Type:     "A",
		Name:     "@",
		Expected: e.expectedA,
	}

	addrs, err := e.resolver.LookupA(ctx, host)
	if err != nil {
		metrics.IncDNSLookupError(status.Type)
		status.Error, status.hard = classifyLookupError(err, "A record not found")
		return status
	}

	status.Observed = strings.Join(addrs, ", ")
	for _, addr := range addrs {
		if addr == e.expectedA {
			status.Matched = true
			break
		}
	}
	return status
}

func (e *Engine) checkCNAME(ctx context.Context, host string) RecordStatus {
	status := RecordStatus{
		Type:     "CNAME",
		Name:     "www",
		Expected: e.expectedCNAME,
	}

	cname, err := e.resolver.LookupCNAME(ctx, host)
	if err != nil {
		metrics.IncDNSLookupError(status.Type)
		status.Error, status.hard = classifyLookupError(err, "CNAME record not found")
		return status
	}

	status.Observed = normalizeName(cname)
	status.Matched = status.Observed == e.expectedCNAME
	return status
}

// Instructions returns the record table a dealer must create at their
// registrar.
func (e *Engine) Instructions() []Instruction {
	return []Instruction{
		{Type: "A", Name: "@", Value: e.expectedA, TTL: "Auto or 3600"},
		{Type: "CNAME", Name: "www", Value: e.expectedCNAME, TTL: "Auto or 3600"},
	}
}

// Steps returns the registrar setup walkthrough shown alongside the record
// table.
func (e *Engine) Steps() []string {
	return []string{
		"Log in to your domain registrar (GoDaddy, Namecheap, etc.)",
		"Navigate to DNS Management or DNS Settings",
		fmt.Sprintf("Add or update the A record for @ (root) to point to %s", e.expectedA),
		fmt.Sprintf("Add or update the CNAME record for www to point to %s", e.expectedCNAME),
		"Save your changes and wait 5-30 minutes for DNS to propagate",
		"Come back and verify the domain to complete setup",
	}
}

func buildMessage(r *Result) string {
	if r.AllVerified {
		return "Domain verified successfully."
	}

	var wrong []string
	matched := 0
	for _, rec := range r.Records {
		if rec.Matched {
			matched++
		} else {
			wrong = append(wrong, fmt.Sprintf("%s %s", rec.Type, rec.Name))
		}
	}

	if matched == 0 {
		return "DNS records not found yet. Changes at your registrar can take up to 30 minutes to propagate."
	}
	return fmt.Sprintf("DNS partially configured. Still incorrect: %s.", strings.Join(wrong, ", "))
}

// classifyLookupError renders a resolver error for the per-record diagnostic
// and reports whether it was a transport-level failure rather than a missing
// record.
func classifyLookupError(err error, notFound string) (string, bool) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return notFound, false
		}
		if dnsErr.IsTimeout {
			return "lookup timed out", true
		}
	}
	return fmt.Sprintf("lookup failed: %v", err), true
}
