// Package hostname normalizes and validates customer-supplied domain names.
package hostname

import (
	"errors"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrEmptyDomain     = errors.New("domain cannot be empty")
	ErrMalformedDomain = errors.New("invalid domain format")
	ErrReservedDomain  = errors.New("domain is reserved by the platform")
)

// DefaultReservedSuffixes are the platform's own domains. A storefront can
// never attach the platform's infrastructure domain to itself.
var DefaultReservedSuffixes = []string{
	"indrav.in",
	"dealersitepro.com",
}

// domainRegex validates domain name format (RFC 1035): at least two labels,
// each 1-63 chars, alphanumeric with internal hyphens only.
var domainRegex = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Validator normalizes candidate hostnames and rejects malformed or
// platform-reserved ones. The zero value is not usable; construct with New.
type Validator struct {
	reserved []string
}

// New creates a Validator. Empty suffixes fall back to
// DefaultReservedSuffixes.
func New(reservedSuffixes []string) *Validator {
	if len(reservedSuffixes) == 0 {
		reservedSuffixes = DefaultReservedSuffixes
	}
	reserved := make([]string, 0, len(reservedSuffixes))
	for _, s := range reservedSuffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			reserved = append(reserved, s)
		}
	}
	return &Validator{reserved: reserved}
}

// Normalize strips scheme and trailing slash, lowercases, and validates the
// result. It is pure and idempotent: Normalize(Normalize(h)) == Normalize(h).
func (v *Validator) Normalize(raw string) (string, error) {
	domain := strings.TrimSpace(raw)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")
	domain = strings.ToLower(domain)

	if domain == "" {
		return "", ErrEmptyDomain
	}
	if len(domain) > 253 || !domainRegex.MatchString(domain) {
		return "", ErrMalformedDomain
	}
	for _, suffix := range v.reserved {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return "", ErrReservedDomain
		}
	}
	return domain, nil
}
