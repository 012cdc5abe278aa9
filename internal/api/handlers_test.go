package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/indrav/forecourt/internal/config"
	"github.com/indrav/forecourt/internal/db"
	"github.com/indrav/forecourt/internal/dnscheck"
	"github.com/indrav/forecourt/internal/hostname"
	"github.com/indrav/forecourt/internal/lifecycle"
	"github.com/indrav/forecourt/internal/registry"
)

const testAPIKey = "test-api-key"

// fixedResolver answers for hosts registered with add().
type fixedResolver struct {
	a     map[string][]string
	cname map[string]string
}

func (r *fixedResolver) add(host string) {
	if r.a == nil {
		r.a = make(map[string][]string)
		r.cname = make(map[string]string)
	}
	r.a[host] = []string{dnscheck.DefaultExpectedA}
	r.cname["www."+host] = dnscheck.DefaultExpectedCNAME
}

func (r *fixedResolver) LookupA(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := r.a[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func (r *fixedResolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	if target, ok := r.cname[host]; ok {
		return target, nil
	}
	return "", &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func newTestServer(t *testing.T) (*Server, *fixedResolver) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "forecourt.db"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	resolver := &fixedResolver{}
	service := lifecycle.NewService(
		registry.NewStore(database.DB),
		dnscheck.NewEngine(resolver, "", ""),
		hostname.New(nil),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	cfg := &config.APIConfig{
		ListenAddr: ":0",
		APIKey:     testAPIKey,
	}
	return NewServer(service, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), resolver
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func connectDomain(t *testing.T, s *Server, tenantID, domain string) *lifecycle.ConnectResult {
	t.Helper()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/domains/connect", ConnectRequest{
		TenantID: tenantID,
		Domain:   domain,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("connect status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res lifecycle.ConnectResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode connect response: %v", err)
	}
	return &res
}

func TestHandleConnect(t *testing.T) {
	s, _ := newTestServer(t)

	res := connectDomain(t, s, "dealer-1", "https://HeroMotors.com/")

	if res.Record.Hostname != "heromotors.com" {
		t.Errorf("hostname = %q", res.Record.Hostname)
	}
	if res.Record.Status != registry.StatusPendingDNS {
		t.Errorf("status = %q, want pending_dns", res.Record.Status)
	}
	if len(res.Instructions) != 2 {
		t.Errorf("got %d instructions, want 2", len(res.Instructions))
	}
}

func TestHandleConnectErrors(t *testing.T) {
	s, _ := newTestServer(t)
	connectDomain(t, s, "dealer-1", "heromotors.com")

	tests := []struct {
		name       string
		req        ConnectRequest
		wantStatus int
	}{
		{"missing tenant", ConnectRequest{Domain: "x.com"}, http.StatusBadRequest},
		{"empty domain", ConnectRequest{TenantID: "d2", Domain: "  "}, http.StatusBadRequest},
		{"malformed domain", ConnectRequest{TenantID: "d2", Domain: "not a domain"}, http.StatusBadRequest},
		{"reserved domain", ConnectRequest{TenantID: "d2", Domain: "shop.indrav.in"}, http.StatusBadRequest},
		{"hostname taken", ConnectRequest{TenantID: "d2", Domain: "heromotors.com"}, http.StatusConflict},
		{"tenant already connected", ConnectRequest{TenantID: "dealer-1", Domain: "second.com"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/domains/connect", tt.req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleVerify(t *testing.T) {
	s, resolver := newTestServer(t)
	res := connectDomain(t, s, "dealer-1", "heromotors.com")

	// DNS not configured yet: 200 with all_verified=false.
	rec := doRequest(t, s, http.MethodPost, "/api/v1/domains/"+res.Record.ID+"/verify?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var vr lifecycle.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &vr); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if vr.Check.AllVerified {
		t.Error("all_verified = true before DNS setup")
	}
	if vr.Record.Status != registry.StatusPendingDNS {
		t.Errorf("status = %q, want pending_dns", vr.Record.Status)
	}

	// DNS configured: record promotes to verified.
	resolver.add("heromotors.com")
	rec = doRequest(t, s, http.MethodPost, "/api/v1/domains/"+res.Record.ID+"/verify?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &vr); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !vr.Check.AllVerified {
		t.Error("all_verified = false after DNS setup")
	}
	if vr.Record.Status != registry.StatusVerified {
		t.Errorf("status = %q, want verified", vr.Record.Status)
	}
}

func TestHandleVerifyErrors(t *testing.T) {
	s, _ := newTestServer(t)
	res := connectDomain(t, s, "dealer-1", "heromotors.com")

	// Unknown ID.
	rec := doRequest(t, s, http.MethodPost, "/api/v1/domains/no-such-id/verify?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	// Another dealer's domain looks missing.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/domains/"+res.Record.ID+"/verify?tenant_id=dealer-2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign tenant status = %d, want 404", rec.Code)
	}

	// Removed domain is gone.
	rec = doRequest(t, s, http.MethodDelete, "/api/v1/domains/"+res.Record.ID+"?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/domains/"+res.Record.ID+"/verify?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusGone {
		t.Errorf("removed status = %d, want 410", rec.Code)
	}
}

func TestHandleRemoveAndReconnect(t *testing.T) {
	s, _ := newTestServer(t)
	res := connectDomain(t, s, "dealer-1", "heromotors.com")

	rec := doRequest(t, s, http.MethodDelete, "/api/v1/domains/"+res.Record.ID+"?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}

	// Hostname is free for another dealer now.
	res2 := connectDomain(t, s, "dealer-2", "heromotors.com")
	if res2.Record.TenantID != "dealer-2" {
		t.Errorf("tenant = %q, want dealer-2", res2.Record.TenantID)
	}
}

func TestTenantIDRequired(t *testing.T) {
	s, _ := newTestServer(t)
	res := connectDomain(t, s, "dealer-owner", "heromotors.com")

	// Omitting tenant_id must never grant access to someone else's record.
	paths := []struct {
		name   string
		method string
		path   string
	}{
		{"verify", http.MethodPost, "/api/v1/domains/" + res.Record.ID + "/verify"},
		{"remove", http.MethodDelete, "/api/v1/domains/" + res.Record.ID},
		{"checks", http.MethodGet, "/api/v1/domains/" + res.Record.ID + "/checks"},
	}
	for _, tt := range paths {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, tt.method, tt.path, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	// The owner's domain is untouched.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/domains/status?tenant_id=dealer-owner", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner status = %d, want 200", rec.Code)
	}
	var record registry.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if record.Status != registry.StatusPendingDNS {
		t.Errorf("record status = %q, want pending_dns", record.Status)
	}
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/domains/status?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("no domain status = %d, want 404", rec.Code)
	}

	connectDomain(t, s, "dealer-1", "heromotors.com")

	rec = doRequest(t, s, http.MethodGet, "/api/v1/domains/status?tenant_id=dealer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var record registry.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if record.Hostname != "heromotors.com" {
		t.Errorf("hostname = %q", record.Hostname)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/domains/status", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing tenant status = %d, want 400", rec.Code)
	}
}

func TestHandleInstructions(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/dns/instructions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res InstructionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode instructions: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[0].Value != dnscheck.DefaultExpectedA {
		t.Errorf("A value = %q", res.Records[0].Value)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dns/instructions", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dns/instructions", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("X-API-Key auth status = %d, want 200", rec.Code)
	}

	// Health never requires auth.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
