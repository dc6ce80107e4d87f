package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

type call struct {
	Op, Domain, RecordName, Value string
}

// mockProvider records calls and returns err.
type mockProvider struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (m *mockProvider) Name() string                   { return "mock" }
func (m *mockProvider) Type() string                   { return "mock" }
func (m *mockProvider) Ping(ctx context.Context) error { return m.err }

func (m *mockProvider) AddTXTRecord(ctx context.Context, domain, recordName, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{"add", domain, recordName, value})
	return m.err
}

func (m *mockProvider) DeleteTXTRecord(ctx context.Context, domain, recordName, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{"delete", domain, recordName, value})
	return m.err
}

func serve(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestPresent(t *testing.T) {
	p := &mockProvider{}
	w := serve(t, New(p), http.MethodPost, "/present", `{"domain":"example.com","value":"token"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}

	want := call{"add", "example.com", "_acme-challenge.example.com", "token"}
	if len(p.calls) != 1 || p.calls[0] != want {
		t.Errorf("expected %+v, got %+v", want, p.calls)
	}
}

func TestPresent_ExplicitRecordName(t *testing.T) {
	p := &mockProvider{}
	w := serve(t, New(p), http.MethodPost, "/present",
		`{"domain":"example.com.","record_name":"_acme-challenge.www.example.com","value":"token"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if p.calls[0].RecordName != "_acme-challenge.www.example.com" {
		t.Errorf("unexpected record name: %s", p.calls[0].RecordName)
	}
}

func TestCleanup(t *testing.T) {
	p := &mockProvider{}
	w := serve(t, New(p), http.MethodPost, "/cleanup", `{"domain":"example.com.","value":"token"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	want := call{"delete", "example.com.", "_acme-challenge.example.com", "token"}
	if len(p.calls) != 1 || p.calls[0] != want {
		t.Errorf("expected %+v, got %+v", want, p.calls)
	}
}

func TestBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: `{`, want: "decoding request body"},
		{name: "missing domain", body: `{"value":"x"}`, want: "domain"},
		{name: "missing value", body: `{"domain":"example.com"}`, want: "value"},
		{name: "missing both", body: `{}`, want: "domain, value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{}
			w := serve(t, New(p), http.MethodPost, "/present", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Kind != KindBadRequest {
				t.Errorf("expected kind bad_request, got %q", resp.Kind)
			}
			if !strings.Contains(resp.Error, tt.want) {
				t.Errorf("expected %q in error %q", tt.want, resp.Error)
			}
			if len(p.calls) != 0 {
				t.Error("provider must not be called on bad request")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := serve(t, New(&mockProvider{}), http.MethodGet, "/present", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name: "credential",
			err: &provider.Error{
				Kind:      provider.KindCredential,
				Op:        "resolving zone",
				Code:      "InvalidAccessKeyId.NotFound",
				Message:   "Specified access key is not found",
				RequestID: "REQ-1",
				Hint:      "Are your AccessKey and AccessKeySecret values correct?",
			},
			wantStatus: http.StatusBadGateway,
			wantKind:   "credential",
		},
		{
			name:       "not found",
			err:        &provider.Error{Kind: provider.KindNotFound, Message: "unable to determine zone identifier"},
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "transport",
			err:        &provider.Error{Kind: provider.KindTransport, Err: errors.New("connection refused")},
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   "transport",
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantStatus: http.StatusBadGateway,
			wantKind:   "unexpected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, New(&mockProvider{err: tt.err}), http.MethodPost, "/present", `{"domain":"example.com","value":"v"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, resp.Kind)
			}
			if resp.Error != tt.err.Error() {
				t.Errorf("expected error %q, got %q", tt.err.Error(), resp.Error)
			}
		})
	}
}

func TestProviderError_Payload(t *testing.T) {
	err := &provider.Error{
		Kind:      provider.KindCredential,
		Code:      "InvalidAccessKeyId.NotFound",
		RequestID: "REQ-1",
		Hint:      "check keys",
	}
	w := serve(t, New(&mockProvider{err: err}), http.MethodPost, "/cleanup", `{"domain":"example.com","value":"v"}`)

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "InvalidAccessKeyId.NotFound" || resp.RequestID != "REQ-1" || resp.Hint != "check keys" {
		t.Errorf("payload not propagated: %+v", resp)
	}
}

func TestPresent_Wait(t *testing.T) {
	var waited []string
	wait := func(ctx context.Context, recordName, value string) error {
		waited = append(waited, recordName+"="+value)
		return nil
	}

	w := serve(t, New(&mockProvider{}, WithWait(wait)), http.MethodPost, "/present", `{"domain":"example.com","value":"v"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(waited) != 1 || waited[0] != "_acme-challenge.example.com=v" {
		t.Errorf("unexpected wait calls: %v", waited)
	}
}

func TestPresent_WaitGetsASCIIName(t *testing.T) {
	var waited string
	wait := func(ctx context.Context, recordName, value string) error {
		waited = recordName
		return nil
	}

	p := &mockProvider{}
	w := serve(t, New(p, WithWait(wait)), http.MethodPost, "/present", `{"domain":"print.你好世界.com","value":"v"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if p.calls[0].RecordName != "_acme-challenge.print.你好世界.com" {
		t.Errorf("provider should get the name as given, got %s", p.calls[0].RecordName)
	}
	if waited != "_acme-challenge.print.xn--rhq34a65tw32a.com" {
		t.Errorf("expected ACE name for the wait, got %q", waited)
	}
}

func TestPresent_WaitFails(t *testing.T) {
	wait := func(ctx context.Context, recordName, value string) error {
		return context.DeadlineExceeded
	}

	w := serve(t, New(&mockProvider{}, WithWait(wait)), http.MethodPost, "/present", `{"domain":"example.com","value":"v"}`)

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Kind != KindPropagation {
		t.Errorf("expected kind propagation, got %q", resp.Kind)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		kind provider.Kind
		want int
	}{
		{provider.KindCredential, http.StatusBadGateway},
		{provider.KindNotFound, http.StatusNotFound},
		{provider.KindUnexpected, http.StatusBadGateway},
		{provider.KindTransport, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := StatusForError(&provider.Error{Kind: tt.kind}); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
