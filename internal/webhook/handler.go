// Package webhook exposes the DNS-01 present/cleanup operations over HTTP.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/idn"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

// maxBodyBytes bounds the size of a request body.
const maxBodyBytes = 64 << 10

// ChallengeRequest is the request body for /present and /cleanup.
type ChallengeRequest struct {
	Domain     string `json:"domain"`
	RecordName string `json:"record_name,omitempty"`
	Value      string `json:"value"`
}

// StatusResponse is returned on success.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned on failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// Kinds reported for failures that do not come from the provider.
const (
	KindBadRequest  = "bad_request"
	KindPropagation = "propagation"
)

// WaitFunc blocks until a presented record is visible to the ACME server.
// recordName is always in ACE form.
type WaitFunc func(ctx context.Context, recordName, value string) error

// Handler serves the challenge endpoints for one provider.
type Handler struct {
	provider provider.Provider
	wait     WaitFunc
	logger   *slog.Logger
}

// Option is a functional option for configuring the Handler.
type Option func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithWait makes /present block until wait returns.
func WithWait(wait WaitFunc) Option {
	return func(h *Handler) {
		h.wait = wait
	}
}

// New creates a Handler for p.
func New(p provider.Provider, opts ...Option) *Handler {
	h := &Handler{
		provider: p,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Mux is the subset of *http.ServeMux the handler registers on.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Register mounts POST /present and POST /cleanup on mux.
func (h *Handler) Register(mux Mux) {
	mux.Handle("POST /present", http.HandlerFunc(h.handlePresent))
	mux.Handle("POST /cleanup", http.HandlerFunc(h.handleCleanup))
}

func (h *Handler) handlePresent(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	if err := h.provider.AddTXTRecord(r.Context(), req.Domain, req.RecordName, req.Value); err != nil {
		h.writeProviderError(w, "present", req, err)
		return
	}

	if h.wait != nil {
		if err := h.wait(r.Context(), idn.ToASCII(req.RecordName), req.Value); err != nil {
			h.logger.Warn("record did not propagate",
				slog.String("record_name", req.RecordName),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Kind: KindPropagation})
			return
		}
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	if err := h.provider.DeleteTXTRecord(r.Context(), req.Domain, req.RecordName, req.Value); err != nil {
		h.writeProviderError(w, "cleanup", req, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// decodeRequest parses and validates a ChallengeRequest. A missing record
// name defaults to the _acme-challenge name of the domain.
func decodeRequest(r *http.Request) (*ChallengeRequest, error) {
	var req ChallengeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}

	req.Domain = strings.TrimSpace(req.Domain)
	req.RecordName = strings.TrimSpace(req.RecordName)

	var missing []string
	if req.Domain == "" {
		missing = append(missing, "domain")
	}
	if req.Value == "" {
		missing = append(missing, "value")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if req.RecordName == "" {
		req.RecordName = provider.ChallengeRecordName(strings.TrimSuffix(req.Domain, "."))
	}

	return &req, nil
}

// StatusForError maps a provider error onto an HTTP status code.
func StatusForError(err error) int {
	switch provider.KindOf(err) {
	case provider.KindNotFound:
		return http.StatusNotFound
	case provider.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindBadRequest})
}

func (h *Handler) writeProviderError(w http.ResponseWriter, op string, req *ChallengeRequest, err error) {
	resp := ErrorResponse{
		Error: err.Error(),
		Kind:  provider.KindOf(err).String(),
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		resp.Code = pe.Code
		resp.RequestID = pe.RequestID
		resp.Hint = pe.Hint
	}

	h.logger.Error("challenge operation failed",
		slog.String("operation", op),
		slog.String("domain", req.Domain),
		slog.String("record_name", req.RecordName),
		slog.String("kind", resp.Kind),
		slog.String("error", err.Error()),
	)

	writeJSON(w, StatusForError(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
