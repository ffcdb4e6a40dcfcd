package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dnsgate/internal/model"
	"dnsgate/internal/proxy"
	"dnsgate/internal/util"
)

const maxBodySize = 1 << 20

type proxyBody struct {
	Operation string              `json:"operation"`
	Domain    string              `json:"domain"`
	Records   []model.RecordEntry `json:"records"`
}

type ProxyHandler struct {
	orch *proxy.Orchestrator
}

func NewProxyHandler(orch *proxy.Orchestrator) *ProxyHandler {
	return &ProxyHandler{orch: orch}
}

// Handle serves the forwarding endpoint. A decode failure still runs
// through the orchestrator so the attempt is rate-counted and audited
// like any other malformed request.
func (h *ProxyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var body proxyBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	_ = dec.Decode(&body)

	req := proxy.Request{
		ClientID:  r.Header.Get("X-Api-Client"),
		Secret:    bearerToken(r),
		SourceIP:  util.GetClientIP(r),
		Operation: body.Operation,
		Domain:    body.Domain,
		Records:   body.Records,
	}

	resp, err := h.orch.Handle(r.Context(), req)
	if err != nil {
		writeDecision(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeDecision maps the internal taxonomy to a uniform external shape.
// Authentication, origin and authorization denials are indistinguishable
// on the wire; reasons live only in the audit log.
func writeDecision(w http.ResponseWriter, err error) {
	var (
		validationErr *proxy.ValidationError
		rateErr       *proxy.RateLimitExceeded
		authnErr      *proxy.AuthenticationError
		originErr     *proxy.OriginDeniedError
		authzErr      *proxy.AuthorizationError
		upstreamErr   *proxy.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, proxy.Response{Status: "error", Message: "invalid request"})
	case errors.As(err, &rateErr):
		writeJSON(w, http.StatusTooManyRequests, proxy.Response{Status: "error", Message: "too many requests"})
	case errors.As(err, &authnErr), errors.As(err, &originErr), errors.As(err, &authzErr):
		writeJSON(w, http.StatusForbidden, proxy.Response{Status: "error", Message: "request denied"})
	case errors.As(err, &upstreamErr):
		writeJSON(w, http.StatusServiceUnavailable, proxy.Response{Status: "error", Message: "service unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, proxy.Response{Status: "error", Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
