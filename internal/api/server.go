// server.go - HTTP front end of the mint.
//
// Every route except /health is rate limited per client host. Signature
// mismatches and double spends are reported with the same code so the API
// does not tell a forger which check failed.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ecash/internal/ecash"
	"ecash/internal/group"
	"ecash/internal/metrics"
)

// Version is reported by /health.
const Version = "1.0.0"

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest          = 10000
	CodeNoteRejected        = 10001
	CodeValueMismatch       = 11001
	CodeUnknownDenomination = 12001
	CodeRateLimited         = 13000
	CodeIssueDisabled       = 14000
	CodeInternal            = 20000
)

const maxBodyBytes = 1 << 20

// unmatchedRoute labels requests that hit no registered pattern.
const unmatchedRoute = "unmatched"

// Server serves one mint over HTTP.
type Server struct {
	mint    *ecash.Mint
	group   group.Group
	log     zerolog.Logger
	metrics *metrics.Collector
	limiter *ClientRateLimiter
	health  *HealthChecker
	issue   bool

	server    *http.Server
	listener  net.Listener
	waitGroup sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

func WithMetrics(c *metrics.Collector) ServerOption {
	return func(s *Server) { s.metrics = c }
}

func WithRateLimiter(l *ClientRateLimiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

func WithHealthChecker(h *HealthChecker) ServerOption {
	return func(s *Server) { s.health = h }
}

// WithIssueEnabled turns on POST /v1/issue. Issuance is unpaid, so it is off
// unless the operator asks for it.
func WithIssueEnabled(enabled bool) ServerOption {
	return func(s *Server) { s.issue = enabled }
}

// NewServer creates a server for m. Without a health checker option, one is
// created that only checks the keyset.
func NewServer(m *ecash.Mint, opts ...ServerOption) *Server {
	s := &Server{
		mint:  m,
		group: m.Keyset().Group(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = NewHealthChecker(Version, m.Keyset().ID())
	}
	s.health.RegisterComponent("keyset", func() error {
		keys, err := m.Keys()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return errors.New("keyset is empty")
		}
		return nil
	})
	return s
}

// Handler returns the routed handler with rate limiting and request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	routes := make(map[string]bool)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, h)
		routes[pattern] = true
	}
	handle("GET /v1/keys", s.handleKeys)
	handle("POST /v1/issue", s.handleIssue)
	handle("POST /v1/swap", s.handleSwap)
	handle("POST /v1/redeem", s.handleRedeem)
	handle("POST /v1/check", s.handleCheck)
	handle("GET /health", s.handleHealth)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if s.limiter != nil && r.URL.Path != "/health" && !s.limiter.Allow(clientHost(r)) {
			writeJSON(rec, http.StatusTooManyRequests, ErrorResponse{Code: CodeRateLimited, Detail: "rate limit exceeded"})
		} else {
			mux.ServeHTTP(rec, r)
		}
		if s.metrics != nil {
			// Label by pattern, never by raw path, so the key space stays fixed.
			route := unmatchedRoute
			if _, pattern := mux.Handler(r); routes[pattern] {
				route = pattern
			}
			s.metrics.RecordRequest(route, rec.status)
		}
	})
}

// Start listens on addr and serves in the background. ready is signalled once
// the listener is bound.
func (s *Server) Start(addr string, ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		s.log.Info().Str("addr", listener.Addr().String()).Msg("mint server starting")
		if ready != nil {
			ready <- struct{}{}
		}
		if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("mint server failed")
		}
		s.log.Info().Msg("mint server stopped")
	}()
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.waitGroup.Wait()
	return err
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.mint.Keys()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := KeysResponse{
		ID:    s.mint.Keyset().ID(),
		Curve: s.group.Name(),
		Keys:  make(map[uint64]string, len(keys)),
	}
	for d, k := range keys {
		resp.Keys[d] = hex.EncodeToString(k.Bytes())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	if !s.issue {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Code: CodeIssueDisabled, Detail: "issuance is disabled"})
		return
	}
	var req IssueRequest
	if !s.decode(w, r, &req) {
		return
	}
	outputs, err := toOutputs(s.group, req.Outputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sigs, err := s.mint.Issue(outputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SignaturesResponse{Signatures: fromSignatures(sigs)})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if !s.decode(w, r, &req) {
		return
	}
	inputs, err := toNotes(s.group, req.Inputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	outputs, err := toOutputs(s.group, req.Outputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sigs, err := s.mint.Swap(inputs, outputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SignaturesResponse{Signatures: fromSignatures(sigs)})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !s.decode(w, r, &req) {
		return
	}
	notes, err := toNotes(s.group, req.Inputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.mint.Redeem(notes); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemResponse{OK: true})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !s.decode(w, r, &req) {
		return
	}
	secrets := make([][]byte, len(req.Secrets))
	for i, secret := range req.Secrets {
		secrets[i] = secret
	}
	states, err := s.mint.SpentStates(secrets)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Spent: states})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.CheckHealth()
	if s.metrics != nil {
		s.metrics.SetGauge(metrics.MetricUptime, health.Uptime.Seconds(), nil)
	}
	status := http.StatusOK
	if health.OverallStatus == Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, CreateHealthResponse(health))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Detail: "invalid request body"})
		s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("bad request body")
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

func errorResponse(err error) (int, ErrorResponse) {
	switch {
	case ecash.IsNoteRejection(err):
		return http.StatusBadRequest, ErrorResponse{Code: CodeNoteRejected, Detail: "note rejected"}
	case errors.Is(err, ecash.ErrValueMismatch):
		return http.StatusBadRequest, ErrorResponse{Code: CodeValueMismatch, Detail: "inputs and outputs do not balance"}
	case errors.Is(err, ecash.ErrUnknownDenomination):
		return http.StatusBadRequest, ErrorResponse{Code: CodeUnknownDenomination, Detail: "unknown denomination"}
	case errors.Is(err, ecash.ErrInvalidPoint), errors.Is(err, ecash.ErrInvalidScalar),
		errors.Is(err, ecash.ErrInvalidDenomination), errors.Is(err, ecash.ErrDegenerate):
		return http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Detail: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Detail: "internal error"}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
