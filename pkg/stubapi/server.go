// Package stubapi is a local stand-in for the remote conversion service. It
// speaks the same wire contract as the real service so the client can be run
// and tested without it.
package stubapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/transport/api"
)

// Options configures a Server.
type Options struct {
	Secret   []byte
	TokenTTL time.Duration
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Now      func() time.Time
}

// Server serves the conversion API from memory.
type Server struct {
	tokens  *issuer
	logger  *slog.Logger
	metrics *Metrics
	reg     *prometheus.Registry
	now     func() time.Time

	mu   sync.Mutex
	logs []core.LogRecord
}

// New creates a server. A random secret is used when none is given.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(uuid.NewString())
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	return &Server{
		tokens:  newIssuer(opts.Secret, opts.TokenTTL, opts.Now),
		logger:  opts.Logger,
		metrics: NewMetrics(opts.Registry),
		reg:     opts.Registry,
		now:     opts.Now,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Post(api.PathGenerate, s.handleGenerate)
	r.Get(api.PathValidate, s.handleValidate)
	r.Delete(api.PathRevoke, s.handleRevoke)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post(api.PathConvert, s.handleConvert)
		r.Post(api.PathFormat, s.handleReshape(format, "format"))
		r.Post(api.PathMinify, s.handleReshape(minify, "minify"))
		r.Get(api.PathLogs, s.handleLogs)
	})
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := s.tokens.verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	token, exp, err := s.tokens.issue()
	if err != nil {
		s.logger.Error("sign token", "err", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	s.metrics.TokensIssued.Inc()
	s.record(r, "info", "low", "Token generated", "A new bearer token was issued.")
	writeJSON(w, http.StatusOK, api.GenerateResponse{
		Token:     token,
		ExpiresIn: int64(exp.Sub(s.now()) / time.Second),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	writeJSON(w, http.StatusOK, api.ValidateResponse{Valid: token != "" && s.tokens.verify(token) == nil})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	revoked := s.tokens.revoke(token)
	if revoked {
		s.record(r, "info", "low", "Token revoked", "A bearer token was revoked.")
	}
	writeJSON(w, http.StatusOK, api.RevokeResponse{Revoked: revoked})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	query, ok := s.readQuery(w, r)
	if !ok {
		return
	}

	out, warnings, success := convert(query)
	if !success {
		s.metrics.Conversions.WithLabelValues("failed").Inc()
		s.record(r, "error", "medium", "Conversion failed", strings.Join(warnings, " "))
		writeJSON(w, http.StatusOK, api.ConvertResponse{Success: false, Warnings: warnings})
		return
	}

	s.metrics.Conversions.WithLabelValues("converted").Inc()
	if len(warnings) > 0 {
		s.record(r, "warning", "low", "Query converted with warnings", strings.Join(warnings, " "))
	} else {
		s.record(r, "success", "low", "Query converted", "")
	}
	writeJSON(w, http.StatusOK, api.ConvertResponse{
		Success:        true,
		ConvertedQuery: api.EncodeQuery(out),
		Warnings:       nonNil(warnings),
	})
}

func (s *Server) handleReshape(fn func(string) string, what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, ok := s.readQuery(w, r)
		if !ok {
			return
		}
		s.record(r, "info", "low", "Query "+what+" requested", "")
		writeJSON(w, http.StatusOK, api.FormatResponse{
			Success:        true,
			FormattedQuery: api.EncodeQuery(fn(query)),
			Warnings:       []string{},
		})
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]core.LogRecord, len(s.logs))
	copy(out, s.logs)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// Logs returns a copy of the recorded log records.
func (s *Server) Logs() []core.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LogRecord(nil), s.logs...)
}

func (s *Server) readQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req api.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	query, err := api.DecodeQuery(req.OriginalQuery)
	if err != nil {
		writeError(w, http.StatusBadRequest, "original_query must be base64")
		return "", false
	}
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "original_query is empty")
		return "", false
	}
	return query, true
}

func (s *Server) record(r *http.Request, typ, severity, title, message string) {
	rec := core.LogRecord{
		ID:        uuid.NewString(),
		Type:      typ,
		Endpoint:  r.URL.Path,
		Location:  r.RemoteAddr,
		Owner:     r.UserAgent(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.logs = append(s.logs, rec)
	s.mu.Unlock()
	s.logger.Debug("stub log", "type", typ, "title", title, "request_id", middleware.GetReqID(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorBody{Message: msg})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ListenAndServe serves on addr until the server is closed.
func ListenAndServe(addr string, s *Server) (*http.Server, <-chan error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return srv, errc
}
