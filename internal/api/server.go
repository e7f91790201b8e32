// Package api provides the HTTP server for Xueban.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/app/accounts"
	"github.com/xueban-network/xueban/internal/app/activity"
	"github.com/xueban-network/xueban/internal/app/badges"
	"github.com/xueban-network/xueban/internal/app/escrow"
	"github.com/xueban-network/xueban/internal/app/ledger"
	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/observability"
)

// AccountHeader carries the caller's account id, set by the authentication
// proxy in front of the server.
const AccountHeader = "X-Account-ID"

const maxBodyBytes = 1 << 20

// Services are the application services behind the API.
type Services struct {
	Accounts *accounts.Service
	Ledger   *ledger.Ledger
	Badges   *badges.Service
	Escrow   *escrow.Service
	Activity *activity.Service
}

// Server is the Xueban HTTP API server.
type Server struct {
	svc            Services
	logger         *zap.Logger
	metricsEnabled bool
	requestTimeout time.Duration
}

// NewServer creates a new API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	return &Server{
		svc:            svc,
		logger:         logger.Named("api"),
		requestTimeout: 30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetRequestTimeout bounds how long a handler may run.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.requestTimeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(corsMiddleware)
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/accounts/search", s.handleSearch)
		r.Get("/accounts/{id}", s.handleProfile)
		r.Get("/accounts/{id}/badges", s.handleBadges)
		r.Get("/accounts/{id}/ledger", s.handleLedger)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/badges", s.handleBadgeDefinitions)

		r.Get("/bounties", s.handleListBounties)
		r.Get("/bounties/{id}", s.handleGetBounty)
		r.Get("/answers/{id}/comments", s.handleListAnswerComments)
		r.Get("/posts/{id}/comments", s.handleListPostComments)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/materials", s.handleUpload)
			r.Delete("/materials/{id}", s.handleDeleteMaterial)
			r.Post("/materials/{id}/comments", s.handleComment)
			r.Post("/materials/{id}/ratings", s.handleRate)
			r.Post("/materials/{id}/favorite", s.handleFavorite)
			r.Delete("/materials/{id}/favorite", s.handleUnfavorite)
			r.Post("/posts", s.handlePost)
			r.Post("/posts/{id}/comments", s.handlePostComment)
			r.Post("/posts/{id}/like", s.handleToggleLike)

			r.Post("/bounties", s.handleCreateBounty)
			r.Post("/bounties/{id}/answers", s.handleAnswer)
			r.Post("/bounties/{id}/accept/{answerID}", s.handleAccept)
			r.Delete("/bounties/{id}", s.handleCancelBounty)
			r.Post("/answers/{id}/comments", s.handleAnswerComment)

			r.Post("/admin/accounts/{id}/ban", s.handleBan)
		})
	})

	return r
}

// ─── Middleware ─────────────────────────────────────────────────────────────

type accountKey struct{}

// authenticate resolves the caller from AccountHeader.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(AccountHeader), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid "+AccountHeader)
			return
		}
		acct, err := s.svc.Accounts.Get(r.Context(), id)
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown account")
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acct)))
	})
}

// caller returns the account set by authenticate.
func caller(r *http.Request) *domain.Account {
	acct, _ := r.Context().Value(accountKey{}).(*domain.Account)
	return acct
}

// observe records request metrics under the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		var route string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.ObserveHTTP(route, status, time.Since(start))
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+AccountHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Encoding ───────────────────────────────────────────────────────────────

var errEmptyBody = errors.New("request body is required")

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"message":"encode response","type":"internal"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    kind,
		},
	})
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}
	return sonic.Unmarshal(body, v)
}

// decodeOptional is decode for endpoints whose body may be omitted.
func decodeOptional(r *http.Request, v any) error {
	if err := decode(r, v); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// statusFor maps a domain error to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrDuplicateComment):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrBountyNotFound),
		errors.Is(err, domain.ErrAnswerNotFound),
		errors.Is(err, domain.ErrMaterialNotFound),
		errors.Is(err, domain.ErrPostNotFound),
		errors.Is(err, domain.ErrBadgeNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotBountyPoster),
		errors.Is(err, domain.ErrNotMaterialOwner),
		errors.Is(err, domain.ErrAccountBanned),
		errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrBountyNotOpen),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrBalanceConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail writes err as a JSON error. Unexpected errors are logged and their
// details withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Error(err))
		msg = "internal server error"
	}
	writeError(w, status, kind, msg)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "invalid_request", msg)
}
