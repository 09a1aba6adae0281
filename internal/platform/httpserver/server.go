package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	votingledger "voteledger/contexts/community-voting/voting-ledger"
	"voteledger/contexts/community-voting/voting-ledger/adapters/identity"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	ledgerhttp "voteledger/contexts/community-voting/voting-ledger/transport/http"
	"voteledger/internal/platform/metrics"

	httpSwagger "github.com/swaggo/http-swagger"

	// Registers the swagger document served under /swagger/.
	_ "voteledger/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	ledger  votingledger.Module
	metrics *metrics.LedgerMetrics
	ready   func(context.Context) error
}

func New(
	ledger votingledger.Module,
	ledgerMetrics *metrics.LedgerMetrics,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		ledger:  ledger,
		metrics: ledgerMetrics,
	}
	s.registerRoutes()
	return s
}

// WithReadiness sets the check behind GET /healthz.
func (s *Server) WithReadiness(check func(context.Context) error) *Server {
	s.ready = check
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server stopping",
			"event", "http_server_stopping",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"addr", s.addr,
		)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET "+metrics.Path, s.metrics.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/ledger/initialize", s.handleInitialize)
	s.mux.HandleFunc("GET /v1/ledger/admin", s.handleAdmin)
	s.mux.HandleFunc("GET /v1/ledger/stats", s.handleStats)
	s.mux.HandleFunc("GET /v1/ledger/winner", s.handleWinner)
	s.mux.HandleFunc("GET /v1/ledger/totals", s.handleTotals)

	s.mux.HandleFunc("GET /v1/entities", s.handleListEntities)
	s.mux.HandleFunc("POST /v1/entities", s.handleRegisterEntity)
	s.mux.HandleFunc("GET /v1/entities/{name}/votes", s.handleEntityVotes)
	s.mux.HandleFunc("POST /v1/entities/{name}/votes", s.handleVote)
	s.mux.HandleFunc("DELETE /v1/entities/{name}", s.handleRemoveEntity)

	s.mux.HandleFunc("GET /v1/users/{user_id}/votes", s.handleUserVotes)
	s.mux.HandleFunc("GET /v1/users/{user_id}/votes/{name}", s.handleHasVoted)

	s.mux.HandleFunc("GET /v1/scoreboard", s.handleScoreboard)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed",
				"event", "http_readiness_failed",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"error", err.Error(),
			)
			writeLedgerError(w, http.StatusServiceUnavailable, "not_ready", "ledger store is unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, callerID, ok := s.requirePrincipal(w, r, "initialize", started)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.InitializeHandler(ctx, callerID)
	s.respond(w, "initialize", started, http.StatusCreated, resp, err)
}

func (s *Server) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, callerID, ok := s.requirePrincipal(w, r, "register", started)
	if !ok {
		return
	}
	var req ledgerhttp.RegisterEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observe("register", started, "invalid_json")
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ledger.Handler.RegisterEntityHandler(ctx, callerID, req)
	s.respond(w, "register", started, http.StatusCreated, resp, err)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, callerID, ok := s.requirePrincipal(w, r, "vote", started)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.VoteHandler(ctx, callerID, r.PathValue("name"))
	s.respond(w, "vote", started, http.StatusOK, resp, err)
}

func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, callerID, ok := s.requirePrincipal(w, r, "remove", started)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.RemoveEntityHandler(ctx, callerID, r.PathValue("name"))
	s.respond(w, "remove", started, http.StatusOK, resp, err)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.ListEntitiesHandler(r.Context())
	s.respond(w, "list_entities", started, http.StatusOK, resp, err)
}

func (s *Server) handleEntityVotes(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.EntityVotesHandler(r.Context(), r.PathValue("name"))
	s.respond(w, "get_votes", started, http.StatusOK, resp, err)
}

func (s *Server) handleUserVotes(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.UserVotesHandler(r.Context(), r.PathValue("user_id"))
	s.respond(w, "get_user_votes", started, http.StatusOK, resp, err)
}

func (s *Server) handleHasVoted(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.HasVotedHandler(r.Context(), r.PathValue("user_id"), r.PathValue("name"))
	s.respond(w, "has_voted", started, http.StatusOK, resp, err)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.TotalsHandler(r.Context())
	s.respond(w, "totals", started, http.StatusOK, resp, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.StatsHandler(r.Context())
	s.respond(w, "stats", started, http.StatusOK, resp, err)
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.WinnerHandler(r.Context())
	s.respond(w, "winner", started, http.StatusOK, resp, err)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	resp, err := s.ledger.Handler.AdminHandler(r.Context())
	s.respond(w, "get_admin", started, http.StatusOK, resp, err)
}

func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	limit := 0
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed < 0 {
			s.observe("scoreboard", started, "invalid_limit")
			writeLedgerError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	resp, err := s.ledger.Handler.ScoreboardHandler(r.Context(), limit)
	s.respond(w, "scoreboard", started, http.StatusOK, resp, err)
}

// requirePrincipal authenticates the caller from the bearer token and
// X-User-Id header and attaches the principal to the request context.
func (s *Server) requirePrincipal(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	started time.Time,
) (context.Context, string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		s.observe(operation, started, "unauthenticated")
		writeLedgerError(w, http.StatusUnauthorized, "unauthenticated", "Authorization bearer token is required")
		return nil, "", false
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		s.observe(operation, started, "unauthenticated")
		writeLedgerError(w, http.StatusUnauthorized, "unauthenticated", "X-User-Id header is required")
		return nil, "", false
	}
	return identity.WithPrincipal(r.Context(), userID), userID, true
}

func (s *Server) respond(w http.ResponseWriter, operation string, started time.Time, status int, payload any, err error) {
	if err != nil {
		status, code := ledgerErrorStatus(err)
		s.observe(operation, started, code)
		if status == http.StatusInternalServerError {
			s.logger.Error("ledger request failed",
				"event", "http_ledger_request_failed",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"operation", operation,
				"error", err.Error(),
			)
		}
		writeLedgerError(w, status, code, err.Error())
		return
	}
	s.observe(operation, started, "ok")
	writeJSON(w, status, payload)
}

func (s *Server) observe(operation string, started time.Time, outcome string) {
	s.metrics.Observe(operation, outcome, time.Since(started))
}

func ledgerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domainerrors.ErrAlreadyExists):
		return http.StatusConflict, "entity_already_exists"
	case errors.Is(err, domainerrors.ErrNotFound):
		return http.StatusNotFound, "entity_not_found"
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted"
	case errors.Is(err, domainerrors.ErrNameEmpty):
		return http.StatusBadRequest, "name_empty"
	case errors.Is(err, domainerrors.ErrNameTooLong):
		return http.StatusBadRequest, "name_too_long"
	case errors.Is(err, domainerrors.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, domainerrors.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domainerrors.ErrAlreadyInitialized):
		return http.StatusConflict, "already_initialized"
	case errors.Is(err, domainerrors.ErrScoreboardUnavailable):
		return http.StatusServiceUnavailable, "scoreboard_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeLedgerError(w http.ResponseWriter, status int, code string, message string) {
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
