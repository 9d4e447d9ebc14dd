package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"habitledger/core"
	"habitledger/core/events"
	"habitledger/gateway/middleware"
	"habitledger/native/habits"
)

const (
	maxRequestBytes   = 1 << 20 // 1 MiB
	headerRequestID   = "X-Request-ID"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second

	rateGroupRead  = "read"
	rateGroupWrite = "write"
)

// Ledger is the subset of the ledger API served over HTTP.
type Ledger interface {
	Params() habits.Params
	Now() int64

	Register(ctx context.Context, caller [20]byte, start int64, paid *big.Int) (*habits.Registration, error)
	CheckIn(ctx context.Context, caller [20]byte) (int64, error)
	Withdraw(ctx context.Context, caller [20]byte, dates []int64) (*habits.Settlement, error)
	WithdrawOperationFees(ctx context.Context, caller [20]byte, dates []int64) (*habits.Settlement, error)
	SweepOperationFees(ctx context.Context, caller [20]byte) (*habits.Settlement, error)
	AddAdmin(ctx context.Context, caller, addr [20]byte) error
	RemoveAdmin(ctx context.Context, caller, addr [20]byte) error

	IsAdmin(ctx context.Context, addr [20]byte) (bool, error)
	ExpectedStartDate(ctx context.Context, user [20]byte) (int64, error)
	LastRegisteredDate(ctx context.Context, user [20]byte) (int64, error)
	Withdrawable(ctx context.Context, caller [20]byte) ([]int64, *big.Int, error)
	ContestStatus(ctx context.Context, date int64) (*habits.ContestStatus, error)
	ContestStatusAdmin(ctx context.Context, caller [20]byte, date int64) (*habits.ContestStatusAdmin, error)
	DatesForUser(ctx context.Context, caller, user [20]byte) ([]int64, error)
	UsersForDate(ctx context.Context, caller [20]byte, date int64) ([][20]byte, error)
	EntryStatus(ctx context.Context, caller, user [20]byte, date int64) (habits.EntryStatus, error)
	UserEntryStatuses(ctx context.Context, caller [20]byte) ([]habits.DatedStatus, error)
	WithdrawableOperationFees(ctx context.Context, caller [20]byte) ([]int64, *big.Int, error)
	Vault(ctx context.Context, addr [20]byte) (*core.VaultSummary, error)
}

// SweeperStatus reports the scheduled fee sweeper's progress.
type SweeperStatus interface {
	Status() (last *habits.Settlement, at time.Time, total *big.Int)
}

// Config wires the HTTP server's collaborators.
type Config struct {
	Ledger        Ledger
	Hub           *events.Hub
	Sweeper       SweeperStatus
	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	// RedactAddresses masks caller addresses in request logs.
	RedactAddresses bool
}

// Server exposes the habits ledger over a REST API.
type Server struct {
	ledger  Ledger
	hub     *events.Hub
	sweeper SweeperStatus
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	cors    middleware.CORSConfig
	logger  *slog.Logger
	redact  bool
	handler http.Handler
}

// NewServer validates the configuration and builds the router.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("rpc: ledger required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("rpc: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, logger)
	}
	obs := cfg.Observability
	if obs == nil {
		obs = middleware.NewObservability(middleware.ObservabilityConfig{}, logger)
	}
	s := &Server{
		ledger:  cfg.Ledger,
		hub:     cfg.Hub,
		sweeper: cfg.Sweeper,
		auth:    cfg.Auth,
		limiter: limiter,
		obs:     obs,
		cors:    cfg.CORS,
		logger:  logger,
		redact:  cfg.RedactAddresses,
	}
	s.handler = otelhttp.NewHandler(s.routes(), "habitsd")
	return s, nil
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.CORS(s.cors))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(rateGroupRead))
			r.With(s.obs.Middleware("params")).Get("/params", s.handleParams)
			r.With(s.auth.Optional, s.obs.Middleware("contest_status")).Get("/contests/{date}", s.handleContestStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require)
			r.With(s.limiter.Middleware(rateGroupWrite), s.obs.Middleware("register")).Post("/register", s.handleRegister)
			r.With(s.limiter.Middleware(rateGroupWrite), s.obs.Middleware("checkin")).Post("/checkin", s.handleCheckIn)
			r.With(s.limiter.Middleware(rateGroupWrite), s.obs.Middleware("withdraw")).Post("/withdraw", s.handleWithdraw)

			r.With(s.limiter.Middleware(rateGroupRead), s.obs.Middleware("start_date")).Get("/start-date", s.handleStartDate)
			r.With(s.limiter.Middleware(rateGroupRead), s.obs.Middleware("withdrawable")).Get("/withdrawable", s.handleWithdrawable)
			r.With(s.limiter.Middleware(rateGroupRead), s.obs.Middleware("entries")).Get("/entries", s.handleEntries)
			r.With(s.limiter.Middleware(rateGroupRead), s.obs.Middleware("vault")).Get("/vault", s.handleVault)
			r.With(s.obs.Middleware("events")).Get("/events/ws", s.handleEventsWS)

			r.Route("/admin", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.limiter.Middleware(rateGroupRead))
					r.With(s.obs.Middleware("admin_contest_status")).Get("/contests/{date}", s.handleContestStatusAdmin)
					r.With(s.obs.Middleware("admin_contest_users")).Get("/contests/{date}/users", s.handleUsersForDate)
					r.With(s.obs.Middleware("admin_user_dates")).Get("/users/{addr}/dates", s.handleDatesForUser)
					r.With(s.obs.Middleware("admin_entry_status")).Get("/entries/{addr}/{date}", s.handleEntryStatus)
					r.With(s.obs.Middleware("admin_fees")).Get("/fees", s.handleWithdrawableFees)
					r.With(s.obs.Middleware("admin_sweeper")).Get("/sweeper", s.handleSweeperStatus)
				})
				r.Group(func(r chi.Router) {
					r.Use(s.limiter.Middleware(rateGroupWrite))
					r.With(s.obs.Middleware("admin_fees_withdraw")).Post("/fees/withdraw", s.handleWithdrawFees)
					r.With(s.obs.Middleware("admin_add")).Post("/admins", s.handleAddAdmin)
					r.With(s.obs.Middleware("admin_remove")).Delete("/admins/{addr}", s.handleRemoveAdmin)
				})
			})
		})
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type requestIDKey struct{}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
		return caller, false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, codeInvalidRequest, message, nil)
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "request body required", nil)
		return false
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload", err.Error())
		return false
	}
	return true
}

func dateParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "date")
	date, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("invalid date %q", raw), nil)
		return 0, false
	}
	return date, true
}

func addrParam(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
		return addr, false
	}
	return addr, true
}
