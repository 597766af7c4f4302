package ledger_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(l Ledger, q AccountQuerier, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	RegisterRoutes(r, l, q, logger)
	return r
}

func RegisterRoutes(r chi.Router, l Ledger, q AccountQuerier, logger *zap.Logger) {
	handler := NewLedgerHandler(l, q, logger.With(zap.String("component", "LedgerHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ledger service is healthy!"))
	})

	r.Post("/users", handler.CreateUserHandler)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.CreateAccountHandler)
		r.Get("/", handler.ListAccountsHandler)
		r.Get("/{id}/balance", handler.GetBalanceHandler)
		r.Post("/{id}/deposit", handler.DepositHandler)
		r.Post("/{id}/withdraw", handler.WithdrawHandler)
	})
}

// RequestLogger logs one line per request with its status and latency.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
