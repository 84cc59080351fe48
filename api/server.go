/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the HTTP router (chi), middleware stack, and route definitions.
	This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. RequestID:  Unique ID per request for tracing
 2. Logger:     zerolog request logging; the request logger is stored in
    the context so handlers log with the same request_id
 3. Recoverer:  Panic recovery (500 instead of crash)
 4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:

	/api/orgs/{orgID}/accounts/*       Accounts, summaries, reconciliation
	/api/orgs/{orgID}/vendors/*        Vendors
	/api/orgs/{orgID}/categories/*     Category hierarchy
	/api/orgs/{orgID}/transactions/*   Transactions, status, audit
	/api/scenarios/*                   Demo scenarios

SECURITY NOTE:

	No authentication middleware. The organization comes from the URL and the
	actor from the X-Actor header; both are trusted as given.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/logger"
)

// NewRouter creates a new router with all routes configured. An empty
// origins list allows any origin.
func NewRouter(h *Handler, log zerolog.Logger, origins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orgs/{orgID}", func(r chi.Router) {
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.ListAccounts)
				r.Post("/", h.CreateAccount)
				r.Get("/{id}", h.GetAccount)
				r.Get("/{id}/summary", h.GetSummary)
				r.Post("/{id}/reconcile", h.Reconcile)
				r.Get("/{id}/verify", h.VerifyAccount)
			})

			r.Route("/vendors", func(r chi.Router) {
				r.Get("/", h.ListVendors)
				r.Post("/", h.CreateVendor)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", h.ListCategories)
				r.Post("/", h.CreateCategory)
				r.Get("/tree", h.GetCategoryTree)
				r.Put("/{id}", h.UpdateCategory)
				r.Post("/{id}/move", h.MoveCategory)
				r.Delete("/{id}", h.DeleteCategory)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.CreateTransaction)
				r.Post("/status/bulk", h.BulkChangeStatus)
				r.Get("/{id}", h.GetTransaction)
				r.Put("/{id}", h.UpdateTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
				r.Post("/{id}/restore", h.RestoreTransaction)
				r.Post("/{id}/status", h.ChangeStatus)
				r.Get("/{id}/status-history", h.StatusHistory)
				r.Get("/{id}/edits", h.EditHistory)
				r.Get("/{id}/edits/latest", h.LatestEdit)
				r.Get("/{id}/edits/count", h.EditCount)
			})
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request and attaches a request-scoped
// logger to the context.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			reqLog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
