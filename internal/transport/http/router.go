// Package httptransport wires the gateway's HTTP surface: protected
// resources, the JSON API with its CORS policy, operational endpoints, and
// the pass-through to the default origin for everything else.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coursegate/internal/gateway"
	"coursegate/internal/login"
	"coursegate/internal/ratings"
	"coursegate/pkg/platform/httputil"
	"coursegate/pkg/platform/middleware/cors"
	"coursegate/pkg/platform/middleware/metadata"
)

// Deps collects everything the router mounts. CacheHealth is optional; nil
// reports the cache as healthy (in-process store).
type Deps struct {
	Gateway       *gateway.Handler
	Login         *login.Handler
	Ratings       *ratings.Handler
	AllowedOrigin string
	DefaultOrigin string
	Logger        *slog.Logger
	CacheHealth   func(ctx context.Context) error
}

// NewRouter wires all endpoints. Handlers own their request semantics; the
// router owns the middleware chain and the fallback behavior.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)

	r.Get("/health", handleHealth(d.CacheHealth))
	r.Handle("/metrics", promhttp.Handler())

	d.Gateway.Register(r)

	// The JSON API shares one CORS policy. Preflights are answered by the
	// middleware; the OPTIONS routes below exist only so they match.
	r.Group(func(api chi.Router) {
		api.Use(cors.Handler(d.AllowedOrigin))
		d.Login.Register(api)
		d.Ratings.Register(api)
		api.Options("/auth/*", preflight)
		api.Options("/ratings", preflight)
	})

	if d.DefaultOrigin != "" {
		proxy := NewPassthrough(d.DefaultOrigin, d.Logger)
		r.NotFound(proxy.ServeHTTP)
		// Chi would answer 405 for known paths with other methods; the
		// pass-through takes those too so the origin stays authoritative.
		r.MethodNotAllowed(proxy.ServeHTTP)
	}

	return r
}

// preflight never runs: the CORS middleware terminates OPTIONS requests.
// It exists so chi routes the method.
func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(cacheHealth func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cacheHealth != nil {
			if err := cacheHealth(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"cache":  "unreachable",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "coursegate",
		})
	}
}
