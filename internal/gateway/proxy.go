package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securevault/securevault/internal/domain"
)

// Route maps a path prefix to an upstream service. AdminOnly routes are
// additionally gated by RequireRole(ADMIN).
type Route struct {
	Prefix    string
	Upstream  string
	AdminOnly bool
}

// RouteTable resolves request paths to upstreams, longest prefix first.
type RouteTable struct {
	routes []routeEntry
}

type routeEntry struct {
	prefix    string
	proxy     *httputil.ReverseProxy
	adminOnly bool
}

func NewRouteTable(routes []Route, logger *slog.Logger) (*RouteTable, error) {
	entries := make([]routeEntry, 0, len(routes))
	for _, route := range routes {
		target, err := url.Parse(route.Upstream)
		if err != nil {
			return nil, fmt.Errorf("parse upstream %q: %w", route.Upstream, err)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed",
				"operation", "proxy",
				"outcome", "failure",
				"upstream", target.Host,
				"path", r.URL.Path,
				"error", err,
			)
			writeGatewayError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "upstream unavailable")
		}
		entries = append(entries, routeEntry{
			prefix:    route.Prefix,
			proxy:     proxy,
			adminOnly: route.AdminOnly,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return len(entries[i].prefix) > len(entries[j].prefix)
	})
	return &RouteTable{routes: entries}, nil
}

func (t *RouteTable) match(path string) (routeEntry, bool) {
	for _, entry := range t.routes {
		if strings.HasPrefix(path, entry.prefix) {
			return entry, true
		}
	}
	return routeEntry{}, false
}

// Label returns the matched route prefix for metrics, keeping label
// cardinality bounded regardless of the concrete request path.
func (t *RouteTable) Label(path string) string {
	if entry, ok := t.match(path); ok {
		return entry.prefix
	}
	return "unmatched"
}

// NewRouter assembles the edge filter chain: rate limiting first, then
// signature verification with identity-header injection, then the reverse
// proxy. Operational endpoints sit outside the filter chain.
func NewRouter(routes *RouteTable, limiter *RateLimiter, jwtFilter *JWTFilter) http.Handler {
	proxy := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry, ok := routes.match(r.URL.Path)
		if !ok {
			writeGatewayError(w, http.StatusNotFound, "NOT_FOUND", "no route for path")
			return
		}
		if entry.adminOnly {
			RequireRole(entry.proxy, domain.RoleAdmin).ServeHTTP(w, r)
			return
		}
		entry.proxy.ServeHTTP(w, r)
	})

	chain := limiter.Middleware(jwtFilter.Middleware(proxy))

	r := chi.NewRouter()
	r.Use(Instrument(routes))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeGatewayJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeGatewayJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(chain.ServeHTTP)
	r.MethodNotAllowed(chain.ServeHTTP)

	return r
}

func writeGatewayJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeGatewayError(w http.ResponseWriter, statusCode int, code, message string) {
	writeGatewayJSON(w, statusCode, map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}
