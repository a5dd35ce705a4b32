package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filmzi/filelink/backend/internal/setup"
	mw "github.com/filmzi/filelink/shared/middleware"
	"github.com/filmzi/filelink/shared/middleware/metrics"
	rl "github.com/filmzi/filelink/shared/middleware/ratelimiter"
)

// New creates the chi router with all routes.
// IMPORTANT! a ratelimiter set with .Use limits requests for all endpoints of that group combined
func New(deps *setup.Dependencies) http.Handler {
	cfg := deps.Config.Public
	h := deps.Handler

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	// downloads are embedded by other sites, e.g. <video src>
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORS.AllowedOrigins),
		AllowedMethods: []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Range", "Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Range", "Content-Length", "Accept-Ranges", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/webhook", h.Webhook)

	// Download routes
	r.Group(func(r chi.Router) {
		r.Use(mw.SecurityHeadersWithCSP(cfg.SecureHeaders, mw.DownloadCSP))
		if rate := cfg.RateLimit.DownloadsPerSecond; rate > 0 {
			burst := cfg.RateLimit.Burst
			if burst < 1 {
				burst = 1
			}
			identity := mw.GetIP
			if cfg.RateLimit.TrustProxy {
				identity = mw.GetForwardedIP
			}
			r.Use(mw.RateLimit(rl.New(rate, burst, cfg.RateLimit.Expiration), identity))
		}

		r.Get("/dl/{slug}", h.Download)
		r.Head("/dl/{slug}", h.Download)
		r.Get("/dl/{shortId}/{fileName}", h.DownloadByParts)
		r.Head("/dl/{shortId}/{fileName}", h.DownloadByParts)
		r.Get("/stream/{slug}", h.Stream)
		r.Head("/stream/{slug}", h.Stream)
	})

	// Backup routes, admin only when a secret is configured
	r.Group(func(r chi.Router) {
		r.Use(mw.SecurityHeadersWithCSP(cfg.SecureHeaders, "default-src 'none'; frame-ancestors 'none'"))
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.AdminOnly())
		}
		r.HandleFunc("/db/{action}", h.DB)
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
