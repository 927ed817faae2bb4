package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	httpmiddleware "github.com/wolfman30/clinic-chat/internal/http/middleware"
	"github.com/wolfman30/clinic-chat/internal/webchat"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	Webchat          *webchat.Handler
	ClinicHandler    *clinic.Handler
	KnowledgeHandler *chatbot.KnowledgeHandler
	MetricsHandler   http.Handler

	// HealthCheck reports backing-store health; nil means always healthy.
	HealthCheck func(ctx context.Context) error

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	// ChatRateLimiter throttles /chat requests per client IP when set.
	ChatRateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(logger))

	// Public endpoints (widget, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthCheck, logger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webchat != nil {
			public.Route("/chat", func(chat chi.Router) {
				if cfg.ChatRateLimiter != nil {
					chat.Use(httpmiddleware.RateLimit(cfg.ChatRateLimiter))
				}
				chat.Mount("/", cfg.Webchat.Routes())
			})
		}
	})

	// Admin routes (protected by HS256 JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, logger))
			admin.Use(middleware.Compress(5))
			if cfg.ClinicHandler != nil {
				admin.Mount("/clinics", cfg.ClinicHandler.Routes())
			}
			if cfg.KnowledgeHandler != nil {
				admin.Mount("/knowledge", cfg.KnowledgeHandler.Routes())
			}
		})
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	return r
}

func healthHandler(check func(ctx context.Context) error, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
