package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-chat/internal/api/router"
	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	appconfig "github.com/wolfman30/clinic-chat/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-chat/internal/http/middleware"
	"github.com/wolfman30/clinic-chat/internal/observability/metrics"
	"github.com/wolfman30/clinic-chat/internal/webchat"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// Chat is the assembled chat service.
type Chat struct {
	Handler     http.Handler
	Webchat     *webchat.Handler
	Factory     *chatbot.Factory
	Metrics     *metrics.ChatMetrics
	RateLimiter *httpmiddleware.RateLimiter
	Profile     clinic.Profile
}

// Close stops chat sessions and background loops.
func (c *Chat) Close() {
	c.Webchat.Shutdown()
	if c.RateLimiter != nil {
		c.RateLimiter.Stop()
	}
}

// BuildChat wires the dispatcher factory, transports, admin handlers and
// metrics. redisClient may be nil, in which case profiles and knowledge come
// from config only and admin writes return 503.
func BuildChat(cfg *appconfig.Config, redisClient *redis.Client, reg *prometheus.Registry, logger *logging.Logger) (*Chat, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	profile, err := BuildProfile(cfg)
	if err != nil {
		return nil, err
	}
	knowledge, err := BuildKnowledge(cfg, logger)
	if err != nil {
		return nil, err
	}
	if knowledge != nil {
		if _, err := knowledge.Bind(profile); err != nil {
			return nil, fmt.Errorf("bootstrap: knowledge file: %w", err)
		}
	}

	chatMetrics := metrics.NewChatMetrics(reg)
	factory := &chatbot.Factory{
		FallbackProfile:   profile,
		FallbackKnowledge: knowledge,
		Recorder:          chatMetrics,
		Logger:            logger,
		Location:          LoadLocation(cfg, logger),
		GreetingDelay:     cfg.ChatGreetingDelay,
		TypingDelay:       cfg.ChatTypingDelay,
		NudgeInterval:     cfg.ChatNudgeInterval,
	}

	var (
		profileStore   clinic.ProfileStore
		profileSource  chatbot.ProfileSource
		knowledgeStore chatbot.KnowledgeStore
		healthCheck    func(ctx context.Context) error
	)
	if redisClient != nil {
		clinicStore := BuildClinicStore(redisClient)
		kbStore := BuildKnowledgeStore(redisClient)
		factory.Profiles = clinicStore
		factory.Knowledge = kbStore
		profileStore = clinicStore
		profileSource = clinicStore
		knowledgeStore = kbStore
		healthCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	chat := webchat.NewHandler(factory, webchat.Options{
		DefaultOrgID: profile.OrgID,
		IdleTTL:      cfg.ChatSessionIdleTTL,
		Observer:     chatMetrics,
	}, logger)

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		Webchat:            chat,
		ClinicHandler:      clinic.NewHandler(profileStore, profile, logger),
		KnowledgeHandler:   chatbot.NewKnowledgeHandler(knowledgeStore, knowledge, logger).WithProfiles(profileSource, profile),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HealthCheck:        healthCheck,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRateLimiter:    limiter,
	})

	return &Chat{
		Handler:     handler,
		Webchat:     chat,
		Factory:     factory,
		Metrics:     chatMetrics,
		RateLimiter: limiter,
		Profile:     profile,
	}, nil
}
