package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	appconfig "github.com/wolfman30/clinic-chat/internal/config"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; clinic profiles and knowledge will not persist", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildClinicStore returns the clinic profile store when Redis is available.
func BuildClinicStore(redisClient *redis.Client) *clinic.Store {
	if redisClient == nil {
		return nil
	}
	return clinic.NewStore(redisClient)
}

// BuildKnowledgeStore returns the knowledge base store when Redis is available.
func BuildKnowledgeStore(redisClient *redis.Client) *chatbot.RedisKnowledgeStore {
	if redisClient == nil {
		return nil
	}
	return chatbot.NewRedisKnowledgeStore(redisClient)
}

// BuildProfile returns the built-in clinic profile with any CLINIC_* values
// applied on top.
func BuildProfile(cfg *appconfig.Config) (clinic.Profile, error) {
	p := clinic.DefaultProfile(cfg.ClinicOrgID).Merge(clinic.Profile{
		Name:            cfg.ClinicName,
		Phone:           cfg.ClinicPhone,
		Email:           cfg.ClinicEmail,
		Address:         cfg.ClinicAddress,
		Hours:           cfg.ClinicHours,
		OutreachMessage: cfg.ClinicOutreachMessage,
		MapURL:          cfg.ClinicMapURL,
		ContactPath:     cfg.ClinicContactPath,
	})
	if err := p.Validate(); err != nil {
		return clinic.Profile{}, fmt.Errorf("bootstrap: clinic profile: %w", err)
	}
	return p, nil
}

// BuildKnowledge loads KNOWLEDGE_FILE, or returns nil to use the built-in topics.
func BuildKnowledge(cfg *appconfig.Config, logger *logging.Logger) (*chatbot.KnowledgeBase, error) {
	path := strings.TrimSpace(cfg.KnowledgeFile)
	if path == "" {
		return nil, nil
	}
	kb, err := chatbot.LoadKnowledgeFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: knowledge file: %w", err)
	}
	for _, s := range kb.Shadowed() {
		logger.Warn("knowledge trigger can never match", "topic", s.Topic, "trigger", s.Trigger, "shadowed_by", s.ShadowedBy)
	}
	logger.Info("knowledge file loaded", "path", path, "topics", kb.Len())
	return kb, nil
}

// LoadLocation resolves CHAT_TIMEZONE, falling back to UTC.
func LoadLocation(cfg *appconfig.Config, logger *logging.Logger) *time.Location {
	name := strings.TrimSpace(cfg.ChatTimezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown CHAT_TIMEZONE; using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
