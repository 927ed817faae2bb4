package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const knowledgeKeyPrefix = "chatbot:kb:"
const knowledgeVersionKeyPrefix = "chatbot:kb:ver:"

// ErrKnowledgeNotFound is returned when a clinic has no stored knowledge base.
var ErrKnowledgeNotFound = errors.New("chatbot: knowledge base not found")

// RedisKnowledgeStore keeps one knowledge base per clinic as a JSON document,
// with a version counter bumped on every replace.
type RedisKnowledgeStore struct {
	client *redis.Client
	tracer trace.Tracer
}

// NewRedisKnowledgeStore creates a Redis-backed knowledge store.
func NewRedisKnowledgeStore(client *redis.Client) *RedisKnowledgeStore {
	if client == nil {
		panic("chatbot: redis client cannot be nil")
	}
	return &RedisKnowledgeStore{
		client: client,
		tracer: otel.Tracer("clinicchat.internal.chatbot.knowledge_store"),
	}
}

// Get returns the clinic's topics in match order.
func (s *RedisKnowledgeStore) Get(ctx context.Context, orgID string) ([]KnowledgeEntry, error) {
	ctx, span := s.tracer.Start(ctx, "chatbot.knowledge_store.get")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.org_id", orgID))

	data, err := s.client.Get(ctx, knowledgeKey(orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKnowledgeNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chatbot: get knowledge: %w", err)
	}
	var entries []KnowledgeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chatbot: decode knowledge: %w", err)
	}
	return entries, nil
}

// Replace validates entries and overwrites the clinic's knowledge base,
// returning the new version.
func (s *RedisKnowledgeStore) Replace(ctx context.Context, orgID string, entries []KnowledgeEntry) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "chatbot.knowledge_store.replace")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.org_id", orgID), attribute.Int("chatbot.topics", len(entries)))

	kb, err := NewKnowledgeBase(entries)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(kb.Entries())
	if err != nil {
		return 0, fmt.Errorf("chatbot: encode knowledge: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, knowledgeKey(orgID), data, 0)
	incr := pipe.Incr(ctx, knowledgeVersionKey(orgID))
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("chatbot: replace knowledge: %w", err)
	}
	return incr.Val(), nil
}

// Version returns the clinic's knowledge version, 0 if never replaced.
func (s *RedisKnowledgeStore) Version(ctx context.Context, orgID string) (int64, error) {
	val, err := s.client.Get(ctx, knowledgeVersionKey(orgID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("chatbot: get knowledge version: %w", err)
	}
	version, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chatbot: parse knowledge version: %w", err)
	}
	return version, nil
}

// Delete removes the clinic's knowledge base so sessions use the defaults again.
func (s *RedisKnowledgeStore) Delete(ctx context.Context, orgID string) error {
	if err := s.client.Del(ctx, knowledgeKey(orgID)).Err(); err != nil {
		return fmt.Errorf("chatbot: delete knowledge: %w", err)
	}
	return nil
}

func knowledgeKey(orgID string) string {
	return knowledgeKeyPrefix + orgID
}

func knowledgeVersionKey(orgID string) string {
	return knowledgeVersionKeyPrefix + orgID
}
