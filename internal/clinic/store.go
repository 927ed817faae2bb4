package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrProfileNotFound is returned when no profile is stored for an org.
var ErrProfileNotFound = errors.New("clinic: profile not found")

// Store provides persistence for clinic profiles.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewStore creates a new clinic profile store.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("clinic: redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		tracer: otel.Tracer("clinicchat.internal.clinic.store"),
	}
}

func (s *Store) key(orgID string) string {
	return fmt.Sprintf("clinic:profile:%s", orgID)
}

// Get retrieves the stored profile for orgID.
func (s *Store) Get(ctx context.Context, orgID string) (*Profile, error) {
	ctx, span := s.tracer.Start(ctx, "clinic.store.get")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.org_id", orgID))

	data, err := s.redis.Get(ctx, s.key(orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("clinic: get profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("clinic: unmarshal profile: %w", err)
	}
	return &p, nil
}

// GetOrDefault returns the stored profile, or fallback when none is stored.
func (s *Store) GetOrDefault(ctx context.Context, orgID string, fallback Profile) (Profile, error) {
	p, err := s.Get(ctx, orgID)
	if errors.Is(err, ErrProfileNotFound) {
		fallback.OrgID = orgID
		return fallback, nil
	}
	if err != nil {
		return Profile{}, err
	}
	return *p, nil
}

// Set validates and saves the profile.
func (s *Store) Set(ctx context.Context, p *Profile) error {
	ctx, span := s.tracer.Start(ctx, "clinic.store.set")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.org_id", p.OrgID))

	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("clinic: marshal profile: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(p.OrgID), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clinic: set profile: %w", err)
	}
	return nil
}
