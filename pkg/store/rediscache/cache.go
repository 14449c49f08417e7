// Package rediscache keeps a snapshot of the blacklist in Redis so each
// request does not re-read the terms table.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
)

// DefaultTTL bounds how stale a cached snapshot may be.
const DefaultTTL = 30 * time.Second

const termsKey = "promptgate:blacklist:terms"

// Blacklist is a read-through cache in front of a BlacklistAdmin. Writes go
// to the underlying store and drop the snapshot. Redis failures degrade to
// reading the store directly.
type Blacklist struct {
	client redis.UniversalClient
	next   store.BlacklistAdmin
	ttl    time.Duration
	log    zerolog.Logger
}

var _ store.BlacklistAdmin = (*Blacklist)(nil)

// NewClient connects to Redis at addr.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

// New wraps next with a Redis snapshot.
func New(client redis.UniversalClient, next store.BlacklistAdmin, ttl time.Duration, log zerolog.Logger) *Blacklist {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Blacklist{
		client: client,
		next:   next,
		ttl:    ttl,
		log:    log.With().Str("component", "blacklist_cache").Logger(),
	}
}

// ListTerms returns the cached snapshot, loading it from the store on a miss.
func (b *Blacklist) ListTerms(ctx context.Context) ([]models.BlacklistTerm, error) {
	raw, err := b.client.Get(ctx, termsKey).Bytes()
	switch {
	case err == nil:
		var terms []models.BlacklistTerm
		if jerr := json.Unmarshal(raw, &terms); jerr == nil {
			return terms, nil
		}
		b.log.Warn().Msg("discarding undecodable blacklist snapshot")
	case errors.Is(err, redis.Nil):
	default:
		b.log.Warn().Err(err).Msg("blacklist cache unavailable")
	}

	terms, err := b.next.ListTerms(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(terms); err == nil {
		if err := b.client.Set(ctx, termsKey, data, b.ttl).Err(); err != nil {
			b.log.Warn().Err(err).Msg("blacklist cache write failed")
		}
	}
	return terms, nil
}

// AddTerm adds a term and drops the snapshot. A snapshot that cannot be
// dropped expires within the TTL.
func (b *Blacklist) AddTerm(ctx context.Context, term *models.BlacklistTerm) error {
	if err := b.next.AddTerm(ctx, term); err != nil {
		return err
	}
	b.drop(ctx)
	return nil
}

// RemoveTerm removes a term and drops the snapshot.
func (b *Blacklist) RemoveTerm(ctx context.Context, id string) error {
	if err := b.next.RemoveTerm(ctx, id); err != nil {
		return err
	}
	b.drop(ctx)
	return nil
}

func (b *Blacklist) drop(ctx context.Context) {
	if err := b.Invalidate(ctx); err != nil {
		b.log.Warn().Err(err).Dur("ttl", b.ttl).Msg("blacklist snapshot not invalidated")
	}
}

// Invalidate drops the snapshot.
func (b *Blacklist) Invalidate(ctx context.Context) error {
	if err := b.client.Del(ctx, termsKey).Err(); err != nil {
		return fmt.Errorf("invalidate blacklist cache: %w", err)
	}
	return nil
}
