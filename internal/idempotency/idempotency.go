// Package idempotency replays previously returned responses for requests
// the caller marked with an idempotency key. The core's operations mint
// new immutable records on every call, so replay is the only safe
// re-delivery mechanism.
package idempotency

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

type ActorContext struct {
	Agent          domain.AgentID
	IdempotencyKey string
}

type Record struct {
	Status int
	Body   map[string]any
}

type Store interface {
	GetRecord(ctx context.Context, agent domain.AgentID, idempotencyKey, endpoint string) (Record, bool, error)
	SaveRecord(ctx context.Context, agent domain.AgentID, idempotencyKey, endpoint string, rec Record) error
}

// Replay returns the stored response for a repeated request, if any. An
// empty idempotency key disables replay.
func Replay(ctx context.Context, st Store, actor ActorContext, endpoint string) (Record, bool, error) {
	if actor.IdempotencyKey == "" {
		return Record{}, false, nil
	}
	return st.GetRecord(ctx, actor.Agent, actor.IdempotencyKey, endpoint)
}

func Save(ctx context.Context, st Store, actor ActorContext, endpoint string, rec Record) error {
	if actor.IdempotencyKey == "" {
		return nil
	}
	return st.SaveRecord(ctx, actor.Agent, actor.IdempotencyKey, endpoint, rec)
}

// CacheStore keeps records in an expiring in-process cache. Replay only
// needs to cover the retry horizon of a confused caller, not forever.
type CacheStore struct {
	cache *gocache.Cache
}

func NewCacheStore(ttl time.Duration) *CacheStore {
	return &CacheStore{cache: gocache.New(ttl, 2*ttl)}
}

func key(agent domain.AgentID, idempotencyKey, endpoint string) string {
	return fmt.Sprintf("%s|%s|%s", agent, endpoint, idempotencyKey)
}

func (s *CacheStore) GetRecord(ctx context.Context, agent domain.AgentID, idempotencyKey, endpoint string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	v, found := s.cache.Get(key(agent, idempotencyKey, endpoint))
	if !found {
		return Record{}, false, nil
	}
	rec, ok := v.(Record)
	if !ok {
		return Record{}, false, fmt.Errorf("unexpected idempotency record type %T", v)
	}
	return rec, true, nil
}

func (s *CacheStore) SaveRecord(ctx context.Context, agent domain.AgentID, idempotencyKey, endpoint string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.SetDefault(key(agent, idempotencyKey, endpoint), rec)
	return nil
}
