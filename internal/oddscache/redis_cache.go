package oddscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache guarda as odds correntes de cada fixture no Redis.
// Escrito pela reconciliação, lido pelo bet-service na colocação.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// Entry é o par de odds publicado para um fixture.
type Entry struct {
	FixtureID string  `json:"fixture_id"`
	HomeOdds  float64 `json:"home_odds"`
	AwayOdds  float64 `json:"away_odds"`
}

// key gera a chave Redis das odds correntes de um fixture
func key(fixtureID string) string { return "odds:current:" + fixtureID }

// SetCurrent armazena as odds correntes com TTL definido.
func (r *RedisCache) SetCurrent(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(e.FixtureID), b, r.TTL).Err()
}

// GetCurrent devolve as odds cacheadas, ou (nil, nil) em cache miss —
// miss não é erro, o chamador cai no valor do banco.
func (r *RedisCache) GetCurrent(ctx context.Context, fixtureID string) (*Entry, error) {
	val, err := r.Client.Get(ctx, key(fixtureID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
