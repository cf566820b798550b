package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis implementa o lease como registro durável fora do processo:
// SET NX PX com token de holder, release comparando o token via Lua.
// Mantém a exclusão correta mesmo com vários workers reconciliando.
type Redis struct {
	client *redis.Client
}

func NewRedis(c *redis.Client) *Redis { return &Redis{client: c} }

// Script de release: só deleta se o token ainda for nosso — evita
// soltar um lease que expirou e já foi readquirido por outro worker.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := newToken()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotAcquired
	}
	return token, nil
}

func (r *Redis) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, r.client, []string{key}, token).Err()
}

func newToken() string { return uuid.NewString() }
