package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const ChannelBalanceBroadcast = "balance_updates_broadcast"

// RedisBroadcaster publica atualizações de saldo no Redis Pub/Sub,
// consumidas pela camada de apresentação (fora deste core).
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelBalanceBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

// BalanceUpdate é o payload padrão do canal de saldo.
type BalanceUpdate struct {
	ParticipantID   string    `json:"participant_id"`
	NewBalanceCents int64     `json:"new_balance_cents"`
	Reason          string    `json:"reason"` // "settlement" | "round_bonus"
	Ts              time.Time `json:"ts"`
}

func (b *RedisBroadcaster) PublishBalanceUpdate(ctx context.Context, u BalanceUpdate) error {
	u.Ts = time.Now().UTC()
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
