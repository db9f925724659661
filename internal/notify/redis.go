// Package notify delivers lifecycle notifications over Redis: a pub/sub message on the
// recipient's channel for live clients plus a capped per-recipient inbox list.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sindh/backend/internal/models"
)

const (
	channelPrefix = "sindh:notifications:"
	inboxPrefix   = "sindh:inbox:"

	DefaultInboxSize = 100
)

func Channel(recipientID uuid.UUID) string { return channelPrefix + recipientID.String() }

func InboxKey(recipientID uuid.UUID) string { return inboxPrefix + recipientID.String() }

type Publisher struct {
	rdb       redis.UniversalClient
	inboxSize int64
}

func NewPublisher(rdb redis.UniversalClient, inboxSize int) *Publisher {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Publisher{rdb: rdb, inboxSize: int64(inboxSize)}
}

// Publish fans n out to the live channel and prepends it to the recipient's inbox in a
// single MULTI block.
func (p *Publisher) Publish(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := InboxKey(n.RecipientID)
	pipe := p.rdb.TxPipeline()
	pipe.Publish(ctx, Channel(n.RecipientID), payload)
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, p.inboxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Inbox returns up to limit of the recipient's most recent notifications, newest first.
func (p *Publisher) Inbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 || int64(limit) > p.inboxSize {
		limit = int(p.inboxSize)
	}
	raw, err := p.rdb.LRange(ctx, InboxKey(recipientID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	out := make([]models.Notification, 0, len(raw))
	for _, r := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
