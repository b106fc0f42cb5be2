package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/victornm/quizdesk/internal/ui"
)

const (
	eventScreen    = "screen"
	publishTimeout = 2 * time.Second
)

// Publisher is a Surface that forwards to next and publishes every displayed
// screen to a Redis channel, so that other processes can mirror a session.
type Publisher struct {
	next    ui.Surface
	redis   Redis
	channel string
}

func NewPublisher(next ui.Surface, r Redis, channel string) *Publisher {
	return &Publisher{next: next, redis: r, channel: channel}
}

func (p *Publisher) Clear() {
	p.next.Clear()
}

func (p *Publisher) Display(n ui.Node) {
	p.next.Display(n)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	b, err := json.Marshal(Notification{Event: eventScreen, Data: n})
	if err != nil {
		slog.ErrorContext(ctx, "pubsub: marshal screen failed", "channel", p.channel, "error", err)
		return
	}

	if err := p.redis.Publish(ctx, p.channel, b).Err(); err != nil {
		slog.ErrorContext(ctx, "pubsub: publish screen failed", "channel", p.channel, "error", err)
	}
}
