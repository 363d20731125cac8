package redis

import (
	"context"
	"encoding/json"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher pushes phase-transition events to upload:{id}:events. Consumers
// are advisory only; the polling snapshot path is the source of truth.
type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

type ProgressEvent struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

func (p *Publisher) PublishProgress(ctx context.Context, fileID string, status string, progress int) error {
	payload, err := json.Marshal(ProgressEvent{Status: status, Progress: progress})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, progressKeyPrefix+fileID+eventsKeySuffix, payload).Err()
}
