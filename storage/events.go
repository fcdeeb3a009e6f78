package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/yush1006/todo/domain"
)

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueuePublisher enqueues events as JSON messages on an Azure Storage queue.
type QueuePublisher struct {
	queue queueClient
}

// QueueClientOptions are the retry settings used for every queue client.
func QueueClientOptions() *azqueue.ClientOptions {
	return &azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

func NewQueuePublisher(connStr, queueName string) (*QueuePublisher, error) {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, QueueClientOptions())
	if err != nil {
		return nil, err
	}
	return &QueuePublisher{queue: q}, nil
}

func (p *QueuePublisher) Publish(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

func newEvent(ownerID, entityID, typ string, data any, now time.Time) domain.Event {
	ev := domain.Event{
		ID:         uuid.NewString(),
		EntityID:   entityID,
		EntityType: domain.EntityTypeTask,
		Type:       typ,
		Time:       now.UnixMilli(),
		UserID:     ownerID,
	}
	if data != nil {
		if raw, err := sonic.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}
