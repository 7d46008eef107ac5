package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"resource-linker/internal/models"
)

// ResourcePublisher 在资源发布成功后发送事件。
type ResourcePublisher interface {
	PublishResource(ctx context.Context, event models.ResourceEvent) error
	Close()
}

// topicPublisher sends resource events as JSON keyed by filename.
type topicPublisher struct {
	producer MessageProducer
	topic    string
}

// NewResourcePublisher wraps a MessageProducer for the given topic.
func NewResourcePublisher(producer MessageProducer, topic string) ResourcePublisher {
	return &topicPublisher{producer: producer, topic: topic}
}

func (p *topicPublisher) PublishResource(ctx context.Context, event models.ResourceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("编码资源事件失败: %w", err)
	}
	return p.producer.SendMessage(ctx, p.topic, []byte(event.Filename), payload)
}

func (p *topicPublisher) Close() {
	p.producer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event.
func NewNoopPublisher() ResourcePublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishResource(context.Context, models.ResourceEvent) error { return nil }
func (noopPublisher) Close()                                                       {}
