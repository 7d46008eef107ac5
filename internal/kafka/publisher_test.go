package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-linker/internal/models"
)

type recordingProducer struct {
	topic   string
	key     []byte
	payload []byte
	closed  bool
}

func (p *recordingProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	p.topic, p.key, p.payload = topic, key, payload
	return nil
}

func (p *recordingProducer) Close() { p.closed = true }

func TestResourcePublisher(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewResourcePublisher(prod, "resource-announced")

	at := time.Date(2018, 7, 5, 10, 0, 0, 0, time.UTC)
	rec := models.UploadRecord{Filename: "x.png", ThumbnailURLString: "t", FileURLString: "f"}
	require.NoError(t, pub.PublishResource(context.Background(), models.NewResourceEvent("run-1", rec, "abc", at)))

	assert.Equal(t, "resource-announced", prod.topic)
	assert.Equal(t, []byte("x.png"), prod.key)

	var got models.ResourceEvent
	require.NoError(t, json.Unmarshal(prod.payload, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "abc", got.ObjectID)
	assert.True(t, at.Equal(got.AnnouncedAt))

	pub.Close()
	assert.True(t, prod.closed)
}
