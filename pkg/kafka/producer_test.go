package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishEntityEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "registry-events", testutil.NewLogger())

	err := p.PublishEntityEvent(context.Background(), &EntityEvent{
		EventType:     "entity.created",
		EntityID:      "e1",
		EntityType:    "feathr_source_v1",
		QualifiedName: "p1__s1",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "registry-events", msg.Topic)
	assert.Equal(t, "e1", string(msg.Key))
	assert.Equal(t, "entity.created", header(msg, "event_type"))
	assert.Equal(t, "feathr_source_v1", header(msg, "entity_type"))
	assert.Equal(t, SchemaVersion, header(msg, "schema_version"))

	var decoded EntityEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "p1__s1", decoded.QualifiedName)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestPublishRelationshipEvents(t *testing.T) {
	t.Run("empty batch writes nothing", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewProducerWithWriter(w, "t", testutil.NewLogger())
		require.NoError(t, p.PublishRelationshipEvents(context.Background(), nil))
		assert.Empty(t, w.messages)
	})

	t.Run("keyed by source entity", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewProducerWithWriter(w, "t", testutil.NewLogger())
		err := p.PublishRelationshipEvents(context.Background(), []*RelationshipEvent{
			{EventType: "relationship.created", RelationshipType: "Contains", FromEntityID: "p", ToEntityID: "s"},
			{EventType: "relationship.created", RelationshipType: "BelongsTo", FromEntityID: "s", ToEntityID: "p"},
		})
		require.NoError(t, err)
		require.Len(t, w.messages, 2)
		assert.Equal(t, "p", string(w.messages[0].Key))
		assert.Equal(t, "BelongsTo", header(w.messages[1], "relationship_type"))
	})

	t.Run("writer errors are returned", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("broker down")}
		p := NewProducerWithWriter(w, "t", testutil.NewLogger())
		err := p.PublishRelationshipEvents(context.Background(), []*RelationshipEvent{{FromEntityID: "p"}})
		assert.EqualError(t, err, "broker down")
	})
}
