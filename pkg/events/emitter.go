// Package events publishes registry changes to Kafka
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventEntityCreated       = "entity.created"
	EventEntityDeleted       = "entity.deleted"
	EventRelationshipCreated = "relationship.created"
	EventRelationshipDeleted = "relationship.deleted"
)

// Publisher is implemented by kafka.Producer
type Publisher interface {
	PublishEntityEvent(ctx context.Context, event *kafka.EntityEvent) error
	PublishRelationshipEvents(ctx context.Context, events []*kafka.RelationshipEvent) error
}

// Emitter turns committed registry changes into events
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) Name() string {
	return "kafka"
}

// OnEntityCreated emits entity.created followed by one relationship.created
// per edge written with the entity
func (e *Emitter) OnEntityCreated(ctx context.Context, entity models.Entity, edges []models.EdgeKey) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.OnEntityCreated")
	defer span.End()

	data, err := json.Marshal(entity.Attributes)
	if err != nil {
		return err
	}

	event := &kafka.EntityEvent{
		EventType:     EventEntityCreated,
		EntityID:      entity.ID.String(),
		EntityType:    string(entity.EntityType),
		QualifiedName: entity.QualifiedName,
		Data:          data,
	}

	if err := e.publisher.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.created event")
		return err
	}

	if err := e.publisher.PublishRelationshipEvents(ctx, relationshipEvents(EventRelationshipCreated, edges)); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit relationship.created events")
		return err
	}

	return nil
}

// OnEntityDeleted emits entity.deleted followed by relationship.deleted for
// every edge purged with the entity
func (e *Emitter) OnEntityDeleted(ctx context.Context, entity models.Entity, edges []models.EdgeKey) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.OnEntityDeleted")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType:     EventEntityDeleted,
		EntityID:      entity.ID.String(),
		EntityType:    string(entity.EntityType),
		QualifiedName: entity.QualifiedName,
	}

	if err := e.publisher.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.deleted event")
		return err
	}

	if err := e.publisher.PublishRelationshipEvents(ctx, relationshipEvents(EventRelationshipDeleted, edges)); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit relationship.deleted events")
		return err
	}

	return nil
}

func relationshipEvents(eventType string, edges []models.EdgeKey) []*kafka.RelationshipEvent {
	events := make([]*kafka.RelationshipEvent, 0, len(edges))
	for _, edge := range edges {
		events = append(events, &kafka.RelationshipEvent{
			EventType:        eventType,
			RelationshipType: string(edge.RelationshipType),
			FromEntityID:     edge.FromID.String(),
			ToEntityID:       edge.ToID.String(),
		})
	}
	return events
}
