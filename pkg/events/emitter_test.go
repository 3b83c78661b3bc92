package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

type fakePublisher struct {
	entities      []*kafka.EntityEvent
	relationships []*kafka.RelationshipEvent
	err           error
}

func (p *fakePublisher) PublishEntityEvent(_ context.Context, event *kafka.EntityEvent) error {
	if p.err != nil {
		return p.err
	}
	p.entities = append(p.entities, event)
	return nil
}

func (p *fakePublisher) PublishRelationshipEvents(_ context.Context, events []*kafka.RelationshipEvent) error {
	if p.err != nil {
		return p.err
	}
	p.relationships = append(p.relationships, events...)
	return nil
}

var _ registry.Observer = (*Emitter)(nil)

func TestEmitter_OnEntityCreated(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEmitter(pub, testutil.NewLogger())

	project, source := uuid.New(), uuid.New()
	entity := models.Entity{
		ID:            source,
		QualifiedName: "p1__s1",
		EntityType:    models.EntityTypeSource,
		Attributes:    &models.SourceAttributes{QualifiedName: "p1__s1", Name: "s1", Type: "hdfs"},
	}

	require.NoError(t, e.OnEntityCreated(context.Background(), entity, models.EdgePair(project, source, models.RelationshipContains)))

	require.Len(t, pub.entities, 1)
	assert.Equal(t, EventEntityCreated, pub.entities[0].EventType)
	assert.Equal(t, source.String(), pub.entities[0].EntityID)
	assert.JSONEq(t, `{"qualifiedName":"p1__s1","name":"s1","type":"hdfs"}`, string(pub.entities[0].Data))

	require.Len(t, pub.relationships, 2)
	assert.Equal(t, "Contains", pub.relationships[0].RelationshipType)
	assert.Equal(t, project.String(), pub.relationships[0].FromEntityID)
	assert.Equal(t, "BelongsTo", pub.relationships[1].RelationshipType)
}

func TestEmitter_OnEntityDeleted(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEmitter(pub, testutil.NewLogger())

	project, id := uuid.New(), uuid.New()
	edges := models.EdgePair(project, id, models.RelationshipContains)
	require.NoError(t, e.OnEntityDeleted(context.Background(), models.Entity{ID: id, EntityType: models.EntityTypeAnchor, QualifiedName: "p1__a1"}, edges))

	require.Len(t, pub.entities, 1)
	assert.Equal(t, EventEntityDeleted, pub.entities[0].EventType)
	assert.Equal(t, "p1__a1", pub.entities[0].QualifiedName)
	assert.Empty(t, pub.entities[0].Data)

	require.Len(t, pub.relationships, 2)
	for _, ev := range pub.relationships {
		assert.Equal(t, EventRelationshipDeleted, ev.EventType)
	}
	assert.Equal(t, project.String(), pub.relationships[0].FromEntityID)
	assert.Equal(t, id.String(), pub.relationships[0].ToEntityID)
}

func TestEmitter_RegistryIntegration(t *testing.T) {
	pub := &fakePublisher{}
	db := testutil.NewTestDB(t)
	s := registry.NewService(db, testutil.NewLogger(), registry.WithObserver(NewEmitter(pub, testutil.NewLogger())))
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.ProjectDef{Name: "p1"})
	require.NoError(t, err)
	_, err = s.CreateProjectDatasource(ctx, project, models.SourceDef{Name: "s1", Type: "hdfs"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteEntity(ctx, "p1__s1"))

	var types []string
	for _, ev := range pub.entities {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []string{EventEntityCreated, EventEntityCreated, EventEntityDeleted}, types)

	var relationships []string
	for _, ev := range pub.relationships {
		relationships = append(relationships, ev.EventType+" "+ev.RelationshipType)
	}
	require.Len(t, relationships, 4)
	assert.Equal(t, []string{EventRelationshipCreated + " Contains", EventRelationshipCreated + " BelongsTo"}, relationships[:2])
	assert.ElementsMatch(t, []string{EventRelationshipDeleted + " Contains", EventRelationshipDeleted + " BelongsTo"}, relationships[2:])

	t.Run("publisher failure does not fail the registry", func(t *testing.T) {
		pub.err = errors.New("broker down")
		_, err := s.CreateProjectDatasource(ctx, project, models.SourceDef{Name: "s2", Type: "hdfs"})
		assert.NoError(t, err)
	})
}
