package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeWriter struct {
	batches [][]Statement
	err     error
}

func (w *fakeWriter) Write(_ context.Context, statements ...Statement) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, statements)
	return nil
}

func TestProjector_OnEntityCreated(t *testing.T) {
	w := &fakeWriter{}
	p := NewProjector(w, testutil.NewLogger())

	project, anchor, source := uuid.New(), uuid.New(), uuid.New()
	entity := models.Entity{
		ID:            anchor,
		QualifiedName: "p1__a1",
		EntityType:    models.EntityTypeAnchor,
		Attributes:    &models.AnchorAttributes{Name: "a1"},
	}
	edges := append(
		models.EdgePair(project, anchor, models.RelationshipContains),
		models.EdgePair(anchor, source, models.RelationshipConsumes)...,
	)

	require.NoError(t, p.OnEntityCreated(context.Background(), entity, edges))
	require.Len(t, w.batches, 1)

	batch := w.batches[0]
	require.Len(t, batch, 5)
	assert.Contains(t, batch[0].Cypher, "SET e:Anchor")
	assert.Equal(t, "p1__a1", batch[0].Params["qualified_name"])
	assert.Equal(t, "a1", batch[0].Params["name"])

	wantTypes := []string{"Contains", "BelongsTo", "Consumes", "Produces"}
	for i, rel := range wantTypes {
		assert.Contains(t, batch[i+1].Cypher, "[:"+rel+"]")
	}
	assert.Equal(t, anchor.String(), batch[3].Params["from"])
	assert.Equal(t, source.String(), batch[3].Params["to"])
}

func TestProjector_RejectsUnknownRelationship(t *testing.T) {
	w := &fakeWriter{}
	p := NewProjector(w, testutil.NewLogger())

	err := p.OnEntityCreated(context.Background(), models.Entity{ID: uuid.New(), EntityType: models.EntityTypeSource},
		[]models.EdgeKey{{FromID: uuid.New(), ToID: uuid.New(), RelationshipType: "X]->() DETACH DELETE n //"}})
	require.Error(t, err)
	assert.Empty(t, w.batches)
}

func TestProjector_OnEntityDeleted(t *testing.T) {
	t.Run("detaches the node", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewProjector(w, testutil.NewLogger())
		id := uuid.New()

		require.NoError(t, p.OnEntityDeleted(context.Background(), models.Entity{ID: id}, nil))
		require.Len(t, w.batches, 1)
		assert.Contains(t, w.batches[0][0].Cypher, "DETACH DELETE")
		assert.Equal(t, id.String(), w.batches[0][0].Params["id"])
	})

	t.Run("writer errors are wrapped", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("bolt closed")}
		p := NewProjector(w, testutil.NewLogger())

		err := p.OnEntityDeleted(context.Background(), models.Entity{ID: uuid.New()}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bolt closed")
	})
}
