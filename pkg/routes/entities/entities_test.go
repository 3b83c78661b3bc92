package entities

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/internal/testutil/apitest"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestEntityRoutes(t *testing.T) {
	srv := apitest.NewServer(t)
	NewHandler(srv.Registry, testutil.NewLogger()).Register(srv.Group)

	ctx := context.Background()
	reg := srv.Registry

	project, err := reg.CreateProject(ctx, models.ProjectDef{Name: "p1"})
	require.NoError(t, err)
	source, err := reg.CreateProjectDatasource(ctx, project, models.SourceDef{Name: "s1", Type: "hdfs"})
	require.NoError(t, err)
	anchor, err := reg.CreateProjectAnchor(ctx, project, models.AnchorDef{Name: "a1", SourceID: source})
	require.NoError(t, err)
	feature, err := reg.CreateProjectAnchorFeature(ctx, project, anchor, models.AnchorFeatureDef{
		Name:           "f1",
		FeatureType:    models.FeatureType{Type: "TENSOR"},
		Transformation: models.Transformation{TransformExpr: "x"},
	})
	require.NoError(t, err)
	derived, err := reg.CreateProjectDerivedFeature(ctx, project, models.DerivedFeatureDef{
		Name:                "d1",
		FeatureType:         models.FeatureType{Type: "TENSOR"},
		Transformation:      models.Transformation{TransformExpr: "f1 + 1"},
		InputAnchorFeatures: []uuid.UUID{feature},
	})
	require.NoError(t, err)

	t.Run("dependents", func(t *testing.T) {
		rec := srv.Do(t, http.MethodGet, "/dependent/p1__a1__f1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		dependents := apitest.Decode[[]models.Entity](t, rec)
		require.Len(t, dependents, 1)
		assert.Equal(t, derived, dependents[0].ID)
	})

	t.Run("delete blocked by dependents", func(t *testing.T) {
		rec := srv.Do(t, http.MethodDelete, "/entity/p1__a1__f1", nil)
		require.Equal(t, http.StatusPreconditionFailed, rec.Code)

		body := apitest.Decode[apitest.ErrorBody](t, rec)
		assert.Contains(t, body.Message, "p1__d1")
		assert.Contains(t, body.Meta, "dependents")

		_, err := reg.GetEntity(ctx, feature.String())
		assert.NoError(t, err)
	})

	t.Run("delete leaf then its input", func(t *testing.T) {
		rec := srv.Do(t, http.MethodDelete, "/entity/"+derived.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = srv.Do(t, http.MethodDelete, "/entity/p1__a1__f1", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		_, err := reg.GetEntity(ctx, feature.String())
		assert.Error(t, err)
	})

	t.Run("delete unknown entity", func(t *testing.T) {
		rec := srv.Do(t, http.MethodDelete, "/entity/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
