package projects

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/internal/testutil/apitest"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer(t)
	NewHandler(srv.Registry, testutil.NewLogger()).Register(srv.Group)
	return srv
}

func create(t *testing.T, srv *apitest.Server, path string, body any) uuid.UUID {
	t.Helper()
	rec := srv.Do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := apitest.Decode[models.CreatedResponse](t, rec)
	id, err := uuid.Parse(resp.GUID)
	require.NoError(t, err)
	return id
}

type seeded struct {
	project, source, anchor, feature, derived uuid.UUID
}

func seed(t *testing.T, srv *apitest.Server) seeded {
	t.Helper()
	var s seeded
	s.project = create(t, srv, "/projects", map[string]any{"name": "p1"})
	s.source = create(t, srv, "/projects/p1/datasources", map[string]any{
		"name": "s1",
		"type": "hdfs",
		"path": "/data/s1",
	})
	s.anchor = create(t, srv, "/projects/p1/anchors", map[string]any{
		"name":     "a1",
		"sourceId": s.source,
	})
	s.feature = create(t, srv, "/projects/p1/anchors/p1__a1/features", map[string]any{
		"name":           "user_rate",
		"featureType":    map[string]any{"type": "TENSOR"},
		"transformation": map[string]any{"transformExpr": "rate"},
	})
	s.derived = create(t, srv, "/projects/p1/derivedfeatures", map[string]any{
		"name":                "user_rate_x2",
		"featureType":         map[string]any{"type": "TENSOR"},
		"transformation":      map[string]any{"transformExpr": "user_rate * 2"},
		"inputAnchorFeatures": []uuid.UUID{s.feature},
	})
	return s
}

func TestProjectRoutes(t *testing.T) {
	srv := newServer(t)
	s := seed(t, srv)

	t.Run("list", func(t *testing.T) {
		rec := srv.Do(t, http.MethodGet, "/projects", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"p1"}, apitest.Decode[[]string](t, rec))
	})

	t.Run("list ids", func(t *testing.T) {
		rec := srv.Do(t, http.MethodGet, "/projects-ids", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		ids := apitest.Decode[map[string]string](t, rec)
		assert.Equal(t, map[string]string{s.project.String(): "p1"}, ids)
	})

	t.Run("get by name and id", func(t *testing.T) {
		for _, ref := range []string{"p1", s.project.String()} {
			rec := srv.Do(t, http.MethodGet, "/projects/"+ref, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			result := apitest.Decode[models.EntitiesAndRelations](t, rec)
			assert.Len(t, result.Entities, 5)
			assert.True(t, result.HasEdge(s.derived, s.feature, models.RelationshipConsumes))
		}
	})

	t.Run("get unknown project", func(t *testing.T) {
		rec := srv.Do(t, http.MethodGet, "/projects/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("create is idempotent", func(t *testing.T) {
		id := create(t, srv, "/projects", map[string]any{"name": "p1"})
		assert.Equal(t, s.project, id)
	})

	t.Run("reserved project name", func(t *testing.T) {
		rec := srv.Do(t, http.MethodPost, "/projects", map[string]any{"name": "Global"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := srv.Do(t, http.MethodPost, "/projects", "not an object")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDatasourceRoutes(t *testing.T) {
	srv := newServer(t)
	s := seed(t, srv)

	t.Run("list", func(t *testing.T) {
		rec := srv.Do(t, http.MethodGet, "/projects/p1/datasources", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		sources := apitest.Decode[[]models.Entity](t, rec)
		require.Len(t, sources, 1)
		assert.Equal(t, "p1__s1", sources[0].QualifiedName)
		assert.Equal(t, models.EntityTypeSource, sources[0].EntityType)
	})

	t.Run("get member", func(t *testing.T) {
		rec := srv.Do(t, http.MethodGet, "/projects/p1/datasources/"+s.source.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		source := apitest.Decode[models.Entity](t, rec)
		assert.Equal(t, s.source, source.ID)
	})

	t.Run("get source of another project", func(t *testing.T) {
		create(t, srv, "/projects", map[string]any{"name": "p2"})
		rec := srv.Do(t, http.MethodGet, "/projects/p2/datasources/"+s.source.String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("conflicting definition", func(t *testing.T) {
		rec := srv.Do(t, http.MethodPost, "/projects/p1/datasources", map[string]any{
			"name": "s1",
			"type": "hdfs",
			"path": "/data/other",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := apitest.Decode[apitest.ErrorBody](t, rec)
		assert.NotEmpty(t, body.Message)
		assert.NotEmpty(t, body.RequestID)
	})
}

func TestFeatureListing(t *testing.T) {
	srv := newServer(t)
	seed(t, srv)
	for i := 0; i < 3; i++ {
		create(t, srv, "/projects/p1/anchors/p1__a1/features", map[string]any{
			"name":           fmt.Sprintf("click_%d", i),
			"featureType":    map[string]any{"type": "TENSOR"},
			"transformation": map[string]any{"transformExpr": "clicks"},
		})
	}

	names := func(entities []models.Entity) []string {
		out := make([]string, 0, len(entities))
		for _, e := range entities {
			out = append(out, e.QualifiedName)
		}
		return out
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []string
	}{
		{
			name:       "all features without keyword",
			query:      "",
			wantStatus: http.StatusOK,
			want:       []string{"p1__a1__user_rate", "p1__a1__click_0", "p1__a1__click_1", "p1__a1__click_2", "p1__user_rate_x2"},
		},
		{
			name:       "keyword",
			query:      "?keyword=RATE",
			wantStatus: http.StatusOK,
			want:       []string{"p1__a1__user_rate", "p1__user_rate_x2"},
		},
		{
			name:       "first page",
			query:      "?keyword=click&page=1&limit=2",
			wantStatus: http.StatusOK,
			want:       []string{"p1__a1__click_0", "p1__a1__click_1"},
		},
		{
			name:       "second page",
			query:      "?keyword=click&page=2&limit=2",
			wantStatus: http.StatusOK,
			want:       []string{"p1__a1__click_1", "p1__a1__click_2"},
		},
		{
			name:       "filter",
			query:      "?filter=" + url.QueryEscape("attributes.transformation.transformExpr == 'clicks'"),
			wantStatus: http.StatusOK,
			want:       []string{"p1__a1__click_0", "p1__a1__click_1", "p1__a1__click_2"},
		},
		{
			name:       "keyword and filter",
			query:      "?keyword=rate&filter=" + url.QueryEscape("typeName == 'feathr_derived_feature_v1'"),
			wantStatus: http.StatusOK,
			want:       []string{"p1__user_rate_x2"},
		},
		{
			name:       "invalid filter",
			query:      "?filter=" + url.QueryEscape("attributes.["),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid page",
			query:      "?keyword=click&page=0&limit=2",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.Do(t, http.MethodGet, "/projects/p1/features"+tt.query, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.ElementsMatch(t, tt.want, names(apitest.Decode[[]models.Entity](t, rec)))
		})
	}
}

func TestCreateAnchorFeature_Validation(t *testing.T) {
	srv := newServer(t)
	seed(t, srv)

	tests := []struct {
		name       string
		path       string
		body       map[string]any
		wantStatus int
	}{
		{
			name: "ambiguous transformation",
			path: "/projects/p1/anchors/p1__a1/features",
			body: map[string]any{
				"name":           "bad",
				"featureType":    map[string]any{"type": "TENSOR"},
				"transformation": map[string]any{"transformExpr": "a", "name": "udf"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown anchor",
			path: "/projects/p1/anchors/p1__missing/features",
			body: map[string]any{
				"name":           "f",
				"featureType":    map[string]any{"type": "TENSOR"},
				"transformation": map[string]any{"transformExpr": "a"},
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "missing derived input",
			path: "/projects/p1/derivedfeatures",
			body: map[string]any{
				"name":                "d",
				"featureType":         map[string]any{"type": "TENSOR"},
				"transformation":      map[string]any{"transformExpr": "a"},
				"inputAnchorFeatures": []uuid.UUID{uuid.New()},
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.Do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}
