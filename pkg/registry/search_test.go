package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestSearchEntity(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	sc := seedScenario(t, s)

	for _, name := range []string{"f2", "user_age", "USER%rate"} {
		_, err := s.CreateProjectAnchorFeature(ctx, sc.project, sc.anchor, featureDef(name))
		require.NoError(t, err)
	}

	other, err := s.CreateProject(ctx, models.ProjectDef{Name: "p2"})
	require.NoError(t, err)
	otherSource, err := s.CreateProjectDatasource(ctx, other, models.SourceDef{Name: "s1", Type: "hdfs"})
	require.NoError(t, err)
	otherAnchor, err := s.CreateProjectAnchor(ctx, other, models.AnchorDef{Name: "a1", SourceID: otherSource})
	require.NoError(t, err)
	_, err = s.CreateProjectAnchorFeature(ctx, other, otherAnchor, featureDef("f1"))
	require.NoError(t, err)

	features := []models.EntityType{models.EntityTypeAnchorFeature, models.EntityTypeDerivedFeature}

	tests := []struct {
		name string
		req  models.SearchRequest
		want []string
	}{
		{
			name: "substring across projects ordered by name",
			req:  models.SearchRequest{Keyword: "f", Types: features},
			want: []string{"p1__a1__f1", "p1__a1__f2", "p2__a1__f1"},
		},
		{
			name: "case insensitive",
			req:  models.SearchRequest{Keyword: "user", Types: features},
			want: []string{"p1__a1__USER%rate", "p1__a1__user_age"},
		},
		{
			name: "like wildcards are literal",
			req:  models.SearchRequest{Keyword: "%", Types: features},
			want: []string{"p1__a1__USER%rate"},
		},
		{
			name: "underscore is literal",
			req:  models.SearchRequest{Keyword: "r_a", Types: features},
			want: []string{"p1__a1__user_age"},
		},
		{
			name: "type filter",
			req:  models.SearchRequest{Keyword: "s1", Types: []models.EntityType{models.EntityTypeSource}},
			want: []string{"p1__s1", "p2__s1"},
		},
		{
			name: "project scope by name",
			req:  models.SearchRequest{Keyword: "f1", Types: features, Project: "p2"},
			want: []string{"p2__a1__f1"},
		},
		{
			name: "project scope by id",
			req:  models.SearchRequest{Keyword: "", Types: []models.EntityType{models.EntityTypeAnchor}, Project: sc.project.String()},
			want: []string{"p1__a1"},
		},
		{
			name: "first page",
			req:  models.SearchRequest{Keyword: "p1__a1__", Types: features, Start: intPtr(0), Size: intPtr(2)},
			want: []string{"p1__a1__USER%rate", "p1__a1__f1"},
		},
		{
			name: "second page",
			req:  models.SearchRequest{Keyword: "p1__a1__", Types: features, Start: intPtr(2), Size: intPtr(2)},
			want: []string{"p1__a1__f2", "p1__a1__user_age"},
		},
		{
			name: "past the end keeps the last page",
			req:  models.SearchRequest{Keyword: "p1__a1__", Types: features, Start: intPtr(10), Size: intPtr(2)},
			want: []string{"p1__a1__f2", "p1__a1__user_age"},
		},
		{
			name: "short last page",
			req:  models.SearchRequest{Keyword: "p1__a1__", Types: features, Start: intPtr(3), Size: intPtr(2)},
			want: []string{"p1__a1__f2", "p1__a1__user_age"},
		},
		{
			name: "size larger than matches",
			req:  models.SearchRequest{Keyword: "p1__a1__", Types: features, Start: intPtr(0), Size: intPtr(10)},
			want: []string{"p1__a1__USER%rate", "p1__a1__f1", "p1__a1__f2", "p1__a1__user_age"},
		},
		{
			name: "no match",
			req:  models.SearchRequest{Keyword: "zzz", Types: features},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := s.SearchEntity(ctx, tt.req)
			require.NoError(t, err)

			names := make([]string, 0, len(refs))
			for _, ref := range refs {
				names = append(names, ref.QualifiedName)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	t.Run("unknown project", func(t *testing.T) {
		_, err := s.SearchEntity(ctx, models.SearchRequest{Keyword: "f", Project: "nope"})
		assert.True(t, IsNotFound(err))
	})

	t.Run("negative pagination", func(t *testing.T) {
		_, err := s.SearchEntity(ctx, models.SearchRequest{Keyword: "f", Start: intPtr(-1), Size: intPtr(2)})
		assert.True(t, IsValidation(err))
	})
}
