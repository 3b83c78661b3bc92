package filter

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func feature(name, team string) models.Entity {
	return models.Entity{
		ID:            uuid.New(),
		QualifiedName: "p1__a1__" + name,
		EntityType:    models.EntityTypeAnchorFeature,
		Attributes: &models.AnchorFeatureAttributes{
			QualifiedName:  "p1__a1__" + name,
			Name:           name,
			Type:           models.FeatureType{Type: "TENSOR", ValType: "FLOAT"},
			Transformation: models.Transformation{TransformExpr: name},
			Tags:           map[string]string{"team": team},
		},
	}
}

func TestMatch(t *testing.T) {
	e := NewEvaluator()
	f := feature("clicks", "growth")

	tests := []struct {
		name       string
		expression string
		want       bool
		wantErr    bool
	}{
		{name: "tag equality", expression: "attributes.tags.team == 'growth'", want: true},
		{name: "tag mismatch", expression: "attributes.tags.team == 'risk'", want: false},
		{name: "nested field present", expression: "attributes.type.valType", want: true},
		{name: "missing field", expression: "attributes.window", want: false},
		{name: "type name", expression: "typeName == 'feathr_anchor_feature_v1'", want: true},
		{name: "function", expression: "starts_with(displayText, 'p1__a1')", want: true},
		{name: "invalid", expression: "attributes.[", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Match(tt.expression, f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect(t *testing.T) {
	e := NewEvaluator()
	entities := []models.Entity{feature("a", "risk"), feature("b", "growth"), feature("c", "risk")}

	selected, err := e.Select("attributes.tags.team == 'risk'", entities)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, entities[0].ID, selected[0].ID)
	assert.Equal(t, entities[2].ID, selected[1].ID)

	require.NoError(t, e.Validate("attributes.name"))
	assert.Error(t, e.Validate("attributes.["))
}
