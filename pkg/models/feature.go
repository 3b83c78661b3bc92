package models

import "errors"

// FeatureType describes the tensor produced by a feature.
type FeatureType struct {
	Type           string   `json:"type" validate:"required" yaml:"type"`
	TensorCategory string   `json:"tensorCategory,omitempty" yaml:"tensorCategory,omitempty"`
	DimensionType  []string `json:"dimensionType,omitempty" yaml:"dimensionType,omitempty"`
	ValType        string   `json:"valType,omitempty" yaml:"valType,omitempty"`
}

type TransformationKind string

const (
	TransformationExpression        TransformationKind = "expression"
	TransformationWindowAggregation TransformationKind = "window_aggregation"
	TransformationUDF               TransformationKind = "udf"
)

// Transformation is one of three shapes: a row expression (TransformExpr), a
// sliding window aggregation (DefExpr plus window fields) or a named UDF (Name).
type Transformation struct {
	TransformExpr string `json:"transformExpr,omitempty" yaml:"transformExpr,omitempty"`
	DefExpr       string `json:"defExpr,omitempty" yaml:"defExpr,omitempty"`
	AggFunc       string `json:"aggFunc,omitempty" yaml:"aggFunc,omitempty"`
	Window        string `json:"window,omitempty" yaml:"window,omitempty"`
	GroupBy       string `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Filter        string `json:"filter,omitempty" yaml:"filter,omitempty"`
	Limit         *int   `json:"limit,omitempty" yaml:"limit,omitempty"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
}

var ErrAmbiguousTransformation = errors.New("transformation must set exactly one of transformExpr, defExpr or name")

// Kind returns the variant, or an error when zero or several are set.
func (t Transformation) Kind() (TransformationKind, error) {
	var kinds []TransformationKind
	if t.TransformExpr != "" {
		kinds = append(kinds, TransformationExpression)
	}
	if t.DefExpr != "" {
		kinds = append(kinds, TransformationWindowAggregation)
	}
	if t.Name != "" {
		kinds = append(kinds, TransformationUDF)
	}
	if len(kinds) != 1 {
		return "", ErrAmbiguousTransformation
	}
	return kinds[0], nil
}

// TypedKey is one column of a feature's entity key.
type TypedKey struct {
	KeyColumn      string `json:"keyColumn" validate:"required" yaml:"keyColumn"`
	KeyColumnType  string `json:"keyColumnType" validate:"required" yaml:"keyColumnType"`
	FullName       string `json:"fullName,omitempty" yaml:"fullName,omitempty"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	KeyColumnAlias string `json:"keyColumnAlias,omitempty" yaml:"keyColumnAlias,omitempty"`
}
