package models

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// QualifiedNameSeparator joins a parent's qualified name and a local name.
const QualifiedNameSeparator = "__"

// MaxQualifiedNameLength is the width of the qualified_name column.
const MaxQualifiedNameLength = 255

// QualifiedName derives a child's qualified name from its parent's.
func QualifiedName(parent, name string) string {
	return parent + QualifiedNameSeparator + name
}

type ProjectDef struct {
	Name string            `json:"name" validate:"required,max=255"`
	Tags map[string]string `json:"tags"`
}

func (d ProjectDef) ToAttributes() *ProjectAttributes {
	return &ProjectAttributes{
		QualifiedName: d.Name,
		Name:          d.Name,
		Tags:          d.Tags,
	}
}

type SourceDef struct {
	Name                 string            `json:"name" validate:"required,max=255"`
	Type                 string            `json:"type" validate:"required"`
	Path                 string            `json:"path"`
	Preprocessing        string            `json:"preprocessing"`
	EventTimestampColumn string            `json:"eventTimestampColumn"`
	TimestampFormat      string            `json:"timestampFormat"`
	Options              map[string]any    `json:"options"`
	Tags                 map[string]string `json:"tags"`
}

func (d SourceDef) ToAttributes(qualifiedName string) *SourceAttributes {
	return &SourceAttributes{
		QualifiedName:        qualifiedName,
		Name:                 d.Name,
		Type:                 d.Type,
		Path:                 d.Path,
		Preprocessing:        d.Preprocessing,
		EventTimestampColumn: d.EventTimestampColumn,
		TimestampFormat:      d.TimestampFormat,
		Options:              d.Options,
		Tags:                 d.Tags,
	}
}

// Matches reports whether an existing source was created from an equivalent definition.
func (d SourceDef) Matches(a *SourceAttributes) bool {
	return a.Name == d.Name &&
		a.Type == d.Type &&
		a.Path == d.Path &&
		a.Preprocessing == d.Preprocessing &&
		a.EventTimestampColumn == d.EventTimestampColumn &&
		a.TimestampFormat == d.TimestampFormat &&
		sameJSON(a.Options, d.Options)
}

type AnchorDef struct {
	Name     string            `json:"name" validate:"required,max=255"`
	SourceID uuid.UUID         `json:"sourceId" validate:"required"`
	Tags     map[string]string `json:"tags"`
}

func (d AnchorDef) ToAttributes(qualifiedName string, source EntityRef) *AnchorAttributes {
	return &AnchorAttributes{
		QualifiedName: qualifiedName,
		Name:          d.Name,
		Source:        &source,
		Tags:          d.Tags,
	}
}

func (d AnchorDef) Matches(a *AnchorAttributes) bool {
	return a.Name == d.Name && a.Source != nil && a.Source.ID == d.SourceID
}

type AnchorFeatureDef struct {
	Name           string            `json:"name" validate:"required,max=255"`
	FeatureType    FeatureType       `json:"featureType"`
	Transformation Transformation    `json:"transformation"`
	Key            []TypedKey        `json:"key" validate:"dive"`
	Tags           map[string]string `json:"tags"`
}

func (d AnchorFeatureDef) ToAttributes(qualifiedName string) *AnchorFeatureAttributes {
	return &AnchorFeatureAttributes{
		QualifiedName:  qualifiedName,
		Name:           d.Name,
		Type:           d.FeatureType,
		Transformation: d.Transformation,
		Key:            d.Key,
		Tags:           d.Tags,
	}
}

func (d AnchorFeatureDef) Matches(a *AnchorFeatureAttributes) bool {
	return a.Name == d.Name &&
		sameJSON(a.Type, d.FeatureType) &&
		sameJSON(a.Transformation, d.Transformation) &&
		sameJSON(a.Key, d.Key)
}

type DerivedFeatureDef struct {
	Name                 string            `json:"name" validate:"required,max=255"`
	FeatureType          FeatureType       `json:"featureType"`
	Transformation       Transformation    `json:"transformation"`
	Key                  []TypedKey        `json:"key" validate:"dive"`
	InputAnchorFeatures  []uuid.UUID       `json:"inputAnchorFeatures"`
	InputDerivedFeatures []uuid.UUID       `json:"inputDerivedFeatures"`
	Tags                 map[string]string `json:"tags"`
}

func (d DerivedFeatureDef) ToAttributes(qualifiedName string, anchorInputs, derivedInputs []EntityRef) *DerivedFeatureAttributes {
	return &DerivedFeatureAttributes{
		QualifiedName:        qualifiedName,
		Name:                 d.Name,
		Type:                 d.FeatureType,
		Transformation:       d.Transformation,
		Key:                  d.Key,
		InputAnchorFeatures:  anchorInputs,
		InputDerivedFeatures: derivedInputs,
		Tags:                 d.Tags,
	}
}

func (d DerivedFeatureDef) Matches(a *DerivedFeatureAttributes) bool {
	return a.Name == d.Name &&
		sameJSON(a.Type, d.FeatureType) &&
		sameJSON(a.Transformation, d.Transformation) &&
		sameJSON(a.Key, d.Key) &&
		sameIDs(refIDs(a.InputAnchorFeatures), d.InputAnchorFeatures) &&
		sameIDs(refIDs(a.InputDerivedFeatures), d.InputDerivedFeatures)
}

// sameJSON compares two values by their JSON encoding, treating empty
// collections and null as equal.
func sameJSON(a, b any) bool {
	return bytes.Equal(canonicalJSON(a), canonicalJSON(b))
}

func canonicalJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	switch string(data) {
	case "[]", "{}":
		return []byte("null")
	}
	return data
}

func refIDs(refs []EntityRef) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids
}

// sameIDs compares two id lists as sets.
func sameIDs(a, b []uuid.UUID) bool {
	a, b = uniqueSorted(a), uniqueSorted(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	out := UniqueIDs(ids)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// UniqueIDs drops repeated ids, keeping first-seen order.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
