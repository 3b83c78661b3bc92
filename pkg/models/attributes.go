package models

import (
	"encoding/json"
	"fmt"
)

// Attributes is the type-specific payload of an Entity. It is implemented only
// by the five attribute structs in this package; switch on Entity.EntityType to
// reach the concrete value.
type Attributes interface {
	Kind() EntityType
	GetName() string
}

// ProjectAttributes. The member lists are filled at read time and never stored.
type ProjectAttributes struct {
	QualifiedName   string            `json:"qualifiedName"`
	Name            string            `json:"name"`
	Tags            map[string]string `json:"tags,omitempty"`
	Anchors         []EntityRef       `json:"anchors,omitempty"`
	Sources         []EntityRef       `json:"sources,omitempty"`
	AnchorFeatures  []EntityRef       `json:"anchor_features,omitempty"`
	DerivedFeatures []EntityRef       `json:"derived_features,omitempty"`
}

type SourceAttributes struct {
	QualifiedName        string            `json:"qualifiedName"`
	Name                 string            `json:"name"`
	Type                 string            `json:"type"`
	Path                 string            `json:"path,omitempty"`
	Preprocessing        string            `json:"preprocessing,omitempty"`
	EventTimestampColumn string            `json:"eventTimestampColumn,omitempty"`
	TimestampFormat      string            `json:"timestampFormat,omitempty"`
	Options              map[string]any    `json:"options,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

// AnchorAttributes stores the reference to the consumed source. Features is
// filled at read time.
type AnchorAttributes struct {
	QualifiedName string            `json:"qualifiedName"`
	Name          string            `json:"name"`
	Source        *EntityRef        `json:"source,omitempty"`
	Features      []EntityRef       `json:"features,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type AnchorFeatureAttributes struct {
	QualifiedName  string            `json:"qualifiedName"`
	Name           string            `json:"name"`
	Type           FeatureType       `json:"type"`
	Transformation Transformation    `json:"transformation"`
	Key            []TypedKey        `json:"key,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// DerivedFeatureAttributes stores references to the inputs resolved at
// creation. InputFeatures is filled at read time from the Consumes edges.
type DerivedFeatureAttributes struct {
	QualifiedName        string            `json:"qualifiedName"`
	Name                 string            `json:"name"`
	Type                 FeatureType       `json:"type"`
	Transformation       Transformation    `json:"transformation"`
	Key                  []TypedKey        `json:"key,omitempty"`
	InputAnchorFeatures  []EntityRef       `json:"inputAnchorFeatures,omitempty"`
	InputDerivedFeatures []EntityRef       `json:"inputDerivedFeatures,omitempty"`
	InputFeatures        []EntityRef       `json:"inputFeatures,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

func (*ProjectAttributes) Kind() EntityType        { return EntityTypeProject }
func (*SourceAttributes) Kind() EntityType         { return EntityTypeSource }
func (*AnchorAttributes) Kind() EntityType         { return EntityTypeAnchor }
func (*AnchorFeatureAttributes) Kind() EntityType  { return EntityTypeAnchorFeature }
func (*DerivedFeatureAttributes) Kind() EntityType { return EntityTypeDerivedFeature }

func (a *ProjectAttributes) GetName() string        { return a.Name }
func (a *SourceAttributes) GetName() string         { return a.Name }
func (a *AnchorAttributes) GetName() string         { return a.Name }
func (a *AnchorFeatureAttributes) GetName() string  { return a.Name }
func (a *DerivedFeatureAttributes) GetName() string { return a.Name }

// DecodeAttributes parses a stored attribute document into the struct owned by t.
func DecodeAttributes(t EntityType, data []byte) (Attributes, error) {
	var attrs Attributes
	switch t {
	case EntityTypeProject:
		attrs = &ProjectAttributes{}
	case EntityTypeSource:
		attrs = &SourceAttributes{}
	case EntityTypeAnchor:
		attrs = &AnchorAttributes{}
	case EntityTypeAnchorFeature:
		attrs = &AnchorFeatureAttributes{}
	case EntityTypeDerivedFeature:
		attrs = &DerivedFeatureAttributes{}
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}

	if len(data) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(data, attrs); err != nil {
		return nil, fmt.Errorf("failed to decode %s attributes: %w", t.Label(), err)
	}
	return attrs, nil
}

// EncodeAttributes serializes attributes for storage.
func EncodeAttributes(attrs Attributes) (string, error) {
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s attributes: %w", attrs.Kind().Label(), err)
	}
	return string(data), nil
}
