package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EntityType is the closed set of node kinds stored in the registry. The values
// are the type names persisted in the entities table.
type EntityType string

const (
	EntityTypeProject        EntityType = "feathr_workspace_v1"
	EntityTypeSource         EntityType = "feathr_source_v1"
	EntityTypeAnchor         EntityType = "feathr_anchor_v1"
	EntityTypeAnchorFeature  EntityType = "feathr_anchor_feature_v1"
	EntityTypeDerivedFeature EntityType = "feathr_derived_feature_v1"
)

// EntityTypes lists every kind, in creation order.
var EntityTypes = []EntityType{
	EntityTypeProject,
	EntityTypeSource,
	EntityTypeAnchor,
	EntityTypeAnchorFeature,
	EntityTypeDerivedFeature,
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeProject, EntityTypeSource, EntityTypeAnchor, EntityTypeAnchorFeature, EntityTypeDerivedFeature:
		return true
	}
	return false
}

// IsFeature reports whether t is an anchor or derived feature.
func (t EntityType) IsFeature() bool {
	return t == EntityTypeAnchorFeature || t == EntityTypeDerivedFeature
}

// Label is the short human name of the kind.
func (t EntityType) Label() string {
	switch t {
	case EntityTypeProject:
		return "Project"
	case EntityTypeSource:
		return "Source"
	case EntityTypeAnchor:
		return "Anchor"
	case EntityTypeAnchorFeature:
		return "AnchorFeature"
	case EntityTypeDerivedFeature:
		return "DerivedFeature"
	}
	return string(t)
}

// ParseEntityType accepts either the persisted type name or the short label.
func ParseEntityType(value string) (EntityType, error) {
	for _, t := range EntityTypes {
		if value == string(t) || value == t.Label() {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", value)
}

// Entity is a typed registry node. Attributes always holds the concrete
// attribute struct matching EntityType.
type Entity struct {
	ID            uuid.UUID  `json:"guid"`
	QualifiedName string     `json:"displayText"`
	EntityType    EntityType `json:"typeName"`
	Attributes    Attributes `json:"attributes"`
}

// Ref returns the lightweight reference to e.
func (e Entity) Ref() EntityRef {
	return EntityRef{
		ID:            e.ID,
		EntityType:    e.EntityType,
		QualifiedName: e.QualifiedName,
	}
}

// EntityStatusActive is reported for every stored entity; deletion removes rows.
const EntityStatusActive = "ACTIVE"

func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            uuid.UUID  `json:"guid"`
		QualifiedName string     `json:"displayText"`
		EntityType    EntityType `json:"typeName"`
		Status        string     `json:"status"`
		Attributes    Attributes `json:"attributes"`
	}{
		ID:            e.ID,
		QualifiedName: e.QualifiedName,
		EntityType:    e.EntityType,
		Status:        EntityStatusActive,
		Attributes:    e.Attributes,
	})
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            uuid.UUID       `json:"guid"`
		QualifiedName string          `json:"displayText"`
		EntityType    EntityType      `json:"typeName"`
		Attributes    json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	attrs, err := DecodeAttributes(raw.EntityType, raw.Attributes)
	if err != nil {
		return err
	}

	e.ID = raw.ID
	e.QualifiedName = raw.QualifiedName
	e.EntityType = raw.EntityType
	e.Attributes = attrs
	return nil
}

// EntityRef identifies an entity without its attributes.
type EntityRef struct {
	ID            uuid.UUID  `json:"guid" db:"entity_id"`
	EntityType    EntityType `json:"typeName" db:"entity_type"`
	QualifiedName string     `json:"qualifiedName" db:"qualified_name"`
}

// Refs maps entities to their references.
func Refs(entities []Entity) []EntityRef {
	refs := make([]EntityRef, 0, len(entities))
	for _, e := range entities {
		refs = append(refs, e.Ref())
	}
	return refs
}
