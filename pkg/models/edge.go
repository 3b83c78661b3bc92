package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

type RelationshipType string

const (
	RelationshipContains  RelationshipType = "Contains"
	RelationshipBelongsTo RelationshipType = "BelongsTo"
	RelationshipConsumes  RelationshipType = "Consumes"
	RelationshipProduces  RelationshipType = "Produces"
)

func (r RelationshipType) Valid() bool {
	switch r {
	case RelationshipContains, RelationshipBelongsTo, RelationshipConsumes, RelationshipProduces:
		return true
	}
	return false
}

// Inverse returns the relationship stored on the reverse edge of a pair.
func (r RelationshipType) Inverse() RelationshipType {
	switch r {
	case RelationshipContains:
		return RelationshipBelongsTo
	case RelationshipBelongsTo:
		return RelationshipContains
	case RelationshipConsumes:
		return RelationshipProduces
	case RelationshipProduces:
		return RelationshipConsumes
	}
	return r
}

// Edge is a directed, typed arc between two entities.
type Edge struct {
	ID               uuid.UUID        `json:"relationshipId" db:"edge_id"`
	FromID           uuid.UUID        `json:"fromEntityId" db:"from_id"`
	ToID             uuid.UUID        `json:"toEntityId" db:"to_id"`
	RelationshipType RelationshipType `json:"relationshipType" db:"conn_type"`
}

// EdgeKey identifies an edge by its endpoints and type, ignoring its id.
type EdgeKey struct {
	FromID           uuid.UUID
	ToID             uuid.UUID
	RelationshipType RelationshipType
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{FromID: e.FromID, ToID: e.ToID, RelationshipType: e.RelationshipType}
}

// EdgePair returns the edge from -> to of type rel together with its inverse.
func EdgePair(from, to uuid.UUID, rel RelationshipType) []EdgeKey {
	return []EdgeKey{
		{FromID: from, ToID: to, RelationshipType: rel},
		{FromID: to, ToID: from, RelationshipType: rel.Inverse()},
	}
}

// EntitiesAndRelations is a subgraph: entities plus the edges connecting them.
type EntitiesAndRelations struct {
	Entities  []Entity
	Relations []Edge
}

// NewEntitiesAndRelations builds a subgraph, dropping duplicate entities and
// duplicate edges while keeping first-seen order.
func NewEntitiesAndRelations(entities []Entity, relations []Edge) *EntitiesAndRelations {
	result := &EntitiesAndRelations{
		Entities:  make([]Entity, 0, len(entities)),
		Relations: make([]Edge, 0, len(relations)),
	}

	seenEntities := make(map[uuid.UUID]bool, len(entities))
	for _, e := range entities {
		if seenEntities[e.ID] {
			continue
		}
		seenEntities[e.ID] = true
		result.Entities = append(result.Entities, e)
	}

	seenEdges := make(map[EdgeKey]bool, len(relations))
	for _, edge := range relations {
		if seenEdges[edge.Key()] {
			continue
		}
		seenEdges[edge.Key()] = true
		result.Relations = append(result.Relations, edge)
	}

	return result
}

// Entity returns the member with the given id.
func (er *EntitiesAndRelations) Entity(id uuid.UUID) (Entity, bool) {
	for _, e := range er.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// HasEdge reports whether the subgraph holds from -> to of type rel.
func (er *EntitiesAndRelations) HasEdge(from, to uuid.UUID, rel RelationshipType) bool {
	for _, edge := range er.Relations {
		if edge.FromID == from && edge.ToID == to && edge.RelationshipType == rel {
			return true
		}
	}
	return false
}

type entitiesAndRelationsJSON struct {
	GUIDEntityMap map[uuid.UUID]Entity `json:"guidEntityMap"`
	Relations     []Edge               `json:"relations"`
}

func (er EntitiesAndRelations) MarshalJSON() ([]byte, error) {
	out := entitiesAndRelationsJSON{
		GUIDEntityMap: make(map[uuid.UUID]Entity, len(er.Entities)),
		Relations:     er.Relations,
	}
	for _, e := range er.Entities {
		out.GUIDEntityMap[e.ID] = e
	}
	if out.Relations == nil {
		out.Relations = []Edge{}
	}
	return json.Marshal(out)
}

func (er *EntitiesAndRelations) UnmarshalJSON(data []byte) error {
	var in entitiesAndRelationsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	er.Entities = make([]Entity, 0, len(in.GUIDEntityMap))
	for _, e := range in.GUIDEntityMap {
		er.Entities = append(er.Entities, e)
	}
	er.Relations = in.Relations
	return nil
}
