package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// GetProjects returns the qualified names of every project.
func (s *Service) GetProjects(ctx context.Context) (names []string, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetProjects")
	defer span.End()
	defer observe("get_projects", time.Now(), &err)

	refs, err := s.entities.ListRefsByType(ctx, models.EntityTypeProject)
	if err != nil {
		return nil, err
	}

	names = make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.QualifiedName)
	}
	return names, nil
}

// GetProjectsIDs maps every project id to its name.
func (s *Service) GetProjectsIDs(ctx context.Context) (ids map[uuid.UUID]string, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetProjectsIDs")
	defer span.End()
	defer observe("get_projects_ids", time.Now(), &err)

	refs, err := s.entities.ListRefsByType(ctx, models.EntityTypeProject)
	if err != nil {
		return nil, err
	}

	ids = make(map[uuid.UUID]string, len(refs))
	for _, ref := range refs {
		ids[ref.ID] = ref.QualifiedName
	}
	return ids, nil
}

// GetEntityID returns idOrName verbatim when it parses as an id, without
// checking that it exists. Anything else is resolved as a qualified name.
func (s *Service) GetEntityID(ctx context.Context, idOrName string) (uuid.UUID, error) {
	if id, err := uuid.Parse(idOrName); err == nil {
		return id, nil
	}
	return s.entities.GetIDByQualifiedName(ctx, idOrName)
}

// GetEntity returns one entity with its graph decorations filled.
func (s *Service) GetEntity(ctx context.Context, idOrName string) (e *models.Entity, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetEntity")
	defer span.End()
	defer observe("get_entity", time.Now(), &err)

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return nil, err
	}

	e, err = s.entities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.fill(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntities returns the listed entities, filled, in the order given.
// Unknown ids are a NotFound error.
func (s *Service) GetEntities(ctx context.Context, ids []uuid.UUID) (entities []models.Entity, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetEntities")
	defer span.End()
	defer observe("get_entities", time.Now(), &err)

	entities, err = s.entities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, entities); len(missing) > 0 {
		return nil, NotFound("Entities %v not found", missing)
	}

	for i := range entities {
		if err := s.fill(ctx, &entities[i]); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// GetNeighbors returns the edges of one type leaving the entity.
func (s *Service) GetNeighbors(ctx context.Context, idOrName string, relationship models.RelationshipType) (edges []models.Edge, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetNeighbors")
	defer span.End()
	defer observe("get_neighbors", time.Now(), &err)

	if !relationship.Valid() {
		return nil, Validation("invalid relationship type %q", relationship)
	}

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return s.edges.ListFrom(ctx, []uuid.UUID{id}, relationship)
}

func (s *Service) neighborIDs(ctx context.Context, id uuid.UUID, relationship models.RelationshipType) ([]uuid.UUID, []models.Edge, error) {
	edges, err := s.edges.ListFrom(ctx, []uuid.UUID{id}, relationship)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ToID)
	}
	return ids, edges, nil
}

func (s *Service) neighborRefs(ctx context.Context, id uuid.UUID, relationship models.RelationshipType) ([]models.EntityRef, error) {
	ids, _, err := s.neighborIDs(ctx, id, relationship)
	if err != nil {
		return nil, err
	}
	entities, err := s.entities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return models.Refs(entities), nil
}

// fill sets the read-time decorations of e from its edges.
func (s *Service) fill(ctx context.Context, e *models.Entity) error {
	switch attrs := e.Attributes.(type) {
	case *models.ProjectAttributes:
		children, err := s.neighborRefs(ctx, e.ID, models.RelationshipContains)
		if err != nil {
			return err
		}
		setProjectChildren(attrs, children)
	case *models.AnchorAttributes:
		features, err := s.neighborRefs(ctx, e.ID, models.RelationshipContains)
		if err != nil {
			return err
		}
		attrs.Features = features

		sources, err := s.neighborRefs(ctx, e.ID, models.RelationshipConsumes)
		if err != nil {
			return err
		}
		if len(sources) > 0 {
			attrs.Source = &sources[0]
		}
	case *models.DerivedFeatureAttributes:
		inputs, err := s.neighborRefs(ctx, e.ID, models.RelationshipConsumes)
		if err != nil {
			return err
		}
		attrs.InputFeatures = inputs
	case *models.SourceAttributes, *models.AnchorFeatureAttributes:
	}
	return nil
}

func setProjectChildren(attrs *models.ProjectAttributes, children []models.EntityRef) {
	attrs.Anchors, attrs.Sources = nil, nil
	attrs.AnchorFeatures, attrs.DerivedFeatures = nil, nil
	for _, child := range children {
		switch child.EntityType {
		case models.EntityTypeAnchor:
			attrs.Anchors = append(attrs.Anchors, child)
		case models.EntityTypeSource:
			attrs.Sources = append(attrs.Sources, child)
		case models.EntityTypeAnchorFeature:
			attrs.AnchorFeatures = append(attrs.AnchorFeatures, child)
		case models.EntityTypeDerivedFeature:
			attrs.DerivedFeatures = append(attrs.DerivedFeatures, child)
		case models.EntityTypeProject:
		}
	}
}

func missingIDs(ids []uuid.UUID, found []models.Entity) []uuid.UUID {
	present := make(map[uuid.UUID]bool, len(found))
	for _, e := range found {
		present[e.ID] = true
	}
	var missing []uuid.UUID
	for _, id := range models.UniqueIDs(ids) {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
