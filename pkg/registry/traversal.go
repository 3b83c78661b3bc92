package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// bfs walks edges of one relationship type from start with no depth limit.
// The result holds every entity reached, start included, and every edge
// crossed. Visited ids are never expanded twice, so cycles terminate.
func (s *Service) bfs(ctx context.Context, start uuid.UUID, relationship models.RelationshipType) (*models.EntitiesAndRelations, error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.bfs", tracing.AttrRelationship.String(string(relationship)))
	defer span.End()

	visited := map[uuid.UUID]bool{start: true}
	ids := []uuid.UUID{start}
	frontier := []uuid.UUID{start}
	var edges []models.Edge

	for len(frontier) > 0 {
		step, err := s.edges.ListFrom(ctx, frontier, relationship)
		if err != nil {
			return nil, err
		}
		if len(step) == 0 {
			break
		}
		edges = append(edges, step...)

		var next []uuid.UUID
		for _, e := range step {
			if visited[e.ToID] {
				continue
			}
			visited[e.ToID] = true
			ids = append(ids, e.ToID)
			next = append(next, e.ToID)
		}
		frontier = next
	}

	entities, err := s.entities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	metrics.TraversalEntitiesVisited.WithLabelValues(string(relationship)).Observe(float64(len(ids)))
	return models.NewEntitiesAndRelations(entities, edges), nil
}

// GetLineage returns everything upstream (Consumes) and downstream (Produces)
// of the entity.
func (s *Service) GetLineage(ctx context.Context, idOrName string) (result *models.EntitiesAndRelations, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetLineage")
	defer span.End()
	defer observe("get_lineage", time.Now(), &err)

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	if _, err := s.entities.GetByID(ctx, id); err != nil {
		return nil, err
	}

	upstream, err := s.bfs(ctx, id, models.RelationshipConsumes)
	if err != nil {
		return nil, err
	}
	downstream, err := s.bfs(ctx, id, models.RelationshipProduces)
	if err != nil {
		return nil, err
	}

	return models.NewEntitiesAndRelations(
		append(upstream.Entities, downstream.Entities...),
		append(upstream.Relations, downstream.Relations...),
	), nil
}

// GetProject returns the project, its direct members, and the edges between
// them. Anchors carry their features and source, derived features their inputs.
func (s *Service) GetProject(ctx context.Context, idOrName string) (result *models.EntitiesAndRelations, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetProject")
	defer span.End()
	defer observe("get_project", time.Now(), &err)

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	project, err := s.projectEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	childIDs, edges, err := s.neighborIDs(ctx, id, models.RelationshipContains)
	if err != nil {
		return nil, err
	}
	children, err := s.entities.GetByIDs(ctx, childIDs)
	if err != nil {
		return nil, err
	}
	setProjectChildren(project.Attributes.(*models.ProjectAttributes), models.Refs(children))

	for i := range children {
		child := &children[i]
		switch attrs := child.Attributes.(type) {
		case *models.AnchorAttributes:
			featureIDs, contains, err := s.neighborIDs(ctx, child.ID, models.RelationshipContains)
			if err != nil {
				return nil, err
			}
			edges = append(edges, contains...)
			features, err := s.entities.GetByIDs(ctx, featureIDs)
			if err != nil {
				return nil, err
			}
			attrs.Features = models.Refs(features)

			sourceIDs, consumes, err := s.neighborIDs(ctx, child.ID, models.RelationshipConsumes)
			if err != nil {
				return nil, err
			}
			edges = append(edges, consumes...)
			if len(sourceIDs) > 0 {
				source, err := s.entities.GetByID(ctx, sourceIDs[0])
				if err != nil {
					return nil, err
				}
				ref := source.Ref()
				attrs.Source = &ref
			}
		case *models.DerivedFeatureAttributes:
			inputIDs, consumes, err := s.neighborIDs(ctx, child.ID, models.RelationshipConsumes)
			if err != nil {
				return nil, err
			}
			edges = append(edges, consumes...)
			inputs, err := s.entities.GetByIDs(ctx, inputIDs)
			if err != nil {
				return nil, err
			}
			attrs.InputFeatures = models.Refs(inputs)
		case *models.ProjectAttributes, *models.SourceAttributes, *models.AnchorFeatureAttributes:
		}
	}

	memberIDs := append([]uuid.UUID{id}, childIDs...)
	among, err := s.edges.ListAmong(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	return models.NewEntitiesAndRelations(
		append([]models.Entity{*project}, children...),
		append(edges, among...),
	), nil
}
