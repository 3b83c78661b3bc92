package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// dependentRelation is the edge type whose closure holds the entities that
// depend on an entity of type t.
func dependentRelation(t models.EntityType) models.RelationshipType {
	switch t {
	case models.EntityTypeProject, models.EntityTypeAnchor:
		return models.RelationshipContains
	case models.EntityTypeSource, models.EntityTypeAnchorFeature, models.EntityTypeDerivedFeature:
		return models.RelationshipProduces
	}
	return models.RelationshipContains
}

// GetDependentEntities returns every entity that depends on the given one,
// excluding the entity itself.
func (s *Service) GetDependentEntities(ctx context.Context, idOrName string) (dependents []models.Entity, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.GetDependentEntities")
	defer span.End()
	defer observe("get_dependent_entities", time.Now(), &err)

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	e, err := s.entities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.dependents(ctx, *e)
}

func (s *Service) dependents(ctx context.Context, e models.Entity) ([]models.Entity, error) {
	reached, err := s.bfs(ctx, e.ID, dependentRelation(e.EntityType))
	if err != nil {
		return nil, err
	}

	dependents := make([]models.Entity, 0, len(reached.Entities))
	for _, d := range reached.Entities {
		if d.ID != e.ID {
			dependents = append(dependents, d)
		}
	}
	return dependents, nil
}

// DeleteEmptyEntities makes one pass over entities and deletes every anchor
// with no features left, then every source nothing consumes any more. Other
// kinds are ignored.
func (s *Service) DeleteEmptyEntities(ctx context.Context, entities []models.Entity) (err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.DeleteEmptyEntities")
	defer span.End()
	defer observe("delete_empty_entities", time.Now(), &err)

	for _, kind := range []models.EntityType{models.EntityTypeAnchor, models.EntityTypeSource} {
		for _, e := range entities {
			if e.EntityType != kind {
				continue
			}

			dependents, err := s.dependents(ctx, e)
			if err != nil {
				if IsNotFound(err) {
					continue
				}
				return err
			}
			if len(dependents) > 0 {
				continue
			}

			if err := s.deleteEntity(ctx, e.ID); err != nil && !IsNotFound(err) {
				return err
			}
		}
	}
	return nil
}

// DeleteEntity removes the entity and every edge touching it. It does not
// look at dependents; see SafeDeleteEntity.
func (s *Service) DeleteEntity(ctx context.Context, idOrName string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.DeleteEntity")
	defer span.End()
	defer observe("delete_entity", time.Now(), &err)

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return err
	}
	return s.deleteEntity(ctx, id)
}

func (s *Service) deleteEntity(ctx context.Context, id uuid.UUID) error {
	var (
		deleted models.Entity
		purged  []models.EdgeKey
		removed int64
	)

	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		e, err := s.entities.GetByID(ctx, id)
		if err != nil {
			return err
		}
		deleted = *e

		touching, err := s.edges.ListTouching(ctx, id)
		if err != nil {
			return err
		}
		purged = make([]models.EdgeKey, 0, len(touching))
		for _, edge := range touching {
			purged = append(purged, edge.Key())
		}

		removed, err = s.edges.DeleteForEntity(ctx, id)
		if err != nil {
			return err
		}
		return s.entities.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	metrics.EntitiesDeletedTotal.WithLabelValues(string(deleted.EntityType)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":      id,
		"entity_type":    deleted.EntityType,
		"qualified_name": deleted.QualifiedName,
		"edges":          removed,
	}).Info("deleted entity")
	tracing.Entity(ctx, id.String(), string(deleted.EntityType), deleted.QualifiedName)

	for _, o := range s.observers {
		if err := o.OnEntityDeleted(ctx, deleted, purged); err != nil {
			metrics.ObserverFailuresTotal.WithLabelValues(o.Name(), "deleted").Inc()
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"observer":  o.Name(),
				"entity_id": id,
			}).Warn("failed to notify entity deletion")
		}
	}
	return nil
}

// SafeDeleteEntity deletes the entity only when nothing depends on it. Empty
// anchors and unused sources among the dependents are cleaned up first; any
// dependent left makes the delete fail with PreconditionFailed.
func (s *Service) SafeDeleteEntity(ctx context.Context, idOrName string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.SafeDeleteEntity")
	defer span.End()
	defer observe("safe_delete_entity", time.Now(), &err)

	id, err := s.GetEntityID(ctx, idOrName)
	if err != nil {
		return err
	}
	e, err := s.entities.GetByID(ctx, id)
	if err != nil {
		return err
	}

	dependents, err := s.dependents(ctx, *e)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		if err := s.DeleteEmptyEntities(ctx, dependents); err != nil {
			return err
		}
		if dependents, err = s.dependents(ctx, *e); err != nil {
			return err
		}
	}

	if len(dependents) > 0 {
		names := make([]string, 0, len(dependents))
		for _, d := range dependents {
			names = append(names, d.QualifiedName)
		}
		return PreconditionFailed(names)
	}

	return s.deleteEntity(ctx, id)
}
