package registry

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// GlobalProjectName is reserved for the project seeded at startup.
const GlobalProjectName = "global"

// creation describes one entity to create under a precomputed qualified name.
type creation struct {
	entityType    models.EntityType
	qualifiedName string
	// matches reports whether an existing entity of the same type is an
	// idempotent re-creation.
	matches func(existing models.Entity) bool
	// build runs inside the transaction after the name check. It resolves
	// references and returns the attributes and the edges to write for id.
	build func(ctx context.Context, id uuid.UUID) (models.Attributes, []models.EdgeKey, error)
}

type created struct {
	entity models.Entity
	edges  []models.EdgeKey
}

// create runs the conflict protocol. A unique violation means a concurrent
// creator committed the name first; the protocol runs once more so this
// caller takes the idempotent or conflict path against the committed row.
func (s *Service) create(ctx context.Context, c creation) (uuid.UUID, error) {
	if len(c.qualifiedName) > models.MaxQualifiedNameLength {
		return uuid.Nil, Validation("qualified name %s... exceeds %d characters", c.qualifiedName[:32], models.MaxQualifiedNameLength)
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, c.qualifiedName)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("qualified_name", c.qualifiedName).Warn("failed to lock qualified name")
			return uuid.Nil, httperror.NewHTTPErrorf(http.StatusServiceUnavailable, "creation of %s is busy, retry later", c.qualifiedName)
		}
		defer unlock(ctx)
	}

	id, result, err := s.createOnce(ctx, c)
	if err != nil && database.IsUniqueViolation(err) {
		metrics.CreationRetriesTotal.WithLabelValues(string(c.entityType)).Inc()
		s.logger.WithContext(ctx).WithField("qualified_name", c.qualifiedName).Warn("lost creation race, re-checking qualified name")
		id, result, err = s.createOnce(ctx, c)
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return uuid.Nil, Conflict("Entity %s already exists", c.qualifiedName)
		}
		return uuid.Nil, err
	}

	if result != nil {
		metrics.EntitiesCreatedTotal.WithLabelValues(string(c.entityType)).Inc()
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"entity_id":      id,
			"entity_type":    c.entityType,
			"qualified_name": c.qualifiedName,
		}).Info("created entity")
		tracing.Entity(ctx, id.String(), string(c.entityType), c.qualifiedName)
		s.notifyCreated(ctx, result.entity, result.edges)
	}
	return id, nil
}

func (s *Service) createOnce(ctx context.Context, c creation) (uuid.UUID, *created, error) {
	var (
		id     uuid.UUID
		result *created
	)

	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.entities.FindByQualifiedName(ctx, c.qualifiedName)
		if err != nil {
			return err
		}

		switch len(existing) {
		case 0:
		case 1:
			if existing[0].EntityType != c.entityType {
				return Conflict("Entity %s already exists with type %s", c.qualifiedName, existing[0].EntityType.Label())
			}
			if !c.matches(existing[0]) {
				return Conflict("Entity %s already exists with a different definition", c.qualifiedName)
			}
			id = existing[0].ID
			return nil
		default:
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"qualified_name": c.qualifiedName,
				"count":          len(existing),
			}).Error("qualified name is not unique")
			return Integrity("%d entities share qualified name %s", len(existing), c.qualifiedName)
		}

		newID := uuid.New()
		attrs, edges, err := c.build(ctx, newID)
		if err != nil {
			return err
		}

		e := models.Entity{
			ID:            newID,
			QualifiedName: c.qualifiedName,
			EntityType:    c.entityType,
			Attributes:    attrs,
		}
		if err := s.entities.Insert(ctx, e); err != nil {
			return err
		}
		for _, key := range edges {
			if _, err := s.edges.Create(ctx, key); err != nil {
				return err
			}
		}

		id = newID
		result = &created{entity: e, edges: edges}
		return nil
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, result, nil
}

func (s *Service) notifyCreated(ctx context.Context, e models.Entity, edges []models.EdgeKey) {
	for _, o := range s.observers {
		if err := o.OnEntityCreated(ctx, e, edges); err != nil {
			metrics.ObserverFailuresTotal.WithLabelValues(o.Name(), "created").Inc()
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"observer":  o.Name(),
				"entity_id": e.ID,
			}).Warn("failed to notify entity creation")
		}
	}
}

// requireEntity loads id and checks its type. A missing or mistyped entity is
// reported by missing, as a validation error.
func (s *Service) requireEntity(ctx context.Context, id uuid.UUID, t models.EntityType, missing string) (*models.Entity, error) {
	e, err := s.entities.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, Validation(missing, id)
		}
		return nil, err
	}
	if e.EntityType != t {
		return nil, Validation(missing, id)
	}
	return e, nil
}

func validateDef(def any) error {
	if err := validate.Struct(def); err != nil {
		return Validation("invalid definition: %s", err.Error())
	}
	return nil
}

func validateTransformation(t models.Transformation) error {
	if _, err := t.Kind(); err != nil {
		if errors.Is(err, models.ErrAmbiguousTransformation) {
			return Validation("%s", err.Error())
		}
		return err
	}
	return nil
}

// CreateProject creates a project named def.Name. The global name is reserved.
func (s *Service) CreateProject(ctx context.Context, def models.ProjectDef) (id uuid.UUID, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.CreateProject")
	defer span.End()
	defer observe("create_project", time.Now(), &err)

	if err := validateDef(def); err != nil {
		return uuid.Nil, err
	}
	if strings.EqualFold(def.Name, GlobalProjectName) {
		return uuid.Nil, Validation("Project name %q is reserved", GlobalProjectName)
	}
	return s.createProject(ctx, def)
}

// SeedGlobalProject creates the reserved global project if it is missing.
func (s *Service) SeedGlobalProject(ctx context.Context) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.SeedGlobalProject")
	defer span.End()

	return s.createProject(ctx, models.ProjectDef{Name: GlobalProjectName})
}

func (s *Service) createProject(ctx context.Context, def models.ProjectDef) (uuid.UUID, error) {
	return s.create(ctx, creation{
		entityType:    models.EntityTypeProject,
		qualifiedName: def.Name,
		matches:       func(models.Entity) bool { return true },
		build: func(ctx context.Context, id uuid.UUID) (models.Attributes, []models.EdgeKey, error) {
			return def.ToAttributes(), nil, nil
		},
	})
}

// CreateProjectDatasource creates a source owned by the project.
func (s *Service) CreateProjectDatasource(ctx context.Context, projectID uuid.UUID, def models.SourceDef) (id uuid.UUID, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.CreateProjectDatasource")
	defer span.End()
	defer observe("create_project_datasource", time.Now(), &err)

	if err := validateDef(def); err != nil {
		return uuid.Nil, err
	}

	project, err := s.projectEntity(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}

	return s.create(ctx, creation{
		entityType:    models.EntityTypeSource,
		qualifiedName: models.QualifiedName(project.QualifiedName, def.Name),
		matches: func(existing models.Entity) bool {
			attrs, ok := existing.Attributes.(*models.SourceAttributes)
			return ok && def.Matches(attrs)
		},
		build: func(ctx context.Context, id uuid.UUID) (models.Attributes, []models.EdgeKey, error) {
			if _, err := s.projectEntity(ctx, projectID); err != nil {
				return nil, nil, err
			}
			qn := models.QualifiedName(project.QualifiedName, def.Name)
			return def.ToAttributes(qn), models.EdgePair(projectID, id, models.RelationshipContains), nil
		},
	})
}

// CreateProjectAnchor creates an anchor owned by the project and consuming def.SourceID.
func (s *Service) CreateProjectAnchor(ctx context.Context, projectID uuid.UUID, def models.AnchorDef) (id uuid.UUID, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.CreateProjectAnchor")
	defer span.End()
	defer observe("create_project_anchor", time.Now(), &err)

	if err := validateDef(def); err != nil {
		return uuid.Nil, err
	}

	project, err := s.projectEntity(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}
	qn := models.QualifiedName(project.QualifiedName, def.Name)

	return s.create(ctx, creation{
		entityType:    models.EntityTypeAnchor,
		qualifiedName: qn,
		matches: func(existing models.Entity) bool {
			attrs, ok := existing.Attributes.(*models.AnchorAttributes)
			return ok && def.Matches(attrs)
		},
		build: func(ctx context.Context, id uuid.UUID) (models.Attributes, []models.EdgeKey, error) {
			if _, err := s.projectEntity(ctx, projectID); err != nil {
				return nil, nil, err
			}
			source, err := s.requireEntity(ctx, def.SourceID, models.EntityTypeSource, "Source %s does not exist")
			if err != nil {
				return nil, nil, err
			}

			edges := models.EdgePair(projectID, id, models.RelationshipContains)
			edges = append(edges, models.EdgePair(id, source.ID, models.RelationshipConsumes)...)
			return def.ToAttributes(qn, source.Ref()), edges, nil
		},
	})
}

// CreateProjectAnchorFeature creates a feature inside an anchor of the project.
// The feature consumes the anchor's source.
func (s *Service) CreateProjectAnchorFeature(ctx context.Context, projectID, anchorID uuid.UUID, def models.AnchorFeatureDef) (id uuid.UUID, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.CreateProjectAnchorFeature")
	defer span.End()
	defer observe("create_project_anchor_feature", time.Now(), &err)

	if err := validateDef(def); err != nil {
		return uuid.Nil, err
	}
	if err := validateTransformation(def.Transformation); err != nil {
		return uuid.Nil, err
	}

	anchor, err := s.requireEntity(ctx, anchorID, models.EntityTypeAnchor, "Anchor %s does not exist")
	if err != nil {
		return uuid.Nil, err
	}
	qn := models.QualifiedName(anchor.QualifiedName, def.Name)

	return s.create(ctx, creation{
		entityType:    models.EntityTypeAnchorFeature,
		qualifiedName: qn,
		matches: func(existing models.Entity) bool {
			attrs, ok := existing.Attributes.(*models.AnchorFeatureAttributes)
			return ok && def.Matches(attrs)
		},
		build: func(ctx context.Context, id uuid.UUID) (models.Attributes, []models.EdgeKey, error) {
			if _, err := s.projectEntity(ctx, projectID); err != nil {
				return nil, nil, err
			}
			if _, err := s.requireEntity(ctx, anchorID, models.EntityTypeAnchor, "Anchor %s does not exist"); err != nil {
				return nil, nil, err
			}

			owners, _, err := s.neighborIDs(ctx, anchorID, models.RelationshipBelongsTo)
			if err != nil {
				return nil, nil, err
			}
			if !ectolinq.Contains(owners, projectID) {
				return nil, nil, Validation("Anchor %s does not belong to project %s", anchorID, projectID)
			}

			sources, _, err := s.neighborIDs(ctx, anchorID, models.RelationshipConsumes)
			if err != nil {
				return nil, nil, err
			}
			if len(sources) == 0 {
				return nil, nil, Validation("Anchor %s has no source", anchorID)
			}

			edges := models.EdgePair(projectID, id, models.RelationshipContains)
			edges = append(edges, models.EdgePair(anchorID, id, models.RelationshipContains)...)
			edges = append(edges, models.EdgePair(id, sources[0], models.RelationshipConsumes)...)
			return def.ToAttributes(qn), edges, nil
		},
	})
}

// CreateProjectDerivedFeature creates a feature computed from other features.
// Every input must already exist with the declared kind.
func (s *Service) CreateProjectDerivedFeature(ctx context.Context, projectID uuid.UUID, def models.DerivedFeatureDef) (id uuid.UUID, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.CreateProjectDerivedFeature")
	defer span.End()
	defer observe("create_project_derived_feature", time.Now(), &err)

	if err := validateDef(def); err != nil {
		return uuid.Nil, err
	}
	if err := validateTransformation(def.Transformation); err != nil {
		return uuid.Nil, err
	}

	project, err := s.projectEntity(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}
	qn := models.QualifiedName(project.QualifiedName, def.Name)

	return s.create(ctx, creation{
		entityType:    models.EntityTypeDerivedFeature,
		qualifiedName: qn,
		matches: func(existing models.Entity) bool {
			attrs, ok := existing.Attributes.(*models.DerivedFeatureAttributes)
			return ok && def.Matches(attrs)
		},
		build: func(ctx context.Context, id uuid.UUID) (models.Attributes, []models.EdgeKey, error) {
			if _, err := s.projectEntity(ctx, projectID); err != nil {
				return nil, nil, err
			}

			anchorInputs, err := s.resolveInputs(ctx, def.InputAnchorFeatures, models.EntityTypeAnchorFeature, "Missing input anchor features")
			if err != nil {
				return nil, nil, err
			}
			derivedInputs, err := s.resolveInputs(ctx, def.InputDerivedFeatures, models.EntityTypeDerivedFeature, "Missing input derived features")
			if err != nil {
				return nil, nil, err
			}

			edges := models.EdgePair(projectID, id, models.RelationshipContains)
			for _, input := range append(anchorInputs, derivedInputs...) {
				edges = append(edges, models.EdgePair(id, input.ID, models.RelationshipConsumes)...)
			}
			return def.ToAttributes(qn, anchorInputs, derivedInputs), edges, nil
		},
	})
}

func (s *Service) resolveInputs(ctx context.Context, ids []uuid.UUID, t models.EntityType, missing string) ([]models.EntityRef, error) {
	refs, err := s.entities.GetRefsByIDsAndType(ctx, ids, t)
	if err != nil {
		return nil, err
	}
	if len(refs) != len(models.UniqueIDs(ids)) {
		return nil, Validation("%s", missing)
	}
	return refs, nil
}

// projectEntity loads the project and rejects ids of any other type.
func (s *Service) projectEntity(ctx context.Context, projectID uuid.UUID) (*models.Entity, error) {
	project, err := s.entities.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.EntityType != models.EntityTypeProject {
		return nil, Validation("Entity %s is not a project", projectID)
	}
	return project, nil
}
