// Package registry implements the feature registry: typed entities linked by
// paired edges, created through a qualified-name conflict protocol and read
// back through breadth-first traversals.
package registry

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories/edge"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Registry is the public contract of the feature registry.
type Registry interface {
	GetProjects(ctx context.Context) ([]string, error)
	GetProjectsIDs(ctx context.Context) (map[uuid.UUID]string, error)
	GetEntity(ctx context.Context, idOrName string) (*models.Entity, error)
	GetEntities(ctx context.Context, ids []uuid.UUID) ([]models.Entity, error)
	GetEntityID(ctx context.Context, idOrName string) (uuid.UUID, error)
	GetNeighbors(ctx context.Context, idOrName string, relationship models.RelationshipType) ([]models.Edge, error)
	GetLineage(ctx context.Context, idOrName string) (*models.EntitiesAndRelations, error)
	GetProject(ctx context.Context, idOrName string) (*models.EntitiesAndRelations, error)
	SearchEntity(ctx context.Context, req models.SearchRequest) ([]models.EntityRef, error)

	CreateProject(ctx context.Context, def models.ProjectDef) (uuid.UUID, error)
	CreateProjectDatasource(ctx context.Context, projectID uuid.UUID, def models.SourceDef) (uuid.UUID, error)
	CreateProjectAnchor(ctx context.Context, projectID uuid.UUID, def models.AnchorDef) (uuid.UUID, error)
	CreateProjectAnchorFeature(ctx context.Context, projectID, anchorID uuid.UUID, def models.AnchorFeatureDef) (uuid.UUID, error)
	CreateProjectDerivedFeature(ctx context.Context, projectID uuid.UUID, def models.DerivedFeatureDef) (uuid.UUID, error)
	SeedGlobalProject(ctx context.Context) (uuid.UUID, error)

	GetDependentEntities(ctx context.Context, idOrName string) ([]models.Entity, error)
	DeleteEmptyEntities(ctx context.Context, entities []models.Entity) error
	DeleteEntity(ctx context.Context, idOrName string) error
	SafeDeleteEntity(ctx context.Context, idOrName string) error
}

// Observer is told about committed changes. Failures are logged and never
// undo the change.
type Observer interface {
	Name() string
	OnEntityCreated(ctx context.Context, entity models.Entity, edges []models.EdgeKey) error
	OnEntityDeleted(ctx context.Context, entity models.Entity, edges []models.EdgeKey) error
}

// Locker serializes creators of one qualified name across registry instances.
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context), error)
}

// Service implements Registry on top of the entity and edge repositories.
type Service struct {
	db        database.DB
	entities  entity.EntityRepository
	edges     edge.EdgeRepository
	logger    ectologger.Logger
	observers []Observer
	locker    Locker
}

type Option func(*Service)

// WithObserver registers an observer for committed creations and deletions.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observers = append(s.observers, o)
	}
}

// WithLocker guards every creation with a lock on its qualified name.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// NewService builds the registry over db.
func NewService(db database.DB, logger ectologger.Logger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		entities: entity.NewRepository(db, logger),
		edges:    edge.NewRepository(db, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Registry = (*Service)(nil)

var validate = validator.New()

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveOperation(operation, start, *err)
}
