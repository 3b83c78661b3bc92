package edge

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EdgeRepository defines the storage operations on registry edges
type EdgeRepository interface {
	Create(ctx context.Context, key models.EdgeKey) (created bool, err error)
	ListFrom(ctx context.Context, fromIDs []uuid.UUID, relationship models.RelationshipType) ([]models.Edge, error)
	ListAmong(ctx context.Context, ids []uuid.UUID) ([]models.Edge, error)
	ListTouching(ctx context.Context, id uuid.UUID) ([]models.Edge, error)
	DeleteForEntity(ctx context.Context, id uuid.UUID) (int64, error)
}

// Repository implements EdgeRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new edge repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "edges"

var columns = []string{"edge_id", "from_id", "to_id", "conn_type"}

// Create inserts the edge unless an edge with the same endpoints and type
// already exists. created reports whether a row was written.
func (r *Repository) Create(ctx context.Context, key models.EdgeKey) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "EdgeRepository.Create")
	defer span.End()

	if !key.RelationshipType.Valid() {
		return false, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid relationship type %q", key.RelationshipType)
	}

	ib := database.NewInsertBuilder(r.db.Flavor())
	ib.InsertInto(tableName)
	ib.Cols(columns...)
	ib.Values(uuid.New(), key.FromID, key.ToID, key.RelationshipType)
	ib.OnConflictDoNothing()

	query, args := ib.Build()

	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"from_id":   key.FromID,
			"to_id":     key.ToID,
			"conn_type": key.RelationshipType,
		}).Error("failed to create edge")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create edge")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

// ListFrom returns the edges of one relationship type leaving any of fromIDs
func (r *Repository) ListFrom(ctx context.Context, fromIDs []uuid.UUID, relationship models.RelationshipType) ([]models.Edge, error) {
	ctx, span := tracing.StartSpan(ctx, "EdgeRepository.ListFrom")
	defer span.End()

	fromIDs = models.UniqueIDs(fromIDs)
	if len(fromIDs) == 0 {
		return []models.Edge{}, nil
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.In("from_id", database.UUIDArgs(fromIDs)...),
		sb.Equal("conn_type", relationship),
	)

	query, args := sb.Build()

	edges := []models.Edge{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &edges, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("conn_type", relationship).Error("failed to list edges")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list edges")
	}
	return edges, nil
}

// ListAmong returns every edge whose endpoints are both in ids
func (r *Repository) ListAmong(ctx context.Context, ids []uuid.UUID) ([]models.Edge, error) {
	ctx, span := tracing.StartSpan(ctx, "EdgeRepository.ListAmong")
	defer span.End()

	ids = models.UniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Edge{}, nil
	}

	args := database.UUIDArgs(ids)

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.In("from_id", args...),
		sb.In("to_id", args...),
	)

	query, queryArgs := sb.Build()

	edges := []models.Edge{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &edges, query, queryArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("failed to list edges among entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list edges")
	}
	return edges, nil
}

// ListTouching returns every edge with id at either end
func (r *Repository) ListTouching(ctx context.Context, id uuid.UUID) ([]models.Edge, error) {
	ctx, span := tracing.StartSpan(ctx, "EdgeRepository.ListTouching")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Or(
		sb.Equal("from_id", id),
		sb.Equal("to_id", id),
	))

	query, args := sb.Build()

	edges := []models.Edge{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &edges, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("failed to list edges for entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list edges")
	}
	return edges, nil
}

// DeleteForEntity removes every edge with id at either end
func (r *Repository) DeleteForEntity(ctx context.Context, id uuid.UUID) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "EdgeRepository.DeleteForEntity")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(tableName)
	db.Where(db.Or(
		db.Equal("from_id", id),
		db.Equal("to_id", id),
	))

	query, args := db.Build()

	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("failed to delete edges for entity")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete edges of entity %s", id)
	}

	deleted, _ := res.RowsAffected()
	return deleted, nil
}
