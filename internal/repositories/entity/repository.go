package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EntityRepository defines the storage operations on registry entities
type EntityRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Entity, error)
	GetRefsByIDsAndType(ctx context.Context, ids []uuid.UUID, entityType models.EntityType) ([]models.EntityRef, error)
	FindByQualifiedName(ctx context.Context, qualifiedName string) ([]models.Entity, error)
	GetIDByQualifiedName(ctx context.Context, qualifiedName string) (uuid.UUID, error)
	ListRefsByType(ctx context.Context, entityType models.EntityType) ([]models.EntityRef, error)
	Insert(ctx context.Context, entity models.Entity) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query SearchQuery) ([]models.EntityRef, error)
}

// Repository implements EntityRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "entities"

var columns = []string{"entity_id", "qualified_name", "entity_type", "attributes"}

type row struct {
	ID            uuid.UUID         `db:"entity_id"`
	QualifiedName string            `db:"qualified_name"`
	EntityType    models.EntityType `db:"entity_type"`
	Attributes    string            `db:"attributes"`
}

func (r row) toModel() (models.Entity, error) {
	attrs, err := models.DecodeAttributes(r.EntityType, []byte(r.Attributes))
	if err != nil {
		return models.Entity{}, err
	}
	return models.Entity{
		ID:            r.ID,
		QualifiedName: r.QualifiedName,
		EntityType:    r.EntityType,
		Attributes:    attrs,
	}, nil
}

// GetByID returns the entity with the given id, or a 404 error
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByID")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("entity_id", id))

	query, args := sb.Build()

	var rec row
	err := database.Conn(ctx, r.db).GetContext(ctx, &rec, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "Entity %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("failed to get entity by id")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get entity %s", id)
	}

	e, err := rec.toModel()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("stored entity attributes are unreadable")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to decode entity %s", id)
	}
	return &e, nil
}

// GetByIDs returns the entities that exist among ids, in the order of ids.
// Unknown ids are skipped.
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByIDs")
	defer span.End()

	ids = models.UniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Entity{}, nil
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.In("entity_id", database.UUIDArgs(ids)...))

	query, args := sb.Build()

	var rows []row
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("failed to get entities by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entities")
	}

	byID := make(map[uuid.UUID]models.Entity, len(rows))
	for _, rec := range rows {
		e, err := rec.toModel()
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("entity_id", rec.ID).Error("stored entity attributes are unreadable")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to decode entity %s", rec.ID)
		}
		byID[e.ID] = e
	}

	entities := make([]models.Entity, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			entities = append(entities, e)
		}
	}
	return entities, nil
}

// GetRefsByIDsAndType returns references for the ids that exist with the given type
func (r *Repository) GetRefsByIDsAndType(ctx context.Context, ids []uuid.UUID, entityType models.EntityType) ([]models.EntityRef, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetRefsByIDsAndType")
	defer span.End()

	ids = models.UniqueIDs(ids)
	if len(ids) == 0 {
		return []models.EntityRef{}, nil
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("entity_id", "entity_type", "qualified_name")
	sb.From(tableName)
	sb.Where(
		sb.In("entity_id", database.UUIDArgs(ids)...),
		sb.Equal("entity_type", entityType),
	)
	sb.OrderBy("qualified_name").Asc()

	query, args := sb.Build()

	refs := []models.EntityRef{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_type", entityType).Error("failed to get entity refs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entities")
	}
	return refs, nil
}

// FindByQualifiedName returns every entity stored under qualifiedName. The
// unique index keeps this at most one row.
func (r *Repository) FindByQualifiedName(ctx context.Context, qualifiedName string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.FindByQualifiedName")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("qualified_name", qualifiedName))

	query, args := sb.Build()

	var rows []row
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("qualified_name", qualifiedName).Error("failed to find entity by qualified name")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to find entity %s", qualifiedName)
	}

	entities := make([]models.Entity, 0, len(rows))
	for _, rec := range rows {
		e, err := rec.toModel()
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("entity_id", rec.ID).Error("stored entity attributes are unreadable")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to decode entity %s", rec.ID)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// GetIDByQualifiedName resolves a qualified name, or returns a 404 error
func (r *Repository) GetIDByQualifiedName(ctx context.Context, qualifiedName string) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetIDByQualifiedName")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("entity_id")
	sb.From(tableName)
	sb.Where(sb.Equal("qualified_name", qualifiedName))

	query, args := sb.Build()

	var id uuid.UUID
	err := database.Conn(ctx, r.db).GetContext(ctx, &id, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, httperror.NewHTTPErrorf(http.StatusNotFound, "Entity %s not found", qualifiedName)
		}
		r.logger.WithContext(ctx).WithError(err).WithField("qualified_name", qualifiedName).Error("failed to resolve qualified name")
		return uuid.Nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve entity %s", qualifiedName)
	}
	return id, nil
}

// ListRefsByType lists every entity of a type, ordered by qualified name
func (r *Repository) ListRefsByType(ctx context.Context, entityType models.EntityType) ([]models.EntityRef, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.ListRefsByType")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("entity_id", "entity_type", "qualified_name")
	sb.From(tableName)
	sb.Where(sb.Equal("entity_type", entityType))
	sb.OrderBy("qualified_name").Asc()

	query, args := sb.Build()

	refs := []models.EntityRef{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_type", entityType).Error("failed to list entities by type")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}
	return refs, nil
}

// Insert stores a new entity row. A unique violation is returned as-is so the
// caller can tell a lost creation race from other failures.
func (r *Repository) Insert(ctx context.Context, entity models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Insert")
	defer span.End()

	attrs, err := models.EncodeAttributes(entity.Attributes)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ib := database.NewInsertBuilder(r.db.Flavor())
	ib.InsertInto(tableName)
	ib.Cols(columns...)
	ib.Values(entity.ID, entity.QualifiedName, entity.EntityType, attrs)

	query, args := ib.Build()

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id":      entity.ID,
			"qualified_name": entity.QualifiedName,
		}).Error("failed to insert entity")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create entity %s", entity.QualifiedName)
	}

	return nil
}

// Delete removes the entity row only; edges are the caller's concern
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(tableName)
	db.Where(db.Equal("entity_id", id))

	query, args := db.Build()

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("failed to delete entity")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete entity %s", id)
	}
	return nil
}

// SearchQuery is a qualified-name substring search.
type SearchQuery struct {
	Keyword string
	Types   []models.EntityType
	// ProjectID limits results to entities with a BelongsTo edge to the project
	ProjectID *uuid.UUID
	// Limit caps the number of rows; zero means no cap
	Limit int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches the keyword case-insensitively anywhere in the qualified name,
// ordered by qualified name.
func (r *Repository) Search(ctx context.Context, q SearchQuery) ([]models.EntityRef, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Search")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(tableName+".entity_id", tableName+".entity_type", tableName+".qualified_name")
	sb.From(tableName)

	pattern := "%" + likeEscaper.Replace(strings.ToLower(q.Keyword)) + "%"
	conds := []string{
		fmt.Sprintf(`LOWER(%s.qualified_name) LIKE %s ESCAPE '\'`, tableName, sb.Var(pattern)),
	}

	if len(q.Types) > 0 {
		types := make([]any, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, t)
		}
		conds = append(conds, sb.In(tableName+".entity_type", types...))
	}

	if q.ProjectID != nil {
		sb.Join("edges",
			tableName+".entity_id = edges.from_id",
			sb.Equal("edges.conn_type", models.RelationshipBelongsTo),
		)
		conds = append(conds, sb.Equal("edges.to_id", *q.ProjectID))
	}

	sb.Where(conds...)
	sb.OrderBy(tableName + ".qualified_name").Asc()
	if q.Limit > 0 {
		sb.Limit(q.Limit)
	}

	query, args := sb.Build()

	refs := []models.EntityRef{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("keyword", q.Keyword).Error("failed to search entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search entities")
	}
	return refs, nil
}
