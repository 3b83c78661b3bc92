package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SearchEntity finds entities whose qualified name contains the keyword,
// ignoring case, ordered by qualified name. With both Start and Size set the
// top Start+Size rows are fetched and the last Size of them returned.
func (s *Service) SearchEntity(ctx context.Context, req models.SearchRequest) (refs []models.EntityRef, err error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.SearchEntity")
	defer span.End()
	defer observe("search_entity", time.Now(), &err)

	for _, t := range req.Types {
		if !t.Valid() {
			return nil, Validation("invalid entity type %q", t)
		}
	}

	query := entity.SearchQuery{
		Keyword: req.Keyword,
		Types:   req.Types,
	}

	if req.Project != "" {
		projectID, err := s.projectIDOf(ctx, req.Project)
		if err != nil {
			return nil, err
		}
		query.ProjectID = &projectID
	}

	paginate := req.Start != nil && req.Size != nil
	if paginate {
		if *req.Start < 0 || *req.Size < 0 {
			return nil, Validation("start and size must not be negative")
		}
		if *req.Size == 0 {
			return []models.EntityRef{}, nil
		}
		query.Limit = *req.Start + *req.Size
	}

	refs, err = s.entities.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if paginate {
		if len(refs) > *req.Size {
			refs = refs[len(refs)-*req.Size:]
		}
	}
	return refs, nil
}

// projectIDOf resolves a project by id or name and checks its type.
func (s *Service) projectIDOf(ctx context.Context, project string) (uuid.UUID, error) {
	id, err := s.GetEntityID(ctx, project)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.projectEntity(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
