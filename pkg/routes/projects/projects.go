package projects

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/filter"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

// Handler serves project scoped reads and every creation endpoint
type Handler struct {
	registry registry.Registry
	filters  *filter.Evaluator
	logger   ectologger.Logger
}

func NewHandler(reg registry.Registry, logger ectologger.Logger) *Handler {
	return &Handler{registry: reg, filters: filter.NewEvaluator(), logger: logger}
}

// Register registers project routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/projects", h.List)
	g.GET("/projects-ids", h.ListIDs)
	g.POST("/projects", h.Create)
	g.GET("/projects/:project", h.Get)
	g.GET("/projects/:project/datasources", h.ListDatasources)
	g.POST("/projects/:project/datasources", h.CreateDatasource)
	g.GET("/projects/:project/datasources/:datasource", h.GetDatasource)
	g.GET("/projects/:project/features", h.ListFeatures)
	g.POST("/projects/:project/anchors", h.CreateAnchor)
	g.POST("/projects/:project/anchors/:anchor/features", h.CreateAnchorFeature)
	g.POST("/projects/:project/derivedfeatures", h.CreateDerivedFeature)
}

// List returns every project name
func (h *Handler) List(c echo.Context) error {
	names, err := h.registry.GetProjects(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, names)
}

// ListIDs returns project names keyed by id
func (h *Handler) ListIDs(c echo.Context) error {
	ids, err := h.registry.GetProjectsIDs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ids)
}

// Get returns a project with all of its members and their relations
func (h *Handler) Get(c echo.Context) error {
	project, err := h.registry.GetProject(c.Request().Context(), c.Param("project"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

func (h *Handler) Create(c echo.Context) error {
	var def models.ProjectDef
	if err := c.Bind(&def); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := h.registry.CreateProject(c.Request().Context(), def)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CreatedResponse{GUID: id.String()})
}

func (h *Handler) ListDatasources(c echo.Context) error {
	ctx := c.Request().Context()

	project, err := h.registry.GetEntity(ctx, c.Param("project"))
	if err != nil {
		return err
	}

	attrs, err := projectAttributes(project)
	if err != nil {
		return err
	}

	sources, err := h.registry.GetEntities(ctx, refIDs(attrs.Sources))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sources)
}

// GetDatasource returns a source only when it is a member of the project
func (h *Handler) GetDatasource(c echo.Context) error {
	ctx := c.Request().Context()
	datasource := c.Param("datasource")

	project, err := h.registry.GetEntity(ctx, c.Param("project"))
	if err != nil {
		return err
	}

	attrs, err := projectAttributes(project)
	if err != nil {
		return err
	}

	for _, ref := range attrs.Sources {
		if ref.ID.String() == datasource || ref.QualifiedName == datasource {
			source, err := h.registry.GetEntity(ctx, ref.ID.String())
			if err != nil {
				return err
			}
			return c.JSON(http.StatusOK, source)
		}
	}

	return registry.NotFound("Data Source %s not found", datasource)
}

func (h *Handler) CreateDatasource(c echo.Context) error {
	ctx := c.Request().Context()

	var def models.SourceDef
	if err := c.Bind(&def); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	projectID, err := h.registry.GetEntityID(ctx, c.Param("project"))
	if err != nil {
		return err
	}

	id, err := h.registry.CreateProjectDatasource(ctx, projectID, def)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CreatedResponse{GUID: id.String()})
}

// ListFeatures returns the project's features. With a keyword the features are
// found by search and paged by page (1-based) and limit when both are given.
// A JMESPath filter is applied to whatever the listing returns.
func (h *Handler) ListFeatures(c echo.Context) error {
	ctx := c.Request().Context()

	expression := c.QueryParam("filter")
	if expression != "" {
		if err := h.filters.Validate(expression); err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid filter: %v", err)
		}
	}

	ids, err := h.featureIDs(c)
	if err != nil {
		return err
	}

	features, err := h.registry.GetEntities(ctx, ids)
	if err != nil {
		return err
	}

	if expression != "" {
		features, err = h.filters.Select(expression, features)
		if err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid filter: %v", err)
		}
	}
	return c.JSON(http.StatusOK, features)
}

func (h *Handler) featureIDs(c echo.Context) ([]uuid.UUID, error) {
	ctx := c.Request().Context()
	project := c.Param("project")

	keyword := c.QueryParam("keyword")
	if keyword == "" {
		entity, err := h.registry.GetEntity(ctx, project)
		if err != nil {
			return nil, err
		}

		attrs, err := projectAttributes(entity)
		if err != nil {
			return nil, err
		}
		return append(refIDs(attrs.AnchorFeatures), refIDs(attrs.DerivedFeatures)...), nil
	}

	req := models.SearchRequest{
		Keyword: keyword,
		Types:   []models.EntityType{models.EntityTypeAnchorFeature, models.EntityTypeDerivedFeature},
		Project: project,
	}

	page, limit := c.QueryParam("page"), c.QueryParam("limit")
	if page != "" && limit != "" {
		p, err := strconv.Atoi(page)
		if err != nil || p < 1 {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
		}
		l, err := strconv.Atoi(limit)
		if err != nil || l < 0 {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		start := (p - 1) * l
		req.Start = &start
		req.Size = &l
	}

	refs, err := h.registry.SearchEntity(ctx, req)
	if err != nil {
		return nil, err
	}
	return refIDs(refs), nil
}

func (h *Handler) CreateAnchor(c echo.Context) error {
	ctx := c.Request().Context()

	var def models.AnchorDef
	if err := c.Bind(&def); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	projectID, err := h.registry.GetEntityID(ctx, c.Param("project"))
	if err != nil {
		return err
	}

	id, err := h.registry.CreateProjectAnchor(ctx, projectID, def)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CreatedResponse{GUID: id.String()})
}

func (h *Handler) CreateAnchorFeature(c echo.Context) error {
	ctx := c.Request().Context()

	var def models.AnchorFeatureDef
	if err := c.Bind(&def); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	projectID, err := h.registry.GetEntityID(ctx, c.Param("project"))
	if err != nil {
		return err
	}
	anchorID, err := h.registry.GetEntityID(ctx, c.Param("anchor"))
	if err != nil {
		return err
	}

	id, err := h.registry.CreateProjectAnchorFeature(ctx, projectID, anchorID, def)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CreatedResponse{GUID: id.String()})
}

func (h *Handler) CreateDerivedFeature(c echo.Context) error {
	ctx := c.Request().Context()

	var def models.DerivedFeatureDef
	if err := c.Bind(&def); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	projectID, err := h.registry.GetEntityID(ctx, c.Param("project"))
	if err != nil {
		return err
	}

	id, err := h.registry.CreateProjectDerivedFeature(ctx, projectID, def)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CreatedResponse{GUID: id.String()})
}

func projectAttributes(e *models.Entity) (*models.ProjectAttributes, error) {
	attrs, ok := e.Attributes.(*models.ProjectAttributes)
	if !ok {
		return nil, registry.NotFound("Project %s not found", e.QualifiedName)
	}
	return attrs, nil
}

func refIDs(refs []models.EntityRef) []uuid.UUID {
	return ectolinq.Map(refs, func(ref models.EntityRef) uuid.UUID { return ref.ID })
}
