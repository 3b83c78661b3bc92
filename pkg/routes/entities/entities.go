package entities

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/registry"
)

type Handler struct {
	registry registry.Registry
	logger   ectologger.Logger
}

func NewHandler(reg registry.Registry, logger ectologger.Logger) *Handler {
	return &Handler{registry: reg, logger: logger}
}

// Register registers dependency and deletion routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/dependent/:entity", h.Dependents)
	g.DELETE("/entity/:entity", h.Delete)
}

// Dependents lists the entities that would block deleting :entity
func (h *Handler) Dependents(c echo.Context) error {
	dependents, err := h.registry.GetDependentEntities(c.Request().Context(), c.Param("entity"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dependents)
}

// Delete removes an entity once nothing depends on it. Empty anchors and
// sources among the dependents are cleaned up first.
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	entity := c.Param("entity")

	if err := h.registry.SafeDeleteEntity(ctx, entity); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithField("entity", entity).Info("Entity deleted through API")
	return c.NoContent(http.StatusOK)
}
