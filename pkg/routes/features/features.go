package features

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

// Register registers feature routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/features/:feature", h.Get)
	g.GET("/features/:feature/lineage", h.Lineage)
}

// Get returns an anchor or derived feature. Other entity kinds are not found.
func (h *Handler) Get(c echo.Context) error {
	feature := c.Param("feature")

	e, err := h.registry.GetEntity(c.Request().Context(), feature)
	if err != nil {
		return err
	}
	if !e.EntityType.IsFeature() {
		return registry.NotFound("Feature %s not found", feature)
	}
	return c.JSON(http.StatusOK, e)
}

// Lineage returns the upstream and downstream closure of a feature
func (h *Handler) Lineage(c echo.Context) error {
	lineage, err := h.registry.GetLineage(c.Request().Context(), c.Param("feature"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lineage)
}
