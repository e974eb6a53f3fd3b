package health

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers serves the health report, refreshing checks on each request.
type Handlers struct {
	service *Service
	checks  []FileCheck
	db      *sql.DB
}

// NewHandlers creates health handlers. db may be nil.
func NewHandlers(service *Service, checks []FileCheck, db *sql.DB) *Handlers {
	return &Handlers{service: service, checks: checks, db: db}
}

// RegisterRoutes registers health routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetAll)
}

// GetAll refreshes and returns every health item.
// GET /api/v1/health
func (h *Handlers) GetAll(c echo.Context) error {
	h.service.CheckFiles(h.checks)
	if h.db != nil {
		h.service.CheckDatabase(c.Request().Context(), h.db)
	}
	return c.JSON(http.StatusOK, h.service.GetAll())
}
