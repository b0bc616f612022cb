package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medlog/medlog/internal/platform/auth"
	"github.com/medlog/medlog/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:handle/audit", h.ListByPatient, auth.RequirePatientAccess())
}

func (h *Handler) ListByPatient(c echo.Context) error {
	handle := c.Param("handle")
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.ListByPatient(c.Request().Context(), handle, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}
