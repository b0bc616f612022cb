package safety

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medlog/medlog/internal/platform/auth"
)

type Handler struct {
	eval *Evaluator
}

func NewHandler(eval *Evaluator) *Handler {
	return &Handler{eval: eval}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:handle/status/:medication", h.GetStatus, auth.RequirePatientAccess())
	api.PUT("/patients/:handle/thresholds/:medication", h.SetThreshold, auth.RequireRole(auth.RoleClinician))
}

func (h *Handler) GetStatus(c echo.Context) error {
	st, err := h.eval.Status(c.Request().Context(), c.Param("handle"), c.Param("medication"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

type setThresholdRequest struct {
	Max24h               float64 `json:"max_24h"`
	OverrideAcknowledged bool    `json:"override_acknowledged"`
}

func (h *Handler) SetThreshold(c echo.Context) error {
	var req setThresholdRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	t, err := h.eval.SetThreshold(ctx,
		auth.HandleFromContext(ctx), c.Param("handle"), c.Param("medication"),
		req.Max24h, req.OverrideAcknowledged)
	if err != nil {
		if errors.Is(err, ErrOverrideRequired) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}
