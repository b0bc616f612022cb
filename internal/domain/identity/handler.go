package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medlog/medlog/internal/platform/auth"
	"github.com/medlog/medlog/pkg/pagination"
)

type Handler struct {
	svc *Service
	jwt auth.JWTConfig
}

func NewHandler(svc *Service, jwt auth.JWTConfig) *Handler {
	return &Handler{svc: svc, jwt: jwt}
}

// RegisterRoutes wires identity endpoints. public carries no auth
// middleware; api requires a valid token.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	staff := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleCarer))
	staff.GET("/patients", h.ListPatients)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Register(c.Request().Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateHandle):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrBadAccessCode):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Authenticate(c.Request().Context(), req.Handle, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid handle or password")
	}
	token, err := auth.IssueToken(h.jwt, u.Handle, u.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token issuance failed")
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, Handle: u.Handle, Role: u.Role})
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}
