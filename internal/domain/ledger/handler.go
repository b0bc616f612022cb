package ledger

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medlog/medlog/internal/platform/auth"
)

// SafetyChecker answers whether logging another dose is currently
// permitted. The handler re-checks before every write so a stale client
// cannot push a patient past the cap.
type SafetyChecker interface {
	CanLog(ctx context.Context, patientHandle, medication string) (bool, error)
}

// Notifier delivers best-effort side notifications after successful
// writes. Implementations swallow their own failures.
type Notifier interface {
	DoseLogged(ctx context.Context, d *DoseRecord)
	CapReached(ctx context.Context, patientHandle, medication string)
}

type Handler struct {
	svc      *Service
	safety   SafetyChecker
	notifier Notifier
}

func NewHandler(svc *Service, safety SafetyChecker, notifier Notifier) *Handler {
	return &Handler{svc: svc, safety: safety, notifier: notifier}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("/patients/:handle", auth.RequirePatientAccess())
	patient.GET("/prescriptions", h.ListPrescriptions)
	patient.POST("/doses", h.LogDose)
	patient.GET("/doses", h.History)

	clinician := api.Group("/patients/:handle", auth.RequireRole(auth.RoleClinician))
	clinician.PUT("/prescriptions/:medication", h.UpsertPrescription)
}

type upsertPrescriptionRequest struct {
	DoseAmount string `json:"dose_amount"`
}

func (h *Handler) UpsertPrescription(c echo.Context) error {
	var req upsertPrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Prescription{
		PatientHandle: c.Param("handle"),
		Medication:    c.Param("medication"),
		DoseAmount:    req.DoseAmount,
		PrescribedBy:  auth.HandleFromContext(c.Request().Context()),
	}
	if err := h.svc.UpsertPrescription(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	prescriptions, err := h.svc.ListPrescriptions(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if prescriptions == nil {
		prescriptions = []*Prescription{}
	}
	return c.JSON(http.StatusOK, prescriptions)
}

type logDoseRequest struct {
	Medication string `json:"medication"`
	DoseAmount string `json:"dose_amount"`
}

func (h *Handler) LogDose(c echo.Context) error {
	var req logDoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	handle := c.Param("handle")

	ok, err := h.safety.CanLog(ctx, handle, req.Medication)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "logging blocked: 24-hour cap reached")
	}

	d := &DoseRecord{
		PatientHandle: handle,
		Medication:    req.Medication,
		DoseAmount:    req.DoseAmount,
		LoggedBy:      auth.HandleFromContext(ctx),
	}
	if err := h.svc.LogDose(ctx, d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if h.notifier != nil {
		h.notifier.DoseLogged(ctx, d)
		if still, err := h.safety.CanLog(ctx, handle, req.Medication); err == nil && !still {
			h.notifier.CapReached(ctx, handle, req.Medication)
		}
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) History(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	records, err := h.svc.History(c.Request().Context(), c.Param("handle"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if records == nil {
		records = []*DoseRecord{}
	}
	return c.JSON(http.StatusOK, records)
}
