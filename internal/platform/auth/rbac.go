package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles assigned at account creation. There is no superuser role; clinical
// authority belongs to Clinician only.
const (
	RolePatient   = "Patient"
	RoleClinician = "Clinician"
	RoleCarer     = "Carer"
)

// ValidRole reports whether role is one of the three known roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleClinician, RoleCarer:
		return true
	}
	return false
}

// RequireRole returns middleware that rejects the request with 403 unless the
// authenticated role is one of those listed. The rejection happens before any
// mutation is attempted.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// CanActOnPatient reports whether the caller may read or write the given
// patient's record: patients only their own, Clinicians and Carers any.
func CanActOnPatient(callerHandle, callerRole, patientHandle string) bool {
	if callerRole == RoleClinician || callerRole == RoleCarer {
		return true
	}
	return callerHandle == patientHandle
}

// RequirePatientAccess returns middleware enforcing CanActOnPatient for
// routes with a :handle path parameter.
func RequirePatientAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if !CanActOnPatient(HandleFromContext(ctx), RoleFromContext(ctx), c.Param("handle")) {
				return echo.NewHTTPError(http.StatusForbidden, "access to this patient record is not permitted")
			}
			return next(c)
		}
	}
}
