package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/models"
)

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// ConflictError returns a conflict error; the message is safe to expose
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message,
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// FromDomain maps a domain error to the proper HTTP response
func FromDomain(c echo.Context, err error) error {
	de, ok := err.(*domain.DomainError)
	if !ok {
		return InternalError(c, err)
	}

	switch de.Code {
	case domain.ErrCodeNotFound:
		return NotFoundError(c, de.Message)
	case domain.ErrCodeValidation, domain.ErrCodeBadRequest:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: de.Message,
		})
	case domain.ErrCodeConflict:
		return ConflictError(c, de.Message)
	case domain.ErrCodeStageInUse:
		// The caller must supply a reallocation target and retry.
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "stage_in_use",
			Message: de.Message,
		})
	default:
		return InternalError(c, err)
	}
}
