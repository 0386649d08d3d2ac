package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const codeInternal = "Internal"

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeUnknownMeasurementID, domain.CodeModelNotFound:
		return http.StatusNotFound
	case domain.CodeInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func errorResponse(err error) (int, errorBody) {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return statusFor(de.Code), errorBody{Code: string(de.Code), Message: de.Message}
	case errors.Is(err, calibration.ErrNoConditions), errors.Is(err, calibration.ErrAllConditionsRejected):
		return http.StatusUnprocessableEntity, errorBody{Code: string(domain.CodeInsufficientData), Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"}
	}
}

// abortWithError writes the mapped error response. Server-side failures are
// attached to the context so the request logger reports them.
func abortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func missingParameter(c *gin.Context, format string, args ...any) {
	abortWithError(c, domain.Errorf(domain.CodeMissingParameter, format, args...))
}
