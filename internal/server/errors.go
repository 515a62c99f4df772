package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/smallbiznis/vendorhub/internal/autosave"
	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/scrape"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type            string            `json:"type"`
	Message         string            `json:"message"`
	Errors          []ValidationError `json:"errors,omitempty"`
	ExpectedVersion *int64            `json:"expected_version,omitempty"`
	CurrentVersion  *int64            `json:"current_version,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrBadGateway         = errors.New("bad_gateway")
)

// VersionConflictError reports a write rejected by the optimistic version
// check.
type VersionConflictError struct {
	ExpectedVersion int64
	CurrentVersion  int64
}

func (e *VersionConflictError) Error() string {
	return "version_conflict"
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if conflict := asVersionConflict(err); conflict != nil {
		expected, current := conflict.ExpectedVersion, conflict.CurrentVersion
		return http.StatusConflict, errorPayload{
			Type:            "version_conflict",
			Message:         "the record was changed by someone else",
			ExpectedVersion: &expected,
			CurrentVersion:  &current,
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, catalogdomain.ErrDuplicateSlug):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, catalogdomain.ErrBusy):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrBadGateway),
		errors.Is(err, scrape.ErrUpstream):
		return http.StatusBadGateway, errorPayload{
			Type:    "bad_gateway",
			Message: "upstream request failed",
		}
	case errors.Is(err, autosave.ErrClosed):
		return http.StatusGone, errorPayload{
			Type:    "session_closed",
			Message: "editor session closed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asVersionConflict(err error) *VersionConflictError {
	var vErr *VersionConflictError
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	var cErr *autosave.ConflictError
	if errors.As(err, &cErr) && cErr != nil {
		return &VersionConflictError{
			ExpectedVersion: cErr.ExpectedVersion,
			CurrentVersion:  cErr.CurrentVersion,
		}
	}
	return nil
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, scrape.ErrInvalidURL):
		return true
	case isCatalogValidationError(err):
		return true
	default:
		return false
	}
}

var catalogValidationErrors = []error{
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidTitle,
	catalogdomain.ErrInvalidPricingMode,
	catalogdomain.ErrInvalidPatch,
	catalogdomain.ErrInvalidVersion,
	catalogdomain.ErrInvalidLabel,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidPackage,
}

func isCatalogValidationError(err error) bool {
	return catalogValidationCode(err) != ""
}

func catalogValidationCode(err error) string {
	for _, target := range catalogValidationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrPackageNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, scrape.ErrInvalidURL):
		return "invalid_url"
	case isCatalogValidationError(err):
		return catalogValidationCode(err)
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the error type and code logged with a request.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError && payload.Type == "internal_error" {
		return "internal", code
	}
	return payload.Type, code
}
