package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/finovo/leaseflow/internal/compiler"
	customerdomain "github.com/finovo/leaseflow/internal/customer/domain"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	"github.com/finovo/leaseflow/internal/pricing"
	"github.com/finovo/leaseflow/pkg/db"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
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
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

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
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, templatedomain.ErrTenantScope):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, leaserdomain.ErrInvalidRangeSet),
		errors.Is(err, leaserdomain.ErrDeprecated),
		errors.Is(err, pricing.ErrInvalidRangeSet),
		errors.Is(err, pricing.ErrEmptyRangeSet),
		db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, compiler.ErrCompile):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "compile_failed",
			Message: "template cannot be compiled",
		}
	case errors.Is(err, generationdomain.ErrGenerationFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "generation_failed",
			Message: "document generation failed",
		}
	case errors.Is(err, generationdomain.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "generation_timeout",
			Message: "document generation timed out",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isCustomerValidationError(err),
		isLeaserValidationError(err),
		isOfferValidationError(err),
		isTemplateValidationError(err),
		isGenerationValidationError(err),
		errors.Is(err, pricing.ErrOutOfRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, leaserdomain.ErrNotFound),
		errors.Is(err, offerdomain.ErrNotFound),
		errors.Is(err, templatedomain.ErrNotFound),
		errors.Is(err, templatedomain.ErrNoActiveTemplate),
		errors.Is(err, templatedomain.ErrFieldNotFound),
		errors.Is(err, generationdomain.ErrNotFound),
		errors.Is(err, generationdomain.ErrNotStored),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
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
	case "amount_out_of_range":
		return "amount is outside every configured range"
	default:
		return "invalid value"
	}
}

func isCustomerValidationError(err error) bool {
	switch err {
	case customerdomain.ErrInvalidCompany,
		customerdomain.ErrInvalidName,
		customerdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isLeaserValidationError(err error) bool {
	switch err {
	case leaserdomain.ErrInvalidCompany,
		leaserdomain.ErrInvalidName,
		leaserdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isOfferValidationError(err error) bool {
	switch err {
	case offerdomain.ErrInvalidCompany,
		offerdomain.ErrInvalidID,
		offerdomain.ErrInvalidAmount:
		return true
	default:
		return false
	}
}

func isTemplateValidationError(err error) bool {
	switch err {
	case templatedomain.ErrInvalidCompany,
		templatedomain.ErrInvalidClient,
		templatedomain.ErrInvalidID,
		templatedomain.ErrInvalidName,
		templatedomain.ErrInvalidPage,
		templatedomain.ErrInvalidField,
		templatedomain.ErrUnsupportedSource:
		return true
	default:
		return false
	}
}

func isGenerationValidationError(err error) bool {
	switch err {
	case generationdomain.ErrInvalidCompany,
		generationdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
