package response

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/huangang/soundvault/pkg/logger"
)

// Error types carried in every error entry.
const (
	TypeAuthentication = "authentication_error"
	TypeAuthorization  = "authorization_error"
	TypeValidation     = "validation_error"
	TypeNotFound       = "not_found"
	TypeInternal       = "internal_error"
)

// FieldError is one entry of the errors array.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorBody is the unified error response format.
type ErrorBody struct {
	Errors []FieldError `json:"errors"`
}

// MessageBody is returned by endpoints that only confirm an action.
type MessageBody struct {
	Message string `json:"message"`
}

// AppError represents a structured application error with HTTP status and error entries.
type AppError struct {
	HTTPStatus int
	Errors     []FieldError
}

func (e *AppError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Pre-defined error constructors

func NewAuthenticationError(field, msg string) *AppError {
	return &AppError{
		HTTPStatus: http.StatusUnauthorized,
		Errors:     []FieldError{{Field: field, Message: msg, Type: TypeAuthentication}},
	}
}

func NewAuthorizationError() *AppError {
	return &AppError{
		HTTPStatus: http.StatusForbidden,
		Errors: []FieldError{{
			Field:   "authorization",
			Message: "You are not authorized to perform this action",
			Type:    TypeAuthorization,
		}},
	}
}

// NewNotFound builds the error for a missing record of the named entity, e.g. "Artist".
func NewNotFound(entity string) *AppError {
	return &AppError{
		HTTPStatus: http.StatusNotFound,
		Errors: []FieldError{{
			Field:   strings.ToLower(entity),
			Message: entity + " not found",
			Type:    TypeNotFound,
		}},
	}
}

func NewValidationError(field, msg string) *AppError {
	return NewValidationErrors(FieldError{Field: field, Message: msg})
}

// NewValidationErrors collects several invalid fields into one 422 error.
func NewValidationErrors(errs ...FieldError) *AppError {
	out := make([]FieldError, len(errs))
	for i, fe := range errs {
		fe.Type = TypeValidation
		out[i] = fe
	}
	return &AppError{HTTPStatus: http.StatusUnprocessableEntity, Errors: out}
}

func NewInternalError() *AppError {
	return &AppError{
		HTTPStatus: http.StatusInternalServerError,
		Errors:     []FieldError{{Field: "base", Message: "Internal server error", Type: TypeInternal}},
	}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data as the body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response with data as the body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message sends a 200 OK response with a confirmation message.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageBody{Message: msg})
}

// Error sends an error response. If err is an *AppError, its status and entries
// are used; otherwise the error is logged and a generic internal_error is returned.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		logger.Error().
			Err(err).
			Str("request_id", c.GetString(logger.RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("unhandled error")
		appErr = NewInternalError()
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, ErrorBody{Errors: appErr.Errors})
}

// BindError renders a request binding failure as validation errors.
func BindError(c *gin.Context, err error) {
	Error(c, FromBindingError(err))
}

// FromBindingError converts gin/validator binding errors into a 422 AppError.
func FromBindingError(err error) *AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("body", "Malformed request body")
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: validationMessage(fe)})
	}
	return NewValidationErrors(out...)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("is too short (minimum is %s characters)", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url", "http_url":
		return "must be a valid URL"
	case "eqfield":
		return fmt.Sprintf("doesn't match %s", fe.Param())
	default:
		return "is invalid"
	}
}

func init() {
	// Report json names instead of Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}
