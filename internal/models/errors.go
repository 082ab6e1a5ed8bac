package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried in the response envelope.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
)

// Token failure codes. Each maps to 401.
const (
	CodeMalformedToken      = "MALFORMED_TOKEN"
	CodeKeyNotFound         = "KEY_NOT_FOUND"
	CodeKeySetUnavailable   = "KEY_SET_UNAVAILABLE"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidAudience     = "INVALID_AUDIENCE"
	CodeInvalidIssuer       = "INVALID_ISSUER"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeUnsupportedTokenUse = "UNSUPPORTED_TOKEN_USE"
	CodeInvalidToken        = "INVALID_TOKEN"
)

// ErrorBody is the error member of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope every endpoint returns, success or failure.
type Response struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewUnauthorizedError(code, message string) *AppError {
	if code == "" {
		code = CodeUnauthenticated
	}
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor maps an error to its HTTP status. Anything that is not an
// AppError with a known code is a 500.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	case CodeUnauthenticated, CodeMalformedToken, CodeKeyNotFound, CodeKeySetUnavailable,
		CodeTokenExpired, CodeInvalidAudience, CodeInvalidIssuer, CodeInvalidSignature,
		CodeUnsupportedTokenUse, CodeInvalidToken:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// RespondWithData writes a success envelope.
func RespondWithData(c *fiber.Ctx, status int, message string, data any) error {
	if message == "" {
		message = "Success"
	}
	return c.Status(status).JSON(Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: now(),
	})
}

// RespondWithError writes a failure envelope. Internal errors never expose
// their wrapped cause; callers log it.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	body := &ErrorBody{Code: CodeInternal, Message: "Internal server error"}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		body.Code = appErr.Code
		body.Message = appErr.Message
	}

	return c.Status(status).JSON(Response{
		Success:   false,
		Message:   body.Message,
		Error:     body,
		Timestamp: now(),
	})
}
