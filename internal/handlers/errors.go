// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/inw/serpback/internal/services/account"
	"github.com/labstack/echo/v4"
)

// Error codes sent in the errorcode header and body field.
const (
	CodeEmailTaken       = "EMAIL_ALREADY_REGISTERED"
	CodeLoginTaken       = "LOGIN_ALREADY_REGISTERED"
	CodeAlreadyConfirmed = "USER_ALREADY_CONFIRMED"
	CodeTimeout          = "CONFIRMATION_TIMEOUT"
	CodeUnknown          = "UNKNOWN_ERROR"
	CodeNotFound         = "USER_NOT_FOUND"
	CodeInvalidData      = "INVALID_DATA"
	CodeNotActivated     = "USER_NOT_ACTIVATED"
	CodeBadCredentials   = "USER_BAD_CREDENTIALS"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeNoRoute          = "NOT_FOUND"
)

// Header names of error responses.
const (
	HeaderErrorCode = "errorcode"
	HeaderDetails   = "details"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	ErrorCode     string   `json:"errorcode"`
	Details       string   `json:"details"`
	InvalidFields []string `json:"invalidfields,omitempty"`
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidData
	case errors.Is(err, account.ErrLoginTaken):
		return http.StatusBadRequest, CodeLoginTaken
	case errors.Is(err, account.ErrEmailTaken):
		return http.StatusBadRequest, CodeEmailTaken
	case errors.Is(err, account.ErrRegistrationAlreadyConfirmed):
		return http.StatusBadRequest, CodeAlreadyConfirmed
	case errors.Is(err, account.ErrRegistrationTimeout):
		return http.StatusBadRequest, CodeTimeout
	case errors.Is(err, account.ErrUserNotEnabled):
		return http.StatusBadRequest, CodeNotActivated
	case errors.Is(err, account.ErrBadCredentials):
		return http.StatusUnauthorized, CodeBadCredentials
	case errors.Is(err, account.ErrUserNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeUnknown
	}
}

// respondError writes err as an error response.
func respondError(c echo.Context, err error) error {
	status, code := classify(err)

	resp := ErrorResponse{ErrorCode: code, Details: err.Error()}
	var invalid *account.InvalidInputError
	if errors.As(err, &invalid) {
		resp.InvalidFields = invalid.Fields
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		resp.Details = http.StatusText(status)
	}

	return writeError(c, status, resp)
}

func writeError(c echo.Context, status int, resp ErrorResponse) error {
	c.Response().Header().Set(HeaderErrorCode, resp.ErrorCode)
	c.Response().Header().Set(HeaderDetails, resp.Details)
	return c.JSON(status, resp)
}

// HTTPErrorHandler renders errors returned by handlers and middleware,
// including echo's own routing and binding errors, in the API error format.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = respondError(c, err)
		return
	}

	resp := ErrorResponse{ErrorCode: CodeUnknown, Details: http.StatusText(he.Code)}
	if msg, ok := he.Message.(string); ok {
		resp.Details = msg
	}
	switch he.Code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		resp.ErrorCode = CodeInvalidData
	case http.StatusUnauthorized:
		resp.ErrorCode = CodeUnauthorized
	case http.StatusForbidden:
		resp.ErrorCode = CodeAccessDenied
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		resp.ErrorCode = CodeNoRoute
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = writeError(c, he.Code, resp)
}
