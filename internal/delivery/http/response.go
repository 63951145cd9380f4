package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"papertrade/internal/domain"
)

// Response represents a standardized API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// ErrorDetail is the error field of a failed response
type ErrorDetail struct {
	Code string `json:"code"`
}

// SuccessResponse sends a success response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// SuccessMessageResponse sends a success response with a message
func SuccessMessageResponse(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c echo.Context, statusCode int, message string, code string) error {
	return c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Error:   ErrorDetail{Code: code},
	})
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusBadRequest, message, domain.CodeInvalidInput)
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusUnauthorized, message, domain.CodeAuthFailure)
}

var statusByCode = map[string]int{
	domain.CodeInvalidQuantity:   http.StatusBadRequest,
	domain.CodeInvalidInput:      http.StatusBadRequest,
	domain.CodeAuthFailure:       http.StatusUnauthorized,
	domain.CodeUnknownSymbol:     http.StatusNotFound,
	domain.CodeDuplicateUsername: http.StatusConflict,
	domain.CodeInsufficientFunds: http.StatusUnprocessableEntity,
	domain.CodeOversellAttempt:   http.StatusUnprocessableEntity,
	domain.CodeQuoteUnavailable:  http.StatusServiceUnavailable,
	domain.CodeNotFound:          http.StatusInternalServerError,
	domain.CodeInternal:          http.StatusInternalServerError,
}

// envelopeErrorHandler renders errors raised outside handlers, such as
// middleware rejections and unknown routes, in the Response envelope
func envelopeErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = FailureResponse(c, err)
		return
	}

	code := domain.CodeInvalidInput
	switch {
	case he.Code == http.StatusUnauthorized:
		code = domain.CodeAuthFailure
	case he.Code >= http.StatusInternalServerError:
		code = domain.CodeInternal
	}
	_ = ErrorResponse(c, he.Code, fmt.Sprint(he.Message), code)
}

// FailureResponse classifies err and sends the matching error response.
// User errors carry their message; internal errors are logged and hidden.
func FailureResponse(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	status := statusByCode[code]

	message := err.Error()
	if !domain.IsUserError(err) {
		log.Printf("[ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		switch code {
		case domain.CodeQuoteUnavailable:
			message = "Quote service unavailable, try again later"
		default:
			message = "Internal server error"
		}
	}

	return ErrorResponse(c, status, message, code)
}
