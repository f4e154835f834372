// Package apierror defines the single error shape returned by the Moon client.
//
// Every failure that leaves the client, whether it started as a transport
// error, an HTTP error response or a failed token refresh, is converted into
// an *Error so callers only ever deal with one type:
//
//	var apiErr *apierror.Error
//	if errors.As(err, &apiErr) {
//		fmt.Println(apiErr.Code, apiErr.Message)
//	}
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Sentinel codes for failures that carry no HTTP response.
const (
	CodeNetwork        = "NETWORK_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeCanceled       = "CANCELED"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN_ERROR"
)

// DefaultUserMessage is rendered when an error carries nothing presentable.
const DefaultUserMessage = "An error occurred"

// Error is the normalized failure returned by the client.
type Error struct {
	// Code is a short machine readable identifier. For HTTP failures without
	// a structured body it is the status code as a decimal string.
	Code string `json:"code"`
	// Message is a human readable description.
	Message string `json:"message"`
	// UserError is the backend's user-facing error text, if any.
	UserError string `json:"error,omitempty"`
	// Status is the HTTP status code, 0 when no response was received.
	Status int `json:"-"`
	// Details holds the raw body or the original error for diagnostics only.
	Details any `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.UserError != "" {
		return e.Code + ": " + e.UserError
	}
	return e.Code + ": " + e.Message
}

// Unwrap exposes the original error when Details holds one.
func (e *Error) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

// Retryable reports whether the failure is transient: no response was
// received or the server answered with a 5xx status.
func (e *Error) Retryable() bool {
	if e.Status >= http.StatusInternalServerError {
		return true
	}
	return e.Status == 0 && (e.Code == CodeNetwork || e.Code == CodeTimeout)
}

// FromResponse builds an Error from a non-2xx HTTP response.
//
// A JSON object body exposing code, message or error is used verbatim. Both the
// flat shape {"code","message","error"} and the nested {"error":{"code","message"}}
// shape are understood. Anything missing is synthesized from the status.
func FromResponse(status int, body []byte) *Error {
	e := &Error{Status: status}

	if len(body) > 0 && gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if res.IsObject() {
			e.Code = strings.TrimSpace(res.Get("code").String())
			e.Message = res.Get("message").String()

			switch errField := res.Get("error"); {
			case errField.IsObject():
				if e.Code == "" {
					e.Code = strings.TrimSpace(errField.Get("code").String())
				}
				if e.Message == "" {
					e.Message = errField.Get("message").String()
				}
			case errField.Type == gjson.String && strings.TrimSpace(errField.Str) != "":
				e.UserError = errField.Str
			}

			e.Details = json.RawMessage(body)
		}
	}

	if e.Details == nil && len(body) > 0 {
		e.Details = string(body)
	}
	if e.Code == "" {
		e.Code = strconv.Itoa(status)
	}
	if e.Message == "" {
		e.Message = statusMessage(status)
	}

	return e
}

// FromTransportError builds an Error for a request that produced no response.
func FromTransportError(err error) *Error {
	code := CodeNetwork

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		code = CodeTimeout
	}

	return &Error{
		Code:    code,
		Message: err.Error(),
		Details: err,
	}
}

// Normalize converts any error into an *Error. Errors that already are (or
// wrap) an *Error are returned as is.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FromTransportError(err)
	}

	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
		Details: err,
	}
}

// Invalid reports a request that could not be built. It is returned before
// any network call is attempted.
func Invalid(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// HasCode reports whether err normalizes to an Error with the given code.
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// UserMessage renders err for display. A non-blank backend error yields
// "<code> - <error>", otherwise the message is used, then fallback, then
// DefaultUserMessage.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if userErr := strings.TrimSpace(apiErr.UserError); userErr != "" {
			return apiErr.Code + " - " + userErr
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	} else if err != nil && err.Error() != "" {
		return err.Error()
	}

	if fallback != "" {
		return fallback
	}
	return DefaultUserMessage
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}
