// Package apierr defines the typed errors handlers return to the HTTP
// layer. Each carries the HTTP status and the client-facing detail; the
// error translator turns them into envelopes.
package apierr

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error is an API exception with a status, a detail message and optional
// extra fields rendered under "errors".
type Error struct {
	Status int
	Detail string
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// New builds an Error with the given status and detail. Codes a client
// must see go into Fields via With.
func New(status int, detail string) *Error {
	return &Error{Status: status, Detail: detail}
}

// With returns a copy of e with an extra field.
func (e *Error) With(key string, value any) *Error {
	c := *e
	c.Fields = make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	c.Fields[key] = value
	return &c
}

func orDefault(detail []string, def string) string {
	if len(detail) > 0 && detail[0] != "" {
		return detail[0]
	}
	return def
}

func Application(detail ...string) *Error {
	return New(http.StatusInternalServerError, orDefault(detail, "A server error occurred."))
}

func BadRequest(detail ...string) *Error {
	return New(http.StatusBadRequest, orDefault(detail, "Bad request."))
}

func NotFound(detail ...string) *Error {
	return New(http.StatusNotFound, orDefault(detail, "Resource not found."))
}

func Conflict(detail ...string) *Error {
	return New(http.StatusConflict, orDefault(detail, "Resource conflict."))
}

func NotAuthenticated() *Error {
	return New(http.StatusUnauthorized, "Authentication credentials were not provided.")
}

func AuthenticationFailed(detail ...string) *Error {
	return New(http.StatusUnauthorized, orDefault(detail, "Incorrect authentication credentials."))
}

// InvalidToken mirrors the token_not_valid error of the JWT layer, which
// exposes its code to clients.
func InvalidToken(detail ...string) *Error {
	e := New(http.StatusUnauthorized, orDefault(detail, "Token is invalid or expired"))
	return e.With("code", "token_not_valid")
}

func PermissionDenied() *Error {
	return New(http.StatusForbidden, "You do not have permission to perform this action.")
}

// Throttled reports how long the client should wait, rounded up to seconds.
func Throttled(waitSeconds int) *Error {
	detail := "Request was throttled."
	if waitSeconds > 0 {
		unit := "seconds"
		if waitSeconds == 1 {
			unit = "second"
		}
		detail = fmt.Sprintf("Request was throttled. Expected available in %d %s.", waitSeconds, unit)
	}
	return New(http.StatusTooManyRequests, detail)
}

func InvalidPage() *Error {
	return New(http.StatusNotFound, "Invalid page.")
}

func ParseError() *Error {
	return New(http.StatusBadRequest, "JSON parse error")
}

func MethodNotAllowed(method string) *Error {
	return New(http.StatusMethodNotAllowed, fmt.Sprintf("Method \"%s\" not allowed.", method))
}

// NonFieldErrors is the key for messages not tied to one input field.
const NonFieldErrors = "non_field_errors"

// ValidationError collects per-field input errors.
type ValidationError struct {
	Detail string
	Fields map[string][]string
}

// Validation builds an empty ValidationError; chain Add to fill it.
func Validation() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// FieldError is a one-field ValidationError.
func FieldError(field, msg string) *ValidationError {
	return Validation().Add(field, msg)
}

// NonField is a ValidationError under non_field_errors that also uses msg
// as the detail.
func NonField(msg string) *ValidationError {
	v := Validation().Add(NonFieldErrors, msg)
	v.Detail = msg
	return v
}

func (v *ValidationError) Add(field string, msgs ...string) *ValidationError {
	if v.Fields == nil {
		v.Fields = map[string][]string{}
	}
	v.Fields[field] = append(v.Fields[field], msgs...)
	return v
}

// Empty reports whether no field error was recorded.
func (v *ValidationError) Empty() bool {
	return len(v.Fields) == 0
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], " "))
	}
	if v.Detail != "" {
		return "validation error: " + v.Detail
	}
	return "validation error: " + strings.Join(parts, "; ")
}
