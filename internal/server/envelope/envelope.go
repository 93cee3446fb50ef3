// Package envelope builds the uniform JSON response body
// {status, code, data?, message?, errors?} used by every API endpoint.
package envelope

import (
	"bytes"
	"encoding/json"
	"net/http"
	"reflect"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	defaultErrorMessage = "An error occurred"
)

// Envelope is the response body. Data, Message and Errors are omitted when
// unset; Build takes care of normalizing typed nils and empty collections.
type Envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// Build assembles an envelope. A zero status defaults to "success" and a
// zero code to 200. data is kept when it is not nil, errors only when it
// is a non-empty collection or string.
func Build(data any, status string, code int, message string, errors any) Envelope {
	if status == "" {
		status = StatusSuccess
	}
	if code == 0 {
		code = http.StatusOK
	}

	e := Envelope{Status: status, Code: code, Message: message}
	if !isNil(data) {
		e.Data = data
	}
	if !isEmpty(errors) {
		e.Errors = errors
	}
	return e
}

// Success is a 200 success envelope.
func Success(data any, message string) Envelope {
	return Build(data, StatusSuccess, http.StatusOK, message, nil)
}

// SuccessCode is a success envelope with an explicit code (e.g. 201).
func SuccessCode(code int, data any, message string) Envelope {
	return Build(data, StatusSuccess, code, message, nil)
}

// Error is an error envelope. An empty message falls back to the generic one.
func Error(code int, message string, errors any) Envelope {
	if message == "" {
		message = defaultErrorMessage
	}
	return Build(nil, StatusError, code, message, errors)
}

// Normalize wraps a raw JSON body into an envelope. Bodies that are empty,
// not JSON, or already carry a top-level "status" key are returned as is.
// The wrapped data and errors keep their original bytes.
func Normalize(body []byte, code int) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return body
	}

	var obj map[string]json.RawMessage
	isObject := trimmed[0] == '{' && json.Unmarshal(trimmed, &obj) == nil
	if isObject {
		if _, ok := obj["status"]; ok {
			return body
		}
	}

	var e any
	if code >= 200 && code < 300 {
		e = Envelope{Status: StatusSuccess, Code: code, Data: json.RawMessage(trimmed)}
	} else {
		// detail is copied verbatim, whatever its JSON type
		re := rawError{Status: StatusError, Code: code, Message: json.RawMessage(`"` + defaultErrorMessage + `"`)}
		if isObject {
			if raw, ok := obj["detail"]; ok {
				re.Message = raw
			}
			if raw, ok := obj["errors"]; ok {
				re.Errors = raw
			}
		}
		e = re
	}

	out, err := json.Marshal(e)
	if err != nil {
		return body
	}
	return out
}

// rawError is the error envelope Normalize emits, with message kept as
// the handler's raw detail value.
type rawError struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message json.RawMessage `json:"message"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isEmpty(v any) bool {
	if isNil(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() == 0
	}
	return false
}
