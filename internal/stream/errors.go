package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"notebook-backend/internal/model"
)

// ErrBodyUnavailable means the response carried no readable body.
var ErrBodyUnavailable = errors.New("response body unavailable")

// RequestError is a failure before any stream data arrived: either the
// request could not be sent (Status 0) or the server answered non-2xx.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ServerError is an error the server reported inside an otherwise healthy
// stream.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

const maxErrorBody = 64 << 10

// statusError builds a RequestError from a non-2xx response, preferring the
// JSON {"error": "..."} body when there is one.
func statusError(resp *http.Response) *RequestError {
	msg := fmt.Sprintf("Error %d", resp.StatusCode)

	if resp.Body != nil {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var body model.ErrorResponse
		if err := json.Unmarshal(data, &body); err == nil && strings.TrimSpace(body.Error) != "" {
			msg = body.Error
		}
	}

	return &RequestError{Status: resp.StatusCode, Message: msg}
}
