package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Instruction asks the transport to serve a file or redirect instead of
// writing a JSON body.
type Instruction struct {
	Type         ResponseType
	Filename     string
	RedirectTo   string
	RedirectCode int
}

// Result is the merged outcome of one pipeline run.
//
// Exactly one of Body or Instruction is meaningful: when Instruction is set
// no body is written. Status is always 200 for bodies.
type Result struct {
	Status      int
	Body        any
	Instruction *Instruction
	Cookies     []Cookie

	// Success is false when either stage failed; Err is the failure.
	Success bool
	Err     error

	// FromCache reports that the request stage was served from cache.
	FromCache bool
}

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type failureBody struct {
	Success bool `json:"success"`
	Error   any  `json:"error"`
	Data    any  `json:"data,omitempty"`
}

// SuccessBody returns the {success: true, data} envelope.
func SuccessBody(data any) any {
	return successBody{Success: true, Data: data}
}

// FailureBody returns the {success: false, error, data?} envelope.
// data is omitted when nil.
func FailureBody(errValue any, data any) any {
	return failureBody{Success: false, Error: errValue, Data: data}
}

// ErrorValue returns the JSON form of err: *Error values and errors that
// marshal themselves are kept, anything else becomes its message.
func ErrorValue(err error) any {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if m, ok := err.(json.Marshaler); ok {
		return m
	}
	return err.Error()
}

func failureResult(err error, data any) *Result {
	return &Result{
		Status:  http.StatusOK,
		Body:    FailureBody(ErrorValue(err), data),
		Success: false,
		Err:     err,
	}
}
