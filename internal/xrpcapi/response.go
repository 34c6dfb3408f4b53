// Package xrpcapi decodes the response conventions shared by XRPC endpoints:
// JSON bodies on success and an {"error","message"} envelope on failure.
package xrpcapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorBody is the standard XRPC failure envelope carried on non-2xx
// responses, e.g. {"error":"InvalidRequest","message":"record not found"}.
type ErrorBody struct {
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *ErrorBody) String() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// DecodeError parses body as an XRPC error envelope. It returns nil when the
// body is empty, not JSON, or lacks the "error" field, so callers can fall
// back to the raw status and bytes.
func DecodeError(body []byte) *ErrorBody {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var envelope ErrorBody
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Name == "" {
		return nil
	}
	return &envelope
}

// DecodeResult decodes a successful XRPC response body into out. An empty
// body decodes as JSON null.
func DecodeResult(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	return json.Unmarshal(trimmed, out)
}
