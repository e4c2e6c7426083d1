package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is bumped when the envelope shape changes.
const EnvelopeVersion = 1

// Envelope is the JSON wrapper around every API response body.
type Envelope struct {
	Version int       `json:"v"`
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// EnvelopeTransformer wraps response bodies in an Envelope. Errors produced by
// RegisterErrorHandler go into the error field; everything else is data.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if _, ok := v.(Envelope); ok {
		return v, nil
	}
	if apiErr, ok := v.(*APIError); ok {
		return Envelope{Version: EnvelopeVersion, Success: false, Error: apiErr}, nil
	}
	return Envelope{
		Version: EnvelopeVersion,
		Success: !strings.HasPrefix(status, "4") && !strings.HasPrefix(status, "5"),
		Data:    v,
	}, nil
}
