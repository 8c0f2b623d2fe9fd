package api

import "encoding/json"

// OperationRequest is the body of POST /api/v1/operations.
type OperationRequest struct {
	// Kind selects the operation and its timeout policy.
	Kind string `json:"kind"`

	// Payload is passed to the worker untouched.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OperationResponse is returned when the operation settles successfully.
type OperationResponse struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
