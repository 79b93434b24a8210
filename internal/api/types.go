package api

import "encoding/json"

// ListPageSize is the fixed page size for GET /conversations.
const ListPageSize = 50

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// ListResponse is returned by GET /conversations.
type ListResponse struct {
	Items []json.RawMessage `json:"items"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
