package api

import "github.com/ssargent/keyds/pkg/codec"

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
}

// DatasetInfo describes a served dataset
type DatasetInfo struct {
	Name         string           `json:"name"`
	Path         string           `json:"path"`
	ReadOnly     bool             `json:"read_only"`
	RecordLength int              `json:"record_length"`
	Fields       []codec.FieldDef `json:"fields"`
}

// CountResponse is returned by the find-update and find-delete endpoints
type CountResponse struct {
	Count int `json:"count"`
}

// RecordsResponse is returned by the scan endpoint
type RecordsResponse struct {
	Records []codec.Values `json:"records"`
	Count   int            `json:"count"`
}
