package common

// Pagination carries optional limit/offset for list requests. Nil fields
// mean "not supplied".
type Pagination struct {
	Limit  *int `json:"limit"`
	Offset *int `json:"offset"`
}

// Response is the JSON envelope written by the HTTP binding.
type Response struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data"`
	Metadata *Metadata   `json:"metadata,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes a list result.
type Metadata struct {
	Total  int64 `json:"total"`
	Count  int64 `json:"count"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// APIError is the wire form of an error.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
