package types

// Metadata accompanies every response envelope.
type Metadata struct {
	Timestamp  string      `json:"timestamp"`
	RequestID  string      `json:"request_id,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

type SuccessEnvelope struct {
	Data     any      `json:"data"`
	Metadata Metadata `json:"metadata"`
}

type APIError struct {
	ID        string `json:"id"`
	Code      int    `json:"code"`
	Detail    string `json:"detail"`
	ErrorType string `json:"error_type"`
	Source    string `json:"source"`
	Meta      any    `json:"meta,omitempty"`
}

type ErrorEnvelope struct {
	Error    APIError `json:"error"`
	Metadata Metadata `json:"metadata"`
}
