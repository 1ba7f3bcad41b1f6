package audit

import (
	"net/http"
	"time"
)

// Action is the kind of audited operation
type Action string

const (
	ActionCreate Action = "data.create"
	ActionUpdate Action = "data.update"
	ActionDelete Action = "data.delete"
	ActionDenied Action = "authz.access_denied"
)

// Status is the outcome of an audited operation
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

// Event is one audit log entry
type Event struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Status    Status    `json:"status"`

	// Actor, empty for anonymous callers
	Username string `json:"username,omitempty"`

	// Route is the matched route template, e.g. /dummies/{id}
	Route      string `json:"route,omitempty"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ActionFor maps a request method and response status to an action.
// Reads that were not refused are not audited.
func ActionFor(method string, statusCode int) (Action, bool) {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return ActionDenied, true
	}
	switch method {
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	default:
		return "", false
	}
}

// StatusFor maps a response status to an outcome
func StatusFor(statusCode int) Status {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return StatusDenied
	case statusCode >= 400:
		return StatusFailure
	default:
		return StatusSuccess
	}
}
