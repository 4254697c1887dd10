// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

const (
	ActionConnectionCreated  = "connection.created"
	ActionConnectionUpdated  = "connection.updated"
	ActionConnectionDeleted  = "connection.deleted"
	ActionMappingsUpdated    = "mappings.updated"
	ActionCacheInvalidated   = "cache.invalidated"
	ActionAttributesResolved = "attributes.resolved"
)

// AuditLog never carries attribute values or credentials; Details holds
// identifiers and counts only.
type AuditLog struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	UserID     string          `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	ResourceID string          `json:"resource_id"`
	Success    bool            `json:"success"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Query filters audit logs. Zero fields match everything.
type Query struct {
	From       time.Time
	To         time.Time
	UserID     string
	Action     string
	ResourceID string
	Size       int
}
