// model/connection.go
package model

import (
	"reflect"
	"time"
)

type ConnectionType string

const (
	ConnectionTypeIdentity ConnectionType = "identity"
	ConnectionTypeHR       ConnectionType = "hr"
	ConnectionTypeCRM      ConnectionType = "crm"
	ConnectionTypeERP      ConnectionType = "erp"
	ConnectionTypeDatabase ConnectionType = "database"
	ConnectionTypeHTTPAPI  ConnectionType = "http-api"
	ConnectionTypeCustom   ConnectionType = "custom"
)

// Credentials is opaque auth material handed to a connector as-is,
// e.g. {"type": "bearer", "token": "..."}.
type Credentials map[string]string

// Connection is the configuration of one information source.
type Connection struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name" validate:"required,max=255"`
	Type                   ConnectionType `json:"type" validate:"required,oneof=identity hr crm erp database http-api custom"`
	Provider               string         `json:"provider" validate:"required,max=100"`
	Endpoint               string         `json:"endpoint"`
	Configuration          map[string]any `json:"configuration,omitempty"`
	Auth                   Credentials    `json:"auth,omitempty"`
	CacheEnabled           bool           `json:"cache_enabled"`
	CacheTTLSeconds        int            `json:"cache_ttl_seconds" validate:"gte=0"`
	RefreshIntervalSeconds int            `json:"refresh_interval_seconds" validate:"gte=0"`
	Enabled                bool           `json:"enabled"`
	Version                int            `json:"version"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func (c *Connection) TTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Connection) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// Clone returns a deep enough copy for callers that must not share maps
// with the registry.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	if c.Configuration != nil {
		out.Configuration = make(map[string]any, len(c.Configuration))
		for k, v := range c.Configuration {
			out.Configuration[k] = v
		}
	}
	if c.Auth != nil {
		out.Auth = make(Credentials, len(c.Auth))
		for k, v := range c.Auth {
			out.Auth[k] = v
		}
	}
	return &out
}

// SourceChanged reports whether the update touches anything that makes
// previously fetched values untrustworthy.
func (c *Connection) SourceChanged(updated *Connection) bool {
	return c.CacheTTLSeconds != updated.CacheTTLSeconds ||
		c.RefreshIntervalSeconds != updated.RefreshIntervalSeconds ||
		c.CacheEnabled != updated.CacheEnabled ||
		c.Type != updated.Type ||
		c.Provider != updated.Provider ||
		c.Endpoint != updated.Endpoint ||
		!reflect.DeepEqual(c.Auth, updated.Auth) ||
		!reflect.DeepEqual(c.Configuration, updated.Configuration)
}

// ConnectionSummary is the list view; it never carries credentials.
type ConnectionSummary struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         ConnectionType `json:"type"`
	Provider     string         `json:"provider"`
	Enabled      bool           `json:"enabled"`
	CacheEnabled bool           `json:"cache_enabled"`
	Version      int            `json:"version"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (c *Connection) Summary() ConnectionSummary {
	return ConnectionSummary{
		ID:           c.ID,
		Name:         c.Name,
		Type:         c.Type,
		Provider:     c.Provider,
		Enabled:      c.Enabled,
		CacheEnabled: c.CacheEnabled,
		Version:      c.Version,
		UpdatedAt:    c.UpdatedAt,
	}
}

// RedactedCredential replaces credential values in API responses. Sending
// it back in an update keeps the stored value.
const RedactedCredential = "[REDACTED]"

// Redacted returns a copy with every credential value masked.
func (c *Connection) Redacted() *Connection {
	out := c.Clone()
	for k := range out.Auth {
		out.Auth[k] = RedactedCredential
	}
	return out
}

// MergeCredentials resolves an update's credentials against the stored ones.
// Nil keeps the stored set; masked values keep the stored value of that key.
func MergeCredentials(stored, incoming Credentials) Credentials {
	if incoming == nil {
		if stored == nil {
			return nil
		}
		out := make(Credentials, len(stored))
		for k, v := range stored {
			out[k] = v
		}
		return out
	}
	out := make(Credentials, len(incoming))
	for k, v := range incoming {
		if v == RedactedCredential {
			if prev, ok := stored[k]; ok {
				out[k] = prev
			}
			continue
		}
		out[k] = v
	}
	return out
}
