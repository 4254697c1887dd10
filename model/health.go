// model/health.go
package model

type ConnectionTestRequest struct {
	ConnectionType ConnectionType `json:"connection_type" binding:"required"`
	Provider       string         `json:"provider" binding:"required"`
	Endpoint       string         `json:"endpoint,omitempty"`
	Configuration  map[string]any `json:"configuration"`
	Credentials    Credentials    `json:"credentials"`
}

type ConnectionStatus string

const (
	StatusConnected ConnectionStatus = "connected"
	StatusError     ConnectionStatus = "error"
)

type TestFailureReason string

const (
	ReasonAuth          TestFailureReason = "AuthError"
	ReasonTimeout       TestFailureReason = "TimeoutError"
	ReasonUnreachable   TestFailureReason = "UnreachableError"
	ReasonConfiguration TestFailureReason = "ConfigurationError"
)

type DiscoveredField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    *bool  `json:"required,omitempty"`
	Sensitivity string `json:"sensitivity,omitempty"`
	Example     any    `json:"example,omitempty"`
}

type ConnectionTestDetails struct {
	Fields []DiscoveredField `json:"fields"`
}

type ConnectionTestResponse struct {
	Success        bool                   `json:"success"`
	Status         ConnectionStatus       `json:"status"`
	ResponseTimeMS float64                `json:"response_time_ms"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ErrorReason    TestFailureReason      `json:"error_reason,omitempty"`
	Details        *ConnectionTestDetails `json:"details,omitempty"`
}
