// model/resolution.go
package model

import (
	"time"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
)

type ResolutionRequest struct {
	Subject    string   `json:"subject" binding:"required"`
	Attributes []string `json:"attributes" binding:"required,min=1"`
	DeadlineMS int      `json:"deadline_ms"`
}

func (r ResolutionRequest) Deadline() time.Duration {
	return time.Duration(r.DeadlineMS) * time.Millisecond
}

type ResolutionWarning struct {
	Attribute string `json:"attribute"`
	Reason    string `json:"reason"`
}

type ResolutionResponse struct {
	Values              AttributeBag                `json:"values"`
	Warnings            []ResolutionWarning         `json:"warnings"`
	SensitiveAttributes []string                    `json:"sensitive_attributes,omitempty"`
	Error               *pip_errors.ResolutionError `json:"error,omitempty"`
}
