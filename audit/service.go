// audit/service.go
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
)

type Service interface {
	LogAction(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, q Query) ([]AuditLog, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) LogAction(ctx context.Context, log AuditLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	if err := s.repo.LogAction(ctx, log); err != nil {
		logger.Warn("Failed to write audit log",
			zap.String("action", log.Action),
			zap.String("resourceID", log.ResourceID),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *service) QueryLogs(ctx context.Context, q Query) ([]AuditLog, error) {
	return s.repo.QueryLogs(ctx, q)
}

// Details encodes v for AuditLog.Details, dropping it if it cannot be encoded.
func Details(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
