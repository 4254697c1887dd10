// test/mock/audit.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogAction(ctx context.Context, log audit.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditService) QueryLogs(ctx context.Context, q audit.Query) ([]audit.AuditLog, error) {
	args := m.Called(ctx, q)
	logs, _ := args.Get(0).([]audit.AuditLog)
	return logs, args.Error(1)
}
