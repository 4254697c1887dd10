// service/mapping_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
	"github.com/controlcoreio/control-core-012025-sub001/dao"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/mapper"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/registry"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

// IMappingService defines the interface for mapping table operations
type IMappingService interface {
	GetMappings(ctx context.Context, connectionID string) ([]model.MappingRule, error)
	SetMappings(ctx context.Context, connectionID string, rules []model.MappingRule, updaterID string) ([]model.MappingRule, error)
}

// MappingsEvent is published after a mapping table is replaced.
type MappingsEvent struct {
	ConnectionID string
	Rules        int
	UserID       string
}

type MappingService struct {
	store           dao.ConfigStore
	registry        *registry.Registry
	mapper          *mapper.Mapper
	notificationSvc *util.NotificationService
	auditService    audit.Service
	eventBus        *util.EventBus
}

var _ IMappingService = &MappingService{}

func NewMappingService(
	store dao.ConfigStore,
	reg *registry.Registry,
	m *mapper.Mapper,
	notificationSvc *util.NotificationService,
	auditService audit.Service,
	eventBus *util.EventBus,
) *MappingService {
	service := &MappingService{
		store:           store,
		registry:        reg,
		mapper:          m,
		notificationSvc: notificationSvc,
		auditService:    auditService,
		eventBus:        eventBus,
	}

	eventBus.Subscribe(util.EventMappingsUpdated, service.handleMappingsUpdated)

	return service
}

func (s *MappingService) handleMappingsUpdated(ctx context.Context, event util.Event) error {
	payload, ok := event.Payload.(MappingsEvent)
	if !ok {
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}
	logger.Info("Mappings updated event received",
		zap.String("connectionID", payload.ConnectionID),
		zap.Int("rules", payload.Rules))

	if conn, err := s.registry.Get(payload.ConnectionID); err == nil {
		if err := s.notificationSvc.NotifyConnectionChange(ctx, "mappings", conn.Redacted()); err != nil {
			logger.Warn("Failed to send mapping notification", zap.Error(err), zap.String("connectionID", payload.ConnectionID))
		}
	}
	return s.auditService.LogAction(ctx, audit.AuditLog{
		UserID:     payload.UserID,
		Action:     audit.ActionMappingsUpdated,
		ResourceID: payload.ConnectionID,
		Success:    true,
		Details:    audit.Details(map[string]int{"rules": payload.Rules}),
	})
}

func (s *MappingService) GetMappings(ctx context.Context, connectionID string) ([]model.MappingRule, error) {
	return s.registry.Mappings(connectionID)
}

// SetMappings validates and replaces a connection's mapping table. The
// registry checks attribute ownership first; the store is written once the
// table is accepted and the previous table is restored if that fails.
func (s *MappingService) SetMappings(ctx context.Context, connectionID string, rules []model.MappingRule, updaterID string) ([]model.MappingRule, error) {
	logger.Info("Replacing mappings",
		zap.String("connectionID", connectionID),
		zap.Int("rules", len(rules)),
		zap.String("updaterID", updaterID))

	previous, err := s.registry.Mappings(connectionID)
	if err != nil {
		return nil, err
	}
	if err := s.mapper.ValidateRules(rules); err != nil {
		logger.Warn("Invalid mapping rules", zap.Error(err), zap.String("connectionID", connectionID))
		return nil, err
	}

	stored, err := s.registry.SetMappings(connectionID, rules)
	if err != nil {
		logger.Warn("Mapping rules rejected", zap.Error(err), zap.String("connectionID", connectionID))
		return nil, err
	}
	if err := s.store.SaveMappings(ctx, connectionID, stored); err != nil {
		if _, rbErr := s.registry.SetMappings(connectionID, previous); rbErr != nil {
			logger.Error("Failed to restore previous mappings", zap.Error(rbErr), zap.String("connectionID", connectionID))
		}
		return nil, fmt.Errorf("failed to persist mappings of %s: %w", connectionID, err)
	}

	s.eventBus.Publish(ctx, util.EventMappingsUpdated, MappingsEvent{ConnectionID: connectionID, Rules: len(stored), UserID: updaterID})
	return stored, nil
}
