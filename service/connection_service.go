// service/connection_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
	"github.com/controlcoreio/control-core-012025-sub001/dao"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/health"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/registry"
	"github.com/controlcoreio/control-core-012025-sub001/util"
	helper_util "github.com/controlcoreio/control-core-012025-sub001/util/helper"
)

// IConnectionService defines the interface for connection operations.
// Returned connections always have their credentials masked.
type IConnectionService interface {
	CreateConnection(ctx context.Context, conn model.Connection, creatorID string) (*model.Connection, error)
	UpdateConnection(ctx context.Context, id string, conn model.Connection, updaterID string) (*model.Connection, error)
	DeleteConnection(ctx context.Context, id string, deleterID string) error
	GetConnection(ctx context.Context, id string) (*model.Connection, error)
	ListConnections(ctx context.Context, limit int, offset int) ([]model.ConnectionSummary, error)
	TestConnection(ctx context.Context, req model.ConnectionTestRequest) *model.ConnectionTestResponse
	TestExistingConnection(ctx context.Context, id string) (*model.ConnectionTestResponse, error)
}

// ConnectionEvent is published after a connection change is committed.
type ConnectionEvent struct {
	Connection *model.Connection
	UserID     string
}

// ConnectionService keeps the registry and the configuration store in step.
type ConnectionService struct {
	store           dao.ConfigStore
	registry        *registry.Registry
	health          *health.Service
	validationUtil  *util.ValidationUtil
	notificationSvc *util.NotificationService
	auditService    audit.Service
	eventBus        *util.EventBus
}

var _ IConnectionService = &ConnectionService{}

func NewConnectionService(
	store dao.ConfigStore,
	reg *registry.Registry,
	healthSvc *health.Service,
	validationUtil *util.ValidationUtil,
	notificationSvc *util.NotificationService,
	auditService audit.Service,
	eventBus *util.EventBus,
) *ConnectionService {
	service := &ConnectionService{
		store:           store,
		registry:        reg,
		health:          healthSvc,
		validationUtil:  validationUtil,
		notificationSvc: notificationSvc,
		auditService:    auditService,
		eventBus:        eventBus,
	}

	eventBus.Subscribe(util.EventConnectionCreated, service.handleConnectionEvent("created", audit.ActionConnectionCreated))
	eventBus.Subscribe(util.EventConnectionUpdated, service.handleConnectionEvent("updated", audit.ActionConnectionUpdated))
	eventBus.Subscribe(util.EventConnectionDeleted, service.handleConnectionEvent("deleted", audit.ActionConnectionDeleted))

	return service
}

func (s *ConnectionService) handleConnectionEvent(changeType, action string) util.EventHandler {
	return func(ctx context.Context, event util.Event) error {
		payload, ok := event.Payload.(ConnectionEvent)
		if !ok {
			logger.Error("Invalid event payload type", zap.Any("eventType", event.Type))
			return fmt.Errorf("invalid event payload type: %T", event.Payload)
		}
		logger.Info("Connection event received",
			zap.String("eventType", event.Type),
			zap.String("connectionID", payload.Connection.ID))

		if err := s.notificationSvc.NotifyConnectionChange(ctx, changeType, payload.Connection); err != nil {
			logger.Warn("Failed to send connection notification", zap.Error(err), zap.String("connectionID", payload.Connection.ID))
		}
		return s.auditService.LogAction(ctx, audit.AuditLog{
			UserID:     payload.UserID,
			Action:     action,
			ResourceID: payload.Connection.ID,
			Success:    true,
			Details: audit.Details(map[string]any{
				"version":  payload.Connection.Version,
				"provider": payload.Connection.Provider,
				"enabled":  payload.Connection.Enabled,
			}),
		})
	}
}

func (s *ConnectionService) CreateConnection(ctx context.Context, conn model.Connection, creatorID string) (*model.Connection, error) {
	logger.Info("Creating connection",
		zap.String("name", conn.Name),
		zap.String("provider", conn.Provider),
		zap.String("creatorID", creatorID))

	conn.Version = 0
	if err := s.validationUtil.ValidateConnection(conn); err != nil {
		logger.Warn("Invalid connection data", zap.Error(err), zap.String("name", conn.Name))
		return nil, err
	}

	created, err := s.registry.Create(&conn)
	if err != nil {
		logger.Warn("Failed to register connection", zap.Error(err), zap.String("name", conn.Name))
		return nil, err
	}
	if err := s.store.SaveConnection(ctx, created); err != nil {
		if rbErr := s.registry.Delete(created.ID); rbErr != nil {
			logger.Error("Failed to roll back connection registration", zap.Error(rbErr), zap.String("connectionID", created.ID))
		}
		return nil, fmt.Errorf("failed to persist connection %s: %w", created.ID, err)
	}

	s.eventBus.Publish(ctx, util.EventConnectionCreated, ConnectionEvent{Connection: created.Redacted(), UserID: creatorID})
	logger.Info("Connection created", zap.String("connectionID", created.ID), zap.String("creatorID", creatorID))
	return created.Redacted(), nil
}

// UpdateConnection replaces a connection's configuration. The new version
// is persisted before the registry applies it, so a store failure leaves
// the running configuration untouched.
func (s *ConnectionService) UpdateConnection(ctx context.Context, id string, conn model.Connection, updaterID string) (*model.Connection, error) {
	logger.Info("Updating connection", zap.String("connectionID", id), zap.String("updaterID", updaterID))

	existing, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	conn.ID = id
	conn.Auth = model.MergeCredentials(existing.Auth, conn.Auth)
	if err := s.validationUtil.ValidateConnection(conn); err != nil {
		logger.Warn("Invalid connection data", zap.Error(err), zap.String("connectionID", id))
		return nil, err
	}

	candidate := conn.Clone()
	candidate.CreatedAt = existing.CreatedAt
	candidate.UpdatedAt = time.Now().UTC()
	candidate.Version = existing.Version + 1
	if err := s.store.SaveConnection(ctx, candidate); err != nil {
		return nil, fmt.Errorf("failed to persist connection %s: %w", id, err)
	}

	updated, err := s.registry.Update(&conn)
	if err != nil {
		if rbErr := s.store.SaveConnection(ctx, existing); rbErr != nil {
			logger.Error("Failed to restore stored connection", zap.Error(rbErr), zap.String("connectionID", id))
		}
		return nil, err
	}
	if updated.Version != candidate.Version {
		if err := s.store.SaveConnection(ctx, updated); err != nil {
			logger.Error("Stored connection lags the registry", zap.Error(err), zap.String("connectionID", id))
		}
	}

	s.eventBus.Publish(ctx, util.EventConnectionUpdated, ConnectionEvent{Connection: updated.Redacted(), UserID: updaterID})
	logger.Info("Connection updated",
		zap.String("connectionID", id),
		zap.Int("version", updated.Version),
		zap.String("updaterID", updaterID))
	return updated.Redacted(), nil
}

// DeleteConnection removes the connection from the registry first so its
// refresh jobs and cache entries are gone before the record is.
func (s *ConnectionService) DeleteConnection(ctx context.Context, id string, deleterID string) error {
	logger.Info("Deleting connection", zap.String("connectionID", id), zap.String("deleterID", deleterID))

	existing, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := s.registry.Delete(id); err != nil {
		return err
	}
	if err := s.store.DeleteConnection(ctx, id); err != nil && !isNotFound(err) {
		logger.Error("Failed to delete stored connection", zap.Error(err), zap.String("connectionID", id))
		return fmt.Errorf("failed to delete stored connection %s: %w", id, err)
	}

	s.eventBus.Publish(ctx, util.EventConnectionDeleted, ConnectionEvent{Connection: existing.Redacted(), UserID: deleterID})
	logger.Info("Connection deleted", zap.String("connectionID", id), zap.String("deleterID", deleterID))
	return nil
}

func (s *ConnectionService) GetConnection(ctx context.Context, id string) (*model.Connection, error) {
	conn, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return conn.Redacted(), nil
}

func (s *ConnectionService) ListConnections(ctx context.Context, limit int, offset int) ([]model.ConnectionSummary, error) {
	if limit <= 0 || offset < 0 {
		return nil, pip_errors.ErrInvalidPagination
	}
	all := s.registry.List()
	summaries := make([]model.ConnectionSummary, 0, len(all))
	for _, conn := range all {
		summaries = append(summaries, conn.Summary())
	}
	return helper_util.Page(summaries, limit, offset), nil
}

func (s *ConnectionService) TestConnection(ctx context.Context, req model.ConnectionTestRequest) *model.ConnectionTestResponse {
	return s.health.TestConnection(ctx, req)
}

func (s *ConnectionService) TestExistingConnection(ctx context.Context, id string) (*model.ConnectionTestResponse, error) {
	return s.health.TestExisting(ctx, id)
}

func isNotFound(err error) bool {
	return errors.Is(err, pip_errors.ErrConnectionNotFound)
}
