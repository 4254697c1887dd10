// service/resolution_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

// IResolutionService defines the interface for attribute resolution and
// cache administration
type IResolutionService interface {
	Resolve(ctx context.Context, req model.ResolutionRequest, callerID string) (*model.ResolutionResponse, error)
	InvalidateCache(ctx context.Context, connectionID string, subject string, userID string) (int, error)
	CacheStats(ctx context.Context) model.CacheStats
	QueryAudit(ctx context.Context, q audit.Query) ([]audit.AuditLog, error)
}

// AttributeResolver is satisfied by *resolver.Resolver.
type AttributeResolver interface {
	Resolve(ctx context.Context, req model.ResolutionRequest) (*model.ResolutionResponse, error)
}

// CacheAdmin is satisfied by *cache.Manager.
type CacheAdmin interface {
	Invalidate(connectionID string) int
	InvalidateSubject(connectionID, subject string) bool
	Stats() model.CacheStats
}

// ConnectionLookup is satisfied by *registry.Registry.
type ConnectionLookup interface {
	Get(id string) (*model.Connection, error)
}

// ResolutionEvent is published after every resolution. It carries counts
// and attribute names, never values.
type ResolutionEvent struct {
	Subject    string
	CallerID   string
	Attributes []string
	Resolved   int
	Warnings   int
	Outcome    string
	Took       time.Duration
}

type CacheEvent struct {
	ConnectionID string
	Subject      string
	Entries      int
	UserID       string
}

type ResolutionService struct {
	resolver       AttributeResolver
	cache          CacheAdmin
	connections    ConnectionLookup
	validationUtil *util.ValidationUtil
	auditService   audit.Service
	eventBus       *util.EventBus
	now            func() time.Time
}

var _ IResolutionService = &ResolutionService{}

func NewResolutionService(
	res AttributeResolver,
	cacheAdmin CacheAdmin,
	connections ConnectionLookup,
	validationUtil *util.ValidationUtil,
	auditService audit.Service,
	eventBus *util.EventBus,
) *ResolutionService {
	service := &ResolutionService{
		resolver:       res,
		cache:          cacheAdmin,
		connections:    connections,
		validationUtil: validationUtil,
		auditService:   auditService,
		eventBus:       eventBus,
		now:            time.Now,
	}

	eventBus.Subscribe(util.EventAttributesResolved, service.handleResolved)
	eventBus.Subscribe(util.EventCacheInvalidated, service.handleCacheInvalidated)

	return service
}

func (s *ResolutionService) handleResolved(ctx context.Context, event util.Event) error {
	payload, ok := event.Payload.(ResolutionEvent)
	if !ok {
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}
	return s.auditService.LogAction(ctx, audit.AuditLog{
		UserID:     payload.CallerID,
		Action:     audit.ActionAttributesResolved,
		ResourceID: payload.Subject,
		Success:    payload.Outcome != "error",
		Details: audit.Details(map[string]any{
			"attributes":  payload.Attributes,
			"resolved":    payload.Resolved,
			"warnings":    payload.Warnings,
			"outcome":     payload.Outcome,
			"duration_ms": payload.Took.Milliseconds(),
		}),
	})
}

func (s *ResolutionService) handleCacheInvalidated(ctx context.Context, event util.Event) error {
	payload, ok := event.Payload.(CacheEvent)
	if !ok {
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}
	return s.auditService.LogAction(ctx, audit.AuditLog{
		UserID:     payload.UserID,
		Action:     audit.ActionCacheInvalidated,
		ResourceID: payload.ConnectionID,
		Success:    true,
		Details:    audit.Details(map[string]any{"subject": payload.Subject, "entries": payload.Entries}),
	})
}

func (s *ResolutionService) Resolve(ctx context.Context, req model.ResolutionRequest, callerID string) (*model.ResolutionResponse, error) {
	if err := s.validationUtil.ValidateSubject(req.Subject); err != nil {
		return nil, err
	}
	start := s.now()
	resp, err := s.resolver.Resolve(ctx, req)
	if resp == nil {
		return nil, err
	}

	outcome := "complete"
	switch {
	case err != nil:
		outcome = "error"
	case len(resp.Warnings) > 0:
		outcome = "partial"
	}
	s.eventBus.Publish(ctx, util.EventAttributesResolved, ResolutionEvent{
		Subject:    req.Subject,
		CallerID:   callerID,
		Attributes: req.Attributes,
		Resolved:   len(resp.Values),
		Warnings:   len(resp.Warnings),
		Outcome:    outcome,
		Took:       s.now().Sub(start),
	})
	return resp, err
}

// InvalidateCache drops one subject or every entry of a connection and
// returns how many entries were affected.
func (s *ResolutionService) InvalidateCache(ctx context.Context, connectionID string, subject string, userID string) (int, error) {
	if _, err := s.connections.Get(connectionID); err != nil {
		return 0, err
	}

	var n int
	subject = strings.TrimSpace(subject)
	if subject != "" {
		if s.cache.InvalidateSubject(connectionID, subject) {
			n = 1
		}
	} else {
		n = s.cache.Invalidate(connectionID)
	}
	logger.Info("Cache invalidated",
		zap.String("connectionID", connectionID),
		zap.Bool("singleSubject", subject != ""),
		zap.Int("entries", n),
		zap.String("userID", userID))

	s.eventBus.Publish(ctx, util.EventCacheInvalidated, CacheEvent{ConnectionID: connectionID, Subject: subject, Entries: n, UserID: userID})
	return n, nil
}

func (s *ResolutionService) CacheStats(ctx context.Context) model.CacheStats {
	return s.cache.Stats()
}

func (s *ResolutionService) QueryAudit(ctx context.Context, q audit.Query) ([]audit.AuditLog, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, fmt.Errorf("%w: to is before from", pip_errors.ErrInvalidQuery)
	}
	return s.auditService.QueryLogs(ctx, q)
}
