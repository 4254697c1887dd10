// util/notification_service.go

package util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const failureNotifyInterval = time.Minute

// Notification is the webhook payload. It names the connection only and
// never carries credentials or attribute values.
type Notification struct {
	Kind         string    `json:"kind"`
	ChangeType   string    `json:"change_type,omitempty"`
	ConnectionID string    `json:"connection_id"`
	Name         string    `json:"name,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// NotificationService logs administrator-facing events and, when a webhook
// URL is configured, posts them with retries.
type NotificationService struct {
	webhookURL string
	client     *retryablehttp.Client
	now        func() time.Time

	mu           sync.Mutex
	lastFailures map[string]time.Time
	pending      sync.WaitGroup
}

func NewNotificationService(webhookURL string) *NotificationService {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.Logger = nil
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	return &NotificationService{
		webhookURL:   webhookURL,
		client:       client,
		now:          time.Now,
		lastFailures: make(map[string]time.Time),
	}
}

func (n *NotificationService) NotifyConnectionChange(ctx context.Context, changeType string, conn *model.Connection) error {
	switch changeType {
	case "created", "updated", "deleted", "mappings":
	default:
		return fmt.Errorf("unknown change type: %s", changeType)
	}
	logger.Info("NOTIFICATION: Connection changed",
		zap.String("changeType", changeType),
		zap.String("connectionID", conn.ID),
		zap.String("connectionName", conn.Name))
	return n.post(ctx, Notification{
		Kind:         "connection_change",
		ChangeType:   changeType,
		ConnectionID: conn.ID,
		Name:         conn.Name,
		Provider:     conn.Provider,
		At:           n.now().UTC(),
	})
}

// NotifyConnectionFailure reports credential and configuration failures.
// Repeats for the same connection are throttled and delivery is
// asynchronous.
func (n *NotificationService) NotifyConnectionFailure(ctx context.Context, conn *model.Connection, err error) {
	now := n.now()
	n.mu.Lock()
	if last, ok := n.lastFailures[conn.ID]; ok && now.Sub(last) < failureNotifyInterval {
		n.mu.Unlock()
		return
	}
	n.lastFailures[conn.ID] = now
	n.mu.Unlock()

	reason := "unknown"
	switch {
	case pip_errors.IsAuth(err):
		reason = "auth"
	case pip_errors.IsPermanent(err):
		reason = "permanent"
	case pip_errors.IsTransient(err):
		reason = "transient"
	}
	logger.Warn("NOTIFICATION: Connection needs administrator attention",
		zap.String("connectionID", conn.ID),
		zap.String("provider", conn.Provider),
		zap.String("reason", reason),
		zap.Error(err))

	note := Notification{
		Kind:         "connection_failure",
		ConnectionID: conn.ID,
		Name:         conn.Name,
		Provider:     conn.Provider,
		Reason:       reason,
		Message:      err.Error(),
		At:           now.UTC(),
	}
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		if err := n.post(context.WithoutCancel(ctx), note); err != nil {
			logger.Error("Failed to deliver failure notification", zap.String("connectionID", conn.ID), zap.Error(err))
		}
	}()
}

// Flush waits for asynchronous deliveries started so far.
func (n *NotificationService) Flush() {
	n.pending.Wait()
}

func (n *NotificationService) post(ctx context.Context, note Notification) error {
	if n.webhookURL == "" {
		return nil
	}
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("error marshaling notification: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	}
	return nil
}
