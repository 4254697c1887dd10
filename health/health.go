// health/health.go

// Package health runs connection tests for administrators, including for
// configurations that are not saved yet.
package health

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/connector"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const defaultTestTimeout = 10 * time.Second

// Connections finds saved connections by id.
type Connections interface {
	Get(id string) (*model.Connection, error)
}

// Service runs connection tests against live or proposed configurations.
type Service struct {
	connectors  *connector.Registry
	connections Connections
	timeout     time.Duration
}

// NewService returns a health service whose tests give up after timeout.
func NewService(connectors *connector.Registry, connections Connections, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultTestTimeout
	}
	return &Service{connectors: connectors, connections: connections, timeout: timeout}
}

// TestConnection builds a throwaway connector for req and tests it. It
// always returns a response; failures are described by ErrorReason.
func (s *Service) TestConnection(ctx context.Context, req model.ConnectionTestRequest) *model.ConnectionTestResponse {
	return s.run(ctx, connector.ConfigFromTestRequest(req))
}

// TestExisting tests a saved connection with its stored settings.
func (s *Service) TestExisting(ctx context.Context, id string) (*model.ConnectionTestResponse, error) {
	conn, err := s.connections.Get(id)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, connector.ConfigFromConnection(conn)), nil
}

type outcome struct {
	result *connector.TestResult
	err    error
}

func (s *Service) run(ctx context.Context, cfg connector.Config) *model.ConnectionTestResponse {
	start := time.Now()
	c, err := s.connectors.Build(cfg)
	if err != nil {
		return s.failure(cfg, model.ReasonConfiguration, err, time.Since(start))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer closeConnector(c)
		res, err := c.TestConnection(ctx)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		took := time.Since(start)
		if out.err != nil {
			return s.failure(cfg, reasonFor(out.err), out.err, took)
		}
		resp := &model.ConnectionTestResponse{
			Success:        true,
			Status:         model.StatusConnected,
			ResponseTimeMS: milliseconds(took),
			Details:        &model.ConnectionTestDetails{Fields: []model.DiscoveredField{}},
		}
		if out.result != nil {
			if out.result.Latency > 0 {
				resp.ResponseTimeMS = milliseconds(out.result.Latency)
			}
			if out.result.Fields != nil {
				resp.Details.Fields = out.result.Fields
			}
		}
		metrics.ConnectionTest("success")
		logger.Info("Connection test succeeded",
			zap.String("connectionID", cfg.ConnectionID),
			zap.String("provider", cfg.Provider),
			zap.Int("fields", len(resp.Details.Fields)))
		return resp
	case <-ctx.Done():
		return s.failure(cfg, model.ReasonTimeout, ctx.Err(), time.Since(start))
	}
}

func (s *Service) failure(cfg connector.Config, reason model.TestFailureReason, err error, took time.Duration) *model.ConnectionTestResponse {
	metrics.ConnectionTest(string(reason))
	logger.Warn("Connection test failed",
		zap.String("connectionID", cfg.ConnectionID),
		zap.String("provider", cfg.Provider),
		zap.String("reason", string(reason)),
		zap.Error(err))
	return &model.ConnectionTestResponse{
		Success:        false,
		Status:         model.StatusError,
		ResponseTimeMS: milliseconds(took),
		ErrorMessage:   err.Error(),
		ErrorReason:    reason,
	}
}

func reasonFor(err error) model.TestFailureReason {
	switch {
	case pip_errors.IsAuth(err):
		return model.ReasonAuth
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, pip_errors.ErrSourceTimeout):
		return model.ReasonTimeout
	case pip_errors.IsPermanent(err), errors.Is(err, pip_errors.ErrConnectorNotRegistered):
		return model.ReasonConfiguration
	default:
		return model.ReasonUnreachable
	}
}

func closeConnector(c connector.Connector) {
	if closer, ok := c.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close test connector", zap.Error(err))
		}
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
