// connector/retry.go
package connector

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// RetryPolicy bounds retries of transient fetch failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

type retrying struct {
	Connector
	connectionID string
	policy       RetryPolicy
}

// WithRetry retries TransientNetworkError with exponential backoff up to
// policy.MaxAttempts. Auth and permanent errors return on the first attempt.
func WithRetry(c Connector, connectionID string, policy RetryPolicy) Connector {
	if policy.MaxAttempts <= 1 {
		return c
	}
	return &retrying{Connector: c, connectionID: connectionID, policy: policy}
}

func (r *retrying) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	var raw model.RawFields
	operation := func() error {
		out, err := r.Connector.Fetch(ctx, subject)
		if err != nil {
			if pip_errors.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		raw = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying upstream fetch",
			zap.String("connectionID", r.connectionID),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(operation, r.policy.backOff(ctx), notify); err != nil {
		// the context can expire between attempts; keep the error typed
		if !pip_errors.IsAuth(err) && !pip_errors.IsTransient(err) && !pip_errors.IsPermanent(err) {
			err = &pip_errors.TransientNetworkError{ConnectionID: r.connectionID, Op: "connector.Fetch", Err: err}
		}
		return nil, err
	}
	return raw, nil
}

func (r *retrying) Close() error {
	if closer, ok := r.Connector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
