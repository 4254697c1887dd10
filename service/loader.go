// service/loader.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/controlcoreio/control-core-012025-sub001/dao"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/mapper"
	"github.com/controlcoreio/control-core-012025-sub001/registry"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

const loadConcurrency = 8

// LoadReport counts what a startup load accepted.
type LoadReport struct {
	Connections int
	Mappings    int
	Skipped     []string
}

// LoadConfiguration re-validates every stored record and registers the
// valid ones. A connection that fails validation is skipped; one whose
// rules fail is registered without mappings. Only a store read failure
// aborts the load.
func LoadConfiguration(ctx context.Context, store dao.ConfigStore, reg *registry.Registry, m *mapper.Mapper, validationUtil *util.ValidationUtil) (*LoadReport, error) {
	stored, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored configuration: %w", err)
	}

	connErrs := make([]error, len(stored))
	ruleErrs := make([]error, len(stored))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i := range stored {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			connErrs[i] = validationUtil.ValidateConnection(*stored[i].Connection)
			if connErrs[i] == nil && len(stored[i].Mappings) > 0 {
				ruleErrs[i] = m.ValidateRules(stored[i].Mappings)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &LoadReport{}
	for i, sc := range stored {
		id := sc.Connection.ID
		if connErrs[i] != nil {
			logger.Warn("Skipping invalid stored connection", zap.String("connectionID", id), zap.Error(connErrs[i]))
			report.Skipped = append(report.Skipped, id)
			continue
		}
		if _, err := reg.Create(sc.Connection); err != nil {
			logger.Warn("Skipping stored connection", zap.String("connectionID", id), zap.Error(err))
			report.Skipped = append(report.Skipped, id)
			continue
		}
		report.Connections++

		if ruleErrs[i] != nil {
			logger.Warn("Stored mapping rules are invalid, connection loaded without mappings",
				zap.String("connectionID", id), zap.Error(ruleErrs[i]))
			continue
		}
		if len(sc.Mappings) == 0 {
			continue
		}
		if _, err := reg.SetMappings(id, sc.Mappings); err != nil {
			logger.Warn("Stored mapping rules rejected", zap.String("connectionID", id), zap.Error(err))
			continue
		}
		report.Mappings += len(sc.Mappings)
	}

	logger.Info("Stored configuration loaded",
		zap.Int("connections", report.Connections),
		zap.Int("mappings", report.Mappings),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}
