// service/services.go
package service

import (
	"github.com/controlcoreio/control-core-012025-sub001/audit"
	"github.com/controlcoreio/control-core-012025-sub001/dao"
	"github.com/controlcoreio/control-core-012025-sub001/health"
	"github.com/controlcoreio/control-core-012025-sub001/mapper"
	"github.com/controlcoreio/control-core-012025-sub001/registry"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

type Services struct {
	Connection IConnectionService
	Mapping    IMappingService
	Resolution IResolutionService
}

// Engine groups the runtime components the services sit on.
type Engine struct {
	Registry *registry.Registry
	Mapper   *mapper.Mapper
	Health   *health.Service
	Resolver AttributeResolver
	Cache    CacheAdmin
}

func InitializeServices(
	engine Engine,
	store dao.ConfigStore,
	auditService audit.Service,
	validationUtil *util.ValidationUtil,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
) (*Services, error) {
	services := &Services{
		Connection: NewConnectionService(store, engine.Registry, engine.Health, validationUtil, notificationSvc, auditService, eventBus),
		Mapping:    NewMappingService(store, engine.Registry, engine.Mapper, notificationSvc, auditService, eventBus),
		Resolution: NewResolutionService(engine.Resolver, engine.Cache, engine.Registry, validationUtil, auditService, eventBus),
	}

	return services, nil
}
