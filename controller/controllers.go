// controller/controllers.go
package controller

import "github.com/controlcoreio/control-core-012025-sub001/service"

type Controllers struct {
	Connection *ConnectionController
	Mapping    *MappingController
	Resolution *ResolutionController
}

func InitializeControllers(services *service.Services) *Controllers {
	return &Controllers{
		Connection: NewConnectionController(services.Connection),
		Mapping:    NewMappingController(services.Mapping),
		Resolution: NewResolutionController(services.Resolution),
	}
}
