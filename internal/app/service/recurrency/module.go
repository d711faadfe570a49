package recurrency

import (
	"go.uber.org/fx"

	"github.com/fatflowers/deliveryhub/internal/app/service/customer"
	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
)

// Module exposes the recurrency scheduler via Fx. It expects the delivery
// and customer services to be provided.
var Module = fx.Options(
	fx.Provide(
		NewService,
		func(s *delivery.Service) DeliveryCreator { return s },
		func(s *customer.Service) CustomerLookup { return s },
		func(s *Service) Manager { return s },
	),
)
