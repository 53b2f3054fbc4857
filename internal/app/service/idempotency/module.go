package idempotency

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		NewService,
		func(s *Service) Ledger { return s },
	),
)
