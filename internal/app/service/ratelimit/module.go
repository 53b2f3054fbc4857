package ratelimit

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		NewRedisStore,
		func(s *RedisStore) Store { return s },
		NewLimiter,
	),
)
