package subscription

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Applier is the write side used by the webhook processor.
type Applier interface {
	Apply(ctx context.Context, ch *Change, onCommit func(tx *gorm.DB) error) (*ApplyResult, error)
}

// Module exposes the subscription service via Fx.
var Module = fx.Options(
	fx.Provide(
		NewService,
		func(s *Service) Applier { return s },
	),
)
