package checkin

import (
	"github.com/fatflowers/truckstamp/internal/app/service/idempotency"
	"github.com/fatflowers/truckstamp/internal/app/service/notification"
	"github.com/fatflowers/truckstamp/internal/app/service/ratelimit"
	vendorsvc "github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newService(cfg *config.Config, vendors *vendorsvc.Service, limiter *ratelimit.Limiter, ledger idempotency.Ledger, store *GormStore, notifier notification.Notifier, log *zap.SugaredLogger) (*Service, error) {
	return NewService(Params{
		Config:   cfg,
		Vendors:  vendors,
		Limiter:  limiter,
		Ledger:   ledger,
		Store:    store,
		Notifier: notifier,
		Log:      log,
	})
}

var Module = fx.Options(
	fx.Provide(NewGormStore, newService),
)
