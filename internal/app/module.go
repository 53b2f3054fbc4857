package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/truckstamp/internal/app/api/server"
	"github.com/fatflowers/truckstamp/internal/app/service/checkin"
	"github.com/fatflowers/truckstamp/internal/app/service/idempotency"
	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/app/service/notification"
	"github.com/fatflowers/truckstamp/internal/app/service/ratelimit"
	"github.com/fatflowers/truckstamp/internal/app/service/statistics"
	"github.com/fatflowers/truckstamp/internal/app/service/subscription"
	"github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/app/service/webhook"
	"github.com/fatflowers/truckstamp/internal/app/service/webhooklog"
	"github.com/fatflowers/truckstamp/internal/platform/bus"
	"github.com/fatflowers/truckstamp/internal/platform/cache"
	"github.com/fatflowers/truckstamp/internal/platform/db"
	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	cache.Module,
	bus.Module,
	server.Module,
	idempotency.Module,
	ratelimit.Module,
	loyalty.Module,
	vendor.Module,
	notification.Module,
	checkin.Module,
	subscription.Module,
	webhooklog.Module,
	webhook.Module,
	statistics.Module,
)
