package webhooklog

import (
	"context"

	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder persists webhook delivery logs.
type Recorder interface {
	Save(ctx context.Context, log *models.WebhookDeliveryLog)
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook delivery log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, log *models.WebhookDeliveryLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	go func() {
		if err := s.db.Create(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook delivery log: %v", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(
		New,
		func(s *Service) Recorder { return s },
	),
)
