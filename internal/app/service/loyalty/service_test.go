package loyalty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/truckstamp/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

var errAbort = errors.New("abort")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: ":memory:?_time_format=sqlite"}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.LoyaltyCard{}))
	return db
}

func stampOnce(t *testing.T, s *Service, required int, at time.Time) (*models.LoyaltyCard, *Delta) {
	t.Helper()
	var card *models.LoyaltyCard
	var delta *Delta
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		card, delta, err = s.StampTx(context.Background(), tx, "u1", "v1", required, at)
		return err
	})
	require.NoError(t, err)
	return card, delta
}

func TestService_StampTxCreatesAndRollsOver(t *testing.T) {
	s := NewService(newTestDB(t), zap.NewNop().Sugar())
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first, d := stampOnce(t, s, 3, at)
	require.Equal(t, 1, first.Stamps)
	require.False(t, d.RewardUnlocked)

	stampOnce(t, s, 3, at.Add(time.Hour))
	card, d := stampOnce(t, s, 3, at.Add(2*time.Hour))
	require.Equal(t, first.ID, card.ID)
	require.True(t, d.RewardUnlocked)
	require.Equal(t, int64(1), d.RewardsAvailable)

	stored, err := s.GetCard(context.Background(), "u1", "v1")
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stamps)
	require.Equal(t, int64(3), stored.TotalStamps)
	require.Equal(t, int64(1), stored.RewardsEarned)
	require.Equal(t, 3, stored.StampsRequired)

	var count int64
	require.NoError(t, s.db.Model(&models.LoyaltyCard{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestService_StampTxRollsBackWithCaller(t *testing.T) {
	s := NewService(newTestDB(t), zap.NewNop().Sugar())
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	stampOnce(t, s, 10, at)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, _, err := s.StampTx(context.Background(), tx, "u1", "v1", 10, at); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	stored, err := s.GetCard(context.Background(), "u1", "v1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.Stamps)
}

func TestService_Redeem(t *testing.T) {
	s := NewService(newTestDB(t), zap.NewNop().Sugar())
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Redeem(ctx, "u1", "v1")
	require.ErrorIs(t, err, ErrNoRewardAvailable)

	stampOnce(t, s, 1, at)
	card, err := s.Redeem(ctx, "u1", "v1")
	require.NoError(t, err)
	require.Equal(t, int64(1), card.RewardsRedeemed)
	require.Zero(t, card.RewardsAvailable())

	_, err = s.Redeem(ctx, "u1", "v1")
	require.ErrorIs(t, err, ErrNoRewardAvailable)

	_, err = s.GetCard(ctx, "u1", "v2")
	require.ErrorIs(t, err, ErrCardNotFound)
}
