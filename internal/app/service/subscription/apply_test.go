package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	models "github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/config"
	types "github.com/fatflowers/truckstamp/pkg/types"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: ":memory:?_time_format=sqlite"}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.SubscriptionState{}, &models.SubscriptionLog{}, &models.Vendor{}, &models.IdempotencyClaim{}))
	return NewService(&config.Config{}, db, zap.NewNop().Sugar())
}

// markDone records the event inside the apply transaction, standing in for the claim finalizer.
func markDone(eventID string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.Create(&models.IdempotencyClaim{
			Key:   "stripe:" + eventID,
			Scope: models.IdempotencyScopeStripeWebhook,
			State: models.IdempotencyClaimStateCompleted,
		}).Error
	}
}

func claimExists(t *testing.T, s *Service, eventID string) bool {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.IdempotencyClaim{}).Where("key = ?", "stripe:"+eventID).Count(&n).Error)
	return n > 0
}

func TestApply_CreatesStateAndFeaturesVendors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.db.Create(&models.Vendor{ID: "v1", OwnerID: "u1", Name: "Taco Truck"}).Error)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	res, err := s.Apply(ctx, &Change{
		EventID:        "evt_1",
		Reason:         types.SubscriptionChangeReasonCheckoutCompleted,
		EventAt:        at,
		UserID:         "u1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         lo.ToPtr(types.SubscriptionStatusActive),
		Tier:           lo.ToPtr(types.SubscriptionTierFeatured),
	}, markDone("evt_1"))
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, claimExists(t, s, "evt_1"))

	st, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "cus_1", st.CustomerID)
	require.Equal(t, "evt_1", st.LastEventID)
	require.True(t, st.Featured())

	var v models.Vendor
	require.NoError(t, s.db.First(&v, "id = ?", "v1").Error)
	require.True(t, v.IsFeatured)
	require.Equal(t, types.SubscriptionTierFeatured, v.Tier)

	require.Eventually(t, func() bool {
		var n int64
		return s.db.Model(&models.SubscriptionLog{}).Where("user_id = ?", "u1").Count(&n).Error == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestApply_ResolvesByProviderIDs(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Apply(ctx, &Change{EventID: "evt_1", EventAt: at, UserID: "u1", CustomerID: "cus_1", SubscriptionID: "sub_1",
		Status: lo.ToPtr(types.SubscriptionStatusActive), Tier: lo.ToPtr(types.SubscriptionTierFeatured)}, nil)
	require.NoError(t, err)

	res, err := s.Apply(ctx, &Change{EventID: "evt_2", EventAt: at.Add(time.Hour), CustomerID: "cus_1",
		Status: lo.ToPtr(types.SubscriptionStatusPastDue)}, nil)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "u1", res.State.UserID)

	res, err = s.Apply(ctx, &Change{EventID: "evt_3", EventAt: at.Add(2 * time.Hour), SubscriptionID: "sub_1",
		Status: lo.ToPtr(types.SubscriptionStatusCanceled)}, nil)
	require.NoError(t, err)
	require.Equal(t, "u1", res.State.UserID)

	st, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusCanceled, st.Status)
	require.Equal(t, "evt_3", st.LastEventID)
}

func TestApply_StaleEventOnlyCommitsClaim(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Apply(ctx, &Change{EventID: "evt_new", EventAt: at, UserID: "u1",
		Status: lo.ToPtr(types.SubscriptionStatusActive), Tier: lo.ToPtr(types.SubscriptionTierFeatured)}, nil)
	require.NoError(t, err)

	res, err := s.Apply(ctx, &Change{EventID: "evt_old", EventAt: at.Add(-time.Minute), UserID: "u1",
		Status: lo.ToPtr(types.SubscriptionStatusCanceled)}, markDone("evt_old"))
	require.NoError(t, err)
	require.True(t, res.Stale)
	require.False(t, res.Applied)
	require.True(t, claimExists(t, s, "evt_old"))

	st, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, st.Status)
	require.Equal(t, "evt_new", st.LastEventID)
}

func TestApply_UnknownSubject(t *testing.T) {
	s := newTestService(t)
	called := false
	_, err := s.Apply(context.Background(), &Change{EventID: "evt_1", EventAt: time.Now(), CustomerID: "cus_9"}, func(*gorm.DB) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrUnknownSubject)
	require.False(t, called)

	var n int64
	require.NoError(t, s.db.Model(&models.SubscriptionState{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestApply_OnCommitFailureRollsBack(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.db.Create(&models.Vendor{ID: "v1", OwnerID: "u1", Name: "Taco Truck"}).Error)
	boom := errors.New("claim lost")

	_, err := s.Apply(ctx, &Change{EventID: "evt_1", EventAt: time.Now(), UserID: "u1",
		Status: lo.ToPtr(types.SubscriptionStatusActive), Tier: lo.ToPtr(types.SubscriptionTierFeatured)}, func(*gorm.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	st, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, st)
	var v models.Vendor
	require.NoError(t, s.db.First(&v, "id = ?", "v1").Error)
	require.False(t, v.IsFeatured)
}
