package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/tool"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoRewardAvailable = errors.New("no reward available")
	ErrCardNotFound      = errors.New("loyalty card not found")
)

// Delta describes what a single stamp did to a card.
type Delta struct {
	StampsEarned   int  `json:"stampsEarned"`
	TotalStamps    int  `json:"totalStamps"`
	StampsRequired int  `json:"stampsRequired"`
	RewardUnlocked bool `json:"rewardUnlocked"`
	// RewardsUnlocked is more than one only when the threshold was lowered below the current stamps.
	RewardsUnlocked  int64 `json:"-"`
	RewardsAvailable int64 `json:"rewardsAvailable"`
}

// Stamp adds one stamp to card and rolls complete sets over into rewards. required is the
// threshold in effect for this increment; values below one are treated as one.
func Stamp(card *models.LoyaltyCard, required int, at time.Time) Delta {
	if required < 1 {
		required = 1
	}
	card.StampsRequired = required
	card.Stamps++
	card.TotalStamps++
	t := at
	card.LastCheckIn = &t

	var unlocked int64
	if card.Stamps >= required {
		unlocked = int64(card.Stamps / required)
		card.RewardsEarned += unlocked
		card.Stamps %= required
	}
	return Delta{
		StampsEarned:     1,
		TotalStamps:      card.Stamps,
		StampsRequired:   required,
		RewardUnlocked:   unlocked > 0,
		RewardsUnlocked:  unlocked,
		RewardsAvailable: card.RewardsAvailable(),
	}
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// StampTx stamps the (user, vendor) card inside tx, creating it on first use.
// The row is locked for the rest of the transaction.
func (s *Service) StampTx(ctx context.Context, tx *gorm.DB, userID, vendorID string, required int, at time.Time) (*models.LoyaltyCard, *Delta, error) {
	fresh := &models.LoyaltyCard{
		ID:             tool.GenerateUUIDV7(),
		UserID:         userID,
		VendorID:       vendorID,
		StampsRequired: required,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "vendor_id"}}, DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create loyalty card: %w", err)
	}

	var card models.LoyaltyCard
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND vendor_id = ?", userID, vendorID).
		First(&card).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock loyalty card: %w", err)
	}

	delta := Stamp(&card, required, at)
	card.UpdatedAt = at
	if err := tx.WithContext(ctx).Save(&card).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to save loyalty card: %w", err)
	}
	if delta.RewardUnlocked {
		logctx.FromCtx(ctx, s.log).Infow("reward unlocked", "card_id", card.ID, "vendor_id", vendorID, "rewards_earned", card.RewardsEarned)
	}
	return &card, &delta, nil
}

func (s *Service) ListCards(ctx context.Context, userID string) ([]*models.LoyaltyCard, error) {
	var cards []*models.LoyaltyCard
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at desc").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to list loyalty cards: %w", err)
	}
	return cards, nil
}

func (s *Service) GetCard(ctx context.Context, userID, vendorID string) (*models.LoyaltyCard, error) {
	var card models.LoyaltyCard
	if err := s.db.WithContext(ctx).Where("user_id = ? AND vendor_id = ?", userID, vendorID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get loyalty card: %w", err)
	}
	return &card, nil
}

// Redeem consumes one earned reward. The guard in the WHERE clause keeps
// rewards_redeemed <= rewards_earned under concurrent redemptions.
func (s *Service) Redeem(ctx context.Context, userID, vendorID string) (*models.LoyaltyCard, error) {
	res := s.db.WithContext(ctx).Model(&models.LoyaltyCard{}).
		Where("user_id = ? AND vendor_id = ? AND rewards_redeemed < rewards_earned", userID, vendorID).
		Updates(map[string]any{
			"rewards_redeemed": gorm.Expr("rewards_redeemed + 1"),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to redeem reward: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoRewardAvailable
	}
	logctx.FromCtx(ctx, s.log).Infow("reward redeemed", "vendor_id", vendorID)
	return s.GetCard(ctx, userID, vendorID)
}
