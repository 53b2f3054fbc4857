package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/tool"
	types "github.com/fatflowers/truckstamp/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownSubject means the event cannot be tied to any user we know. Retrying will not help.
var ErrUnknownSubject = errors.New("subscription subject unknown")

// Change is a normalized billing event. Nil fields are absent from the event and leave the
// stored value untouched.
type Change struct {
	EventID   string
	EventType string
	Reason    types.SubscriptionChangeReason
	// EventAt is the provider's creation time of the event, used for last-write-wins.
	EventAt time.Time

	UserID         string
	CustomerID     string
	SubscriptionID string
	PriceID        string

	Status             *types.SubscriptionStatus
	Tier               *types.SubscriptionTier
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
}

type ApplyResult struct {
	Applied bool
	// Stale is set when a newer event was already applied; nothing was written.
	Stale bool
	State *models.SubscriptionState
}

type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log}
}

// ResolveTier fills ch.Tier from the configured billing plans when the event names a price
// but no explicit tier.
func ResolveTier(cfg *config.Config, ch *Change) {
	if ch.Tier != nil || ch.PriceID == "" || cfg == nil {
		return
	}
	if plan := cfg.GetBillingPlanByPriceID(types.BillingProviderStripe, ch.PriceID); plan != nil {
		tier := plan.Tier
		ch.Tier = &tier
	}
}

// Merge applies the present fields of ch onto st.
func Merge(st *models.SubscriptionState, ch *Change) {
	if ch.CustomerID != "" {
		st.CustomerID = ch.CustomerID
	}
	if ch.SubscriptionID != "" {
		st.SubscriptionID = ch.SubscriptionID
	}
	if ch.Status != nil {
		st.Status = *ch.Status
	}
	if ch.Tier != nil {
		st.Tier = *ch.Tier
	}
	if ch.CurrentPeriodStart != nil {
		st.CurrentPeriodStart = ch.CurrentPeriodStart
	}
	if ch.CurrentPeriodEnd != nil {
		st.CurrentPeriodEnd = ch.CurrentPeriodEnd
	}
	if ch.CancelAtPeriodEnd != nil {
		st.CancelAtPeriodEnd = *ch.CancelAtPeriodEnd
	}
	st.LastEventID = ch.EventID
	st.LastEventAt = ch.EventAt
}

// IsStale reports whether ch is older than the last event applied to st.
func IsStale(st *models.SubscriptionState, ch *Change) bool {
	return st != nil && !st.LastEventAt.IsZero() && ch.EventAt.Before(st.LastEventAt)
}

// Apply writes ch to the subject's subscription state in one transaction and runs onCommit
// inside that same transaction, also for stale events.
func (s *Service) Apply(ctx context.Context, ch *Change, onCommit func(tx *gorm.DB) error) (*ApplyResult, error) {
	if ch == nil {
		return nil, fmt.Errorf("nil change")
	}
	ResolveTier(s.cfg, ch)

	var result *ApplyResult
	var before *models.SubscriptionState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockSubject(ctx, tx, ch)
		if err != nil {
			return err
		}

		if IsStale(current, ch) {
			logctx.FromCtx(ctx, s.log).Infow("stale subscription event ignored",
				"event_id", ch.EventID, "event_at", ch.EventAt, "last_event_id", current.LastEventID, "last_event_at", current.LastEventAt)
			result = &ApplyResult{Stale: true, State: current}
			return runOnCommit(tx, onCommit)
		}

		cp := *current
		before = &cp
		Merge(current, ch)
		if err := tx.Save(current).Error; err != nil {
			return fmt.Errorf("failed to save subscription state: %w", err)
		}
		if err := s.syncVendors(ctx, tx, current); err != nil {
			return err
		}
		result = &ApplyResult{Applied: true, State: current}
		return runOnCommit(tx, onCommit)
	})
	if err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to apply subscription change: %w", err)
	}

	if result.Applied {
		s.saveLog(ctx, ch, before, result.State)
		if before.Featured() != result.State.Featured() {
			logctx.FromCtx(ctx, s.log).Infow("featured status changed", "user_id", result.State.UserID, "featured", result.State.Featured(), "reason", ch.Reason)
		}
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*models.SubscriptionState, error) {
	var st models.SubscriptionState
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription state: %w", err)
	}
	return &st, nil
}

func runOnCommit(tx *gorm.DB, onCommit func(tx *gorm.DB) error) error {
	if onCommit == nil {
		return nil
	}
	return onCommit(tx)
}

// lockSubject loads the subject's row FOR UPDATE, resolving it by user id, then provider
// subscription id, then customer id. A missing row is created only when the user id is known.
func (s *Service) lockSubject(ctx context.Context, tx *gorm.DB, ch *Change) (*models.SubscriptionState, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"user_id", ch.UserID},
		{"subscription_id", ch.SubscriptionID},
		{"customer_id", ch.CustomerID},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		st, err := s.lockBy(ctx, tx, l.column, l.value)
		if err != nil {
			return nil, err
		}
		if st != nil {
			return st, nil
		}
	}

	if ch.UserID == "" {
		return nil, ErrUnknownSubject
	}
	fresh := &models.SubscriptionState{
		ID:     tool.GenerateUUIDV7(),
		UserID: ch.UserID,
		Status: types.SubscriptionStatusInactive,
		Tier:   types.SubscriptionTierFree,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription state: %w", err)
	}
	st, err := s.lockBy(ctx, tx, "user_id", ch.UserID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("subscription state for %s vanished", ch.UserID)
	}
	return st, nil
}

func (s *Service) lockBy(ctx context.Context, tx *gorm.DB, column, value string) (*models.SubscriptionState, error) {
	var st models.SubscriptionState
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Order("updated_at desc").
		First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock subscription state by %s: %w", column, err)
	}
	return &st, nil
}

// syncVendors keeps the featured flag of every vendor owned by the subscriber in step with billing.
func (s *Service) syncVendors(ctx context.Context, tx *gorm.DB, st *models.SubscriptionState) error {
	tier := types.SubscriptionTierFree
	if st.Entitled() {
		tier = st.Tier
	}
	err := tx.WithContext(ctx).Model(&models.Vendor{}).
		Where("owner_id = ?", st.UserID).
		Updates(map[string]any{"is_featured": st.Featured(), "tier": tier}).Error
	if err != nil {
		return fmt.Errorf("failed to update vendor featured flag: %w", err)
	}
	return nil
}

// saveLog writes the change log asynchronously; errors are logged but not returned.
func (s *Service) saveLog(ctx context.Context, ch *Change, before, after *models.SubscriptionState) {
	// a row that never saw an event was created by this change
	if before != nil && before.LastEventAt.IsZero() {
		before = nil
	}
	go func() {
		log := &models.SubscriptionLog{
			ID:      tool.GenerateUUIDV7(),
			UserID:  after.UserID,
			EventID: ch.EventID,
			Reason:  ch.Reason,
			Before:  datatypes.NewJSONType(before),
			After:   datatypes.NewJSONType(after),
		}
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}
