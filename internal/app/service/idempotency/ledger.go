package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/logctx"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrClaimNotFound = errors.New("idempotency claim not found")
	// ErrClaimLost means the claim was taken over or settled by another attempt.
	ErrClaimLost = errors.New("idempotency claim held by another attempt")
)

// ClaimResult reports the outcome of a claim attempt. When Acquired is false, Claim is the
// row currently holding the key.
type ClaimResult struct {
	Acquired  bool
	Reclaimed bool
	Claim     *models.IdempotencyClaim
}

// Ledger guarantees that at most one attempt per natural key performs the guarded work.
type Ledger interface {
	Claim(ctx context.Context, scope models.IdempotencyScope, key, resultRef string) (*ClaimResult, error)
	// FinalizeTx marks the claim completed inside the caller's transaction. resultRef must be
	// the ref the caller claimed with; a claim taken over since then yields ErrClaimLost.
	FinalizeTx(ctx context.Context, tx *gorm.DB, key, resultRef string) error
	Finalize(ctx context.Context, key, resultRef string) error
	Fail(ctx context.Context, key, resultRef string, cause error) error
	Get(ctx context.Context, key string) (*models.IdempotencyClaim, error)
}

// Reclaimable reports whether an existing claim may be taken over by a new attempt:
// failed claims always, claimed ones once their lease has run out.
func Reclaimable(c *models.IdempotencyClaim, now time.Time, lease time.Duration) bool {
	if c == nil {
		return false
	}
	switch c.State {
	case models.IdempotencyClaimStateFailed:
		return true
	case models.IdempotencyClaimStateClaimed:
		return lease > 0 && !c.UpdatedAt.Add(lease).After(now)
	default:
		return false
	}
}

type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	lease time.Duration
	now   func() time.Time
}

func NewService(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, lease: cfg.Idempotency.ClaimLease, now: time.Now}
}

func (s *Service) Claim(ctx context.Context, scope models.IdempotencyScope, key, resultRef string) (*ClaimResult, error) {
	now := s.now()
	claim := &models.IdempotencyClaim{
		Key:       key,
		Scope:     scope,
		State:     models.IdempotencyClaimStateClaimed,
		ResultRef: resultRef,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(claim)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to insert claim: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return &ClaimResult{Acquired: true, Claim: claim}, nil
	}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !Reclaimable(existing, now, s.lease) {
		return &ClaimResult{Claim: existing}, nil
	}

	// Guarded by the observed state and updated_at so only one concurrent taker wins.
	res = s.db.WithContext(ctx).Model(&models.IdempotencyClaim{}).
		Where("key = ? AND state = ? AND updated_at = ?", key, existing.State, existing.UpdatedAt).
		Updates(map[string]any{
			"state":      models.IdempotencyClaimStateClaimed,
			"result_ref": resultRef,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to take over claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return &ClaimResult{Claim: current}, nil
	}

	logctx.FromCtx(ctx, s.log).Infow("idempotency claim taken over", "key", key, "previous_state", existing.State, "attempts", existing.Attempts+1)
	existing.State = models.IdempotencyClaimStateClaimed
	existing.ResultRef = resultRef
	existing.Attempts++
	existing.LastError = ""
	existing.UpdatedAt = now
	return &ClaimResult{Acquired: true, Reclaimed: true, Claim: existing}, nil
}

func (s *Service) FinalizeTx(ctx context.Context, tx *gorm.DB, key, resultRef string) error {
	now := s.now()
	res := tx.WithContext(ctx).Model(&models.IdempotencyClaim{}).
		Where("key = ? AND state = ? AND result_ref = ?", key, models.IdempotencyClaimStateClaimed, resultRef).
		Updates(map[string]any{
			"state":        models.IdempotencyClaimStateCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return lostOrMissing(ctx, tx, key)
	}
	return nil
}

func lostOrMissing(ctx context.Context, tx *gorm.DB, key string) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&models.IdempotencyClaim{}).Where("key = ?", key).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to load claim: %w", err)
	}
	if n == 0 {
		return ErrClaimNotFound
	}
	return ErrClaimLost
}

func (s *Service) Finalize(ctx context.Context, key, resultRef string) error {
	return s.FinalizeTx(ctx, s.db, key, resultRef)
}

// Fail releases a claim whose work did not commit so a later attempt can reclaim it. It is a
// no-op when the claim no longer belongs to resultRef.
func (s *Service) Fail(ctx context.Context, key, resultRef string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res := s.db.WithContext(ctx).Model(&models.IdempotencyClaim{}).
		Where("key = ? AND state = ? AND result_ref = ?", key, models.IdempotencyClaimStateClaimed, resultRef).
		Updates(map[string]any{
			"state":      models.IdempotencyClaimStateFailed,
			"last_error": msg,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark claim failed: %w", res.Error)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, key string) (*models.IdempotencyClaim, error) {
	var c models.IdempotencyClaim
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to load claim: %w", err)
	}
	return &c, nil
}
