package checkin

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/truckstamp/internal/app/service/idempotency"
	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists check-ins. Commit must be atomic: the check-in row, the loyalty stamp and the
// claim finalization either all land or none do.
type Store interface {
	LatestCheckIn(ctx context.Context, userID, vendorID string) (*models.CheckIn, error)
	Commit(ctx context.Context, c *models.CheckIn, stampsRequired int) (*loyalty.Delta, error)
	History(ctx context.Context, userID string, req *HistoryRequest) (*HistoryResponse, error)
}

type GormStore struct {
	db      *gorm.DB
	ledger  idempotency.Ledger
	loyalty *loyalty.Service
}

func NewGormStore(db *gorm.DB, ledger idempotency.Ledger, loyaltySvc *loyalty.Service) *GormStore {
	return &GormStore{db: db, ledger: ledger, loyalty: loyaltySvc}
}

func (s *GormStore) LatestCheckIn(ctx context.Context, userID, vendorID string) (*models.CheckIn, error) {
	var c models.CheckIn
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND vendor_id = ?", userID, vendorID).
		Order("created_at desc").
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest check-in: %w", err)
	}
	return &c, nil
}

func (s *GormStore) Commit(ctx context.Context, c *models.CheckIn, stampsRequired int) (*loyalty.Delta, error) {
	var delta *loyalty.Delta
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, d, err := s.loyalty.StampTx(ctx, tx, c.UserID, c.VendorID, stampsRequired, c.CreatedAt)
		if err != nil {
			return err
		}
		c.RewardsUnlocked = d.RewardsUnlocked
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("failed to insert check-in: %w", err)
		}
		delta = d
		return s.ledger.FinalizeTx(ctx, tx, c.ClaimKey, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return delta, nil
}

func (s *GormStore) History(ctx context.Context, userID string, req *HistoryRequest) (*HistoryResponse, error) {
	tx := s.db.WithContext(ctx).Model(&models.CheckIn{}).Where("user_id = ?", userID)
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}

	var rows []*models.CheckIn
	q := tx.Limit(req.Size).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: req.SortOrder != "asc"})
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return &HistoryResponse{Items: rows, Total: total}, nil
}
