package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatflowers/truckstamp/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

type StatisticType string

const (
	StatisticTypeDailyCheckInCount    StatisticType = "daily_check_in_count"
	StatisticTypeDailyUniqueVisitors  StatisticType = "daily_unique_visitors"
	StatisticTypeDailyRewardsUnlocked StatisticType = "daily_rewards_unlocked"
	StatisticTypeLoyaltyTotals        StatisticType = "loyalty_totals"
)

var AllStatisticTypes = []StatisticType{
	StatisticTypeDailyCheckInCount,
	StatisticTypeDailyUniqueVisitors,
	StatisticTypeDailyRewardsUnlocked,
	StatisticTypeLoyaltyTotals,
}

// MaxRange bounds how many days a single request may cover.
const MaxRange = 366 * 24 * time.Hour

type VendorStatisticRequest struct {
	VendorID  string          `json:"vendor_id"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	DataItems []StatisticType `json:"data_items"`
}

// Normalize fills defaults (last 30 days, every statistic) and validates the range.
func (r *VendorStatisticRequest) Normalize(now time.Time) error {
	if r.VendorID == "" {
		return fmt.Errorf("vendor_id required")
	}
	if r.To.IsZero() {
		r.To = now
	}
	if r.From.IsZero() {
		r.From = r.To.AddDate(0, 0, -30)
	}
	if !r.From.Before(r.To) {
		return fmt.Errorf("from must be before to")
	}
	if r.To.Sub(r.From) > MaxRange {
		return fmt.Errorf("range exceeds %d days", int(MaxRange.Hours()/24))
	}
	if len(r.DataItems) == 0 {
		r.DataItems = AllStatisticTypes
	}
	for _, item := range r.DataItems {
		if !lo.Contains(AllStatisticTypes, item) {
			return fmt.Errorf("invalid data item id: %s", item)
		}
	}
	r.DataItems = lo.Uniq(r.DataItems)
	return nil
}

type VendorStatisticDataItem struct {
	Date   string `json:"date,omitempty"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
}

type VendorStatisticResponse struct {
	VendorID  string                                      `json:"vendor_id"`
	From      time.Time                                   `json:"from"`
	To        time.Time                                   `json:"to"`
	DataItems map[StatisticType][]VendorStatisticDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) getDailyCheckInCount(ctx context.Context, req *VendorStatisticRequest) ([]VendorStatisticDataItem, error) {
	var results []VendorStatisticDataItem
	q := s.db.WithContext(ctx).Table(models.CheckIn{}.TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where("vendor_id = ? AND created_at >= ? AND created_at < ?", req.VendorID, req.From, req.To).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyUniqueVisitors(ctx context.Context, req *VendorStatisticRequest) ([]VendorStatisticDataItem, error) {
	var results []VendorStatisticDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH visits AS (
    SELECT user_id, DATE(created_at) as date
    FROM check_in
    WHERE vendor_id = ? AND created_at >= ? AND created_at < ?
),
first_visits AS (
    SELECT user_id, MIN(DATE(created_at)) as date FROM check_in WHERE vendor_id = ? GROUP BY user_id
)
SELECT TO_CHAR(v.date, 'YYYY-MM-DD') as date,
       COUNT(DISTINCT v.user_id) as value,
       COUNT(DISTINCT f.user_id) as value2
FROM visits v
LEFT JOIN first_visits f ON f.user_id = v.user_id AND f.date = v.date
GROUP BY v.date
ORDER BY v.date
`, req.VendorID, req.From, req.To, req.VendorID).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// getDailyRewardsUnlocked sums the rewards each check-in unlocked, as recorded at commit.
func (s *Service) getDailyRewardsUnlocked(ctx context.Context, req *VendorStatisticRequest) ([]VendorStatisticDataItem, error) {
	var results []VendorStatisticDataItem
	q := s.db.WithContext(ctx).Table(models.CheckIn{}.TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, sum(rewards_unlocked) as value").
		Where("vendor_id = ? AND rewards_unlocked > 0 AND created_at >= ? AND created_at < ?", req.VendorID, req.From, req.To).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getLoyaltyTotals(ctx context.Context, req *VendorStatisticRequest) ([]VendorStatisticDataItem, error) {
	var row struct {
		Cards    int64
		Earned   int64
		Redeemed int64
	}
	err := s.db.WithContext(ctx).Model(&models.LoyaltyCard{}).
		Select("count(*) as cards, COALESCE(sum(rewards_earned), 0) as earned, COALESCE(sum(rewards_redeemed), 0) as redeemed").
		Where("vendor_id = ?", req.VendorID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return []VendorStatisticDataItem{
		{Label: "cards", Value: row.Cards},
		{Label: "rewards", Value: row.Earned, Value2: row.Redeemed},
	}, nil
}

func (s *Service) getVendorStatistic(ctx context.Context, req *VendorStatisticRequest, item StatisticType) ([]VendorStatisticDataItem, error) {
	switch item {
	case StatisticTypeDailyCheckInCount:
		return s.getDailyCheckInCount(ctx, req)
	case StatisticTypeDailyUniqueVisitors:
		return s.getDailyUniqueVisitors(ctx, req)
	case StatisticTypeDailyRewardsUnlocked:
		return s.getDailyRewardsUnlocked(ctx, req)
	case StatisticTypeLoyaltyTotals:
		return s.getLoyaltyTotals(ctx, req)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", item)
	}
}

// GetVendorStatistic computes the requested statistics concurrently.
func (s *Service) GetVendorStatistic(ctx context.Context, req *VendorStatisticRequest) (*VendorStatisticResponse, error) {
	if err := req.Normalize(time.Now()); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(req.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []VendorStatisticDataItem], len(req.DataItems))

	for _, item := range req.DataItems {
		wg.Add(1)
		go func(item StatisticType) {
			defer wg.Done()
			res, err := s.getVendorStatistic(ctx, req, item)
			if err != nil {
				errChan <- fmt.Errorf("%s: %w", item, err)
				return
			}
			resChan <- &lo.Entry[StatisticType, []VendorStatisticDataItem]{Key: item, Value: res}
		}(item)
	}
	wg.Wait()
	close(errChan)
	close(resChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	results := make(map[StatisticType][]VendorStatisticDataItem, len(req.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &VendorStatisticResponse{VendorID: req.VendorID, From: req.From, To: req.To, DataItems: results}, nil
}
