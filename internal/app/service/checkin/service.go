package checkin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fatflowers/truckstamp/internal/app/service/idempotency"
	"github.com/fatflowers/truckstamp/internal/app/service/notification"
	"github.com/fatflowers/truckstamp/internal/app/service/ratelimit"
	vendorsvc "github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/geo"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/metrics"
	"github.com/fatflowers/truckstamp/pkg/tool"
	"github.com/fatflowers/truckstamp/pkg/types"

	"go.uber.org/zap"
)

type VendorLookup interface {
	GetVendor(ctx context.Context, id string) (*models.Vendor, error)
}

type RateLimiter interface {
	Check(ctx context.Context, action ratelimit.Action, subjectKey string) (*ratelimit.Decision, error)
}

type Service struct {
	cfg      config.CheckInConfig
	vendors  VendorLookup
	limiter  RateLimiter
	ledger   idempotency.Ledger
	store    Store
	notifier notification.Notifier
	log      *zap.SugaredLogger
	now      func() time.Time
}

type Params struct {
	Config   *config.Config
	Vendors  VendorLookup
	Limiter  RateLimiter
	Ledger   idempotency.Ledger
	Store    Store
	Notifier notification.Notifier
	Log      *zap.SugaredLogger
}

func NewService(p Params) (*Service, error) {
	cfg := p.Config.CheckIn
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("checkin.cooldown must be positive, got %s", cfg.Cooldown)
	}
	if cfg.RadiusMeters <= 0 {
		return nil, fmt.Errorf("checkin.radius_meters must be positive, got %v", cfg.RadiusMeters)
	}
	return &Service{
		cfg:      cfg,
		vendors:  p.Vendors,
		limiter:  p.Limiter,
		ledger:   p.Ledger,
		store:    p.Store,
		notifier: p.Notifier,
		log:      p.Log,
		now:      time.Now,
	}, nil
}

// ClaimKey is the idempotency key of one check-in window for a (subject, vendor) pair.
func ClaimKey(subjectID, vendorID string, windowID int64) string {
	return fmt.Sprintf("checkin:%s:%s:%d", subjectID, vendorID, windowID)
}

func reject(state State, reason Reason, message string) *Outcome {
	return &Outcome{State: state, Rejection: &Rejection{Reason: reason, State: state, Message: message}}
}

// CheckIn runs the full check-in flow. Business rejections come back as an Outcome with a
// Rejection; the returned error is reserved for infrastructure failures.
func (s *Service) CheckIn(ctx context.Context, req *Request) (out *Outcome, err error) {
	start := time.Now()
	defer func() {
		result := string(StateCommitFailed)
		if out != nil {
			result = string(out.State)
		}
		metrics.Inc(metrics.MetricsCheckInResult, result)
		metrics.ObserveSince(metrics.MetricsBusinessProcess, start, "checkin")
	}()

	lg := logctx.FromCtx(ctx, s.log)
	now := s.now()

	if req == nil || req.SubjectID == "" {
		return reject(StateUnauthorized, ReasonUnauthorized, "authentication required"), nil
	}

	v, rej, err := s.validate(ctx, req.VendorID, req.Lat, req.Lng)
	if err != nil || rej != nil {
		return rej, err
	}

	if limited, err := s.checkRateLimits(ctx, req); err != nil || limited != nil {
		return limited, err
	}

	if rej := s.vendorEligibility(v, now); rej != nil {
		return rej, nil
	}

	distance := geo.Distance(req.Lat, req.Lng, *v.Lat, *v.Lng)
	if rej := s.locationEligibility(distance); rej != nil {
		return rej, nil
	}

	latest, err := s.store.LatestCheckIn(ctx, req.SubjectID, v.ID)
	if err != nil {
		return nil, err
	}
	if rej := s.cooldown(latest, now); rej != nil {
		return rej, nil
	}

	checkInID := tool.GenerateUUIDV7()
	key := ClaimKey(req.SubjectID, v.ID, tool.TimeBucket(now, s.cfg.Cooldown))
	claim, err := s.ledger.Claim(ctx, models.IdempotencyScopeCheckIn, key, checkInID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim check-in window: %w", err)
	}
	if !claim.Acquired {
		lg.Infow("duplicate check-in", "vendor_id", v.ID, "claim_key", key, "claim_state", claim.Claim.State)
		out := reject(StateDuplicateClaim, ReasonDuplicateCheckIn, "a check-in for this visit is already recorded")
		out.Rejection.ExistingCheckInID = claim.Claim.ResultRef
		return out, nil
	}

	record := &models.CheckIn{
		ID:        checkInID,
		UserID:    req.SubjectID,
		VendorID:  v.ID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		ClaimKey:  key,
		CreatedAt: now,
	}
	delta, err := s.store.Commit(ctx, record, s.stampsRequired(v))
	if err != nil {
		if ferr := s.ledger.Fail(ctx, key, checkInID, err); ferr != nil {
			lg.Errorw("failed to release check-in claim", "claim_key", key, "err", ferr)
		}
		lg.Errorw("check-in commit failed", "vendor_id", v.ID, "claim_key", key, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	if delta.RewardUnlocked {
		s.notifier.Notify(ctx, req.SubjectID, notification.TypeRewardUnlocked, map[string]any{
			"vendorId":         v.ID,
			"vendorName":       v.Name,
			"checkInId":        record.ID,
			"rewardsUnlocked":  delta.RewardsUnlocked,
			"rewardsAvailable": delta.RewardsAvailable,
		})
	}

	lg.Infow("check-in committed", "check_in_id", record.ID, "vendor_id", v.ID, "reward_unlocked", delta.RewardUnlocked)
	return &Outcome{
		State:   StateCommitted,
		CheckIn: record,
		Loyalty: delta,
		Vendor:  vendorsvc.NewSummary(v),
	}, nil
}

// Eligibility answers whether a check-in would currently pass the vendor, location and cooldown
// checks. It does not count against rate limits and never claims.
func (s *Service) Eligibility(ctx context.Context, req *EligibilityRequest) (*EligibilityResult, error) {
	res := &EligibilityResult{MaxDistance: s.cfg.RadiusMeters}
	v, rej, err := s.validate(ctx, req.VendorID, req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		res.Rejection = rej.Rejection
		return res, nil
	}
	res.Vendor = vendorsvc.NewSummary(v)

	now := s.now()
	if rej := s.vendorEligibility(v, now); rej != nil {
		res.Rejection = rej.Rejection
		return res, nil
	}

	distance := geo.Distance(req.Lat, req.Lng, *v.Lat, *v.Lng)
	res.Distance = &distance
	if rej := s.locationEligibility(distance); rej != nil {
		res.Rejection = rej.Rejection
		return res, nil
	}

	if req.SubjectID != "" {
		latest, err := s.store.LatestCheckIn(ctx, req.SubjectID, v.ID)
		if err != nil {
			return nil, err
		}
		if rej := s.cooldown(latest, now); rej != nil {
			res.Rejection = rej.Rejection
			res.NextCheckIn = rej.Rejection.NextCheckIn
			return res, nil
		}
	}

	res.Eligible = true
	return res, nil
}

func (s *Service) History(ctx context.Context, subjectID string, req *HistoryRequest) (*HistoryResponse, error) {
	if subjectID == "" {
		return nil, errors.New("subject required")
	}
	if req == nil {
		req = &HistoryRequest{}
	}
	if err := types.ValidateFilters(req.Filters, HistoryFilterFields...); err != nil {
		return nil, err
	}
	if req.Size <= 0 || req.Size > 100 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}
	return s.store.History(ctx, subjectID, req)
}

func (s *Service) validate(ctx context.Context, vendorID string, lat, lng float64) (*models.Vendor, *Outcome, error) {
	if vendorID == "" {
		return nil, reject(StateInvalidInput, ReasonInvalidInput, "vendorId is required"), nil
	}
	if !geo.ValidCoordinate(lat, lng) {
		return nil, reject(StateInvalidInput, ReasonInvalidInput, "lat/lng out of range"), nil
	}
	v, err := s.vendors.GetVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, vendorsvc.ErrVendorNotFound) {
			return nil, reject(StateInvalidInput, ReasonInvalidInput, "vendor not found"), nil
		}
		return nil, nil, err
	}
	return v, nil, nil
}

func (s *Service) checkRateLimits(ctx context.Context, req *Request) (*Outcome, error) {
	checks := []struct {
		action ratelimit.Action
		key    string
	}{
		{ratelimit.ActionCheckInUser, req.SubjectID},
		{ratelimit.ActionCheckInVendor, req.SubjectID + ":" + req.VendorID},
	}
	for _, c := range checks {
		d, err := s.limiter.Check(ctx, c.action, c.key)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			out := reject(StateRateLimited, ReasonRateLimited, "too many check-in attempts")
			out.Rejection.RetryAfter = d.RetryAfterSeconds()
			return out, nil
		}
	}
	return nil, nil
}

func (s *Service) vendorEligibility(v *models.Vendor, now time.Time) *Outcome {
	if !v.IsOpen {
		return reject(StateVendorNotOpen, ReasonTruckClosed, "the truck is not open")
	}
	if !v.HasLocation() {
		return reject(StateVendorNotOpen, ReasonNoTruckLocation, "the truck has not shared a location")
	}
	if now.Sub(*v.LocationUpdatedAt) > s.cfg.LocationFreshness {
		return reject(StateLocationStale, ReasonLocationStale, "the truck location is out of date")
	}
	return nil
}

func (s *Service) locationEligibility(distance float64) *Outcome {
	if distance <= s.cfg.RadiusMeters {
		return nil
	}
	out := reject(StateTooFar, ReasonTooFar, "you are too far from the truck")
	maxD := s.cfg.RadiusMeters
	out.Rejection.Distance = &distance
	out.Rejection.MaxDistance = &maxD
	return out
}

// cooldown rejects while latest.CreatedAt + cooldown is not yet in the past.
func (s *Service) cooldown(latest *models.CheckIn, now time.Time) *Outcome {
	if latest == nil {
		return nil
	}
	next := latest.CreatedAt.Add(s.cfg.Cooldown)
	if next.Before(now) {
		return nil
	}
	out := reject(StateCooldownActive, ReasonCooldown, "you checked in here recently")
	out.Rejection.NextCheckIn = &next
	out.Rejection.ExistingCheckInID = latest.ID
	out.Rejection.RetryAfter = int(math.Ceil(next.Sub(now).Seconds()))
	if out.Rejection.RetryAfter < 1 {
		out.Rejection.RetryAfter = 1
	}
	return out
}

func (s *Service) stampsRequired(v *models.Vendor) int {
	if v.StampsRequired > 0 {
		return v.StampsRequired
	}
	if s.cfg.DefaultStampsRequired > 0 {
		return s.cfg.DefaultStampsRequired
	}
	return 10
}
