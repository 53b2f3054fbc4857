package checkin

import (
	"errors"
	"time"

	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/types"
)

// State is a step of the check-in flow. A request moves forward through the happy-path states
// and stops either at StateCommitted or at one of the rejection states.
type State string

const (
	StateReceived         State = "received"
	StateAuthorized       State = "authorized"
	StateValidated        State = "validated"
	StateRateChecked      State = "rate_checked"
	StateVendorEligible   State = "vendor_eligible"
	StateLocationEligible State = "location_eligible"
	StateCooldownClear    State = "cooldown_clear"
	StateClaimed          State = "claimed"
	StateCommitted        State = "committed"

	StateUnauthorized   State = "unauthorized"
	StateInvalidInput   State = "invalid_input"
	StateRateLimited    State = "rate_limited"
	StateVendorNotOpen  State = "vendor_not_open"
	StateLocationStale  State = "location_stale"
	StateTooFar         State = "too_far"
	StateCooldownActive State = "cooldown_active"
	StateDuplicateClaim State = "duplicate_claim"
	StateCommitFailed   State = "commit_failed"
)

// Reason is the machine-readable rejection code sent to clients.
type Reason string

const (
	ReasonUnauthorized     Reason = "UNAUTHORIZED"
	ReasonInvalidInput     Reason = "INVALID_INPUT"
	ReasonRateLimited      Reason = "RATE_LIMITED"
	ReasonTruckClosed      Reason = "TRUCK_CLOSED"
	ReasonNoTruckLocation  Reason = "NO_TRUCK_LOCATION"
	ReasonLocationStale    Reason = "LOCATION_STALE"
	ReasonTooFar           Reason = "TOO_FAR"
	ReasonCooldown         Reason = "COOLDOWN"
	ReasonDuplicateCheckIn Reason = "DUPLICATE_CHECKIN"
)

var ErrCommitFailed = errors.New("check-in commit failed")

type Request struct {
	SubjectID string
	VendorID  string
	Lat       float64
	Lng       float64
}

type Rejection struct {
	Reason  Reason `json:"reason"`
	State   State  `json:"-"`
	Message string `json:"message"`
	// RetryAfter is in seconds.
	RetryAfter        int        `json:"retryAfter,omitempty"`
	Distance          *float64   `json:"distance,omitempty"`
	MaxDistance       *float64   `json:"maxDistance,omitempty"`
	NextCheckIn       *time.Time `json:"nextCheckIn,omitempty"`
	ExistingCheckInID string     `json:"existingCheckInId,omitempty"`
}

type Outcome struct {
	State     State
	CheckIn   *models.CheckIn
	Loyalty   *loyalty.Delta
	Vendor    *vendor.Summary
	Rejection *Rejection
}

func (o *Outcome) OK() bool {
	return o != nil && o.State == StateCommitted && o.Rejection == nil
}

type EligibilityRequest struct {
	// SubjectID is optional; cooldown is only evaluated when it is set.
	SubjectID string
	VendorID  string
	Lat       float64
	Lng       float64
}

type EligibilityResult struct {
	Eligible    bool            `json:"eligible"`
	Distance    *float64        `json:"distance,omitempty"`
	MaxDistance float64         `json:"maxDistance"`
	NextCheckIn *time.Time      `json:"nextCheckIn,omitempty"`
	Vendor      *vendor.Summary `json:"vendor,omitempty"`
	Rejection   *Rejection      `json:"rejection,omitempty"`
}

type HistoryRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortOrder string                `json:"sort_order"`
}

type HistoryResponse struct {
	Items []*models.CheckIn `json:"items"`
	Total int64             `json:"total"`
}

// HistoryFilterFields are the columns a history query may filter on.
var HistoryFilterFields = []string{"vendor_id", "created_at"}
