package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/fatflowers/truckstamp/internal/app/api/middleware"
	"github.com/fatflowers/truckstamp/internal/app/service/checkin"
	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/app/service/ratelimit"
	"github.com/fatflowers/truckstamp/internal/app/service/statistics"
	"github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/app/service/webhook"
	"github.com/fatflowers/truckstamp/internal/models"
	cfgpkg "github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/types"
)

type stubCheckIns struct {
	out        *checkin.Outcome
	err        error
	gotReq     *checkin.Request
	gotElig    *checkin.EligibilityRequest
	gotHistory *checkin.HistoryRequest
	gotSubject string
}

func (s *stubCheckIns) CheckIn(_ context.Context, req *checkin.Request) (*checkin.Outcome, error) {
	s.gotReq = req
	return s.out, s.err
}

func (s *stubCheckIns) Eligibility(_ context.Context, req *checkin.EligibilityRequest) (*checkin.EligibilityResult, error) {
	s.gotElig = req
	return &checkin.EligibilityResult{Eligible: true, MaxDistance: 200}, s.err
}

func (s *stubCheckIns) History(_ context.Context, subjectID string, req *checkin.HistoryRequest) (*checkin.HistoryResponse, error) {
	s.gotSubject = subjectID
	s.gotHistory = req
	return &checkin.HistoryResponse{Items: []*models.CheckIn{{ID: "c1"}}, Total: 1}, s.err
}

type stubLoyalty struct {
	redeemErr error
}

func (s *stubLoyalty) ListCards(_ context.Context, userID string) ([]*models.LoyaltyCard, error) {
	return []*models.LoyaltyCard{{ID: "card1", UserID: userID, Stamps: 3}}, nil
}

func (s *stubLoyalty) Redeem(_ context.Context, userID, vendorID string) (*models.LoyaltyCard, error) {
	if s.redeemErr != nil {
		return nil, s.redeemErr
	}
	return &models.LoyaltyCard{ID: "card1", UserID: userID, VendorID: vendorID, RewardsEarned: 1, RewardsRedeemed: 1}, nil
}

type stubSubscriptions struct {
	st *models.SubscriptionState
}

func (s *stubSubscriptions) Get(context.Context, string) (*models.SubscriptionState, error) {
	return s.st, nil
}

type stubVendors map[string]*models.Vendor

func (s stubVendors) GetVendor(_ context.Context, id string) (*models.Vendor, error) {
	if v, ok := s[id]; ok {
		return v, nil
	}
	return nil, vendor.ErrVendorNotFound
}

type stubStats struct {
	got *statistics.VendorStatisticRequest
}

func (s *stubStats) GetVendorStatistic(_ context.Context, req *statistics.VendorStatisticRequest) (*statistics.VendorStatisticResponse, error) {
	s.got = req
	return &statistics.VendorStatisticResponse{VendorID: req.VendorID}, nil
}

type stubProcessor struct {
	out     *webhook.Outcome
	payload []byte
	sig     string
}

func (s *stubProcessor) Process(_ context.Context, payload []byte, sig string) *webhook.Outcome {
	s.payload, s.sig = payload, sig
	return s.out
}

type testAPI struct {
	engine   *gin.Engine
	verifier *mw.TokenVerifier
}

func newTestAPI(checkIns CheckInService, loyaltySvc LoyaltyService, subs SubscriptionReader, vendors VendorReader, stats StatisticsService, proc WebhookProcessor) *testAPI {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	v := mw.NewTokenVerifier(&cfgpkg.Config{Auth: cfgpkg.AuthConfig{JWTSecret: "test-secret"}})
	auth := mw.RequireAuth(v, log)

	r := gin.New()
	api := r.Group("/api/v1")
	RegisterCheckInRoutes(api, checkIns, auth, mw.OptionalAuth(v, log), log)
	RegisterLoyaltyRoutes(api.Group("/loyalty", auth), loyaltySvc, log)
	RegisterSubscriptionRoutes(api.Group("", auth), subs, log)
	RegisterStatisticsRoutes(api.Group("", auth), vendors, stats, log)
	RegisterWebhookRoutes(api, proc, log)
	RegisterHealthRoutes(r, nil)
	return &testAPI{engine: r, verifier: v}
}

func (a *testAPI) do(t *testing.T, method, path, subject string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		token, err := a.verifier.Issue(subject, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCheckIn_Created(t *testing.T) {
	svc := &stubCheckIns{out: &checkin.Outcome{
		State:   checkin.StateCommitted,
		CheckIn: &models.CheckIn{ID: "ci-1", UserID: "u1", VendorID: "v1"},
		Loyalty: &loyalty.Delta{StampsEarned: 1, TotalStamps: 0, StampsRequired: 10, RewardUnlocked: true, RewardsAvailable: 1},
		Vendor:  &vendor.Summary{ID: "v1", Name: "Taco Truck", IsOpen: true},
	}}
	api := newTestAPI(svc, nil, nil, nil, nil, nil)

	w := api.do(t, http.MethodPost, "/api/v1/check-ins", "u1", []byte(`{"vendorId":"v1","lat":40.7,"lng":-74.0}`))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, &checkin.Request{SubjectID: "u1", VendorID: "v1", Lat: 40.7, Lng: -74.0}, svc.gotReq)

	env := decode(t, w)
	require.Equal(t, 0, env.Code)
	var data struct {
		CheckIn struct {
			ID string `json:"id"`
		} `json:"checkIn"`
		Loyalty map[string]any `json:"loyalty"`
		Vendor  map[string]any `json:"vendor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "ci-1", data.CheckIn.ID)
	require.Equal(t, true, data.Loyalty["rewardUnlocked"])
	require.Equal(t, float64(10), data.Loyalty["stampsRequired"])
	require.Equal(t, "Taco Truck", data.Vendor["name"])
}

func TestCheckIn_RequiresAuth(t *testing.T) {
	svc := &stubCheckIns{}
	api := newTestAPI(svc, nil, nil, nil, nil, nil)

	w := api.do(t, http.MethodPost, "/api/v1/check-ins", "", []byte(`{"vendorId":"v1","lat":1,"lng":1}`))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", decode(t, w).Error)
	require.Nil(t, svc.gotReq)
}

func TestCheckIn_InvalidBody(t *testing.T) {
	svc := &stubCheckIns{}
	api := newTestAPI(svc, nil, nil, nil, nil, nil)

	for _, body := range []string{
		`{"lat":1,"lng":1}`,
		`{"vendorId":"v1","lat":91,"lng":1}`,
		`{"vendorId":"v1","lat":1,"lng":-181}`,
		`{"vendorId":"v1","lng":1}`,
		`not json`,
	} {
		w := api.do(t, http.MethodPost, "/api/v1/check-ins", "u1", []byte(body))
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		require.Equal(t, "INVALID_INPUT", decode(t, w).Error, body)
	}
	require.Nil(t, svc.gotReq)
}

func TestCheckIn_RejectionStatuses(t *testing.T) {
	next := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)
	cases := []struct {
		rej        *checkin.Rejection
		status     int
		retryAfter string
		field      string
	}{
		{&checkin.Rejection{Reason: checkin.ReasonRateLimited, RetryAfter: 1800}, http.StatusTooManyRequests, "1800", `"retryAfter":1800`},
		{&checkin.Rejection{Reason: checkin.ReasonTruckClosed}, http.StatusConflict, "", ""},
		{&checkin.Rejection{Reason: checkin.ReasonNoTruckLocation}, http.StatusConflict, "", ""},
		{&checkin.Rejection{Reason: checkin.ReasonLocationStale}, http.StatusConflict, "", ""},
		{&checkin.Rejection{Reason: checkin.ReasonTooFar, Distance: lo.ToPtr(350.0), MaxDistance: lo.ToPtr(200.0)}, http.StatusForbidden, "", `"maxDistance":200`},
		{&checkin.Rejection{Reason: checkin.ReasonCooldown, RetryAfter: 60, NextCheckIn: &next}, http.StatusTooManyRequests, "60", `"nextCheckIn":"2026-03-01T16:00:00Z"`},
		{&checkin.Rejection{Reason: checkin.ReasonDuplicateCheckIn, ExistingCheckInID: "ci-0"}, http.StatusConflict, "", `"existingCheckInId":"ci-0"`},
		{&checkin.Rejection{Reason: checkin.ReasonInvalidInput}, http.StatusBadRequest, "", ""},
	}
	for _, tc := range cases {
		t.Run(string(tc.rej.Reason), func(t *testing.T) {
			svc := &stubCheckIns{out: &checkin.Outcome{Rejection: tc.rej}}
			api := newTestAPI(svc, nil, nil, nil, nil, nil)

			w := api.do(t, http.MethodPost, "/api/v1/check-ins", "u1", []byte(`{"vendorId":"v1","lat":1,"lng":1}`))
			require.Equal(t, tc.status, w.Code)
			require.Equal(t, tc.retryAfter, w.Header().Get("Retry-After"))
			require.Equal(t, string(tc.rej.Reason), decode(t, w).Error)
			if tc.field != "" {
				require.Contains(t, w.Body.String(), tc.field)
			}
		})
	}
}

func TestCheckIn_InfrastructureErrors(t *testing.T) {
	svc := &stubCheckIns{err: ratelimit.ErrLimiterUnavailable}
	api := newTestAPI(svc, nil, nil, nil, nil, nil)
	w := api.do(t, http.MethodPost, "/api/v1/check-ins", "u1", []byte(`{"vendorId":"v1","lat":1,"lng":1}`))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	svc.err = checkin.ErrCommitFailed
	w = api.do(t, http.MethodPost, "/api/v1/check-ins", "u1", []byte(`{"vendorId":"v1","lat":1,"lng":1}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEligibility_OptionalAuth(t *testing.T) {
	svc := &stubCheckIns{}
	api := newTestAPI(svc, nil, nil, nil, nil, nil)

	w := api.do(t, http.MethodGet, "/api/v1/vendors/v1/check-in/eligibility?lat=40.7&lng=-74", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, &checkin.EligibilityRequest{VendorID: "v1", Lat: 40.7, Lng: -74}, svc.gotElig)

	w = api.do(t, http.MethodGet, "/api/v1/vendors/v1/check-in/eligibility?lat=40.7&lng=-74", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", svc.gotElig.SubjectID)
	require.Contains(t, w.Body.String(), `"eligible":true`)

	w = api.do(t, http.MethodGet, "/api/v1/vendors/v1/check-in/eligibility?lat=100&lng=-74", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory_BuildsFilters(t *testing.T) {
	svc := &stubCheckIns{}
	api := newTestAPI(svc, nil, nil, nil, nil, nil)

	w := api.do(t, http.MethodGet, "/api/v1/check-ins?vendor_id=v1&since=2026-01-01T00:00:00Z&size=5&sort_order=asc", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", svc.gotSubject)
	require.Equal(t, 5, svc.gotHistory.Size)
	require.Equal(t, "asc", svc.gotHistory.SortOrder)
	require.Len(t, svc.gotHistory.Filters, 2)
	require.Equal(t, "vendor_id", svc.gotHistory.Filters[0].Field)
	require.Equal(t, types.CommonFilterOperatorGte, svc.gotHistory.Filters[1].Operator)

	w = api.do(t, http.MethodGet, "/api/v1/check-ins?sort_order=sideways", "u1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoyaltyRoutes(t *testing.T) {
	svc := &stubLoyalty{}
	api := newTestAPI(nil, svc, nil, nil, nil, nil)

	w := api.do(t, http.MethodGet, "/api/v1/loyalty/cards", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"user_id":"u1"`)

	w = api.do(t, http.MethodPost, "/api/v1/loyalty/cards/v1/redeem", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"rewards_redeemed":1`)

	svc.redeemErr = loyalty.ErrNoRewardAvailable
	w = api.do(t, http.MethodPost, "/api/v1/loyalty/cards/v1/redeem", "u1", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "NO_REWARD_AVAILABLE", decode(t, w).Error)

	svc.redeemErr = errors.New("db down")
	w = api.do(t, http.MethodPost, "/api/v1/loyalty/cards/v1/redeem", "u1", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/loyalty/cards", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionRoute(t *testing.T) {
	subs := &stubSubscriptions{}
	api := newTestAPI(nil, nil, subs, nil, nil, nil)

	w := api.do(t, http.MethodGet, "/api/v1/subscription", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"inactive"`)
	require.Contains(t, w.Body.String(), `"tier":"free"`)

	subs.st = &models.SubscriptionState{UserID: "u1", Status: types.SubscriptionStatusActive, Tier: types.SubscriptionTierFeatured}
	w = api.do(t, http.MethodGet, "/api/v1/subscription", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"active"`)
	require.Contains(t, w.Body.String(), `"tier":"featured"`)
}

func TestVendorStats_OwnerOnly(t *testing.T) {
	vendors := stubVendors{"v1": {ID: "v1", OwnerID: "owner"}}
	stats := &stubStats{}
	api := newTestAPI(nil, nil, nil, vendors, stats, nil)

	w := api.do(t, http.MethodGet, "/api/v1/vendors/v1/stats", "someone-else", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Nil(t, stats.got)

	w = api.do(t, http.MethodGet, "/api/v1/vendors/missing/stats", "owner", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/vendors/v1/stats?from=2026-01-01&to=2026-01-31&data_items=daily_check_in_count", "owner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1", stats.got.VendorID)
	require.Equal(t, []statistics.StatisticType{statistics.StatisticTypeDailyCheckInCount}, stats.got.DataItems)
	require.Equal(t, 1, stats.got.To.Day())
	require.Equal(t, time.February, stats.got.To.Month())

	w = api.do(t, http.MethodGet, "/api/v1/vendors/v1/stats?data_items=bogus", "owner", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhook(t *testing.T) {
	proc := &stubProcessor{out: &webhook.Outcome{Status: http.StatusOK, Received: true, Processed: true, EventID: "evt_1"}}
	api := newTestAPI(nil, nil, nil, nil, nil, proc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true,"processed":true,"eventId":"evt_1"}`, w.Body.String())
	require.Equal(t, `{"id":"evt_1"}`, string(proc.payload))
	require.Equal(t, "t=1,v1=abc", proc.sig)

	proc.out = &webhook.Outcome{Status: http.StatusInternalServerError, Received: true, Error: "processing failed", WillRetry: true}
	w = api.do(t, http.MethodPost, "/api/v1/webhooks/stripe", "", []byte(`{}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), `"willRetry":true`)
}

func TestStripeWebhook_BodyTooLarge(t *testing.T) {
	proc := &stubProcessor{}
	api := newTestAPI(nil, nil, nil, nil, nil, proc)

	w := api.do(t, http.MethodPost, "/api/v1/webhooks/stripe", "", bytes.Repeat([]byte("a"), MaxWebhookBodyBytes+1))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Nil(t, proc.payload)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(nil, nil, nil, nil, nil, nil)
	w := api.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}
