package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/truckstamp/internal/app/api/middleware"
	"github.com/fatflowers/truckstamp/internal/app/service/checkin"
	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/app/service/ratelimit"
	"github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/response"
	"github.com/fatflowers/truckstamp/pkg/types"
)

type CheckInService interface {
	CheckIn(ctx context.Context, req *checkin.Request) (*checkin.Outcome, error)
	Eligibility(ctx context.Context, req *checkin.EligibilityRequest) (*checkin.EligibilityResult, error)
	History(ctx context.Context, subjectID string, req *checkin.HistoryRequest) (*checkin.HistoryResponse, error)
}

type checkInRequest struct {
	VendorID string   `json:"vendorId" binding:"required"`
	Lat      *float64 `json:"lat" binding:"required,latitude"`
	Lng      *float64 `json:"lng" binding:"required,longitude"`
}

type checkInResponse struct {
	CheckIn *models.CheckIn `json:"checkIn"`
	Loyalty *loyalty.Delta  `json:"loyalty"`
	Vendor  *vendor.Summary `json:"vendor"`
}

type eligibilityQuery struct {
	Lat *float64 `form:"lat" binding:"required,latitude"`
	Lng *float64 `form:"lng" binding:"required,longitude"`
}

type historyQuery struct {
	VendorID  string    `form:"vendor_id"`
	Since     time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	From      int       `form:"from"`
	Size      int       `form:"size"`
	SortOrder string    `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

var rejectionStatus = map[checkin.Reason]int{
	checkin.ReasonUnauthorized:     http.StatusUnauthorized,
	checkin.ReasonInvalidInput:     http.StatusBadRequest,
	checkin.ReasonRateLimited:      http.StatusTooManyRequests,
	checkin.ReasonTruckClosed:      http.StatusConflict,
	checkin.ReasonNoTruckLocation:  http.StatusConflict,
	checkin.ReasonLocationStale:    http.StatusConflict,
	checkin.ReasonTooFar:           http.StatusForbidden,
	checkin.ReasonCooldown:         http.StatusTooManyRequests,
	checkin.ReasonDuplicateCheckIn: http.StatusConflict,
}

// RejectionStatus maps a check-in rejection to its HTTP status.
func RejectionStatus(reason checkin.Reason) int {
	if status, ok := rejectionStatus[reason]; ok {
		return status
	}
	return http.StatusBadRequest
}

func responseCode(status int) response.APIResponseCode {
	switch status {
	case http.StatusBadRequest:
		return response.APIResponseCodeBadRequest
	case http.StatusUnauthorized:
		return response.APIResponseCodeUnauthorized
	case http.StatusForbidden:
		return response.APIResponseCodeForbidden
	case http.StatusNotFound:
		return response.APIResponseCodeNotFound
	case http.StatusTooManyRequests:
		return response.APIResponseCodeTooMany
	case http.StatusServiceUnavailable:
		return response.APIResponseCodeUnavailable
	}
	if status >= 500 {
		return response.APIResponseCodeError
	}
	return response.APIResponseCodeRejected
}

func writeRejection(c *gin.Context, rej *checkin.Rejection) {
	status := RejectionStatus(rej.Reason)
	if rej.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(rej.RetryAfter))
	}
	c.JSON(status, response.RejectT(responseCode(status), string(rej.Reason), rej.Message, rej))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.RejectT[any](response.APIResponseCodeBadRequest, string(checkin.ReasonInvalidInput), err.Error(), nil))
}

// @Summary      Check in at a vendor
// @Description  Records a visit, stamps the loyalty card and reports whether a reward unlocked.
// @Tags         CheckIn
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.checkInRequest true "Check-in request"
// @Success      201  {object}  handlers.RespCheckIn
// @Failure      400,401,403,409,429  {object}  handlers.RespRejection
// @Failure      500,503  {object}  handlers.RespRejection
// @Router       /api/v1/check-ins [post]
func ApiCheckIn(svc CheckInService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		out, err := svc.CheckIn(c.Request.Context(), &checkin.Request{
			SubjectID: mw.Subject(c),
			VendorID:  req.VendorID,
			Lat:       *req.Lat,
			Lng:       *req.Lng,
		})
		if err != nil {
			logctx.FromGin(c, log).Errorw("checkin failed", "vendor_id", req.VendorID, "err", err)
			if errors.Is(err, ratelimit.ErrLimiterUnavailable) {
				c.JSON(http.StatusServiceUnavailable, response.RejectT[any](response.APIResponseCodeUnavailable, "UNAVAILABLE", "try again shortly", nil))
				return
			}
			c.JSON(http.StatusInternalServerError, response.RejectT[any](response.APIResponseCodeError, "INTERNAL", "check-in could not be saved, please retry", nil))
			return
		}
		if out.Rejection != nil {
			writeRejection(c, out.Rejection)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(checkInResponse{CheckIn: out.CheckIn, Loyalty: out.Loyalty, Vendor: out.Vendor}))
	}
}

// @Summary      Check-in eligibility
// @Description  Runs the vendor, distance and cooldown checks without recording anything.
// @Tags         CheckIn
// @Produce      json
// @Param        vendor_id path string true "Vendor ID"
// @Param        lat query number true "Latitude"
// @Param        lng query number true "Longitude"
// @Success      200  {object}  handlers.RespEligibility
// @Router       /api/v1/vendors/{vendor_id}/check-in/eligibility [get]
func ApiCheckInEligibility(svc CheckInService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q eligibilityQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Eligibility(c.Request.Context(), &checkin.EligibilityRequest{
			SubjectID: mw.Subject(c),
			VendorID:  c.Param("vendor_id"),
			Lat:       *q.Lat,
			Lng:       *q.Lng,
		})
		if err != nil {
			logctx.FromGin(c, log).Errorw("eligibility failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Check-in history
// @Tags         CheckIn
// @Produce      json
// @Security     BearerAuth
// @Param        vendor_id query string false "Only this vendor"
// @Param        since query string false "RFC3339 lower bound on created_at"
// @Param        from query int false "Offset"
// @Param        size query int false "Page size, max 100"
// @Param        sort_order query string false "asc or desc"
// @Success      200  {object}  handlers.RespCheckInHistory
// @Router       /api/v1/check-ins [get]
func ApiCheckInHistory(svc CheckInService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q historyQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		req := &checkin.HistoryRequest{From: q.From, Size: q.Size, SortOrder: q.SortOrder}
		if q.VendorID != "" {
			req.Filters = append(req.Filters, &types.CommonFilter{Field: "vendor_id", Operator: types.CommonFilterOperatorEq, Values: []any{q.VendorID}})
		}
		if !q.Since.IsZero() {
			req.Filters = append(req.Filters, &types.CommonFilter{Field: "created_at", Operator: types.CommonFilterOperatorGte, Values: []any{q.Since}})
		}

		res, err := svc.History(c.Request.Context(), mw.Subject(c), req)
		if err != nil {
			logctx.FromGin(c, log).Errorw("checkin history failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterCheckInRoutes(r gin.IRouter, svc CheckInService, auth, optionalAuth gin.HandlerFunc, log *zap.SugaredLogger) {
	r.POST("/check-ins", auth, ApiCheckIn(svc, log))
	r.GET("/check-ins", auth, ApiCheckInHistory(svc, log))
	r.GET("/vendors/:vendor_id/check-in/eligibility", optionalAuth, ApiCheckInEligibility(svc, log))
}
