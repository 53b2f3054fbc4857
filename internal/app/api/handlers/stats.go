package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/truckstamp/internal/app/api/middleware"
	"github.com/fatflowers/truckstamp/internal/app/service/statistics"
	"github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/response"
)

type VendorReader interface {
	GetVendor(ctx context.Context, id string) (*models.Vendor, error)
}

type StatisticsService interface {
	GetVendorStatistic(ctx context.Context, req *statistics.VendorStatisticRequest) (*statistics.VendorStatisticResponse, error)
}

type statsQuery struct {
	From      time.Time                  `form:"from" time_format:"2006-01-02"`
	To        time.Time                  `form:"to" time_format:"2006-01-02"`
	DataItems []statistics.StatisticType `form:"data_items"`
}

// @Summary      Vendor statistics
// @Description  Daily check-ins, unique visitors and reward totals. Only the vendor owner may read them.
// @Tags         Statistics
// @Produce      json
// @Security     BearerAuth
// @Param        vendor_id path string true "Vendor ID"
// @Param        from query string false "YYYY-MM-DD, defaults to 30 days before to"
// @Param        to query string false "YYYY-MM-DD, defaults to now"
// @Param        data_items query []string false "Statistic types"
// @Success      200  {object}  handlers.RespVendorStatistic
// @Failure      403,404  {object}  handlers.RespRejection
// @Router       /api/v1/vendors/{vendor_id}/stats [get]
func ApiVendorStatistic(vendors VendorReader, stats StatisticsService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q statsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		lg := logctx.FromGin(c, log)

		v, err := vendors.GetVendor(c.Request.Context(), c.Param("vendor_id"))
		if err != nil {
			if errors.Is(err, vendor.ErrVendorNotFound) {
				c.JSON(http.StatusNotFound, response.RejectT[any](response.APIResponseCodeNotFound, "VENDOR_NOT_FOUND", err.Error(), nil))
				return
			}
			lg.Errorw("get vendor failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		if v.OwnerID != mw.Subject(c) {
			c.JSON(http.StatusForbidden, response.RejectT[any](response.APIResponseCodeForbidden, "FORBIDDEN", "only the vendor owner may read statistics", nil))
			return
		}

		req := &statistics.VendorStatisticRequest{VendorID: v.ID, From: q.From, To: q.To, DataItems: q.DataItems}
		if !q.To.IsZero() {
			// inclusive end day
			req.To = q.To.AddDate(0, 0, 1)
		}
		if err := req.Normalize(time.Now()); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := stats.GetVendorStatistic(c.Request.Context(), req)
		if err != nil {
			lg.Errorw("vendor statistic failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterStatisticsRoutes(r gin.IRouter, vendors VendorReader, stats StatisticsService, log *zap.SugaredLogger) {
	r.GET("/vendors/:vendor_id/stats", ApiVendorStatistic(vendors, stats, log))
}
