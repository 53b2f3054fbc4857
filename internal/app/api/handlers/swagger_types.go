package handlers

import (
	"github.com/fatflowers/truckstamp/internal/app/service/checkin"
	"github.com/fatflowers/truckstamp/internal/app/service/statistics"
	"github.com/fatflowers/truckstamp/internal/models"
	"github.com/fatflowers/truckstamp/pkg/response"
	"github.com/fatflowers/truckstamp/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespRejection is the envelope of a non-2xx response; Error is the machine-readable reason.
type RespRejection struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Error   string                   `json:"error"`
	Data    *checkin.Rejection       `json:"data"`
}

type RespCheckIn struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkInResponse          `json:"data"`
}

type RespEligibility struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    checkin.EligibilityResult `json:"data"`
}

type RespCheckInHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkin.HistoryResponse  `json:"data"`
}

type RespLoyaltyCards struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.LoyaltyCard     `json:"data"`
}

type RespLoyaltyCard struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.LoyaltyCard       `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    types.UserSubscriptionInfo `json:"data"`
}

type RespVendorStatistic struct {
	Code    response.APIResponseCode           `json:"code"`
	Message string                             `json:"message"`
	Data    statistics.VendorStatisticResponse `json:"data"`
}
