package service

import (
	"math"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

// Rates are whole percentages.
type Rates struct {
	DeliveryRate int `json:"delivery_rate"`
	ReplyRate    int `json:"reply_rate"`
	ErrorRate    int `json:"error_rate"`
}

func ComputeRates(s model.CampaignStats) Rates {
	return Rates{
		DeliveryRate: percent(s.Sent, s.Total),
		ReplyRate:    percent(s.Replied, s.Sent),
		ErrorRate:    percent(s.Failed, s.Total),
	}
}

func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(d)))
}
