package services

import (
	"booking-pipeline/models"

	"go.uber.org/zap"
)

// InsightService computes per-cycle price statistics over the staged listings.
type InsightService struct {
	logger *zap.Logger
}

// NewInsightService creates a new InsightService.
func NewInsightService(logger *zap.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the cycle insights from the listings staged this run.
func (s *InsightService) Generate(listings []*models.StagedListing) *models.CycleInsights {
	insights := &models.CycleInsights{
		ByDistrict: make(map[string]int),
	}

	if len(listings) == 0 {
		s.logger.Warn("no staged listings to generate insights from")
		return insights
	}

	var totalPrice float64
	for _, l := range listings {
		insights.Observations++

		if l.Location.District != "" {
			insights.ByDistrict[l.Location.District]++
		}

		obs := l.Observation
		if !obs.Available {
			insights.Unavailable++
		}
		if obs.Price == nil {
			continue
		}
		price := *obs.Price
		insights.Priced++
		totalPrice += price
		if insights.MinPrice == 0 || price < insights.MinPrice {
			insights.MinPrice = price
		}
		if price > insights.MaxPrice {
			insights.MaxPrice = price
		}
	}

	if insights.Priced > 0 {
		insights.AvgPrice = totalPrice / float64(insights.Priced)
	}
	return insights
}
