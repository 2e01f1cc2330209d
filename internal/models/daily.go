// Package models defines the core domain entities for the spotlens application.
// These models represent daily campaign performance, weekly aggregates, entity
// performance records, and the typed insight set produced from model responses.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology (matching TV attribution naming):
//   - Spot: a single aired TV advertisement.
//   - Visit: a web session attributed to an aired spot.
//   - Efficiency: attributed visits per spot, the central performance ratio.
package models

import (
	"errors"
	"time"
)

// DailyRecord represents one day of campaign performance for a single client.
// Spots and attributed visits come from different source tables; a day with
// airings but no attribution rows is valid and carries zero visits.
type DailyRecord struct {
	Date       time.Time `json:"date"`
	SpotCount  int       `json:"spot_count"`
	VisitCount int       `json:"visit_count"`
	Cost       float64   `json:"cost"`
	Revenue    float64   `json:"revenue"`
}

// Efficiency returns attributed visits per spot for this day.
// A day with no spots has zero efficiency rather than a division error.
func (d *DailyRecord) Efficiency() float64 {
	if d.SpotCount <= 0 {
		return 0
	}
	return float64(d.VisitCount) / float64(d.SpotCount)
}

// Validate checks that all daily record fields are valid.
func (d *DailyRecord) Validate() error {
	if d.Date.IsZero() {
		return errors.New("date must not be zero")
	}
	if d.SpotCount < 0 {
		return errors.New("spot count must not be negative")
	}
	if d.VisitCount < 0 {
		return errors.New("visit count must not be negative")
	}
	if d.Cost < 0 {
		return errors.New("cost must not be negative")
	}
	if d.Revenue < 0 {
		return errors.New("revenue must not be negative")
	}
	return nil
}

// WeeklyAggregate represents one weekly bucket of daily records. Buckets are
// formed by consecutive 7-day chunks in date order; a trailing partial week
// keeps its true day count so downstream math does not overweight it.
type WeeklyAggregate struct {
	Week               int       `json:"week"` // 1-based bucket index
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	Days               int       `json:"days"`
	TotalSpots         int       `json:"total_spots"`
	TotalVisits        int       `json:"total_visits"`
	TotalCost          float64   `json:"total_cost"`
	TotalRevenue       float64   `json:"total_revenue"`
	AvgDailyEfficiency float64   `json:"avg_daily_efficiency"` // visits per spot; 0 when the bucket has no spots
}

// Validate checks that all weekly aggregate fields are valid.
func (w *WeeklyAggregate) Validate() error {
	if w.Week < 1 {
		return errors.New("week index must be at least 1")
	}
	if w.Days < 1 || w.Days > 7 {
		return errors.New("days must be between 1 and 7")
	}
	if w.TotalSpots < 0 {
		return errors.New("total spots must not be negative")
	}
	if w.TotalVisits < 0 {
		return errors.New("total visits must not be negative")
	}
	if w.EndDate.Before(w.StartDate) {
		return errors.New("end date must not be before start date")
	}
	return nil
}
