package models

import (
	"errors"
	"strings"
)

// EntityKind identifies which dimension a performance record aggregates over.
type EntityKind string

const (
	// KindStation aggregates over a broadcast station (e.g. "KABC").
	KindStation EntityKind = "station"
	// KindDaypart aggregates over a daypart slot (e.g. "PRIME", "EARLY_MORNING").
	KindDaypart EntityKind = "daypart"
	// KindCombination aggregates over a station+daypart pair (e.g. "KABC_PRIME").
	KindCombination EntityKind = "combination"
)

// EntityPerformanceRecord represents aggregated performance for one station,
// daypart, or station+daypart combination over the analysis window.
// Records come out of the warehouse with possible gaps (missing attribution
// rows, zero-spot entities); Normalize fills derived fields and clamps
// negatives exactly once so downstream classification never re-checks them.
type EntityPerformanceRecord struct {
	Name             string     `json:"name"`
	Kind             EntityKind `json:"kind"`
	Station          string     `json:"station,omitempty"` // set for combination records
	Daypart          string     `json:"daypart,omitempty"` // set for combination records
	TotalVisits      int        `json:"total_visits"`
	Spots            int        `json:"spots"`
	AvgVisitsPerSpot float64    `json:"avg_visits_per_spot"`
	TotalCost        float64    `json:"total_cost"`
	TotalRevenue     float64    `json:"total_revenue"`
}

// Normalize fills derived and missing fields in place so that every consumer
// sees a fully-populated record. It clamps negative counts to zero, derives
// the efficiency rate from totals when absent, names unnamed entities, and
// splits combination names into station and daypart parts.
func (e *EntityPerformanceRecord) Normalize() {
	if e.TotalVisits < 0 {
		e.TotalVisits = 0
	}
	if e.Spots < 0 {
		e.Spots = 0
	}
	if e.TotalCost < 0 {
		e.TotalCost = 0
	}
	if e.TotalRevenue < 0 {
		e.TotalRevenue = 0
	}
	if e.AvgVisitsPerSpot < 0 {
		e.AvgVisitsPerSpot = 0
	}
	if e.AvgVisitsPerSpot == 0 && e.Spots > 0 {
		e.AvgVisitsPerSpot = float64(e.TotalVisits) / float64(e.Spots)
	}
	if e.Name == "" {
		if e.Station != "" && e.Daypart != "" {
			e.Name = e.Station + "_" + e.Daypart
		} else {
			e.Name = "Unknown"
		}
	}
	if e.Kind == KindCombination && (e.Station == "" || e.Daypart == "") {
		station, daypart := SplitEntityName(e.Name)
		if e.Station == "" {
			e.Station = station
		}
		if e.Daypart == "" {
			e.Daypart = daypart
		}
	}
}

// Validate checks that all entity performance fields are valid.
// Call Normalize first; Validate does not repair, only rejects.
func (e *EntityPerformanceRecord) Validate() error {
	if e.Name == "" {
		return errors.New("entity name must not be empty")
	}
	switch e.Kind {
	case KindStation, KindDaypart, KindCombination:
	default:
		return errors.New("entity kind must be station, daypart, or combination")
	}
	if e.TotalVisits < 0 {
		return errors.New("total visits must not be negative")
	}
	if e.Spots < 0 {
		return errors.New("spots must not be negative")
	}
	if e.AvgVisitsPerSpot < 0 {
		return errors.New("avg visits per spot must not be negative")
	}
	return nil
}

// SplitEntityName splits an entity name like "KABC_PRIME" or "KABC PRIME"
// into its station and daypart parts. The first token is the station; the
// remaining tokens rejoin as the daypart so multi-word dayparts survive
// (e.g. "KABC_EARLY_MORNING" yields daypart "EARLY_MORNING").
func SplitEntityName(name string) (station, daypart string) {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == ' '
	})
	if len(parts) == 0 {
		return "", ""
	}
	station = parts[0]
	if len(parts) > 1 {
		daypart = strings.Join(parts[1:], "_")
	}
	return station, daypart
}
