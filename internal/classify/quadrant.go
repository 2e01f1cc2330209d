package classify

import (
	"fmt"
	"sort"

	"github.com/spotlens/spotlens/internal/models"
	"github.com/spotlens/spotlens/internal/trend"
)

// QuadrantEntry is one station placed into a volume/efficiency quadrant
// with the action the placement implies.
type QuadrantEntry struct {
	Station    string          `json:"station"`
	Visits     int             `json:"visits"`
	Efficiency float64         `json:"efficiency"`
	Spots      int             `json:"spots"`
	Trend      trend.Direction `json:"trend"`
	Action     string          `json:"action"`
	Confidence string          `json:"confidence"`
}

// Quadrants buckets stations by whether they sit above or below the batch
// median on volume and on efficiency. Each bucket is sorted by efficiency
// descending.
type Quadrants struct {
	ScaleThese    []QuadrantEntry `json:"scale_these"`    // high volume, high efficiency
	TestThese     []QuadrantEntry `json:"test_these"`     // low volume, high efficiency
	OptimizeThese []QuadrantEntry `json:"optimize_these"` // high volume, low efficiency
	ReduceThese   []QuadrantEntry `json:"reduce_these"`   // low volume, low efficiency
}

// AnalyzeQuadrants splits stations on the batch medians of visit volume and
// efficiency. Medians take the upper of the two middles for even batches,
// so the split value is always one a station actually has.
func (c *Classifier) AnalyzeQuadrants(records []models.EntityPerformanceRecord) Quadrants {
	var q Quadrants
	if len(records) == 0 {
		return q
	}

	normalized, rates := c.normalizeBatch(records, models.KindStation)
	volumes := make([]float64, len(normalized))
	for i, rec := range normalized {
		volumes[i] = float64(rec.TotalVisits)
	}
	medVolume := batchMedian(volumes)
	medEfficiency := batchMedian(rates)

	for _, rec := range normalized {
		ctx := c.trends.ContextForEntity(models.KindStation, rec.Name)
		entry := QuadrantEntry{
			Station:    rec.Name,
			Visits:     rec.TotalVisits,
			Efficiency: rec.AvgVisitsPerSpot,
			Spots:      rec.Spots,
			Trend:      ctx.Direction,
			Confidence: c.sampleConfidence(rec.Spots),
		}

		highVolume := float64(rec.TotalVisits) >= medVolume
		highEfficiency := rec.AvgVisitsPerSpot >= medEfficiency

		switch {
		case highVolume && highEfficiency:
			entry.Action = "Scale up"
			if ctx.Direction == trend.DirectionDeclining {
				entry.Action = "Investigate decline"
			}
			q.ScaleThese = append(q.ScaleThese, entry)
		case !highVolume && highEfficiency:
			entry.Action = "Test more budget"
			if ctx.Direction == trend.DirectionDeclining {
				entry.Action = "Monitor closely"
			}
			q.TestThese = append(q.TestThese, entry)
		case highVolume && !highEfficiency:
			entry.Action = "Reduce budget"
			if ctx.Direction == trend.DirectionImproving {
				entry.Action = "Optimize creative/targeting"
			}
			q.OptimizeThese = append(q.OptimizeThese, entry)
		default:
			entry.Action = "Remove from plan"
			if ctx.Direction == trend.DirectionImproving {
				entry.Action = "Monitor improvement"
			}
			q.ReduceThese = append(q.ReduceThese, entry)
		}
	}

	for _, bucket := range []*[]QuadrantEntry{&q.ScaleThese, &q.TestThese, &q.OptimizeThese, &q.ReduceThese} {
		sort.SliceStable(*bucket, func(i, j int) bool {
			return (*bucket)[i].Efficiency > (*bucket)[j].Efficiency
		})
	}
	return q
}

// Reallocation recommends moving spots from a weak station to a strong one.
type Reallocation struct {
	FromStation        string  `json:"from_station"`
	ToStation          string  `json:"to_station"`
	SpotsToMove        int     `json:"spots_to_move"`
	EfficiencyGain     float64 `json:"efficiency_gain"` // visits gained per moved spot
	ProjectedVisitGain int     `json:"projected_visit_gain"`
	Confidence         string  `json:"confidence"`
	Action             string  `json:"action"`
}

// OpportunityMatrix pairs the top three stations by efficiency against the
// bottom three, worst first, and recommends moving spots wherever the
// efficiency gap is wide enough and the weak station has enough spots for
// the move to mean anything. Moves never exceed half the source station's
// spots or the configured cap.
func (c *Classifier) OpportunityMatrix(records []models.EntityPerformanceRecord) []Reallocation {
	if len(records) < 2 {
		return nil
	}

	normalized, _ := c.normalizeBatch(records, models.KindStation)
	ranked := make([]models.EntityPerformanceRecord, len(normalized))
	copy(ranked, normalized)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AvgVisitsPerSpot > ranked[j].AvgVisitsPerSpot
	})

	pairCount := 3
	if len(ranked) < pairCount {
		pairCount = len(ranked)
	}

	var moves []Reallocation
	for i := 0; i < pairCount; i++ {
		top := ranked[i]
		bottom := ranked[len(ranked)-1-i]
		if top.Name == bottom.Name {
			continue
		}
		if top.AvgVisitsPerSpot <= bottom.AvgVisitsPerSpot*c.cfg.ReallocationEffRatio {
			continue
		}
		if bottom.Spots < c.cfg.QuadrantMediumSpots {
			continue
		}

		move := bottom.Spots / 2
		if move > c.cfg.ReallocationMaxMove {
			move = c.cfg.ReallocationMaxMove
		}
		gain := top.AvgVisitsPerSpot - bottom.AvgVisitsPerSpot

		confidence := "Medium"
		if bottom.Spots >= c.cfg.ReallocationHighSpots {
			confidence = "High"
		}

		moves = append(moves, Reallocation{
			FromStation:        bottom.Name,
			ToStation:          top.Name,
			SpotsToMove:        move,
			EfficiencyGain:     gain,
			ProjectedVisitGain: int(float64(move) * gain),
			Confidence:         confidence,
			Action:             fmt.Sprintf("Move %d spots from %s to %s", move, bottom.Name, top.Name),
		})
	}
	return moves
}

// sampleConfidence grades a quadrant placement purely on spot count; the
// quadrant view predates trend history, so weeks do not factor in.
func (c *Classifier) sampleConfidence(spots int) string {
	switch {
	case spots >= c.cfg.QuadrantHighSpots:
		return "High"
	case spots >= c.cfg.QuadrantMediumSpots:
		return "Medium"
	default:
		return "Low"
	}
}

// batchMedian returns the middle element of the sorted values, taking the
// upper of the two middles for even counts. The split value is always one a
// real entity holds, never an interpolated average.
func batchMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
