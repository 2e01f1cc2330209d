// Package classify assigns performance tiers and investment signals to
// stations, dayparts, and station+daypart combinations based on quartile
// position within the current batch.
//
// Tiers are relative, not absolute: an entity's quartile is computed against
// the other entities in the same run, using only positive efficiency values.
// Classification is a pure function of the input batch and the campaign
// trend context, so classifying the same batch twice yields identical
// results, and the batch ordering never changes an entity's tier.
//
// Scoring composes three factors per entity:
//   - efficiency score: visits-per-spot relative to the batch median
//   - volume score: visits relative to the batch maximum
//   - trend multiplier: 1.2 improving, 0.8 declining, 1.0 stable
//
// The product ranks entities for scaling attention; the quartile tier, the
// opportunity label, and the confidence level travel with each record so the
// prompt builder and reports never re-derive them.
package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/models"
	"github.com/spotlens/spotlens/internal/trend"
)

// TrendProvider supplies campaign trend context for an entity.
type TrendProvider interface {
	ContextForEntity(kind models.EntityKind, name string) trend.EntityContext
}

// Classifier assigns tiers and investment signals to entity batches.
type Classifier struct {
	cfg    config.AnalysisConfig
	trends TrendProvider
}

// New creates a classifier with the given thresholds and trend source.
func New(cfg config.AnalysisConfig, trends TrendProvider) *Classifier {
	return &Classifier{cfg: cfg, trends: trends}
}

// Result pairs a normalized entity record with its classification. Fields
// that apply to only one entity kind are left empty for the others.
type Result struct {
	Record models.EntityPerformanceRecord `json:"record"`

	Tier           string          `json:"tier"`
	TrendDirection trend.Direction `json:"trend_direction"`
	Confidence     string          `json:"confidence"`

	EfficiencyScore  float64 `json:"efficiency_score"`
	VolumeScore      float64 `json:"volume_score"`
	OpportunityScore float64 `json:"opportunity_score"`

	// Station-specific
	OpportunityType string `json:"opportunity_type,omitempty"`

	// Daypart-specific
	RecommendationPriority string `json:"recommendation_priority,omitempty"`

	// Combination-specific
	SynergyScore             float64 `json:"synergy_score,omitempty"`
	ScalingPriority          string  `json:"scaling_priority,omitempty"`
	InvestmentRecommendation string  `json:"investment_recommendation,omitempty"`
}

// Percentile returns the nearest-rank percentile of the positive values in
// the input. Zero and negative values never enter the computation; with no
// positive values the result is 0.
func Percentile(values []float64, p float64) float64 {
	positive := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) == 0 {
		return 0
	}
	sort.Float64s(positive)
	idx := int(float64(len(positive)) * p)
	if idx >= len(positive) {
		idx = len(positive) - 1
	}
	return positive[idx]
}

// ClassifyStations tiers each station by quartile position and labels its
// scaling opportunity. Results are sorted by opportunity score descending;
// ties keep their input order.
func (c *Classifier) ClassifyStations(records []models.EntityPerformanceRecord) []Result {
	if len(records) == 0 {
		return []Result{}
	}

	normalized, rates := c.normalizeBatch(records, models.KindStation)
	if !hasPositiveRate(rates) {
		return passthroughResults(records)
	}
	p25 := Percentile(rates, 0.25)
	p50 := Percentile(rates, 0.50)
	p75 := Percentile(rates, 0.75)
	maxVisits := maxTotalVisits(normalized)

	results := make([]Result, 0, len(normalized))
	for _, rec := range normalized {
		ctx := c.trends.ContextForEntity(models.KindStation, rec.Name)
		rate := rec.AvgVisitsPerSpot

		res := Result{
			Record:          rec,
			Tier:            withTrendSuffix(stationTier(rate, p25, p50, p75), ctx.Direction),
			TrendDirection:  ctx.Direction,
			Confidence:      c.confidence(rec.Spots, ctx.WeeksAnalyzed),
			OpportunityType: c.stationOpportunity(rec, rate, p50, p75, ctx.Direction),
		}
		res.EfficiencyScore = rate / math.Max(p50, 1)
		res.VolumeScore = volumeScore(rec.TotalVisits, maxVisits)
		res.OpportunityScore = res.EfficiencyScore * res.VolumeScore * trendMultiplier(ctx.Direction)
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OpportunityScore > results[j].OpportunityScore
	})
	return results
}

// ClassifyDayparts tiers each daypart with the same quartile math as
// stations under a rating vocabulary, plus a scale-up priority label.
func (c *Classifier) ClassifyDayparts(records []models.EntityPerformanceRecord) []Result {
	if len(records) == 0 {
		return []Result{}
	}

	normalized, rates := c.normalizeBatch(records, models.KindDaypart)
	if !hasPositiveRate(rates) {
		return passthroughResults(records)
	}
	p25 := Percentile(rates, 0.25)
	p50 := Percentile(rates, 0.50)
	p75 := Percentile(rates, 0.75)
	maxVisits := maxTotalVisits(normalized)

	results := make([]Result, 0, len(normalized))
	for _, rec := range normalized {
		ctx := c.trends.ContextForEntity(models.KindDaypart, rec.Name)
		rate := rec.AvgVisitsPerSpot

		res := Result{
			Record:                 rec,
			Tier:                   withTrendSuffix(daypartTier(rate, p25, p50, p75), ctx.Direction),
			TrendDirection:         ctx.Direction,
			Confidence:             c.confidence(rec.Spots, ctx.WeeksAnalyzed),
			RecommendationPriority: c.daypartPriority(rate, p50, p75, ctx.Direction),
		}
		res.EfficiencyScore = rate / math.Max(p50, 1)
		res.VolumeScore = volumeScore(rec.TotalVisits, maxVisits)
		res.OpportunityScore = res.EfficiencyScore * res.VolumeScore * trendMultiplier(ctx.Direction)
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OpportunityScore > results[j].OpportunityScore
	})
	return results
}

// ClassifyCombinations tiers station+daypart pairs against the batch top
// performer and median, and attaches an investment recommendation. Results
// are sorted by synergy score descending.
func (c *Classifier) ClassifyCombinations(records []models.EntityPerformanceRecord) []Result {
	if len(records) == 0 {
		return []Result{}
	}

	normalized, rates := c.normalizeBatch(records, models.KindCombination)
	if !hasPositiveRate(rates) {
		return passthroughResults(records)
	}
	median := Percentile(rates, 0.50)
	top := maxRate(normalized)
	maxVisits := maxTotalVisits(normalized)

	results := make([]Result, 0, len(normalized))
	for _, rec := range normalized {
		ctx := c.trends.ContextForEntity(models.KindCombination, rec.Name)
		rate := rec.AvgVisitsPerSpot
		tier, priority := combinationTier(rate, top, median)
		conf := c.confidence(rec.Spots, ctx.WeeksAnalyzed)

		res := Result{
			Record:                   rec,
			Tier:                     tier,
			TrendDirection:           ctx.Direction,
			Confidence:               conf,
			SynergyScore:             rate / math.Max(median, 1),
			ScalingPriority:          priority,
			InvestmentRecommendation: c.investmentRecommendation(tier, conf, rec.Spots),
		}
		res.EfficiencyScore = res.SynergyScore
		res.VolumeScore = volumeScore(rec.TotalVisits, maxVisits)
		res.OpportunityScore = res.EfficiencyScore * res.VolumeScore * trendMultiplier(ctx.Direction)
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SynergyScore != results[j].SynergyScore {
			return results[i].SynergyScore > results[j].SynergyScore
		}
		return results[i].Record.AvgVisitsPerSpot > results[j].Record.AvgVisitsPerSpot
	})
	return results
}

// normalizeBatch copies and normalizes the input records so callers' slices
// are never mutated, and collects the efficiency rates for quartile math.
func (c *Classifier) normalizeBatch(records []models.EntityPerformanceRecord, kind models.EntityKind) ([]models.EntityPerformanceRecord, []float64) {
	normalized := make([]models.EntityPerformanceRecord, len(records))
	rates := make([]float64, len(records))
	for i, rec := range records {
		if rec.Kind == "" {
			rec.Kind = kind
		}
		rec.Normalize()
		normalized[i] = rec
		rates[i] = rec.AvgVisitsPerSpot
	}
	return normalized, rates
}

// hasPositiveRate reports whether any entity in the batch produced visits.
func hasPositiveRate(rates []float64) bool {
	for _, r := range rates {
		if r > 0 {
			return true
		}
	}
	return false
}

// passthroughResults wraps each input record untouched, with no tier or
// score. A batch with no positive efficiency has no quartiles to rank
// against, so classification hands the records back as-is.
func passthroughResults(records []models.EntityPerformanceRecord) []Result {
	results := make([]Result, len(records))
	for i, rec := range records {
		results[i] = Result{Record: rec}
	}
	return results
}

// stationTier maps an efficiency rate onto the station tier vocabulary.
func stationTier(rate, p25, p50, p75 float64) string {
	switch {
	case rate >= p75:
		return "High Performer"
	case rate >= p50:
		return "Above Average"
	case rate >= p25:
		return "Average"
	default:
		return "Below Average"
	}
}

// daypartTier maps an efficiency rate onto the daypart rating vocabulary.
// The quartile math is identical to stations; only the words differ.
func daypartTier(rate, p25, p50, p75 float64) string {
	switch {
	case rate >= p75:
		return "Excellent"
	case rate >= p50:
		return "Good"
	case rate >= p25:
		return "Fair"
	default:
		return "Poor"
	}
}

// combinationTier maps a rate onto the combination tier and its scaling
// priority, relative to the batch top performer and median.
func combinationTier(rate, top, median float64) (tier, priority string) {
	switch {
	case top > 0 && rate >= 0.8*top:
		return "Golden Combination", "Immediate"
	case rate >= 1.2*median && median > 0:
		return "Strong Combination", "High"
	case rate >= median && median > 0:
		return "Good Combination", "Medium"
	default:
		return "Standard Combination", "Low"
	}
}

// withTrendSuffix appends the campaign trend direction to a tier label.
func withTrendSuffix(tier string, direction trend.Direction) string {
	switch direction {
	case trend.DirectionImproving:
		return tier + " (Improving)"
	case trend.DirectionDeclining:
		return tier + " (Declining)"
	default:
		return tier
	}
}

// stationOpportunity labels what the buyer should do with a station. Rules
// are checked in order; the first match wins.
func (c *Classifier) stationOpportunity(rec models.EntityPerformanceRecord, rate, p50, p75 float64, direction trend.Direction) string {
	highVolume := rec.TotalVisits > c.cfg.HighVolumeVisits
	lowVolume := rec.TotalVisits < c.cfg.LowVolumeVisits
	topQuartile := rate >= p75 && p75 > 0

	switch {
	case highVolume && topQuartile && direction != trend.DirectionDeclining:
		return "Scale Winner"
	case lowVolume && topQuartile && direction == trend.DirectionImproving:
		return "Hidden Gem"
	case direction == trend.DirectionImproving:
		return "Rising Star"
	case highVolume && rate < p50:
		return "Optimize or Reduce"
	default:
		return "Monitor"
	}
}

// daypartPriority labels how aggressively to scale a daypart.
func (c *Classifier) daypartPriority(rate, p50, p75 float64, direction trend.Direction) string {
	switch {
	case rate >= p75 && p75 > 0 && direction != trend.DirectionDeclining:
		return "High - Scale Up"
	case direction == trend.DirectionDeclining:
		return "Medium - Investigate Decline"
	case rate >= p50 && p50 > 0:
		return "Medium - Test Scale"
	default:
		return "Low - Monitor"
	}
}

// investmentRecommendation combines tier, confidence, and sample size into
// an investment call for a combination.
func (c *Classifier) investmentRecommendation(tier, confidence string, spots int) string {
	switch {
	case tier == "Golden Combination" && confidence == "High":
		return "Scale Aggressively"
	case (tier == "Golden Combination" || tier == "Strong Combination") && spots >= c.cfg.MediumConfidenceSpots:
		return "Increase Investment"
	case tier == "Strong Combination":
		return "Test Scale"
	default:
		return "Monitor Performance"
	}
}

// confidence grades how much to trust an entity's numbers from its spot
// count and the weeks of history behind the trend context.
func (c *Classifier) confidence(spots, weeks int) string {
	switch {
	case spots >= c.cfg.HighConfidenceSpots && weeks >= c.cfg.HighConfidenceWeeks:
		return "High"
	case spots >= c.cfg.MediumConfidenceSpots:
		return "Medium"
	default:
		return "Low"
	}
}

// trendMultiplier boosts or dampens the opportunity score by campaign trend.
func trendMultiplier(direction trend.Direction) float64 {
	switch direction {
	case trend.DirectionImproving:
		return 1.2
	case trend.DirectionDeclining:
		return 0.8
	default:
		return 1.0
	}
}

// volumeScore is visits relative to the batch maximum, 1.0 when the batch
// has no visits at all so the factor never zeroes out a whole batch.
func volumeScore(visits, maxVisits int) float64 {
	if maxVisits <= 0 {
		return 1.0
	}
	return float64(visits) / float64(maxVisits)
}

func maxTotalVisits(records []models.EntityPerformanceRecord) int {
	max := 0
	for _, r := range records {
		if r.TotalVisits > max {
			max = r.TotalVisits
		}
	}
	return max
}

func maxRate(records []models.EntityPerformanceRecord) float64 {
	max := 0.0
	for _, r := range records {
		if r.AvgVisitsPerSpot > max {
			max = r.AvgVisitsPerSpot
		}
	}
	return max
}

// Describe renders a one-line summary of a result for logs.
func (r Result) Describe() string {
	return fmt.Sprintf("%s %s: tier=%s score=%.2f confidence=%s",
		r.Record.Kind, r.Record.Name, r.Tier, r.OpportunityScore, r.Confidence)
}
