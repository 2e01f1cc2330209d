// Package trend turns a client's ordered daily performance records into weekly
// aggregates and directional assessments. All analysis flows through the same
// weekly bucketing: consecutive 7-day chunks in date order, with a trailing
// partial week that keeps its true day count.
//
// The analyzer answers four questions about a campaign:
//   - How does the recent window compare to everything before it?
//   - How did each week move relative to the week before?
//   - What changed in the latest week that is worth reporting?
//   - Is the movement consistent, or just noise?
//
// Every method degrades explicitly: when there is not enough history to
// answer, the result carries StatusInsufficientData instead of a fabricated
// number. Ratio math never divides by raw denominators; totals that can be
// zero are floored at one so a quiet week reads as a small change, not a
// crash or an infinite percentage.
package trend

import (
	"fmt"
	"math"

	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/models"
)

// Direction labels which way a campaign or entity is moving week over week.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
	DirectionStable    Direction = "stable"
)

// Status reports whether an analysis had enough history to run.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// Assessment labels for recent-versus-historical comparison.
const (
	AssessmentSignificantlyImproved = "significantly_improved"
	AssessmentImproved              = "improved"
	AssessmentSignificantlyDeclined = "significantly_declined"
	AssessmentDeclined              = "declined"
	AssessmentStable                = "stable"
)

// Analyzer computes weekly aggregates and trend assessments for one client's
// daily records. Records must already be in ascending date order; the
// analyzer buckets them eagerly at construction so every method works from
// the same weekly view.
type Analyzer struct {
	cfg    config.AnalysisConfig
	daily  []models.DailyRecord
	weekly []models.WeeklyAggregate
}

// New creates an analyzer over the given date-ordered daily records.
func New(cfg config.AnalysisConfig, daily []models.DailyRecord) *Analyzer {
	return &Analyzer{
		cfg:    cfg,
		daily:  daily,
		weekly: AggregateWeekly(daily),
	}
}

// Weeks returns the weekly aggregates in chronological order.
func (a *Analyzer) Weeks() []models.WeeklyAggregate {
	return a.weekly
}

// AggregateWeekly buckets date-ordered daily records into consecutive 7-day
// chunks. The final bucket may cover fewer than 7 days and keeps its true
// day count. Every daily record lands in exactly one bucket, so weekly
// totals always sum back to the daily totals.
func AggregateWeekly(daily []models.DailyRecord) []models.WeeklyAggregate {
	if len(daily) == 0 {
		return nil
	}

	weekly := make([]models.WeeklyAggregate, 0, (len(daily)+6)/7)
	for start := 0; start < len(daily); start += 7 {
		end := start + 7
		if end > len(daily) {
			end = len(daily)
		}
		chunk := daily[start:end]

		agg := models.WeeklyAggregate{
			Week:      len(weekly) + 1,
			StartDate: chunk[0].Date,
			EndDate:   chunk[len(chunk)-1].Date,
			Days:      len(chunk),
		}
		for _, d := range chunk {
			agg.TotalSpots += d.SpotCount
			agg.TotalVisits += d.VisitCount
			agg.TotalCost += d.Cost
			agg.TotalRevenue += d.Revenue
		}
		if agg.TotalSpots > 0 {
			agg.AvgDailyEfficiency = float64(agg.TotalVisits) / float64(agg.TotalSpots)
		}
		weekly = append(weekly, agg)
	}
	return weekly
}

// Comparison is the result of comparing the recent window against all
// earlier history.
type Comparison struct {
	Status               Status  `json:"status"`
	RecentDays           int     `json:"recent_days"`
	RecentEfficiency     float64 `json:"recent_efficiency"`
	HistoricalEfficiency float64 `json:"historical_efficiency"`
	ChangePct            float64 `json:"change_pct"`
	Assessment           string  `json:"assessment"`
}

// CompareRecentVsHistorical splits the daily series into the last recentDays
// records and everything before them, then compares pooled efficiency
// (total visits over total spots) between the two windows. It needs at
// least twice the recent window of history so the historical side is never
// thinner than the recent side.
func (a *Analyzer) CompareRecentVsHistorical(recentDays int) Comparison {
	if recentDays < 1 {
		recentDays = a.cfg.RecentWindowDays
	}
	if len(a.daily) < 2*recentDays {
		return Comparison{Status: StatusInsufficientData, RecentDays: recentDays}
	}

	recent := a.daily[len(a.daily)-recentDays:]
	historical := a.daily[:len(a.daily)-recentDays]

	recentEff := pooledEfficiency(recent)
	historicalEff := pooledEfficiency(historical)
	changePct := (recentEff - historicalEff) / math.Max(historicalEff, 1) * 100

	return Comparison{
		Status:               StatusOK,
		RecentDays:           recentDays,
		RecentEfficiency:     recentEff,
		HistoricalEfficiency: historicalEff,
		ChangePct:            changePct,
		Assessment:           a.assessChange(changePct),
	}
}

// assessChange maps a percentage change onto the five-level assessment
// scale. Boundaries are strict so a change exactly at a threshold takes the
// milder label.
func (a *Analyzer) assessChange(changePct float64) string {
	switch {
	case changePct > a.cfg.SignificantChangePct:
		return AssessmentSignificantlyImproved
	case changePct > a.cfg.ModerateChangePct:
		return AssessmentImproved
	case changePct < -a.cfg.SignificantChangePct:
		return AssessmentSignificantlyDeclined
	case changePct < -a.cfg.ModerateChangePct:
		return AssessmentDeclined
	default:
		return AssessmentStable
	}
}

// WeekChange is one week's movement relative to the week before it.
type WeekChange struct {
	Week                int     `json:"week"` // the later week of the pair
	EfficiencyChangePct float64 `json:"efficiency_change_pct"`
	VolumeChangePct     float64 `json:"volume_change_pct"`
}

// WeeklyTrends holds week-over-week deltas for the full weekly series.
type WeeklyTrends struct {
	Status        Status       `json:"status"`
	WeeksAnalyzed int          `json:"weeks_analyzed"`
	Changes       []WeekChange `json:"changes"`
}

// AnalyzeWeeklyTrends computes efficiency and volume changes for each
// consecutive pair of weekly buckets. Needs at least two weeks.
func (a *Analyzer) AnalyzeWeeklyTrends() WeeklyTrends {
	if len(a.weekly) < 2 {
		return WeeklyTrends{Status: StatusInsufficientData, WeeksAnalyzed: len(a.weekly)}
	}

	changes := make([]WeekChange, 0, len(a.weekly)-1)
	for i := 1; i < len(a.weekly); i++ {
		prev := a.weekly[i-1]
		cur := a.weekly[i]
		changes = append(changes, WeekChange{
			Week:                i + 1,
			EfficiencyChangePct: pctChange(cur.AvgDailyEfficiency, prev.AvgDailyEfficiency),
			VolumeChangePct:     pctChange(float64(cur.TotalSpots), float64(prev.TotalSpots)),
		})
	}

	return WeeklyTrends{
		Status:        StatusOK,
		WeeksAnalyzed: len(a.weekly),
		Changes:       changes,
	}
}

// LatestWeek summarizes the most recent weekly bucket against the one
// before it, with human-readable insight strings for changes large enough
// to report.
type LatestWeek struct {
	Status              Status   `json:"status"`
	EfficiencyChangePct float64  `json:"efficiency_change_pct"`
	VolumeChangePct     float64  `json:"volume_change_pct"`
	RevenueChangePct    float64  `json:"revenue_change_pct"`
	Insights            []string `json:"insights"`
}

// LatestWeekInsights compares the last two weekly buckets and emits insight
// strings for efficiency, volume, and revenue changes that cross the
// configured reporting thresholds.
func (a *Analyzer) LatestWeekInsights() LatestWeek {
	if len(a.weekly) < 2 {
		return LatestWeek{Status: StatusInsufficientData}
	}

	prev := a.weekly[len(a.weekly)-2]
	latest := a.weekly[len(a.weekly)-1]

	effChange := pctChange(latest.AvgDailyEfficiency, prev.AvgDailyEfficiency)
	volChange := pctChange(float64(latest.TotalSpots), float64(prev.TotalSpots))
	revChange := pctChange(latest.TotalRevenue, prev.TotalRevenue)

	var insights []string
	if effChange > a.cfg.EfficiencyReportPct {
		insights = append(insights, fmt.Sprintf("Strong improvement: %.1f%% efficiency change in latest week", effChange))
	} else if effChange < -a.cfg.EfficiencyReportPct {
		insights = append(insights, fmt.Sprintf("Strong decline: %.1f%% efficiency change in latest week", effChange))
	}
	if volChange > a.cfg.VolumeReportPct {
		insights = append(insights, fmt.Sprintf("Volume surge: %.1f%% change in spots last week", volChange))
	} else if volChange < -a.cfg.VolumeReportPct {
		insights = append(insights, fmt.Sprintf("Volume drop: %.1f%% change in spots last week", volChange))
	}
	if revChange > a.cfg.RevenueReportPct {
		insights = append(insights, fmt.Sprintf("Revenue increase: %.1f%% change last week", revChange))
	} else if revChange < -a.cfg.RevenueReportPct {
		insights = append(insights, fmt.Sprintf("Revenue decrease: %.1f%% change last week", revChange))
	}

	return LatestWeek{
		Status:              StatusOK,
		EfficiencyChangePct: effChange,
		VolumeChangePct:     volChange,
		RevenueChangePct:    revChange,
		Insights:            insights,
	}
}

// Patterns reports whether the weekly efficiency series shows a consistent
// direction or high volatility. The flags are not mutually exclusive: a
// series can trend up consistently and still be volatile.
type Patterns struct {
	Status            Status `json:"status"`
	WeeksAnalyzed     int    `json:"weeks_analyzed"`
	ConsistentGrowth  bool   `json:"consistent_growth"`
	ConsistentDecline bool   `json:"consistent_decline"`
	Volatile          bool   `json:"volatile"`
}

// IdentifyPatterns inspects week-over-week efficiency deltas across at
// least three weeks. Growth or decline is consistent when the configured
// share of deltas point the same way; volatility is a coefficient of
// variation above the configured cut.
func (a *Analyzer) IdentifyPatterns() Patterns {
	if len(a.weekly) < 3 {
		return Patterns{Status: StatusInsufficientData, WeeksAnalyzed: len(a.weekly)}
	}

	var positive, negative int
	effs := make([]float64, len(a.weekly))
	for i, w := range a.weekly {
		effs[i] = w.AvgDailyEfficiency
		if i == 0 {
			continue
		}
		delta := w.AvgDailyEfficiency - a.weekly[i-1].AvgDailyEfficiency
		if delta > 0 {
			positive++
		} else if delta < 0 {
			negative++
		}
	}

	deltas := len(a.weekly) - 1
	need := a.cfg.ConsistentPatternRatio * float64(deltas)

	mean, stddev := meanStddev(effs)
	volatile := mean > 0 && stddev/mean > a.cfg.VolatilityCV

	return Patterns{
		Status:            StatusOK,
		WeeksAnalyzed:     len(a.weekly),
		ConsistentGrowth:  float64(positive) >= need,
		ConsistentDecline: float64(negative) >= need,
		Volatile:          volatile,
	}
}

// Summary is the campaign-level weekly movement used as trend context for
// entity classification.
type Summary struct {
	Direction        Direction `json:"direction"`
	RecentEfficiency float64   `json:"recent_efficiency"`
	VolumeStability  string    `json:"volume_stability"` // "stable", "volatile", or "unknown"
	WeeksAnalyzed    int       `json:"weeks_analyzed"`
}

// Summarize compares the mean efficiency of the last two weekly buckets
// against the mean of all earlier buckets. Fewer than three weeks leaves no
// earlier baseline, so the direction is stable rather than a guess.
func (a *Analyzer) Summarize() Summary {
	n := len(a.weekly)
	if n == 0 {
		return Summary{Direction: DirectionStable, VolumeStability: "unknown"}
	}

	recentStart := n - 2
	if recentStart < 0 {
		recentStart = 0
	}
	recentEff := meanEfficiency(a.weekly[recentStart:])

	direction := DirectionStable
	if n >= 3 {
		earlierEff := meanEfficiency(a.weekly[:recentStart])
		if recentEff > earlierEff*a.cfg.ImprovingRatio {
			direction = DirectionImproving
		} else if recentEff < earlierEff*a.cfg.DecliningRatio {
			direction = DirectionDeclining
		}
	}

	return Summary{
		Direction:        direction,
		RecentEfficiency: recentEff,
		VolumeStability:  a.volumeStability(),
		WeeksAnalyzed:    n,
	}
}

// volumeStability labels the spot volume of the last two weeks as stable
// when their spread is small relative to their mean. With fewer than two
// weeks there is nothing to compare.
func (a *Analyzer) volumeStability() string {
	if len(a.weekly) < 2 {
		return "unknown"
	}
	prev := a.weekly[len(a.weekly)-2].TotalSpots
	last := a.weekly[len(a.weekly)-1].TotalSpots
	minSpots, maxSpots := prev, last
	if last < prev {
		minSpots, maxSpots = last, prev
	}
	mean := float64(prev+last) / 2
	if mean <= 0 {
		return "unknown"
	}
	if float64(maxSpots-minSpots)/mean < a.cfg.StabilitySpreadRatio {
		return "stable"
	}
	return "volatile"
}

// EntityContext is the trend context attached to one entity during
// classification. The direction and stability are campaign-wide; per-entity
// daily series are not available at this layer, so every entity in a run
// shares the same movement signal.
type EntityContext struct {
	EntityKind          models.EntityKind `json:"entity_kind"`
	EntityName          string            `json:"entity_name"`
	Direction           Direction         `json:"direction"`
	RecentEfficiency    float64           `json:"recent_efficiency"`
	VolumeStability     string            `json:"volume_stability"`
	WeeksAnalyzed       int               `json:"weeks_analyzed"`
	Confidence          string            `json:"confidence"`
	RecommendationFocus string            `json:"recommendation_focus"`
}

// ContextForEntity packages the campaign trend summary as context for one
// entity, with a recommendation focus phrased for the entity's kind.
// Confidence is High only with at least three weekly buckets.
func (a *Analyzer) ContextForEntity(kind models.EntityKind, name string) EntityContext {
	summary := a.Summarize()

	confidence := "Medium"
	if summary.WeeksAnalyzed >= 3 {
		confidence = "High"
	}

	return EntityContext{
		EntityKind:          kind,
		EntityName:          name,
		Direction:           summary.Direction,
		RecentEfficiency:    summary.RecentEfficiency,
		VolumeStability:     summary.VolumeStability,
		WeeksAnalyzed:       summary.WeeksAnalyzed,
		Confidence:          confidence,
		RecommendationFocus: recommendationFocus(kind, summary.Direction),
	}
}

// recommendationFocus phrases what the buyer should do about the trend for
// this kind of entity.
func recommendationFocus(kind models.EntityKind, direction Direction) string {
	switch kind {
	case models.KindStation:
		switch direction {
		case DirectionImproving:
			return "Consider increasing investment - positive trend"
		case DirectionDeclining:
			return "Investigate performance issues - negative trend"
		default:
			return "Maintain current strategy - stable performance"
		}
	case models.KindDaypart:
		switch direction {
		case DirectionImproving:
			return "Expand successful time slots"
		case DirectionDeclining:
			return "Review audience targeting"
		default:
			return "Optimize within current slots"
		}
	default:
		return "Monitor performance"
	}
}

// pooledEfficiency is total visits over total spots for a window. The spot
// total is floored at one so an all-dark window reads as zero efficiency.
func pooledEfficiency(records []models.DailyRecord) float64 {
	var spots, visits int
	for _, d := range records {
		spots += d.SpotCount
		visits += d.VisitCount
	}
	return float64(visits) / math.Max(float64(spots), 1)
}

// pctChange is the percentage change from prev to cur with the denominator
// floored at one.
func pctChange(cur, prev float64) float64 {
	return (cur - prev) / math.Max(prev, 1) * 100
}

// meanEfficiency averages weekly efficiency values.
func meanEfficiency(weeks []models.WeeklyAggregate) float64 {
	if len(weeks) == 0 {
		return 0
	}
	var sum float64
	for _, w := range weeks {
		sum += w.AvgDailyEfficiency
	}
	return sum / float64(len(weeks))
}

// meanStddev returns the mean and population standard deviation.
func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
