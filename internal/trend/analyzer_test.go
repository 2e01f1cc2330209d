package trend

import (
	"strings"
	"testing"
	"time"

	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/models"
)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		RecentWindowDays:       7,
		SignificantChangePct:   10.0,
		ModerateChangePct:      5.0,
		ImprovingRatio:         1.1,
		DecliningRatio:         0.9,
		EfficiencyReportPct:    10.0,
		VolumeReportPct:        15.0,
		RevenueReportPct:       10.0,
		ConsistentPatternRatio: 0.8,
		VolatilityCV:           0.3,
		StabilitySpreadRatio:   0.3,
		HighVolumeVisits:       1000,
		LowVolumeVisits:        500,
		HighConfidenceSpots:    20,
		MediumConfidenceSpots:  10,
		HighConfidenceWeeks:    2,
	}
}

// dailySeries builds date-ordered records from parallel slices.
func dailySeries(t *testing.T, spots, visits []int, revenue []float64) []models.DailyRecord {
	t.Helper()
	if len(spots) != len(visits) {
		t.Fatalf("spots and visits length mismatch: %d vs %d", len(spots), len(visits))
	}
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.DailyRecord, len(spots))
	for i := range spots {
		records[i] = models.DailyRecord{
			Date:       start.AddDate(0, 0, i),
			SpotCount:  spots[i],
			VisitCount: visits[i],
		}
		if revenue != nil {
			records[i].Revenue = revenue[i]
		}
	}
	return records
}

// twoWeekSeries is 14 days where the second week runs more spots at a
// higher efficiency and higher revenue than the first.
func twoWeekSeries(t *testing.T) []models.DailyRecord {
	t.Helper()
	spots := []int{50, 45, 52, 48, 55, 50, 53, 60, 58, 62, 59, 65, 61, 63}
	visits := make([]int, len(spots))
	revenue := make([]float64, len(spots))
	for i, s := range spots {
		if i < 7 {
			visits[i] = s * 2 // week 1 efficiency 2.0
			revenue[i] = 100
		} else {
			visits[i] = s * 3 // week 2 efficiency 3.0
			revenue[i] = 120
		}
	}
	return dailySeries(t, spots, visits, revenue)
}

// threeWeekImprovingSeries is 21 days at constant spot volume whose third
// week doubles efficiency, enough history for a directional read.
func threeWeekImprovingSeries(t *testing.T) []models.DailyRecord {
	t.Helper()
	spots := make([]int, 21)
	visits := make([]int, 21)
	for i := range spots {
		spots[i] = 50
		visits[i] = 100 // weeks 1 and 2 at efficiency 2.0
		if i >= 14 {
			visits[i] = 200 // week 3 at efficiency 4.0
		}
	}
	return dailySeries(t, spots, visits, nil)
}

func TestAggregateWeekly(t *testing.T) {
	records := twoWeekSeries(t)
	weekly := AggregateWeekly(records)

	if len(weekly) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d", len(weekly))
	}
	if weekly[0].Week != 1 || weekly[1].Week != 2 {
		t.Errorf("unexpected week indexes: %d, %d", weekly[0].Week, weekly[1].Week)
	}
	if weekly[0].Days != 7 || weekly[1].Days != 7 {
		t.Errorf("expected full 7-day buckets, got %d and %d", weekly[0].Days, weekly[1].Days)
	}
	if weekly[0].TotalSpots != 353 {
		t.Errorf("week 1 spots = %d, want 353", weekly[0].TotalSpots)
	}
	if weekly[0].AvgDailyEfficiency != 2.0 {
		t.Errorf("week 1 efficiency = %f, want 2.0", weekly[0].AvgDailyEfficiency)
	}
	if weekly[1].AvgDailyEfficiency != 3.0 {
		t.Errorf("week 2 efficiency = %f, want 3.0", weekly[1].AvgDailyEfficiency)
	}
}

func TestAggregateWeeklyPartialWeek(t *testing.T) {
	spots := make([]int, 10)
	visits := make([]int, 10)
	for i := range spots {
		spots[i] = 10
		visits[i] = 20
	}
	weekly := AggregateWeekly(dailySeries(t, spots, visits, nil))

	if len(weekly) != 2 {
		t.Fatalf("expected 2 buckets for 10 days, got %d", len(weekly))
	}
	if weekly[0].Days != 7 {
		t.Errorf("first bucket days = %d, want 7", weekly[0].Days)
	}
	if weekly[1].Days != 3 {
		t.Errorf("trailing bucket days = %d, want 3", weekly[1].Days)
	}
}

// Every daily record lands in exactly one bucket, so weekly sums must match
// daily sums regardless of series length.
func TestAggregateWeeklyConservation(t *testing.T) {
	for _, days := range []int{1, 6, 7, 8, 13, 14, 20, 30} {
		spots := make([]int, days)
		visits := make([]int, days)
		for i := range spots {
			spots[i] = 10 + i
			visits[i] = 25 + 2*i
		}
		records := dailySeries(t, spots, visits, nil)

		var wantSpots, wantVisits int
		for _, d := range records {
			wantSpots += d.SpotCount
			wantVisits += d.VisitCount
		}

		var gotSpots, gotVisits, gotDays int
		for _, w := range AggregateWeekly(records) {
			gotSpots += w.TotalSpots
			gotVisits += w.TotalVisits
			gotDays += w.Days
		}

		if gotSpots != wantSpots || gotVisits != wantVisits || gotDays != days {
			t.Errorf("%d days: weekly sums (%d spots, %d visits, %d days) != daily sums (%d, %d, %d)",
				days, gotSpots, gotVisits, gotDays, wantSpots, wantVisits, days)
		}
	}
}

func TestAggregateWeeklyEmpty(t *testing.T) {
	if weekly := AggregateWeekly(nil); len(weekly) != 0 {
		t.Errorf("expected no buckets for empty input, got %d", len(weekly))
	}
}

func TestCompareRecentVsHistorical(t *testing.T) {
	a := New(testAnalysisConfig(), twoWeekSeries(t))
	cmp := a.CompareRecentVsHistorical(7)

	if cmp.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", cmp.Status)
	}
	if cmp.RecentEfficiency != 3.0 {
		t.Errorf("recent efficiency = %f, want 3.0", cmp.RecentEfficiency)
	}
	if cmp.HistoricalEfficiency != 2.0 {
		t.Errorf("historical efficiency = %f, want 2.0", cmp.HistoricalEfficiency)
	}
	if cmp.ChangePct != 50.0 {
		t.Errorf("change pct = %f, want 50.0", cmp.ChangePct)
	}
	if cmp.Assessment != AssessmentSignificantlyImproved {
		t.Errorf("assessment = %s, want %s", cmp.Assessment, AssessmentSignificantlyImproved)
	}
}

func TestCompareRecentVsHistoricalInsufficientData(t *testing.T) {
	// 13 days is one short of twice the 7-day recent window
	spots := make([]int, 13)
	visits := make([]int, 13)
	for i := range spots {
		spots[i] = 10
		visits[i] = 20
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	cmp := a.CompareRecentVsHistorical(7)
	if cmp.Status != StatusInsufficientData {
		t.Errorf("expected insufficient data status, got %s", cmp.Status)
	}
	if cmp.Assessment != "" {
		t.Errorf("expected no assessment on insufficient data, got %s", cmp.Assessment)
	}
}

func TestCompareAssessmentBoundaries(t *testing.T) {
	tests := []struct {
		name         string
		histVisits   int // visits per day in the historical window
		recentVisits int
		want         string
	}{
		{"flat is stable", 100, 100, AssessmentStable},
		{"large gain", 100, 150, AssessmentSignificantlyImproved},
		{"moderate gain", 100, 107, AssessmentImproved},
		{"moderate drop", 100, 93, AssessmentDeclined},
		{"large drop", 100, 50, AssessmentSignificantlyDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spots := make([]int, 14)
			visits := make([]int, 14)
			for i := range spots {
				spots[i] = 50
				if i < 7 {
					visits[i] = tt.histVisits
				} else {
					visits[i] = tt.recentVisits
				}
			}
			a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))
			cmp := a.CompareRecentVsHistorical(7)
			if cmp.Assessment != tt.want {
				t.Errorf("assessment = %s, want %s (change %.1f%%)", cmp.Assessment, tt.want, cmp.ChangePct)
			}
		})
	}
}

func TestAnalyzeWeeklyTrends(t *testing.T) {
	a := New(testAnalysisConfig(), twoWeekSeries(t))
	trends := a.AnalyzeWeeklyTrends()

	if trends.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", trends.Status)
	}
	if len(trends.Changes) != 1 {
		t.Fatalf("expected 1 week-over-week change, got %d", len(trends.Changes))
	}
	change := trends.Changes[0]
	if change.Week != 2 {
		t.Errorf("change week = %d, want 2", change.Week)
	}
	if change.EfficiencyChangePct != 50.0 {
		t.Errorf("efficiency change = %f, want 50.0", change.EfficiencyChangePct)
	}
	// Spots went 353 -> 428
	wantVol := (428.0 - 353.0) / 353.0 * 100
	if diff := change.VolumeChangePct - wantVol; diff > 0.001 || diff < -0.001 {
		t.Errorf("volume change = %f, want %f", change.VolumeChangePct, wantVol)
	}
}

func TestAnalyzeWeeklyTrendsSingleWeek(t *testing.T) {
	spots := []int{10, 10, 10}
	visits := []int{20, 20, 20}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	trends := a.AnalyzeWeeklyTrends()
	if trends.Status != StatusInsufficientData {
		t.Errorf("expected insufficient data with one week, got %s", trends.Status)
	}
}

func TestLatestWeekInsights(t *testing.T) {
	a := New(testAnalysisConfig(), twoWeekSeries(t))
	latest := a.LatestWeekInsights()

	if latest.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", latest.Status)
	}
	if latest.EfficiencyChangePct != 50.0 {
		t.Errorf("efficiency change = %f, want 50.0", latest.EfficiencyChangePct)
	}

	var haveEff, haveVol, haveRev bool
	for _, s := range latest.Insights {
		switch {
		case strings.HasPrefix(s, "Strong improvement:"):
			haveEff = true
		case strings.HasPrefix(s, "Volume surge:"):
			haveVol = true
		case strings.HasPrefix(s, "Revenue increase:"):
			haveRev = true
		}
	}
	if !haveEff || !haveVol || !haveRev {
		t.Errorf("expected efficiency, volume, and revenue insights, got %v", latest.Insights)
	}
}

func TestLatestWeekInsightsQuietWeek(t *testing.T) {
	// Identical weeks produce no reportable insights
	spots := make([]int, 14)
	visits := make([]int, 14)
	for i := range spots {
		spots[i] = 50
		visits[i] = 100
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	latest := a.LatestWeekInsights()
	if latest.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", latest.Status)
	}
	if len(latest.Insights) != 0 {
		t.Errorf("expected no insights for identical weeks, got %v", latest.Insights)
	}
}

func TestIdentifyPatternsConsistentGrowth(t *testing.T) {
	// Four weeks with strictly rising efficiency: 2.0, 2.2, 2.4, 2.6
	spots := make([]int, 28)
	visits := make([]int, 28)
	for i := range spots {
		spots[i] = 50
		week := i / 7
		visits[i] = 50*2 + week*10
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	patterns := a.IdentifyPatterns()
	if patterns.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", patterns.Status)
	}
	if !patterns.ConsistentGrowth {
		t.Error("expected consistent growth for strictly rising efficiency")
	}
	if patterns.ConsistentDecline {
		t.Error("did not expect consistent decline")
	}
}

func TestIdentifyPatternsVolatile(t *testing.T) {
	// Weekly efficiency swings 1.0 / 4.0 / 1.0 / 4.0
	spots := make([]int, 28)
	visits := make([]int, 28)
	for i := range spots {
		spots[i] = 50
		if (i/7)%2 == 0 {
			visits[i] = 50
		} else {
			visits[i] = 200
		}
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	patterns := a.IdentifyPatterns()
	if !patterns.Volatile {
		t.Error("expected volatile flag for alternating efficiency")
	}
	if patterns.ConsistentGrowth || patterns.ConsistentDecline {
		t.Error("alternating series must not read as consistent")
	}
}

func TestIdentifyPatternsInsufficientWeeks(t *testing.T) {
	a := New(testAnalysisConfig(), twoWeekSeries(t))
	patterns := a.IdentifyPatterns()
	if patterns.Status != StatusInsufficientData {
		t.Errorf("expected insufficient data with 2 weeks, got %s", patterns.Status)
	}
}

func TestSummarize(t *testing.T) {
	a := New(testAnalysisConfig(), threeWeekImprovingSeries(t))
	summary := a.Summarize()

	if summary.Direction != DirectionImproving {
		t.Errorf("direction = %s, want improving", summary.Direction)
	}
	if summary.WeeksAnalyzed != 3 {
		t.Errorf("weeks analyzed = %d, want 3", summary.WeeksAnalyzed)
	}
	// Last two weeks run identical spot volume
	if summary.VolumeStability != "stable" {
		t.Errorf("volume stability = %s, want stable", summary.VolumeStability)
	}
}

// Two weeks leave no baseline before the recent pair, so even a large
// efficiency jump reads as stable until a third week arrives.
func TestSummarizeTwoWeeksStable(t *testing.T) {
	a := New(testAnalysisConfig(), twoWeekSeries(t))
	summary := a.Summarize()

	if summary.Direction != DirectionStable {
		t.Errorf("direction with 2 weeks = %s, want stable", summary.Direction)
	}
	if summary.WeeksAnalyzed != 2 {
		t.Errorf("weeks analyzed = %d, want 2", summary.WeeksAnalyzed)
	}
	// Spots 353 vs 428 around mean 390.5 is below the 0.3 spread cut
	if summary.VolumeStability != "stable" {
		t.Errorf("volume stability = %s, want stable", summary.VolumeStability)
	}
}

func TestSummarizeVolatileVolume(t *testing.T) {
	// Last two weeks swing from 70 to 350 spots
	spots := make([]int, 21)
	visits := make([]int, 21)
	for i := range spots {
		spots[i] = 50
		if i >= 7 && i < 14 {
			spots[i] = 10
		}
		visits[i] = spots[i] * 2
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	if got := a.Summarize().VolumeStability; got != "volatile" {
		t.Errorf("volume stability = %s, want volatile", got)
	}
}

func TestSummarizeInsufficientWeeks(t *testing.T) {
	spots := []int{10, 10, 10}
	visits := []int{20, 20, 20}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	summary := a.Summarize()
	if summary.Direction != DirectionStable {
		t.Errorf("direction = %s, want stable", summary.Direction)
	}
	if summary.VolumeStability != "unknown" {
		t.Errorf("volume stability = %s, want unknown", summary.VolumeStability)
	}
}

func TestContextForEntity(t *testing.T) {
	a := New(testAnalysisConfig(), threeWeekImprovingSeries(t))

	ctx := a.ContextForEntity(models.KindStation, "KABC")
	if ctx.EntityName != "KABC" || ctx.EntityKind != models.KindStation {
		t.Errorf("unexpected identity: %s/%s", ctx.EntityKind, ctx.EntityName)
	}
	if ctx.Direction != DirectionImproving {
		t.Errorf("direction = %s, want improving", ctx.Direction)
	}
	if ctx.RecommendationFocus != "Consider increasing investment - positive trend" {
		t.Errorf("unexpected recommendation focus: %s", ctx.RecommendationFocus)
	}
}

func TestContextForEntityTwoWeeks(t *testing.T) {
	a := New(testAnalysisConfig(), twoWeekSeries(t))

	ctx := a.ContextForEntity(models.KindStation, "KABC")
	if ctx.Direction != DirectionStable {
		t.Errorf("direction with 2 weeks = %s, want stable", ctx.Direction)
	}
	// Two weekly buckets is Medium confidence; High needs three
	if ctx.Confidence != "Medium" {
		t.Errorf("confidence = %s, want Medium", ctx.Confidence)
	}
	if ctx.RecommendationFocus != "Maintain current strategy - stable performance" {
		t.Errorf("unexpected recommendation focus: %s", ctx.RecommendationFocus)
	}
}

func TestContextForEntityHighConfidence(t *testing.T) {
	spots := make([]int, 21)
	visits := make([]int, 21)
	for i := range spots {
		spots[i] = 50
		visits[i] = 100
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	ctx := a.ContextForEntity(models.KindDaypart, "PRIME")
	if ctx.Confidence != "High" {
		t.Errorf("confidence with 3 weeks = %s, want High", ctx.Confidence)
	}
	if ctx.Direction != DirectionStable {
		t.Errorf("direction for flat series = %s, want stable", ctx.Direction)
	}
	if ctx.RecommendationFocus != "Optimize within current slots" {
		t.Errorf("unexpected daypart focus: %s", ctx.RecommendationFocus)
	}
}

func TestPctChangeZeroBaseline(t *testing.T) {
	// A week following an all-dark week must read as a finite change
	spots := make([]int, 14)
	visits := make([]int, 14)
	for i := 7; i < 14; i++ {
		spots[i] = 50
		visits[i] = 100
	}
	a := New(testAnalysisConfig(), dailySeries(t, spots, visits, nil))

	trends := a.AnalyzeWeeklyTrends()
	if trends.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", trends.Status)
	}
	change := trends.Changes[0]
	if change.VolumeChangePct != 35000.0 {
		t.Errorf("volume change from zero baseline = %f, want 35000 (floored denominator)", change.VolumeChangePct)
	}
	if change.EfficiencyChangePct != 200.0 {
		t.Errorf("efficiency change from zero baseline = %f, want 200", change.EfficiencyChangePct)
	}
}
