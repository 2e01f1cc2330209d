package classify

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/models"
	"github.com/spotlens/spotlens/internal/trend"
)

// stubTrends returns the same campaign direction for every entity, the way
// a real analyzer does when per-entity history is unavailable.
type stubTrends struct {
	direction trend.Direction
	weeks     int
}

func (s stubTrends) ContextForEntity(kind models.EntityKind, name string) trend.EntityContext {
	return trend.EntityContext{
		EntityKind:    kind,
		EntityName:    name,
		Direction:     s.direction,
		WeeksAnalyzed: s.weeks,
	}
}

func testClassifier(direction trend.Direction, weeks int) *Classifier {
	cfg := config.AnalysisConfig{
		RecentWindowDays:      7,
		SignificantChangePct:  10.0,
		ModerateChangePct:     5.0,
		ImprovingRatio:        1.1,
		DecliningRatio:        0.9,
		HighVolumeVisits:      1000,
		LowVolumeVisits:       500,
		HighConfidenceSpots:   20,
		MediumConfidenceSpots: 10,
		HighConfidenceWeeks:   2,
		QuadrantHighSpots:     50,
		QuadrantMediumSpots:   20,
		ReallocationEffRatio:  1.5,
		ReallocationHighSpots: 40,
		ReallocationMaxMove:   25,
	}
	return New(cfg, stubTrends{direction: direction, weeks: weeks})
}

func station(name string, visits, spots int) models.EntityPerformanceRecord {
	return models.EntityPerformanceRecord{
		Name:        name,
		Kind:        models.KindStation,
		TotalVisits: visits,
		Spots:       spots,
	}
}

func TestPercentileNearestRank(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	if got := Percentile(values, 0.25); got != 2 {
		t.Errorf("p25 = %f, want 2", got)
	}
	if got := Percentile(values, 0.50); got != 3 {
		t.Errorf("p50 = %f, want 3", got)
	}
	if got := Percentile(values, 0.75); got != 4 {
		t.Errorf("p75 = %f, want 4", got)
	}
}

func TestPercentileIgnoresNonPositive(t *testing.T) {
	values := []float64{0, -1, 2, 4}
	if got := Percentile(values, 0.50); got != 4 {
		t.Errorf("p50 over positives {2,4} = %f, want 4", got)
	}

	if got := Percentile([]float64{0, 0, -3}, 0.75); got != 0 {
		t.Errorf("p75 with no positive values = %f, want 0", got)
	}
}

func TestPercentileMonotonic(t *testing.T) {
	values := []float64{3.2, 1.1, 4.8, 2.5, 6.0, 0.9}
	p25 := Percentile(values, 0.25)
	p50 := Percentile(values, 0.50)
	p75 := Percentile(values, 0.75)
	if p25 > p50 || p50 > p75 {
		t.Errorf("percentiles not monotonic: p25=%f p50=%f p75=%f", p25, p50, p75)
	}
}

func TestClassifyStationsTiers(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	// Rates 1, 2, 3, 4 visits per spot
	records := []models.EntityPerformanceRecord{
		station("KAAA", 100, 100),
		station("KBBB", 200, 100),
		station("KCCC", 300, 100),
		station("KDDD", 400, 100),
	}

	results := c.ClassifyStations(records)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	tiers := make(map[string]string)
	for _, r := range results {
		tiers[r.Record.Name] = r.Tier
	}
	want := map[string]string{
		"KDDD": "High Performer", // rate 4 sits exactly on p75: boundary takes the higher tier
		"KCCC": "Above Average",
		"KBBB": "Average",
		"KAAA": "Below Average",
	}
	if !reflect.DeepEqual(tiers, want) {
		t.Errorf("tiers = %v, want %v", tiers, want)
	}

	// Every station gets exactly one tier: the function is total
	for name, tier := range tiers {
		if tier == "" {
			t.Errorf("station %s got empty tier", name)
		}
	}
}

func TestClassifyStationsTrendSuffix(t *testing.T) {
	c := testClassifier(trend.DirectionImproving, 3)
	results := c.ClassifyStations([]models.EntityPerformanceRecord{
		station("KAAA", 400, 100),
		station("KBBB", 100, 100),
	})

	for _, r := range results {
		if !strings.HasSuffix(r.Tier, " (Improving)") {
			t.Errorf("station %s tier %q missing improving suffix", r.Record.Name, r.Tier)
		}
	}
}

func TestClassifyStationsScaleWinner(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	// KWIN has 1200 visits (above the 1000 high-volume cut) and the top
	// efficiency rate, on a stable campaign trend.
	records := []models.EntityPerformanceRecord{
		station("KWIN", 1200, 100), // rate 12
		station("KAAA", 900, 100),  // rate 9
		station("KBBB", 600, 100),  // rate 6
		station("KCCC", 300, 100),  // rate 3
	}

	results := c.ClassifyStations(records)
	if results[0].Record.Name != "KWIN" {
		t.Fatalf("expected KWIN ranked first, got %s", results[0].Record.Name)
	}
	top := results[0]
	if top.OpportunityType != "Scale Winner" {
		t.Errorf("opportunity = %s, want Scale Winner", top.OpportunityType)
	}
	if top.Confidence != "High" {
		t.Errorf("confidence = %s, want High (100 spots, 3 weeks)", top.Confidence)
	}
	if !strings.HasPrefix(top.Tier, "High Performer") {
		t.Errorf("tier = %s, want High Performer", top.Tier)
	}
}

func TestClassifyStationsHiddenGem(t *testing.T) {
	c := testClassifier(trend.DirectionImproving, 3)
	// KGEM is top quartile on efficiency but under the 500 low-volume cut
	records := []models.EntityPerformanceRecord{
		station("KGEM", 400, 20),   // rate 20
		station("KAAA", 2000, 400), // rate 5
		station("KBBB", 1500, 500), // rate 3
		station("KCCC", 800, 400),  // rate 2
	}

	results := c.ClassifyStations(records)
	var gem *Result
	for i := range results {
		if results[i].Record.Name == "KGEM" {
			gem = &results[i]
		}
	}
	if gem == nil {
		t.Fatal("KGEM missing from results")
	}
	if gem.OpportunityType != "Hidden Gem" {
		t.Errorf("opportunity = %s, want Hidden Gem", gem.OpportunityType)
	}
}

func TestClassifyStationsDeterministic(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 2)
	records := []models.EntityPerformanceRecord{
		station("KAAA", 500, 100),
		station("KBBB", 500, 100), // tie with KAAA keeps input order
		station("KCCC", 900, 100),
	}

	first := c.ClassifyStations(records)
	second := c.ClassifyStations(records)
	if !reflect.DeepEqual(first, second) {
		t.Error("classification is not deterministic across runs")
	}
	if first[1].Record.Name != "KAAA" || first[2].Record.Name != "KBBB" {
		t.Errorf("tied stations reordered: %s then %s", first[1].Record.Name, first[2].Record.Name)
	}
}

func TestClassifyStationsEmptyBatch(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 2)
	results := c.ClassifyStations(nil)
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil result, got %v", results)
	}
}

func TestClassifyStationsAllZeroRates(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 2)
	records := []models.EntityPerformanceRecord{
		station("KAAA", 0, 100),
		station("KBBB", 0, 50),
	}

	// No positive efficiency in the batch: records come back unchanged,
	// in input order, with no tier or score attached.
	results := c.ClassifyStations(records)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Record.Name != records[i].Name {
			t.Errorf("result %d = %s, want input order %s", i, r.Record.Name, records[i].Name)
		}
		if r.Tier != "" || r.OpportunityType != "" {
			t.Errorf("station %s with zero rate got tier %q / opportunity %q, want none",
				r.Record.Name, r.Tier, r.OpportunityType)
		}
		if r.OpportunityScore != 0 {
			t.Errorf("station %s with zero rate got score %f, want 0", r.Record.Name, r.OpportunityScore)
		}
	}
}

func TestClassifyCombinationsAllZeroRates(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 2)
	records := []models.EntityPerformanceRecord{
		{Name: "KAAA_PRIME", Kind: models.KindCombination, Spots: 20},
		{Name: "KBBB_DAYTIME", Kind: models.KindCombination, Spots: 10},
	}

	results := c.ClassifyCombinations(records)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Record.Name != records[i].Name {
			t.Errorf("result %d = %s, want input order %s", i, r.Record.Name, records[i].Name)
		}
		if r.Tier != "" || r.InvestmentRecommendation != "" {
			t.Errorf("combination %s with zero rate got tier %q / investment %q, want none",
				r.Record.Name, r.Tier, r.InvestmentRecommendation)
		}
	}
}

func TestClassifyDayparts(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	records := []models.EntityPerformanceRecord{
		{Name: "PRIME", Kind: models.KindDaypart, TotalVisits: 400, Spots: 100},
		{Name: "DAYTIME", Kind: models.KindDaypart, TotalVisits: 300, Spots: 100},
		{Name: "OVERNIGHT", Kind: models.KindDaypart, TotalVisits: 200, Spots: 100},
		{Name: "EARLY_MORNING", Kind: models.KindDaypart, TotalVisits: 100, Spots: 100},
	}

	results := c.ClassifyDayparts(records)
	tiers := make(map[string]string)
	priorities := make(map[string]string)
	for _, r := range results {
		tiers[r.Record.Name] = r.Tier
		priorities[r.Record.Name] = r.RecommendationPriority
	}

	if tiers["PRIME"] != "Excellent" {
		t.Errorf("PRIME tier = %s, want Excellent", tiers["PRIME"])
	}
	if tiers["EARLY_MORNING"] != "Poor" {
		t.Errorf("EARLY_MORNING tier = %s, want Poor", tiers["EARLY_MORNING"])
	}
	if priorities["PRIME"] != "High - Scale Up" {
		t.Errorf("PRIME priority = %s, want High - Scale Up", priorities["PRIME"])
	}
	if priorities["EARLY_MORNING"] != "Low - Monitor" {
		t.Errorf("EARLY_MORNING priority = %s, want Low - Monitor", priorities["EARLY_MORNING"])
	}
}

func TestClassifyCombinations(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	combo := func(name string, rate float64) models.EntityPerformanceRecord {
		return models.EntityPerformanceRecord{
			Name:        name,
			Kind:        models.KindCombination,
			Spots:       20,
			TotalVisits: int(rate * 20),
		}
	}
	// Rates 20, 13, 8, 4, 2: top 20, median 8
	records := []models.EntityPerformanceRecord{
		combo("KAAA_PRIME", 20),
		combo("KBBB_PRIME", 13),
		combo("KCCC_DAYTIME", 8),
		combo("KDDD_DAYTIME", 4),
		combo("KEEE_OVERNIGHT", 2),
	}

	results := c.ClassifyCombinations(records)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	// Sorted by synergy descending, so the golden combination leads
	if results[0].Record.Name != "KAAA_PRIME" {
		t.Errorf("top combination = %s, want KAAA_PRIME", results[0].Record.Name)
	}
	if results[0].Tier != "Golden Combination" || results[0].ScalingPriority != "Immediate" {
		t.Errorf("top tier/priority = %s/%s, want Golden Combination/Immediate",
			results[0].Tier, results[0].ScalingPriority)
	}
	if results[0].InvestmentRecommendation != "Scale Aggressively" {
		t.Errorf("top investment = %s, want Scale Aggressively", results[0].InvestmentRecommendation)
	}
	if results[0].SynergyScore != 2.5 {
		t.Errorf("top synergy = %f, want 2.5", results[0].SynergyScore)
	}

	if results[1].Tier != "Strong Combination" || results[1].InvestmentRecommendation != "Increase Investment" {
		t.Errorf("second tier/investment = %s/%s, want Strong Combination/Increase Investment",
			results[1].Tier, results[1].InvestmentRecommendation)
	}
	if results[2].Tier != "Good Combination" {
		t.Errorf("third tier = %s, want Good Combination", results[2].Tier)
	}
	if results[4].Tier != "Standard Combination" || results[4].InvestmentRecommendation != "Monitor Performance" {
		t.Errorf("last tier/investment = %s/%s, want Standard Combination/Monitor Performance",
			results[4].Tier, results[4].InvestmentRecommendation)
	}

	// Combination records pick up their split station and daypart
	if results[0].Record.Station != "KAAA" || results[0].Record.Daypart != "PRIME" {
		t.Errorf("split = %s/%s, want KAAA/PRIME", results[0].Record.Station, results[0].Record.Daypart)
	}
}

func TestAnalyzeQuadrants(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	records := []models.EntityPerformanceRecord{
		station("KAAA", 2000, 60), // high volume, high efficiency (rate 33.3)
		station("KBBB", 1800, 55), // high volume, low efficiency (rate 32.7 < median 33.3)
		station("KCCC", 300, 5),   // low volume, high efficiency (rate 60)
		station("KDDD", 200, 30),  // low volume, low efficiency (rate 6.7)
	}

	q := c.AnalyzeQuadrants(records)

	if len(q.ScaleThese) != 1 || q.ScaleThese[0].Station != "KAAA" {
		t.Errorf("scale bucket = %v, want [KAAA]", q.ScaleThese)
	}
	if q.ScaleThese[0].Action != "Scale up" {
		t.Errorf("scale action = %s, want Scale up", q.ScaleThese[0].Action)
	}
	if q.ScaleThese[0].Confidence != "High" {
		t.Errorf("KAAA confidence = %s, want High (60 spots)", q.ScaleThese[0].Confidence)
	}

	if len(q.OptimizeThese) != 1 || q.OptimizeThese[0].Station != "KBBB" {
		t.Errorf("optimize bucket = %v, want [KBBB]", q.OptimizeThese)
	}
	if q.OptimizeThese[0].Action != "Reduce budget" {
		t.Errorf("optimize action on stable trend = %s, want Reduce budget", q.OptimizeThese[0].Action)
	}

	if len(q.TestThese) != 1 || q.TestThese[0].Station != "KCCC" {
		t.Errorf("test bucket = %v, want [KCCC]", q.TestThese)
	}
	if len(q.ReduceThese) != 1 || q.ReduceThese[0].Station != "KDDD" {
		t.Errorf("reduce bucket = %v, want [KDDD]", q.ReduceThese)
	}
	if q.ReduceThese[0].Action != "Remove from plan" {
		t.Errorf("reduce action = %s, want Remove from plan", q.ReduceThese[0].Action)
	}
}

func TestAnalyzeQuadrantsDecliningTrend(t *testing.T) {
	c := testClassifier(trend.DirectionDeclining, 3)
	records := []models.EntityPerformanceRecord{
		station("KAAA", 2000, 60),
		station("KBBB", 100, 30),
	}

	q := c.AnalyzeQuadrants(records)
	if len(q.ScaleThese) != 1 {
		t.Fatalf("expected KAAA in scale bucket, got %v", q)
	}
	if q.ScaleThese[0].Action != "Investigate decline" {
		t.Errorf("declining scale action = %s, want Investigate decline", q.ScaleThese[0].Action)
	}
}

func TestOpportunityMatrix(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	records := []models.EntityPerformanceRecord{
		station("KTOP", 300, 30), // rate 10
		station("KTWO", 240, 30), // rate 8
		station("KMID", 120, 30), // rate 4
		station("KLOW", 30, 10),  // rate 3, too few spots to move from
		station("KBAD", 100, 50), // rate 2, plenty of spots
	}

	moves := c.OpportunityMatrix(records)
	if len(moves) != 1 {
		t.Fatalf("expected 1 reallocation, got %d: %v", len(moves), moves)
	}

	move := moves[0]
	if move.FromStation != "KBAD" || move.ToStation != "KTOP" {
		t.Errorf("move = %s -> %s, want KBAD -> KTOP", move.FromStation, move.ToStation)
	}
	if move.SpotsToMove != 25 {
		t.Errorf("spots to move = %d, want 25 (half of 50, at the cap)", move.SpotsToMove)
	}
	if move.EfficiencyGain != 8 {
		t.Errorf("efficiency gain = %f, want 8", move.EfficiencyGain)
	}
	if move.ProjectedVisitGain != 200 {
		t.Errorf("projected visit gain = %d, want 200", move.ProjectedVisitGain)
	}
	if move.Confidence != "High" {
		t.Errorf("confidence = %s, want High (50 source spots)", move.Confidence)
	}
	if move.Action != "Move 25 spots from KBAD to KTOP" {
		t.Errorf("unexpected action string: %s", move.Action)
	}
}

func TestOpportunityMatrixNarrowGap(t *testing.T) {
	c := testClassifier(trend.DirectionStable, 3)
	// Best rate 5 is not 1.5x the worst rate 4: no move worth making
	records := []models.EntityPerformanceRecord{
		station("KAAA", 250, 50),
		station("KBBB", 200, 50),
	}

	if moves := c.OpportunityMatrix(records); len(moves) != 0 {
		t.Errorf("expected no reallocations for a narrow gap, got %v", moves)
	}
}
