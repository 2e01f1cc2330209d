// Package report writes run output as CSV files for downstream spreadsheet
// review. Insight sets flatten to one row per insight with the executive
// summary first; classification batches get their own file per entity kind.
// Files are written atomically (temp file then rename) so a crashed run never
// leaves a truncated CSV behind.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spotlens/spotlens/internal/classify"
	"github.com/spotlens/spotlens/internal/models"
)

// Writer emits CSV reports into a single output directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir. The directory is created on the
// first write, not here.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

var insightHeader = []string{
	"insight_id", "category", "priority", "entity", "entity_type",
	"station", "daypart", "recommendation", "projected_impact",
	"confidence", "urgency", "rationale",
}

// WriteInsights flattens an insight set into one CSV file and returns its
// path. Every row gets a fresh insight id so downstream joins stay unique
// across reruns.
func (w *Writer) WriteInsights(set *models.InsightSet) (string, error) {
	rows := [][]string{insightHeader}

	rows = append(rows, []string{
		uuid.New().String(), "executive_summary", "",
		set.Metadata.ClientName, "campaign", "", "",
		set.ExecutiveSummary.Summary, "",
		set.ExecutiveSummary.Confidence, set.ExecutiveSummary.Urgency, "",
	})

	for _, opp := range set.ScalingOpportunities {
		rows = append(rows, []string{
			uuid.New().String(), "scaling_opportunity", fmt.Sprintf("%d", opp.Priority),
			opp.Entity, opp.EntityType, opp.Station, opp.Daypart,
			opp.Recommendation, opp.ProjectedImpact,
			opp.Confidence, "", opp.BusinessRationale,
		})
	}
	for _, u := range set.Underperformers {
		rows = append(rows, []string{
			uuid.New().String(), "underperformer", "",
			u.Entity, u.EntityType, "", "",
			u.RecommendedAction, "",
			"", u.Severity, u.BusinessRationale,
		})
	}
	for _, r := range set.BudgetReallocations {
		rows = append(rows, []string{
			uuid.New().String(), "budget_reallocation", r.ImplementationPriority,
			fmt.Sprintf("%s -> %s", r.FromEntity, r.ToEntity), "reallocation", "", "",
			fmt.Sprintf("Move %d spots", r.SpotsToMove), r.ProjectedImpact,
			r.Confidence, "", "",
		})
	}
	for _, t := range set.TrendInsights {
		rows = append(rows, []string{
			uuid.New().String(), "trend_insight", "",
			t.Entity, "trend", "", "",
			t.RecommendedResponse, t.Description,
			"", t.Urgency, "",
		})
	}
	for category, insights := range set.DynamicCategories {
		for _, d := range insights {
			rows = append(rows, []string{
				uuid.New().String(), category, d.Priority,
				d.Entity, d.CategoryType, d.Station, d.Daypart,
				d.Recommendation, "",
				d.Confidence, d.Urgency, "",
			})
		}
	}

	name := fmt.Sprintf("%s_insights_%s.csv",
		sanitizeName(set.Metadata.ClientName), time.Now().Format("20060102_150405"))
	return w.writeFile(name, rows)
}

var classificationHeader = []string{
	"name", "station", "daypart", "tier", "trend", "confidence",
	"spots", "total_visits", "visits_per_spot",
	"opportunity_score", "opportunity_or_priority",
}

// WriteClassifications writes one CSV of classification results. The kind
// becomes part of the filename so station and daypart runs never collide.
func (w *Writer) WriteClassifications(clientName string, kind models.EntityKind, results []classify.Result) (string, error) {
	rows := [][]string{classificationHeader}
	for _, res := range results {
		rec := res.Record
		extra := res.OpportunityType
		if extra == "" {
			extra = res.RecommendationPriority
		}
		if extra == "" {
			extra = res.InvestmentRecommendation
		}
		rows = append(rows, []string{
			rec.Name, rec.Station, rec.Daypart,
			res.Tier, string(res.TrendDirection), res.Confidence,
			fmt.Sprintf("%d", rec.Spots),
			fmt.Sprintf("%d", rec.TotalVisits),
			fmt.Sprintf("%.2f", rec.AvgVisitsPerSpot),
			fmt.Sprintf("%.2f", res.OpportunityScore),
			extra,
		})
	}

	name := fmt.Sprintf("%s_%s_classification_%s.csv",
		sanitizeName(clientName), kind, time.Now().Format("20060102_150405"))
	return w.writeFile(name, rows)
}

func (w *Writer) writeFile(name string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write report rows: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize report file: %w", err)
	}
	return path, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
