package models

import "time"

// InsightMetadata describes how an insight set was produced.
type InsightMetadata struct {
	RunID            string    `json:"run_id"`
	ClientName       string    `json:"client_name"`
	GeneratedAt      time.Time `json:"generated_at"`
	Source           string    `json:"source"` // "model_json" or "fallback"
	ResponseLength   int       `json:"response_length"`
	ParsingSucceeded bool      `json:"parsing_succeeded"`
	Degraded         bool      `json:"degraded"`
	InsightCount     int       `json:"insight_count"`

	// ParseFailureReason records why a fallback set was produced.
	ParseFailureReason string `json:"parse_failure_reason,omitempty"`
}

// ExecutiveSummary is the top-level narrative assessment of the campaign.
type ExecutiveSummary struct {
	Summary    string `json:"summary"`
	Confidence string `json:"confidence"`
	Urgency    string `json:"urgency"`
}

// ScalingOpportunity recommends increasing investment in an entity.
type ScalingOpportunity struct {
	Priority          int    `json:"priority"`
	Entity            string `json:"entity"`
	EntityType        string `json:"entity_type"`
	Station           string `json:"station"`
	Daypart           string `json:"daypart"`
	ActionType        string `json:"action_type"`
	Recommendation    string `json:"recommendation"`
	ProjectedImpact   string `json:"projected_impact"`
	Confidence        string `json:"confidence"`
	BusinessRationale string `json:"business_rationale"`
}

// Underperformer flags an entity whose results warrant reduction or review.
type Underperformer struct {
	Entity            string `json:"entity"`
	EntityType        string `json:"entity_type"`
	Issue             string `json:"issue"`
	Severity          string `json:"severity"`
	RecommendedAction string `json:"recommended_action"`
	BusinessRationale string `json:"business_rationale"`
}

// BudgetReallocation recommends moving spots between stations.
type BudgetReallocation struct {
	FromEntity             string `json:"from_entity"`
	ToEntity               string `json:"to_entity"`
	SpotsToMove            int    `json:"spots_to_move"`
	ProjectedImpact        string `json:"projected_impact"`
	Confidence             string `json:"confidence"`
	ImplementationPriority string `json:"implementation_priority"`
}

// TrendInsight describes a directional movement worth acting on.
type TrendInsight struct {
	Description         string `json:"description"`
	Direction           string `json:"direction"`
	Entity              string `json:"entity"`
	Urgency             string `json:"urgency"`
	RecommendedResponse string `json:"recommended_response"`
}

// DynamicInsight is an insight absorbed from a category the model invented
// that is not one of the five known categories. Fields are extracted by
// priority-ordered heuristics; RawPayload preserves the original item.
type DynamicInsight struct {
	Entity         string         `json:"entity"`
	Station        string         `json:"station"`
	Daypart        string         `json:"daypart"`
	Recommendation string         `json:"recommendation"`
	Priority       string         `json:"priority"`
	Confidence     string         `json:"confidence"`
	Urgency        string         `json:"urgency"`
	CategoryType   string         `json:"category_type"`
	RawPayload     map[string]any `json:"raw_payload,omitempty"`
}

// InsightSet is the typed result of parsing a model response: the five known
// categories plus any dynamic categories the model invented.
type InsightSet struct {
	Metadata             InsightMetadata             `json:"metadata"`
	ExecutiveSummary     ExecutiveSummary            `json:"executive_summary"`
	ScalingOpportunities []ScalingOpportunity        `json:"scaling_opportunities"`
	Underperformers      []Underperformer            `json:"underperformers"`
	BudgetReallocations  []BudgetReallocation        `json:"budget_reallocations"`
	TrendInsights        []TrendInsight              `json:"trend_insights"`
	DynamicCategories    map[string][]DynamicInsight `json:"dynamic_categories,omitempty"`
}

// AddDynamicCategory stores insights for a category outside the known five
// and refreshes the insight count.
func (s *InsightSet) AddDynamicCategory(name string, insights []DynamicInsight) {
	if len(insights) == 0 {
		return
	}
	if s.DynamicCategories == nil {
		s.DynamicCategories = make(map[string][]DynamicInsight)
	}
	s.DynamicCategories[name] = append(s.DynamicCategories[name], insights...)
	s.Recount()
}

// Recount recomputes Metadata.InsightCount from the actual category contents
// and returns the new count. A non-empty executive summary counts as one
// insight. The stored count is never trusted after any category mutation;
// callers recount instead.
func (s *InsightSet) Recount() int {
	count := len(s.ScalingOpportunities) +
		len(s.Underperformers) +
		len(s.BudgetReallocations) +
		len(s.TrendInsights)
	for _, insights := range s.DynamicCategories {
		count += len(insights)
	}
	if s.ExecutiveSummary.Summary != "" {
		count++
	}
	s.Metadata.InsightCount = count
	return count
}
