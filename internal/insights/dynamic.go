package insights

import (
	"encoding/json"
	"strings"

	"github.com/spotlens/spotlens/internal/models"
)

// Field heuristics for categories the model invented. Scalar entity fields
// are checked first in priority order; list-valued fields are consulted only
// when no scalar field names an entity, and each listed entity becomes its
// own insight row.
var (
	entityScalarFields = []string{"entity", "station", "from_entity", "to_entity"}
	entityListFields   = []string{"target_entities", "affected_entities", "entities"}

	descriptionFields = []string{
		"recommendation", "description", "insight", "action",
		"recommended_action", "issue", "trend_description", "summary",
	}
	impactFields = []string{"projected_impact", "expected_impact", "business_rationale", "spots_to_move"}
)

// parseDynamicCategory absorbs an unknown category into typed insights.
// Values that are not lists of objects (or a single object) are dropped;
// an unparseable category is noise, not an error.
func parseDynamicCategory(category string, raw json.RawMessage) []models.DynamicInsight {
	items := decodeItems(raw)
	var insights []models.DynamicInsight
	for _, m := range items {
		for _, entity := range extractEntities(m) {
			station, daypart := models.SplitEntityName(entity)
			if entity == "Unknown" {
				station, daypart = "", ""
			}
			insights = append(insights, models.DynamicInsight{
				Entity:         entity,
				Station:        station,
				Daypart:        daypart,
				Recommendation: synthesizeRecommendation(category, m),
				Priority:       stringField(m, "priority", "Medium"),
				Confidence:     stringField(m, "confidence", "Medium"),
				Urgency:        stringField(m, "urgency", "Medium"),
				CategoryType:   category,
				RawPayload:     m,
			})
		}
	}
	return insights
}

// extractEntities resolves which entities an item talks about. The first
// non-empty scalar field wins; otherwise each element of the first
// non-empty list field becomes an entity. An item naming nothing still
// yields one "Unknown" row so its recommendation text survives.
func extractEntities(m map[string]any) []string {
	for _, field := range entityScalarFields {
		if v := stringField(m, field, ""); v != "" {
			return []string{v}
		}
	}
	for _, field := range entityListFields {
		list, ok := m[field].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		entities := make([]string, 0, len(list))
		for _, elem := range list {
			if s, ok := elem.(string); ok && s != "" {
				entities = append(entities, s)
			}
		}
		if len(entities) > 0 {
			return entities
		}
	}
	return []string{"Unknown"}
}

// synthesizeRecommendation builds a readable recommendation from the first
// description-like field, appending any impact fields as trailing clauses.
func synthesizeRecommendation(category string, m map[string]any) string {
	var clauses []string
	for _, field := range descriptionFields {
		if v := stringField(m, field, ""); v != "" {
			clauses = append(clauses, v)
			break
		}
	}
	for _, field := range impactFields {
		if v := stringField(m, field, ""); v != "" {
			clauses = append(clauses, strings.ReplaceAll(field, "_", " ")+": "+v)
		}
	}
	if len(clauses) == 0 {
		return "Review " + strings.ReplaceAll(category, "_", " ")
	}
	return strings.Join(clauses, "; ")
}
