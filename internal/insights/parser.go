// Package insights turns raw language model responses into a typed insight
// set. Model output is hostile input: it arrives wrapped in markdown fences,
// padded with prose, and frequently malformed. The parser runs a fixed
// pipeline over it:
//
//  1. Strip code fences and locate the first balanced JSON object with a
//     string-aware brace scan, so braces inside string values never
//     terminate extraction early.
//  2. Decode strictly; on failure run the extracted text through JSON
//     repair and decode once more. Repair of already-valid JSON never
//     changes the decoded result.
//  3. Map the five known categories onto typed structs, filling per-field
//     defaults for anything the model omitted.
//  4. Absorb unknown categories: any other key holding a list of objects
//     becomes a dynamic category, with entities, recommendations, and
//     priorities recovered by priority-ordered field heuristics.
//
// Every failure surfaces as a *ParseError naming the stage that failed;
// callers degrade to Fallback rather than aborting a run.
package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/spotlens/spotlens/internal/logger"
	"github.com/spotlens/spotlens/internal/models"
)

// ParseError reports which pipeline stage rejected a model response.
type ParseError struct {
	Stage string // "extract", "decode", or "validate"
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser converts raw model responses into typed insight sets. A non-nil
// sink receives every raw response before parsing starts, so malformed
// responses are preserved for offline debugging.
type Parser struct {
	sink *RawSink
}

// NewParser creates a parser. sink may be nil to skip raw response capture.
func NewParser(sink *RawSink) *Parser {
	return &Parser{sink: sink}
}

// The five categories the response schema asks for by name. Anything else
// the model returns is absorbed as a dynamic category.
const (
	categoryExecutiveSummary     = "executive_summary"
	categoryScalingOpportunities = "scaling_opportunities"
	categoryUnderperformers      = "underperformers"
	categoryBudgetReallocations  = "budget_reallocations"
	categoryTrendInsights        = "trend_insights"
)

// Parse extracts, decodes, and types a raw model response for one client.
// The raw response is saved to the sink first, succeed or fail. On any
// pipeline failure the returned error is a *ParseError.
func (p *Parser) Parse(clientName, raw string) (*models.InsightSet, error) {
	if p.sink != nil {
		if path, err := p.sink.Save(clientName, raw); err != nil {
			logger.Warn("Failed to save raw response for %s: %v", clientName, err)
		} else {
			logger.Debug("Saved raw response to %s", path)
		}
	}

	doc, err := p.decode(raw)
	if err != nil {
		return nil, err
	}

	set := &models.InsightSet{
		Metadata: models.InsightMetadata{
			RunID:            uuid.New().String(),
			ClientName:       clientName,
			GeneratedAt:      time.Now().UTC(),
			Source:           "model_json",
			ResponseLength:   len(raw),
			ParsingSucceeded: true,
		},
		ExecutiveSummary: defaultExecutiveSummary(),
	}

	for key, value := range doc {
		switch key {
		case categoryExecutiveSummary:
			set.ExecutiveSummary = parseExecutiveSummary(value)
		case categoryScalingOpportunities:
			set.ScalingOpportunities = parseScalingOpportunities(value)
		case categoryUnderperformers:
			set.Underperformers = parseUnderperformers(value)
		case categoryBudgetReallocations:
			set.BudgetReallocations = parseBudgetReallocations(value)
		case categoryTrendInsights:
			set.TrendInsights = parseTrendInsights(value)
		default:
			rows := parseDynamicCategory(key, value)
			if len(rows) > 0 {
				logger.Info("Absorbed dynamic category %q with %d insights", key, len(rows))
				set.AddDynamicCategory(key, rows)
			}
		}
	}

	set.Recount()
	return set, nil
}

// decode extracts the JSON object from the raw response and unmarshals its
// top level, retrying once through repair when strict decoding fails.
func (p *Parser) decode(raw string) (map[string]json.RawMessage, error) {
	extracted, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, &ParseError{Stage: "extract", Err: err}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extracted), &doc); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(extracted)
		if repairErr != nil {
			return nil, &ParseError{Stage: "decode", Err: err}
		}
		if retryErr := json.Unmarshal([]byte(repaired), &doc); retryErr != nil {
			return nil, &ParseError{Stage: "decode", Err: err}
		}
		logger.Debug("Model response decoded after JSON repair")
	}
	return doc, nil
}

var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSONObject strips markdown fences and returns the first balanced
// JSON object in the text. The brace scan tracks string and escape state,
// so braces inside string values do not end the object early.
func ExtractJSONObject(raw string) (string, error) {
	s := raw
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", errors.New("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced JSON object in response")
}

func defaultExecutiveSummary() models.ExecutiveSummary {
	return models.ExecutiveSummary{
		Summary:    "No executive summary provided",
		Confidence: "Medium",
		Urgency:    "Medium",
	}
}

func parseExecutiveSummary(raw json.RawMessage) models.ExecutiveSummary {
	summary := defaultExecutiveSummary()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		// Some models emit the summary as a bare string
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			summary.Summary = s
		}
		return summary
	}
	summary.Summary = stringField(m, "summary", summary.Summary)
	summary.Confidence = stringField(m, "confidence", "Medium")
	summary.Urgency = stringField(m, "urgency", "Medium")
	return summary
}

func parseScalingOpportunities(raw json.RawMessage) []models.ScalingOpportunity {
	items := decodeItems(raw)
	opportunities := make([]models.ScalingOpportunity, 0, len(items))
	for _, m := range items {
		entity := stringField(m, "entity", "Unknown")
		entityType := stringField(m, "entity_type", "station")

		opp := models.ScalingOpportunity{
			Priority:          intField(m, "priority", 999),
			Entity:            entity,
			EntityType:        entityType,
			Station:           stringField(m, "station", ""),
			Daypart:           stringField(m, "daypart", ""),
			ActionType:        stringField(m, "action_type", "monitor"),
			Recommendation:    stringField(m, "recommendation", ""),
			ProjectedImpact:   stringField(m, "projected_impact", ""),
			Confidence:        stringField(m, "confidence", "Medium"),
			BusinessRationale: stringField(m, "business_rationale", ""),
		}
		fillEntityParts(&opp.Station, &opp.Daypart, entity, entityType)
		opportunities = append(opportunities, opp)
	}
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].Priority < opportunities[j].Priority
	})
	return opportunities
}

// fillEntityParts derives station and daypart from the entity string when
// the model did not set them explicitly.
func fillEntityParts(station, daypart *string, entity, entityType string) {
	switch entityType {
	case "station":
		if *station == "" {
			*station = entity
		}
	case "daypart":
		if *daypart == "" {
			*daypart = entity
		}
	default:
		s, d := models.SplitEntityName(entity)
		if *station == "" {
			*station = s
		}
		if *daypart == "" {
			*daypart = d
		}
	}
}

func parseUnderperformers(raw json.RawMessage) []models.Underperformer {
	items := decodeItems(raw)
	result := make([]models.Underperformer, 0, len(items))
	for _, m := range items {
		result = append(result, models.Underperformer{
			Entity:            stringField(m, "entity", "Unknown"),
			EntityType:        stringField(m, "entity_type", "station"),
			Issue:             stringField(m, "issue", ""),
			Severity:          stringField(m, "severity", "Medium"),
			RecommendedAction: stringField(m, "recommended_action", ""),
			BusinessRationale: stringField(m, "business_rationale", ""),
		})
	}
	return result
}

func parseBudgetReallocations(raw json.RawMessage) []models.BudgetReallocation {
	items := decodeItems(raw)
	result := make([]models.BudgetReallocation, 0, len(items))
	for _, m := range items {
		result = append(result, models.BudgetReallocation{
			FromEntity:             stringField(m, "from_entity", ""),
			ToEntity:               stringField(m, "to_entity", ""),
			SpotsToMove:            intField(m, "spots_to_move", 0),
			ProjectedImpact:        stringField(m, "projected_impact", ""),
			Confidence:             stringField(m, "confidence", "Medium"),
			ImplementationPriority: stringField(m, "implementation_priority", "Medium"),
		})
	}
	return result
}

func parseTrendInsights(raw json.RawMessage) []models.TrendInsight {
	items := decodeItems(raw)
	result := make([]models.TrendInsight, 0, len(items))
	for _, m := range items {
		result = append(result, models.TrendInsight{
			Description:         stringField(m, "description", ""),
			Direction:           stringField(m, "direction", "stable"),
			Entity:              stringField(m, "entity", "campaign"),
			Urgency:             stringField(m, "urgency", "Medium"),
			RecommendedResponse: stringField(m, "recommended_response", ""),
		})
	}
	return result
}

// decodeItems unmarshals a category value as a list of objects, tolerating
// a single bare object. Any other shape yields no items.
func decodeItems(raw json.RawMessage) []map[string]any {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]any{single}
	}
	return nil
}

// stringField returns the named field as a string, converting numbers,
// falling back to def when absent or empty.
func stringField(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return def
}

// intField returns the named field as an int, accepting JSON numbers and
// numeric strings, falling back to def otherwise.
func intField(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
