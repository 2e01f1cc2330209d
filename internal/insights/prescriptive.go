package insights

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spotlens/spotlens/internal/logger"
	"github.com/spotlens/spotlens/internal/models"
)

// Recommendation is one prescriptive optimization step from the model.
type Recommendation struct {
	Priority       int    `json:"priority"`
	ImpactLevel    string `json:"impact_level"`
	Area           string `json:"area"`
	Station        string `json:"station"`
	Daypart        string `json:"daypart"`
	Recommendation string `json:"recommendation"`
	ExpectedImpact string `json:"expected_impact"`
	Confidence     string `json:"confidence"`
	ActionType     string `json:"action_type"`
}

// Finding is one key observation supporting the recommendations.
type Finding struct {
	FindingType string `json:"finding_type"`
	Station     string `json:"station"`
	Daypart     string `json:"daypart"`
	Description string `json:"description"`
	ImpactLevel string `json:"impact_level"`
}

// PrescriptiveSet is the validated prescriptive response shape.
type PrescriptiveSet struct {
	Recommendations []Recommendation `json:"optimization_recommendations"`
	KeyFindings     []Finding        `json:"key_findings"`
}

// Required fields for each prescriptive recommendation. Unlike the insight
// set, where missing fields get defaults, the prescriptive shape is rejected
// outright when a recommendation is structurally incomplete; a prescription
// with no confidence or impact attached is not actionable.
var requiredRecommendationFields = []string{
	"priority", "impact_level", "area", "recommendation", "expected_impact", "confidence",
}

// ParsePrescriptive extracts and validates a prescriptive response. Both
// top-level lists must be present, and every recommendation must carry the
// required fields; violations return a *ParseError with stage "validate".
func (p *Parser) ParsePrescriptive(clientName, raw string) (*PrescriptiveSet, error) {
	if p.sink != nil {
		if _, err := p.sink.Save(clientName, raw); err != nil {
			logger.Warn("Failed to save raw prescriptive response for %s: %v", clientName, err)
		}
	}

	doc, err := p.decode(raw)
	if err != nil {
		return nil, err
	}

	recsRaw, ok := doc["optimization_recommendations"]
	if !ok {
		return nil, &ParseError{Stage: "validate", Err: errors.New("missing optimization_recommendations")}
	}
	findingsRaw, ok := doc["key_findings"]
	if !ok {
		return nil, &ParseError{Stage: "validate", Err: errors.New("missing key_findings")}
	}

	recItems := decodeItems(recsRaw)
	recommendations := make([]Recommendation, 0, len(recItems))
	for i, m := range recItems {
		for _, field := range requiredRecommendationFields {
			if _, present := m[field]; !present {
				return nil, &ParseError{
					Stage: "validate",
					Err:   fmt.Errorf("recommendation %d missing required field %q", i, field),
				}
			}
		}
		recommendations = append(recommendations, Recommendation{
			Priority:       intField(m, "priority", 999),
			ImpactLevel:    normalizeImpactLevel(stringField(m, "impact_level", "")),
			Area:           stringField(m, "area", ""),
			Station:        stringField(m, "station", ""),
			Daypart:        stringField(m, "daypart", ""),
			Recommendation: stringField(m, "recommendation", ""),
			ExpectedImpact: stringField(m, "expected_impact", ""),
			Confidence:     stringField(m, "confidence", "Medium"),
			ActionType:     stringField(m, "action_type", "optimize"),
		})
	}

	findingItems := decodeItems(findingsRaw)
	findings := make([]Finding, 0, len(findingItems))
	for _, m := range findingItems {
		station := stringField(m, "station", "")
		daypart := stringField(m, "daypart", "")
		if station == "" && daypart == "" {
			station, daypart = models.SplitEntityName(stringField(m, "entity", ""))
		}
		findings = append(findings, Finding{
			FindingType: stringField(m, "finding_type", "observation"),
			Station:     station,
			Daypart:     daypart,
			Description: stringField(m, "description", ""),
			ImpactLevel: normalizeImpactLevel(stringField(m, "impact_level", "")),
		})
	}

	return &PrescriptiveSet{
		Recommendations: recommendations,
		KeyFindings:     findings,
	}, nil
}

// normalizeImpactLevel maps the model's impact vocabulary, including common
// synonyms, onto the three canonical levels. Unknown words read as Medium.
func normalizeImpactLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high", "critical":
		return "High"
	case "medium", "important", "moderate":
		return "Medium"
	case "low", "minor":
		return "Low"
	default:
		return "Medium"
	}
}
