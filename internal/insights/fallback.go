package insights

import (
	"time"

	"github.com/google/uuid"

	"github.com/spotlens/spotlens/internal/models"
)

const fallbackSummary = "Enhanced AI analysis temporarily unavailable - using standard analysis"

// Fallback builds the degraded insight set used when the model call or the
// parse pipeline fails. It carries only the static executive summary, which
// counts as one insight, so a run never ends with an empty report.
func Fallback(clientName string, cause error) *models.InsightSet {
	set := &models.InsightSet{
		Metadata: models.InsightMetadata{
			RunID:            uuid.New().String(),
			ClientName:       clientName,
			GeneratedAt:      time.Now().UTC(),
			Source:           "fallback",
			ParsingSucceeded: false,
			Degraded:         true,
		},
		ExecutiveSummary: models.ExecutiveSummary{
			Summary:    fallbackSummary,
			Confidence: "Medium",
			Urgency:    "Medium",
		},
	}
	if cause != nil {
		set.Metadata.ParseFailureReason = cause.Error()
	}
	set.Recount()
	return set
}
