// Package prompt renders the analysis prompt sent to the language model.
// The prompt is plain text with fixed-width tables: models follow tabular
// numbers more reliably than nested JSON input, and the fixed schema block
// at the end anchors the response shape.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/spotlens/spotlens/internal/classify"
	"github.com/spotlens/spotlens/internal/trend"
)

// Totals carries the campaign-wide sums for the overview block.
type Totals struct {
	Spots   int
	Visits  int
	Cost    float64
	Revenue float64
}

// Input is everything the prompt needs about one client's analysis window.
// Station and daypart results arrive already classified and ranked.
type Input struct {
	ClientName string
	StartDate  time.Time
	EndDate    time.Time
	Totals     Totals
	Stations   []classify.Result
	Dayparts   []classify.Result
	Comparison trend.Comparison
	Weekly     trend.WeeklyTrends
	LatestWeek trend.LatestWeek
}

// Tables cap at the strongest performers; past this point rows stop
// changing the model's recommendations and only burn context.
const maxTableRows = 10

// Build renders the full analysis prompt.
func Build(in Input) string {
	var b strings.Builder

	writeOverview(&b, in)
	writeStationTable(&b, in.Stations)
	writeDaypartTable(&b, in.Dayparts)
	writeTrends(&b, in)
	b.WriteString(responseSchema)

	return b.String()
}

func writeOverview(b *strings.Builder, in Input) {
	b.WriteString("CAMPAIGN OVERVIEW\n")
	fmt.Fprintf(b, "Client: %s\n", in.ClientName)
	fmt.Fprintf(b, "Period: %s to %s\n",
		in.StartDate.Format("2006-01-02"), in.EndDate.Format("2006-01-02"))
	fmt.Fprintf(b, "Total spots aired: %d\n", in.Totals.Spots)
	fmt.Fprintf(b, "Total attributed visits: %d\n", in.Totals.Visits)

	efficiency := 0.0
	if in.Totals.Spots > 0 {
		efficiency = float64(in.Totals.Visits) / float64(in.Totals.Spots)
	}
	fmt.Fprintf(b, "Overall efficiency: %.2f visits per spot\n", efficiency)

	if in.Totals.Cost > 0 {
		fmt.Fprintf(b, "Total cost: $%.2f\n", in.Totals.Cost)
		fmt.Fprintf(b, "Total revenue: $%.2f\n", in.Totals.Revenue)
		fmt.Fprintf(b, "ROAS: %.2f\n", in.Totals.Revenue/in.Totals.Cost)
	}
	b.WriteString("\n")
}

func writeStationTable(b *strings.Builder, stations []classify.Result) {
	b.WriteString("STATION PERFORMANCE (ranked by opportunity)\n")
	if len(stations) == 0 {
		b.WriteString("No station data available for this period.\n\n")
		return
	}

	fmt.Fprintf(b, "%-12s %8s %8s %10s  %-28s %-18s\n",
		"Station", "Spots", "Visits", "Eff", "Tier", "Opportunity")
	for i, r := range stations {
		if i >= maxTableRows {
			break
		}
		fmt.Fprintf(b, "%-12s %8d %8d %10.2f  %-28s %-18s\n",
			r.Record.Name, r.Record.Spots, r.Record.TotalVisits,
			r.Record.AvgVisitsPerSpot, r.Tier, r.OpportunityType)
	}
	b.WriteString("\n")
}

func writeDaypartTable(b *strings.Builder, dayparts []classify.Result) {
	b.WriteString("DAYPART PERFORMANCE\n")
	if len(dayparts) == 0 {
		b.WriteString("No daypart data available for this period.\n\n")
		return
	}

	fmt.Fprintf(b, "%-16s %8s %8s %10s  %-24s %-28s\n",
		"Daypart", "Spots", "Visits", "Eff", "Rating", "Priority")
	for i, r := range dayparts {
		if i >= maxTableRows {
			break
		}
		fmt.Fprintf(b, "%-16s %8d %8d %10.2f  %-24s %-28s\n",
			r.Record.Name, r.Record.Spots, r.Record.TotalVisits,
			r.Record.AvgVisitsPerSpot, r.Tier, r.RecommendationPriority)
	}
	b.WriteString("\n")
}

func writeTrends(b *strings.Builder, in Input) {
	b.WriteString("WEEKLY TRENDS\n")
	if in.Weekly.Status != trend.StatusOK {
		b.WriteString("Insufficient history for weekly trend analysis (need at least 14 days).\n\n")
		return
	}

	if in.Comparison.Status == trend.StatusOK {
		fmt.Fprintf(b, "Recent %d days vs prior history: %.2f vs %.2f visits/spot (%+.1f%%, %s)\n",
			in.Comparison.RecentDays,
			in.Comparison.RecentEfficiency, in.Comparison.HistoricalEfficiency,
			in.Comparison.ChangePct, in.Comparison.Assessment)
	}

	for _, c := range in.Weekly.Changes {
		fmt.Fprintf(b, "Week %d: efficiency %+.1f%%, volume %+.1f%%\n",
			c.Week, c.EfficiencyChangePct, c.VolumeChangePct)
	}

	if in.LatestWeek.Status == trend.StatusOK {
		for _, insight := range in.LatestWeek.Insights {
			fmt.Fprintf(b, "- %s\n", insight)
		}
	}
	b.WriteString("\n")
}

// responseSchema is the response contract appended to every prompt. The
// category names here are the ones the parser treats as known; everything
// else the model adds comes back as a dynamic category.
const responseSchema = `RESPONSE FORMAT
Respond with a single JSON object and no other text. Use exactly this structure:

{
  "executive_summary": {
    "summary": "<2-3 sentence campaign assessment>",
    "confidence": "High|Medium|Low",
    "urgency": "High|Medium|Low"
  },
  "scaling_opportunities": [
    {
      "priority": <number, 1 is highest>,
      "entity": "<station, daypart, or station_daypart>",
      "entity_type": "station|daypart|combination",
      "action_type": "increase_spots|expand_dayparts|test_budget|monitor",
      "recommendation": "<specific action>",
      "projected_impact": "<expected outcome>",
      "confidence": "High|Medium|Low",
      "business_rationale": "<why this works>"
    }
  ],
  "underperformers": [
    {
      "entity": "<station or daypart>",
      "entity_type": "station|daypart|combination",
      "issue": "<what is wrong>",
      "severity": "High|Medium|Low",
      "recommended_action": "<specific action>",
      "business_rationale": "<why act now>"
    }
  ],
  "budget_reallocations": [
    {
      "from_entity": "<station>",
      "to_entity": "<station>",
      "spots_to_move": <number>,
      "projected_impact": "<expected outcome>",
      "confidence": "High|Medium|Low",
      "implementation_priority": "High|Medium|Low"
    }
  ],
  "trend_insights": [
    {
      "description": "<what is moving>",
      "direction": "improving|declining|stable",
      "entity": "<station, daypart, or campaign>",
      "urgency": "High|Medium|Low",
      "recommended_response": "<specific action>"
    }
  ]
}

RULES
- Base every recommendation on the numbers above; never invent data.
- Reference stations and dayparts by the exact names shown in the tables.
- Keep recommendations specific and actionable (spot counts, dollar amounts).
- Output only the JSON object. No markdown fences, no commentary.
`
