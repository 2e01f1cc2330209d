// Command parse-response runs the insight parsing pipeline against a saved
// model response. It exists for debugging malformed responses offline: feed
// it a raw capture, see what parses, what falls back, and what CSV comes out.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spotlens/spotlens/internal/insights"
	"github.com/spotlens/spotlens/internal/logger"
	"github.com/spotlens/spotlens/internal/report"
)

var (
	filePath     = flag.String("file", "", "Path to a saved raw model response")
	clientName   = flag.String("client", "debug", "Client name to stamp on the parsed set")
	outDir       = flag.String("out", "", "Directory for the CSV report (omit to skip writing)")
	prescriptive = flag.Bool("prescriptive", false, "Parse as the prescriptive recommendation shape")
	logLevel     = flag.String("log-level", "debug", "Log level")
)

func main() {
	flag.Parse()
	logger.Init(*logLevel, "text")

	if *filePath == "" {
		log.Fatal("No input file specified (use -file)")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	parser := insights.NewParser(nil)

	if *prescriptive {
		set, err := parser.ParsePrescriptive(*clientName, string(raw))
		if err != nil {
			log.Fatalf("Prescriptive parsing failed: %v", err)
		}
		fmt.Printf("recommendations: %d\n", len(set.Recommendations))
		fmt.Printf("key findings:    %d\n", len(set.KeyFindings))
		for _, rec := range set.Recommendations {
			fmt.Printf("  [%d/%s] %s: %s\n", rec.Priority, rec.ImpactLevel, rec.Area, rec.Recommendation)
		}
		return
	}

	set, err := parser.Parse(*clientName, string(raw))
	if err != nil {
		var parseErr *insights.ParseError
		if errors.As(err, &parseErr) {
			logger.Warn("Parsing failed at %s stage: %v", parseErr.Stage, parseErr.Err)
		} else {
			logger.Warn("Parsing failed: %v", err)
		}
		set = insights.Fallback(*clientName, err)
	}

	fmt.Printf("source:                %s\n", set.Metadata.Source)
	fmt.Printf("parsing succeeded:     %v\n", set.Metadata.ParsingSucceeded)
	fmt.Printf("insight count:         %d\n", set.Metadata.InsightCount)
	fmt.Printf("scaling opportunities: %d\n", len(set.ScalingOpportunities))
	fmt.Printf("underperformers:       %d\n", len(set.Underperformers))
	fmt.Printf("budget reallocations:  %d\n", len(set.BudgetReallocations))
	fmt.Printf("trend insights:        %d\n", len(set.TrendInsights))
	for category, items := range set.DynamicCategories {
		fmt.Printf("dynamic %q:            %d\n", category, len(items))
	}
	fmt.Printf("executive summary:     %s\n", set.ExecutiveSummary.Summary)

	if *outDir != "" {
		path, err := report.NewWriter(*outDir).WriteInsights(set)
		if err != nil {
			log.Fatalf("Failed to write CSV: %v", err)
		}
		fmt.Printf("wrote %s\n", path)
	}
}
