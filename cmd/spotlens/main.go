package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spotlens/spotlens/internal/classify"
	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/datasource"
	"github.com/spotlens/spotlens/internal/insights"
	"github.com/spotlens/spotlens/internal/llm"
	"github.com/spotlens/spotlens/internal/logger"
	"github.com/spotlens/spotlens/internal/models"
	"github.com/spotlens/spotlens/internal/prompt"
	"github.com/spotlens/spotlens/internal/report"
	"github.com/spotlens/spotlens/internal/telegram"
	"github.com/spotlens/spotlens/internal/trend"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	clientName  = flag.String("client", "", "Client to analyze")
	days        = flag.Int("days", 30, "Trailing window of air dates to analyze")
	listClients = flag.Bool("list-clients", false, "List clients with activity in the window and exit")
	skipModel   = flag.Bool("skip-model", false, "Skip the model call and emit fallback insights")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Connect to the attribution warehouse
	store, err := datasource.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to warehouse: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close warehouse connection: %v", err)
		}
	}()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *listClients {
		clients, err := store.ListClients(ctx, *days)
		if err != nil {
			logger.Fatal("Failed to list clients: %v", err)
		}
		for _, c := range clients {
			fmt.Println(c)
		}
		return
	}

	if *clientName == "" {
		logger.Fatal("No client specified (use -client or -list-clients)")
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	startTime := time.Now()
	set, err := runAnalysis(ctx, store, cfg, *clientName, *days, *skipModel)
	if err != nil {
		logger.Error("Analysis run failed for %s: %v", *clientName, err)
		if telegramClient != nil {
			if sendErr := telegramClient.SendError(*clientName, err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		os.Exit(1)
	}

	duration := time.Since(startTime)
	logger.Info("Analysis run for %s completed in %v (%d insights, source=%s)",
		*clientName, duration, set.Metadata.InsightCount, set.Metadata.Source)

	if telegramClient != nil {
		summary := telegram.RunSummary{
			ClientName:   *clientName,
			InsightCount: set.Metadata.InsightCount,
			Degraded:     set.Metadata.Degraded,
			Duration:     duration,
		}
		if len(set.ScalingOpportunities) > 0 {
			summary.TopOpportunity = set.ScalingOpportunities[0].Entity
		}
		if err := telegramClient.SendSummary(summary); err != nil {
			logger.Warn("Failed to send run summary to Telegram: %v", err)
		}
	}
}

func runAnalysis(
	ctx context.Context,
	store *datasource.Store,
	cfg *config.Config,
	clientName string,
	days int,
	skipModel bool,
) (*models.InsightSet, error) {
	logger.Info("Starting analysis for %s over the last %d days", clientName, days)

	// Fetch the daily series and per-entity aggregates
	daily, err := store.FetchDailyRecords(ctx, clientName, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily records: %w", err)
	}
	if len(daily) == 0 {
		return nil, fmt.Errorf("no airings found for %s in the last %d days", clientName, days)
	}
	logger.Info("Fetched %d daily records (%s to %s)",
		len(daily), daily[0].Date.Format("2006-01-02"), daily[len(daily)-1].Date.Format("2006-01-02"))

	stationRecords, err := store.FetchStationPerformance(ctx, clientName, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch station performance: %w", err)
	}
	daypartRecords, err := store.FetchDaypartPerformance(ctx, clientName, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daypart performance: %w", err)
	}
	comboRecords, err := store.FetchCombinationPerformance(ctx, clientName, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch combination performance: %w", err)
	}
	logger.Debug("Fetched %d stations, %d dayparts, %d combinations",
		len(stationRecords), len(daypartRecords), len(comboRecords))

	// Trend analysis over weekly buckets
	analyzer := trend.New(cfg.Analysis, daily)
	comparison := analyzer.CompareRecentVsHistorical(cfg.Analysis.RecentWindowDays)
	weekly := analyzer.AnalyzeWeeklyTrends()
	latest := analyzer.LatestWeekInsights()
	patterns := analyzer.IdentifyPatterns()
	logger.Info("Trend summary: %d weeks, comparison=%s, growth=%v, decline=%v, volatile=%v",
		len(analyzer.Weeks()), comparison.Assessment,
		patterns.ConsistentGrowth, patterns.ConsistentDecline, patterns.Volatile)

	// Relative performance classification
	classifier := classify.New(cfg.Analysis, analyzer)
	stations := classifier.ClassifyStations(stationRecords)
	dayparts := classifier.ClassifyDayparts(daypartRecords)
	combos := classifier.ClassifyCombinations(comboRecords)

	quadrants := classifier.AnalyzeQuadrants(stationRecords)
	logger.Debug("Quadrants: scale=%d test=%d optimize=%d reduce=%d",
		len(quadrants.ScaleThese), len(quadrants.TestThese),
		len(quadrants.OptimizeThese), len(quadrants.ReduceThese))
	for _, realloc := range classifier.OpportunityMatrix(stationRecords) {
		logger.Info("Reallocation candidate: %s (+%d visits expected, confidence %s)",
			realloc.Action, realloc.ProjectedVisitGain, realloc.Confidence)
	}

	// Build the analysis prompt
	var totals prompt.Totals
	for _, d := range daily {
		totals.Spots += d.SpotCount
		totals.Visits += d.VisitCount
		totals.Cost += d.Cost
		totals.Revenue += d.Revenue
	}
	promptText := prompt.Build(prompt.Input{
		ClientName: clientName,
		StartDate:  daily[0].Date,
		EndDate:    daily[len(daily)-1].Date,
		Totals:     totals,
		Stations:   stations,
		Dayparts:   dayparts,
		Comparison: comparison,
		Weekly:     weekly,
		LatestWeek: latest,
	})
	logger.Debug("Built analysis prompt (%d chars)", len(promptText))

	set := generateInsightSet(ctx, cfg, clientName, promptText, skipModel)

	// Write reports
	writer := report.NewWriter(cfg.Output.Dir)
	if path, err := writer.WriteInsights(set); err != nil {
		logger.Error("Failed to write insight report: %v", err)
	} else {
		logger.Info("Wrote insight report to %s", path)
	}
	for kind, results := range map[models.EntityKind][]classify.Result{
		models.KindStation:     stations,
		models.KindDaypart:     dayparts,
		models.KindCombination: combos,
	} {
		if path, err := writer.WriteClassifications(clientName, kind, results); err != nil {
			logger.Error("Failed to write %s classification report: %v", kind, err)
		} else {
			logger.Info("Wrote %s classification report to %s", kind, path)
		}
	}

	return set, nil
}

// generateInsightSet calls the model and parses its response. Every failure
// path degrades to a fallback set instead of failing the run: by this point
// the classification reports are already worth writing.
func generateInsightSet(ctx context.Context, cfg *config.Config, clientName, promptText string, skipModel bool) *models.InsightSet {
	if skipModel {
		logger.Info("Model call skipped by flag, using fallback insights")
		return insights.Fallback(clientName, errors.New("model call skipped"))
	}

	client, err := llm.New(ctx, cfg.Model)
	if err != nil {
		logger.Error("Failed to initialize model client: %v", err)
		return insights.Fallback(clientName, err)
	}

	raw, err := client.GenerateInsights(ctx, promptText)
	if err != nil {
		logger.Error("Model call failed: %v", err)
		return insights.Fallback(clientName, err)
	}
	logger.Info("Received model response (%d chars)", len(raw))

	var sink *insights.RawSink
	if cfg.Output.SaveRawResponses {
		sink = insights.NewRawSink(filepath.Join(cfg.Output.Dir, "raw"))
	}
	set, err := insights.NewParser(sink).Parse(clientName, raw)
	if err != nil {
		var parseErr *insights.ParseError
		if errors.As(err, &parseErr) {
			logger.Warn("Response parsing failed at %s stage: %v", parseErr.Stage, parseErr.Err)
		} else {
			logger.Warn("Response parsing failed: %v", err)
		}
		return insights.Fallback(clientName, err)
	}
	return set
}
