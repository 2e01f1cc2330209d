// Package datasource reads spot airings and attribution metrics from the
// Postgres warehouse. Airings and attribution live in separate tables and
// attribution rows lag or go missing, so every metric join is a LEFT JOIN
// with COALESCE: a spot with no attribution is a real spot with zero visits,
// not a dropped row.
package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/models"
)

// Store is a read-only view over the attribution warehouse.
type Store struct {
	db *sqlx.DB
}

// Connect opens and verifies the warehouse connection.
func Connect(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type dailyRow struct {
	Date       time.Time `db:"date"`
	SpotCount  int       `db:"spot_count"`
	VisitCount int       `db:"visit_count"`
	Cost       float64   `db:"cost"`
	Revenue    float64   `db:"revenue"`
}

// FetchDailyRecords returns one record per air date for the client over the
// trailing window, in ascending date order.
func (s *Store) FetchDailyRecords(ctx context.Context, clientName string, days int) ([]models.DailyRecord, error) {
	const query = `
		SELECT s.air_date AS date,
		       COUNT(DISTINCT s.id) AS spot_count,
		       COALESCE(SUM(m.visits), 0) AS visit_count,
		       COALESCE(SUM(s.cost), 0) AS cost,
		       COALESCE(SUM(m.revenue), 0) AS revenue
		FROM core_post_time s
		LEFT JOIN linear_attribution_metrics m ON m.spot_id = s.id
		WHERE s.client_name = $1
		  AND s.air_date >= CURRENT_DATE - $2::int
		GROUP BY s.air_date
		ORDER BY s.air_date`

	var rows []dailyRow
	if err := s.db.SelectContext(ctx, &rows, query, clientName, days); err != nil {
		return nil, fmt.Errorf("failed to fetch daily records: %w", err)
	}

	records := make([]models.DailyRecord, len(rows))
	for i, r := range rows {
		records[i] = models.DailyRecord{
			Date:       r.Date,
			SpotCount:  r.SpotCount,
			VisitCount: r.VisitCount,
			Cost:       r.Cost,
			Revenue:    r.Revenue,
		}
	}
	return records, nil
}

type entityRow struct {
	Name         string  `db:"name"`
	Station      string  `db:"station"`
	Daypart      string  `db:"daypart"`
	Spots        int     `db:"spots"`
	TotalVisits  int     `db:"total_visits"`
	TotalCost    float64 `db:"total_cost"`
	TotalRevenue float64 `db:"total_revenue"`
}

// FetchStationPerformance aggregates the window by station.
func (s *Store) FetchStationPerformance(ctx context.Context, clientName string, days int) ([]models.EntityPerformanceRecord, error) {
	const query = `
		SELECT s.station AS name,
		       s.station AS station,
		       '' AS daypart,
		       COUNT(DISTINCT s.id) AS spots,
		       COALESCE(SUM(m.visits), 0) AS total_visits,
		       COALESCE(SUM(s.cost), 0) AS total_cost,
		       COALESCE(SUM(m.revenue), 0) AS total_revenue
		FROM core_post_time s
		LEFT JOIN linear_attribution_metrics m ON m.spot_id = s.id
		WHERE s.client_name = $1
		  AND s.air_date >= CURRENT_DATE - $2::int
		GROUP BY s.station
		ORDER BY total_visits DESC`

	return s.fetchEntities(ctx, query, clientName, days, models.KindStation)
}

// FetchDaypartPerformance aggregates the window by daypart.
func (s *Store) FetchDaypartPerformance(ctx context.Context, clientName string, days int) ([]models.EntityPerformanceRecord, error) {
	const query = `
		SELECT s.daypart AS name,
		       '' AS station,
		       s.daypart AS daypart,
		       COUNT(DISTINCT s.id) AS spots,
		       COALESCE(SUM(m.visits), 0) AS total_visits,
		       COALESCE(SUM(s.cost), 0) AS total_cost,
		       COALESCE(SUM(m.revenue), 0) AS total_revenue
		FROM core_post_time s
		LEFT JOIN linear_attribution_metrics m ON m.spot_id = s.id
		WHERE s.client_name = $1
		  AND s.air_date >= CURRENT_DATE - $2::int
		GROUP BY s.daypart
		ORDER BY total_visits DESC`

	return s.fetchEntities(ctx, query, clientName, days, models.KindDaypart)
}

// FetchCombinationPerformance aggregates the window by station+daypart pair.
func (s *Store) FetchCombinationPerformance(ctx context.Context, clientName string, days int) ([]models.EntityPerformanceRecord, error) {
	const query = `
		SELECT s.station || '_' || s.daypart AS name,
		       s.station AS station,
		       s.daypart AS daypart,
		       COUNT(DISTINCT s.id) AS spots,
		       COALESCE(SUM(m.visits), 0) AS total_visits,
		       COALESCE(SUM(s.cost), 0) AS total_cost,
		       COALESCE(SUM(m.revenue), 0) AS total_revenue
		FROM core_post_time s
		LEFT JOIN linear_attribution_metrics m ON m.spot_id = s.id
		WHERE s.client_name = $1
		  AND s.air_date >= CURRENT_DATE - $2::int
		GROUP BY s.station, s.daypart
		ORDER BY total_visits DESC`

	return s.fetchEntities(ctx, query, clientName, days, models.KindCombination)
}

func (s *Store) fetchEntities(ctx context.Context, query, clientName string, days int, kind models.EntityKind) ([]models.EntityPerformanceRecord, error) {
	var rows []entityRow
	if err := s.db.SelectContext(ctx, &rows, query, clientName, days); err != nil {
		return nil, fmt.Errorf("failed to fetch %s performance: %w", kind, err)
	}

	records := make([]models.EntityPerformanceRecord, len(rows))
	for i, r := range rows {
		rec := models.EntityPerformanceRecord{
			Name:         r.Name,
			Kind:         kind,
			Station:      r.Station,
			Daypart:      r.Daypart,
			Spots:        r.Spots,
			TotalVisits:  r.TotalVisits,
			TotalCost:    r.TotalCost,
			TotalRevenue: r.TotalRevenue,
		}
		rec.Normalize()
		records[i] = rec
	}
	return records, nil
}

// ListClients returns the clients with any airings in the trailing window.
func (s *Store) ListClients(ctx context.Context, days int) ([]string, error) {
	const query = `
		SELECT DISTINCT client_name
		FROM core_post_time
		WHERE air_date >= CURRENT_DATE - $1::int
		ORDER BY client_name`

	var clients []string
	if err := s.db.SelectContext(ctx, &clients, query, days); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}
