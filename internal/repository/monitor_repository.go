package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/toeic-session/internal/model"
)

// MonitorRepository provides aggregates for the live test monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// TestStats returns how many results a test has and their score spread.
func (r *MonitorRepository) TestStats(ctx context.Context, testID int) (model.TestStats, error) {
	var s model.TestStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(total_score), 0)::float8, COALESCE(MAX(total_score), 0)
		 FROM attempt_results
		 WHERE test_id = $1`,
		testID,
	).Scan(&s.Submitted, &s.AverageScore, &s.BestScore)
	return s, err
}

// DraftCounts returns the number of persisted draft answers per learner for a
// test. It covers attempts running on every API process.
func (r *MonitorRepository) DraftCounts(ctx context.Context, testID int) (map[int]int64, error) {
	result := make(map[int]int64)

	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COUNT(*)
		 FROM draft_answers
		 WHERE test_id = $1
		 GROUP BY user_id`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID int
		var count int64
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		result[userID] = count
	}
	return result, rows.Err()
}
