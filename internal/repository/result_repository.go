package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/toeic-session/internal/model"
)

const resultColumns = `id, test_id, user_id, email, mode, completion_time_seconds,
	listening_correct, reading_correct, skipped, listening_score, reading_score, total_score, submitted_at`

// ResultRepository handles scored attempt data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create stores a result and its graded answers in one transaction. ID and
// SubmittedAt are filled in on success.
func (r *ResultRepository) Create(ctx context.Context, res *model.AttemptResult, answers []model.GradedAnswer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO attempt_results (test_id, user_id, email, mode, completion_time_seconds,
		                              listening_correct, reading_correct, skipped,
		                              listening_score, reading_score, total_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, submitted_at`,
		res.TestID, res.UserID, res.Email, string(res.Mode), res.CompletionTimeSeconds,
		res.ListeningCorrect, res.ReadingCorrect, res.Skipped,
		res.ListeningScore, res.ReadingScore, res.TotalScore,
	).Scan(&res.ID, &res.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	if len(answers) > 0 {
		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"attempt_answers"},
			[]string{"result_id", "question_id", "answer", "is_correct"},
			pgx.CopyFromSlice(len(answers), func(i int) ([]interface{}, error) {
				a := answers[i]
				return []interface{}{res.ID, a.QuestionID, a.Answer, a.IsCorrect}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy answers: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID retrieves a result by ID.
func (r *ResultRepository) GetByID(ctx context.Context, id int) (*model.AttemptResult, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM attempt_results WHERE id = $1`, id)
	res, err := scanResult(row)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByUser retrieves a page of a learner's results, newest first, with the
// total count.
func (r *ResultRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_results WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM attempt_results
		 WHERE user_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := make([]model.AttemptResult, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *res)
	}
	return results, total, rows.Err()
}

// ListAnswers retrieves the graded answers of a result.
func (r *ResultRepository) ListAnswers(ctx context.Context, resultID int) ([]model.GradedAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.question_id, a.answer, a.is_correct
		 FROM attempt_answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.result_id = $1
		 ORDER BY q.order_number`, resultID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make([]model.GradedAnswer, 0)
	for rows.Next() {
		var a model.GradedAnswer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanResult(row pgx.Row) (*model.AttemptResult, error) {
	var res model.AttemptResult
	var mode string
	err := row.Scan(&res.ID, &res.TestID, &res.UserID, &res.Email, &mode, &res.CompletionTimeSeconds,
		&res.ListeningCorrect, &res.ReadingCorrect, &res.Skipped,
		&res.ListeningScore, &res.ReadingScore, &res.TotalScore, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}
	res.Mode = model.AttemptMode(mode)
	return &res, nil
}
