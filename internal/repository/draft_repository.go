package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/toeic-session/internal/model"
)

// DraftRepository handles autosaved answers that have not been submitted yet.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

// Upsert stores one draft answer, replacing an older one for the same
// question. A draft saved before the learner's latest submission on the test
// is not stored; the returned bool reports whether a row was written.
func (r *DraftRepository) Upsert(ctx context.Context, d model.DraftAnswer) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO draft_answers (user_id, test_id, order_number, answer, updated_at)
		 SELECT $1::int, $2::int, $3::int, $4::text, to_timestamp($5::bigint / 1000.0)
		 WHERE NOT EXISTS (
		     SELECT 1 FROM attempt_results
		     WHERE user_id = $1::int AND test_id = $2::int
		       AND submitted_at >= to_timestamp($5::bigint / 1000.0)
		 )
		 ON CONFLICT (user_id, test_id, order_number) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at
		 WHERE draft_answers.updated_at <= EXCLUDED.updated_at`,
		d.UserID, d.TestID, d.OrderNumber, d.Answer, d.SavedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUserTest returns a learner's draft answers for a test keyed by order-number.
func (r *DraftRepository) ListByUserTest(ctx context.Context, userID, testID int) (map[int]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_number, answer FROM draft_answers
		 WHERE user_id = $1 AND test_id = $2`, userID, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var order int
		var answer string
		if err := rows.Scan(&order, &answer); err != nil {
			return nil, err
		}
		out[order] = answer
	}
	return out, rows.Err()
}

// DeleteByUserTest removes a learner's drafts for a test.
func (r *DraftRepository) DeleteByUserTest(ctx context.Context, userID, testID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM draft_answers WHERE user_id = $1 AND test_id = $2`, userID, testID)
	return err
}
