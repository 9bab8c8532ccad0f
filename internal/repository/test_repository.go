package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/toeic-session/internal/model"
)

// TestRepository handles test content data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// List retrieves every test with its question count.
func (r *TestRepository) List(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.title, t.duration_minutes, t.audio_url, t.created_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id)
		 FROM tests t
		 ORDER BY t.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.DurationMinutes, &t.AudioURL, &t.CreatedAt, &t.QuestionCount); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// GetByID retrieves a test by ID.
func (r *TestRepository) GetByID(ctx context.Context, id int) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.title, t.duration_minutes, t.audio_url, t.created_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id)
		 FROM tests t WHERE t.id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.DurationMinutes, &t.AudioURL, &t.CreatedAt, &t.QuestionCount)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListDisplayItems loads the ordered display items of a test.
func (r *TestRepository) ListDisplayItems(ctx context.Context, testID int) ([]model.DisplayItem, error) {
	itemRows, err := r.pool.Query(ctx,
		`SELECT id, item_type, part_number, content, image_url, start_timestamp
		 FROM display_items WHERE test_id = $1
		 ORDER BY position`, testID,
	)
	if err != nil {
		return nil, fmt.Errorf("query display items: %w", err)
	}
	items, err := pgx.CollectRows(itemRows, func(row pgx.CollectableRow) (ItemRow, error) {
		var it ItemRow
		err := row.Scan(&it.ID, &it.Type, &it.PartNumber, &it.Content, &it.ImageURL, &it.StartTimestamp)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan display items: %w", err)
	}

	qRows, err := r.pool.Query(ctx,
		`SELECT id, display_item_id, order_number, part_number, content, image_url, audio_url,
		        answer_a, answer_b, answer_c, answer_d, start_timestamp
		 FROM questions WHERE test_id = $1
		 ORDER BY order_number`, testID,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	questions, err := pgx.CollectRows(qRows, func(row pgx.CollectableRow) (QuestionRow, error) {
		var q QuestionRow
		err := row.Scan(&q.ID, &q.DisplayItemID, &q.OrderNumber, &q.PartNumber, &q.Content, &q.ImageURL, &q.AudioURL,
			&q.AnswerA, &q.AnswerB, &q.AnswerC, &q.AnswerD, &q.StartTimestamp)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan questions: %w", err)
	}

	return AssembleDisplayItems(items, questions)
}

// AnswerKey retrieves the correct answer and part of every question in a test.
func (r *TestRepository) AnswerKey(ctx context.Context, testID int) ([]model.AnswerKeyEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, part_number, correct_answer
		 FROM questions WHERE test_id = $1
		 ORDER BY order_number`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var key []model.AnswerKeyEntry
	for rows.Next() {
		var e model.AnswerKeyEntry
		if err := rows.Scan(&e.QuestionID, &e.PartNumber, &e.CorrectAnswer); err != nil {
			return nil, err
		}
		key = append(key, e)
	}
	return key, rows.Err()
}

// SeedQuestion is a question plus its correct answer, used when inserting content.
type SeedQuestion struct {
	model.Question
	CorrectAnswer string
}

// SeedItem is a display item to insert. Questions carries the correct answers
// for the item's leaf questions, in order.
type SeedItem struct {
	Item      model.DisplayItem
	Questions []SeedQuestion
}

// CreateWithItems inserts a test and its content in one transaction and
// returns the new test ID.
func (r *TestRepository) CreateWithItems(ctx context.Context, t *model.Test, items []SeedItem) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, duration_minutes, audio_url)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		t.Title, t.DurationMinutes, t.AudioURL,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert test: %w", err)
	}

	for pos, si := range items {
		it := si.Item
		var content, image *string
		switch it.Type {
		case model.DisplayItemPart:
			content = it.Part.Content
		case model.DisplayItemQuestion:
			content, image = it.Question.Content, it.Question.ImageURL
		case model.DisplayItemQuestionGroup:
			content, image = it.Group.Content, it.Group.ImageURL
		}

		var itemID int
		err := tx.QueryRow(ctx,
			`INSERT INTO display_items (test_id, position, item_type, part_number, content, image_url, start_timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			t.ID, pos, string(it.Type), it.PartNumber(), content, image, startTimestamp(it),
		).Scan(&itemID)
		if err != nil {
			return 0, fmt.Errorf("insert display item %d: %w", pos, err)
		}

		for _, q := range si.Questions {
			choices := make([]*string, model.MaxChoices)
			for i := 0; i < len(q.Choices) && i < model.MaxChoices; i++ {
				c := q.Choices[i]
				choices[i] = &c
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO questions (test_id, display_item_id, order_number, part_number, content, image_url, audio_url,
				                        answer_a, answer_b, answer_c, answer_d, correct_answer, start_timestamp)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				t.ID, itemID, q.OrderNumber, q.PartNumber, q.Content, q.ImageURL, q.AudioURL,
				choices[0], choices[1], choices[2], choices[3], q.CorrectAnswer, q.StartTimestamp,
			)
			if err != nil {
				return 0, fmt.Errorf("insert question %d: %w", q.OrderNumber, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return t.ID, nil
}

func startTimestamp(it model.DisplayItem) *float64 {
	switch it.Type {
	case model.DisplayItemPart:
		return it.Part.StartTimestamp
	case model.DisplayItemQuestion:
		return it.Question.StartTimestamp
	case model.DisplayItemQuestionGroup:
		return it.Group.StartTimestamp
	}
	return nil
}
