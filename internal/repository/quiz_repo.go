package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hyra-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

const quizColumns = `id, user_id, file_id, name, level, highest_score, created_at, updated_at`

const questionColumns = `id, quiz_id, position, name, question, answers_json, explanation, user_answer, created_at, updated_at`

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	q := &models.Quiz{}
	err := row.Scan(&q.ID, &q.UserID, &q.FileID, &q.Name, &q.Level, &q.HighestScore, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	q := &models.Question{}
	var answers []byte
	err := row.Scan(&q.ID, &q.QuizID, &q.Position, &q.Name, &q.Question, &answers, &q.Explanation, &q.UserAnswer, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &q.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers of question %s: %w", q.ID, err)
	}
	return q, nil
}

func (r *QuizRepo) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE id = $1`
	return scanQuiz(r.pool.QueryRow(ctx, query, id))
}

func (r *QuizRepo) ListQuizzesByUser(ctx context.Context, userID string) ([]*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listQuizzes(ctx, query, userID)
}

func (r *QuizRepo) ListQuizzesByFile(ctx context.Context, fileID string) ([]*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE file_id = $1 ORDER BY created_at DESC`
	return r.listQuizzes(ctx, query, fileID)
}

func (r *QuizRepo) listQuizzes(ctx context.Context, query string, arg string) ([]*models.Quiz, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []*models.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepo) ListQuestions(ctx context.Context, quizID string) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE quiz_id = $1 ORDER BY position`

	rows, err := r.pool.Query(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateQuiz inserts the quiz and all of its questions in one transaction.
func (r *QuizRepo) CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (`+quizColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		quiz.ID, quiz.UserID, quiz.FileID, quiz.Name, quiz.Level, quiz.HighestScore, quiz.CreatedAt, quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}

	batch := &pgx.Batch{}
	for _, q := range questions {
		answers, err := json.Marshal(q.Answers)
		if err != nil {
			return fmt.Errorf("failed to encode answers of question %s: %w", q.ID, err)
		}
		batch.Queue(
			`INSERT INTO questions (`+questionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			q.ID, q.QuizID, q.Position, q.Name, q.Question, answers, q.Explanation, q.UserAnswer, q.CreatedAt, q.UpdatedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range questions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert question: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SaveUserAnswers overwrites user_answer of every listed question of the quiz.
func (r *QuizRepo) SaveUserAnswers(ctx context.Context, quizID string, answers map[string]int) error {
	if len(answers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for questionID, selected := range answers {
		batch.Queue(
			`UPDATE questions SET user_answer = $1, updated_at = NOW() WHERE id = $2 AND quiz_id = $3`,
			selected, questionID, quizID,
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for range answers {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to save user answer: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RaiseHighestScore stores score only when it beats the current value. The
// comparison runs inside the UPDATE so concurrent submissions cannot lower it.
func (r *QuizRepo) RaiseHighestScore(ctx context.Context, quizID string, score int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET highest_score = $1, updated_at = NOW() WHERE id = $2 AND highest_score < $1`,
		score, quizID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuizRepo) IncrementFileQuizCount(ctx context.Context, fileID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE files SET quiz_count = quiz_count + 1, updated_at = NOW() WHERE id = $1`,
		fileID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
