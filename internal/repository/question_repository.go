package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/microwire-quality/internal/model"
)

const questionColumns = "id, user_id, title, content, answer, status, created_at, updated_at"

// QuestionFilter narrows List.  UserID == 0 lists every user's questions.
type QuestionFilter struct {
	UserID uint64
	Status string
	Page   Page
}

type QuestionRepo struct {
	db *sql.DB
}

func NewQuestionRepo(db *sql.DB) *QuestionRepo { return &QuestionRepo{db: db} }

func scanQuestion(s rowScanner) (*model.Question, error) {
	var q model.Question
	if err := s.Scan(&q.ID, &q.UserID, &q.Title, &q.Content, &q.Answer, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

// Create stores a new PENDING question.
func (r *QuestionRepo) Create(ctx context.Context, q *model.Question) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO questions (user_id, title, content, answer, status) VALUES (?, ?, ?, '', ?)",
		q.UserID, q.Title, q.Content, model.QuestionPending)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*q = *created
	return nil
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uint64) (*model.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx, "SELECT "+questionColumns+" FROM questions WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// GetByIDAndUser returns ErrForbidden when the question exists but belongs
// to someone else.
func (r *QuestionRepo) GetByIDAndUser(ctx context.Context, id, userID uint64) (*model.Question, error) {
	q, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != userID {
		return nil, ErrForbidden
	}
	return q, nil
}

func (r *QuestionRepo) List(ctx context.Context, f QuestionFilter) ([]*model.Question, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE "+cond+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*model.Question, 0, f.Page.Limit())
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// Answer stores the administrator's answer and moves the question to ANSWERED.
// Closed questions cannot be answered (ErrConflict).
func (r *QuestionRepo) Answer(ctx context.Context, id uint64, answer string) error {
	q, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if q.Status == model.QuestionClosed {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE questions SET answer = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		answer, model.QuestionAnswered, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// Close marks a question CLOSED; only its author may do so.
func (r *QuestionRepo) Close(ctx context.Context, id, userID uint64) error {
	if _, err := r.GetByIDAndUser(ctx, id, userID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE questions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", model.QuestionClosed, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (r *QuestionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
