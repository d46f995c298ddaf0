package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/utils"
)

const userColumns = "id,email,username,phone,password_hash,role,is_active,created_at,updated_at"

var userUniqueIndexes = map[string]error{
	"uq_users_email":    ErrEmailExists,
	"uq_users_username": ErrUsernameExists,
}

// NewUser carries the fields needed to insert a user.  Password is plain
// text and hashed by Create.
type NewUser struct {
	Email    string
	Username string
	Phone    string
	Password string
	Role     string
}

// UserUpdate lists optional changes; nil fields are left untouched.
type UserUpdate struct {
	Username *string
	Phone    *string
	Role     *string
	IsActive *bool
}

// UserFilter narrows List.  Keyword matches email or username.
type UserFilter struct {
	Keyword string
	Role    string
	Page    Page
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Email, &u.Username, &u.Phone, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, nu NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	hash, err := utils.HashPassword(nu.Password, cost)
	if err != nil {
		return 0, err
	}
	role := nu.Role
	if role == "" {
		role = model.RoleUser
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, username, phone, password_hash, role) VALUES (?,?,?,?,?)",
		email, strings.TrimSpace(nu.Username), strings.TrimSpace(nu.Phone), hash, role)
	if err != nil {
		return 0, uniqueViolation(err, userUniqueIndexes)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// List returns one page of users ordered by id and the total match count.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		where = append(where, "(LOWER(email) LIKE ? OR LOWER(username) LIKE ?)")
		args = append(args, "%"+kw+"%", "%"+kw+"%")
	}
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, f.Page.Limit())
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update applies the non-nil fields of up.  It returns ErrNotFound when the
// user does not exist.
func (r *UserRepo) Update(ctx context.Context, id uint64, up UserUpdate) error {
	sets := []string{}
	args := []any{}
	if up.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, strings.TrimSpace(*up.Username))
	}
	if up.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, strings.TrimSpace(*up.Phone))
	}
	if up.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *up.Role)
	}
	if up.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *up.IsActive)
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	return r.execOne(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", append(args, id)...)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	return r.execOne(ctx, "UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", hash, id)
}

// Delete removes a user; dependent rows cascade in the schema.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	return r.execOne(ctx, "DELETE FROM users WHERE id = ?", id)
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return uniqueViolation(err, userUniqueIndexes)
	}
	return affectedOne(res)
}

// affectedOne converts a zero-row write into ErrNotFound.
func affectedOne(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
