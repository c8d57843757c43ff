package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// userUpdatableColumns は部分更新で変更を許可するカラムの一覧。
// ここに無いキーは無視する。パスワードは"password"キーで受け取り、
// ハッシュ化してpassword_hashへ格納する。
var userUpdatableColumns = []string{
	"full_name", "phone", "address", "city", "state", "pincode",
	"email", "is_verified", "is_active",
}

type userRepo struct {
	db   *database.DB
	hash func(string) (string, error)
}

// NewUserRepo はユーザーリポジトリを生成する。
// hashは平文パスワードからハッシュを得る関数（bcrypt等）。
func NewUserRepo(db *database.DB, hash func(string) (string, error)) UserRepository {
	return &userRepo{db: db, hash: hash}
}

func (r *userRepo) Create(ctx context.Context, u *model.User, password string) (int64, error) {
	hashed, err := r.hash(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	id, err := r.db.InsertID(ctx,
		`INSERT INTO users (username, email, password_hash, role, full_name, phone, address, city, state, pincode, is_verified, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, hashed, string(u.Role), u.FullName,
		u.Phone, u.Address, u.City, u.State, u.Pincode,
		u.IsVerified, u.IsActive, now, now,
	)
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to create user", err)
	}
	return id, nil
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, `SELECT * FROM users WHERE id = ?`, id)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `SELECT * FROM users WHERE username = ?`, username)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT * FROM users WHERE email = ?`, email)
}

func (r *userRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.findOne(ctx, `SELECT * FROM users WHERE google_id = ?`, googleID)
}

func (r *userRepo) LinkGoogleID(ctx context.Context, userID int64, googleID string) error {
	n, err := r.db.Exec(ctx,
		`UPDATE users SET google_id = ?, updated_at = ? WHERE id = ?`,
		googleID, time.Now().UTC(), userID)
	if err != nil {
		return normalizeError(r.db.Dialect(), "failed to link google id", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to link google id: %w", model.ErrNotFound)
	}
	return nil
}

func (r *userRepo) findOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	row, err := r.db.GetMap(ctx, query, args...)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to find user", err)
	}
	if row == nil {
		return nil, nil
	}
	return userFromRow(row), nil
}

func (r *userRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	sets := []string{}
	args := []any{}
	for _, col := range userUpdatableColumns {
		if v, ok := fields[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	if v, ok := fields["password"]; ok {
		plain, _ := v.(string)
		hashed, err := r.hash(plain)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hashed)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE users SET " + joinSets(sets) + " WHERE id = ?"
	n, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return normalizeError(r.db.Dialect(), "failed to update user", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update user: %w", model.ErrNotFound)
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, f UserFilter) ([]*model.User, int64, error) {
	w := &whereBuilder{}
	if f.Role != "" {
		w.add("role = ?", string(f.Role))
	}
	if f.IsActive != nil {
		w.add("is_active = ?", *f.IsActive)
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		w.add("(LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?)", p, p, p)
	}

	total, err := r.db.GetInt(ctx, "SELECT COUNT(*) FROM users"+w.clause(), w.args...)
	if err != nil {
		return nil, 0, normalizeError(r.db.Dialect(), "failed to count users", err)
	}

	page, perPage := ClampPagination(f.Page, f.PerPage)
	args := append(append([]any{}, w.args...), perPage, (page-1)*perPage)
	rows, err := r.db.SelectMaps(ctx,
		"SELECT * FROM users"+w.clause()+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, 0, normalizeError(r.db.Dialect(), "failed to list users", err)
	}

	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, userFromRow(row))
	}
	return users, total, nil
}

func userFromRow(row *database.RowMap) *model.User {
	return &model.User{
		ID:           row.Int64("id"),
		Username:     row.String("username"),
		Email:        row.String("email"),
		PasswordHash: row.String("password_hash"),
		Role:         model.Role(row.String("role")),
		FullName:     row.String("full_name"),
		Phone:        row.String("phone"),
		Address:      row.String("address"),
		City:         row.String("city"),
		State:        row.String("state"),
		Pincode:      row.String("pincode"),
		IsVerified:   row.Bool("is_verified"),
		IsActive:     row.Bool("is_active"),
		GoogleID:     row.String("google_id"),
		CreatedAt:    row.Time("created_at"),
		UpdatedAt:    row.Time("updated_at"),
	}
}
