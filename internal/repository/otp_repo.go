package repository

import (
	"context"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

type otpRepo struct {
	db *database.DB
}

// NewOTPRepo はワンタイムパスコードリポジトリを生成する。
func NewOTPRepo(db *database.DB) OTPRepository {
	return &otpRepo{db: db}
}

// Create は同一ユーザーの未使用コードを無効化してから新しいコードを登録する。
// どちらか片方だけが反映されることはない。
func (r *otpRepo) Create(ctx context.Context, o *model.OTP) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE otps SET is_used = ? WHERE user_id = ? AND is_used = ?`,
			true, o.UserID, false,
		); err != nil {
			return err
		}

		newID, err := tx.InsertID(ctx,
			`INSERT INTO otps (user_id, otp_code, expires_at, is_used, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			o.UserID, o.Code, o.ExpiresAt.UTC(), false, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		id = newID
		return nil
	})
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to create otp", err)
	}
	return id, nil
}

func (r *otpRepo) FindValid(ctx context.Context, userID int64, code string, now time.Time) (*model.OTP, error) {
	row, err := r.db.GetMap(ctx,
		`SELECT * FROM otps
		 WHERE user_id = ? AND otp_code = ? AND is_used = ? AND expires_at > ?
		 ORDER BY id DESC`,
		userID, code, false, now.UTC())
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to find otp", err)
	}
	if row == nil {
		return nil, nil
	}
	return otpFromRow(row), nil
}

func (r *otpRepo) MarkUsed(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE otps SET is_used = ? WHERE id = ?`, true, id)
	if err != nil {
		return normalizeError(r.db.Dialect(), "failed to mark otp used", err)
	}
	return nil
}

func (r *otpRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.db.Exec(ctx, `DELETE FROM otps WHERE expires_at < ?`, before.UTC())
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to delete expired otps", err)
	}
	return n, nil
}

func otpFromRow(row *database.RowMap) *model.OTP {
	return &model.OTP{
		ID:        row.Int64("id"),
		UserID:    row.Int64("user_id"),
		Code:      row.String("otp_code"),
		ExpiresAt: row.Time("expires_at"),
		IsUsed:    row.Bool("is_used"),
		CreatedAt: row.Time("created_at"),
	}
}
