// Package user はユーザープロフィール管理と管理者向けユーザー操作の
// ドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
)

// PasswordVerifier は格納済みハッシュと平文パスワードの照合インターフェース。
type PasswordVerifier interface {
	Verify(hash, plain string) bool
}

// ProfileUpdate はプロフィール部分更新の入力。
// nilのフィールドは変更しない。
type ProfileUpdate struct {
	FullName *string
	Phone    *string
	Address  *string
	City     *string
	State    *string
	Pincode  *string
}

// Service はユーザー管理のサービス層。
type Service struct {
	users     repository.UserRepository
	verifier  PasswordVerifier
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	verifier PasswordVerifier,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		users:     users,
		verifier:  verifier,
		sanitizer: sanitizer,
	}
}

// GetProfile は自分のプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はプロフィールを部分更新する。
// 指定されたフィールドのみ変更し、自由記述フィールドはサニタイズしてから保存する。
func (s *Service) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*model.User, error) {
	fields := map[string]any{}
	setText := func(col string, v *string) {
		if v != nil {
			fields[col] = s.sanitizer.Sanitize(*v)
		}
	}
	setText("full_name", upd.FullName)
	setText("phone", upd.Phone)
	setText("address", upd.Address)
	setText("city", upd.City)
	setText("state", upd.State)
	setText("pincode", upd.Pincode)

	if v, ok := fields["full_name"].(string); ok && v == "" {
		return nil, model.NewValidationError("氏名を空にすることはできません。")
	}

	if len(fields) > 0 {
		if err := s.users.Update(ctx, userID, fields); err != nil {
			return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
		}
	}
	return s.GetProfile(ctx, userID)
}

// ChangePassword は現在のパスワードを検証してから新しいパスワードへ変更する。
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < 8 {
		return model.NewValidationError("パスワードは8文字以上で指定してください。")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if !s.verifier.Verify(user.PasswordHash, current) {
		return model.NewInvalidCredentialsError()
	}

	if err := s.users.Update(ctx, userID, map[string]any{"password": next}); err != nil {
		return fmt.Errorf("パスワードの変更に失敗しました: %w", err)
	}

	slog.Info("password changed", slog.Int64("user_id", userID))
	return nil
}

// List は管理者向けのユーザー一覧を返す。
func (s *Service) List(ctx context.Context, f repository.UserFilter) ([]*model.User, int64, error) {
	users, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, total, nil
}

// SetActive は管理者によるアカウントの有効化・無効化を行う。
// 管理者アカウント自体は無効化できない。
func (s *Service) SetActive(ctx context.Context, userID int64, active bool) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.Role == model.RoleAdmin && !active {
		return model.NewAccessDeniedError()
	}

	if err := s.users.Update(ctx, userID, map[string]any{"is_active": active}); err != nil {
		return fmt.Errorf("アカウント状態の更新に失敗しました: %w", err)
	}

	slog.Info("account activation changed",
		slog.Int64("user_id", userID),
		slog.Bool("is_active", active),
	)
	return nil
}
