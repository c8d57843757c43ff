// Package provider はプロバイダー検索・プロフィール管理のドメインロジックを提供する。
package provider

import (
	"context"
	"fmt"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
)

// recentReviewLimit は詳細画面に含める直近レビューの件数。
const recentReviewLimit = 10

// SearchResult はプロバイダー検索のレスポンス。
// PageとPerPageは丸め後の実効値を返す。
type SearchResult struct {
	Providers  []*model.ProviderWithUser `json:"providers"`
	Total      int64                     `json:"total"`
	Page       int                       `json:"page"`
	PerPage    int                       `json:"per_page"`
	TotalPages int                       `json:"total_pages"`
}

// Detail はプロバイダー詳細のレスポンス。
type Detail struct {
	Provider *model.Provider  `json:"provider"`
	User     model.PublicUser `json:"user"`
	Reviews  []*model.Review  `json:"recent_reviews"`
}

// ProfileUpdate はプロバイダープロフィール部分更新の入力。
// nilのフィールドは変更しない。
type ProfileUpdate struct {
	Specialization  *string
	ExperienceYears *int
	LicenseNumber   *string
	Qualification   *string
	Bio             *string
	ConsultationFee *float64
	HourlyRate      *float64
}

// Service はプロバイダー管理のサービス層。
type Service struct {
	providers repository.ProviderRepository
	users     repository.UserRepository
	reviews   repository.ReviewRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	providers repository.ProviderRepository,
	users repository.UserRepository,
	reviews repository.ReviewRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		providers: providers,
		users:     users,
		reviews:   reviews,
		sanitizer: sanitizer,
	}
}

// Search は条件に合致するアクティブなプロバイダーを検索する。
// ページ番号とページサイズは有効範囲へ丸めてから適用する。
func (s *Service) Search(ctx context.Context, f repository.SearchFilter) (*SearchResult, error) {
	f.Page, f.PerPage = repository.ClampPagination(f.Page, f.PerPage)

	providers, total, err := s.providers.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("プロバイダー検索に失敗しました: %w", err)
	}

	totalPages := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	return &SearchResult{
		Providers:  providers,
		Total:      total,
		Page:       f.Page,
		PerPage:    f.PerPage,
		TotalPages: totalPages,
	}, nil
}

// GetDetail はプロバイダーの詳細（プロフィール、公開ユーザー情報、直近レビュー）を返す。
func (s *Service) GetDetail(ctx context.Context, profileID int64) (*Detail, error) {
	p, err := s.providers.FindByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("プロバイダーの取得に失敗しました: %w", err)
	}
	if p == nil || !p.IsActive {
		return nil, model.NewProviderNotFoundError()
	}

	u, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, model.NewProviderNotFoundError()
	}

	reviews, err := s.reviews.ListByProvider(ctx, p.ID, recentReviewLimit)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}

	return &Detail{
		Provider: p,
		User: model.PublicUser{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			FullName: u.FullName,
			Phone:    u.Phone,
			Address:  u.Address,
			City:     u.City,
			State:    u.State,
			Pincode:  u.Pincode,
		},
		Reviews: reviews,
	}, nil
}

// GetOwnProfile はユーザー自身のプロバイダープロフィールを返す。
func (s *Service) GetOwnProfile(ctx context.Context, userID int64) (*model.Provider, error) {
	p, err := s.providers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロバイダーの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProviderNotFoundError()
	}
	return p, nil
}

// UpdateProfile は自分のプロバイダープロフィールを部分更新する。
// 指定されたフィールドのみ変更し、自由記述フィールドはサニタイズしてから保存する。
// 集計値（rating、total_reviews）はこの経路では変更できない。
func (s *Service) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*model.Provider, error) {
	p, err := s.providers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロバイダーの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProviderNotFoundError()
	}

	if upd.ExperienceYears != nil && *upd.ExperienceYears < 0 {
		return nil, model.NewValidationError("経験年数は0以上で指定してください。")
	}
	if upd.ConsultationFee != nil && *upd.ConsultationFee < 0 {
		return nil, model.NewValidationError("相談料金は0以上で指定してください。")
	}
	if upd.HourlyRate != nil && *upd.HourlyRate < 0 {
		return nil, model.NewValidationError("時間単価は0以上で指定してください。")
	}

	fields := map[string]any{}
	setText := func(col string, v *string) {
		if v != nil {
			fields[col] = s.sanitizer.Sanitize(*v)
		}
	}
	setText("specialization", upd.Specialization)
	setText("license_number", upd.LicenseNumber)
	setText("qualification", upd.Qualification)
	setText("bio", upd.Bio)
	if upd.ExperienceYears != nil {
		fields["experience_years"] = *upd.ExperienceYears
	}
	if upd.ConsultationFee != nil {
		fields["consultation_fee"] = *upd.ConsultationFee
	}
	if upd.HourlyRate != nil {
		fields["hourly_rate"] = *upd.HourlyRate
	}

	if len(fields) > 0 {
		if err := s.providers.Update(ctx, p.ID, fields); err != nil {
			return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
		}
	}
	return s.providers.FindByID(ctx, p.ID)
}

// SetVerified は管理者によるプロバイダーの認証済みマークの付け外しを行う。
func (s *Service) SetVerified(ctx context.Context, profileID int64, verified bool) (*model.Provider, error) {
	p, err := s.providers.FindByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("プロバイダーの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProviderNotFoundError()
	}

	if err := s.providers.Update(ctx, p.ID, map[string]any{"is_verified": verified}); err != nil {
		return nil, fmt.Errorf("認証状態の更新に失敗しました: %w", err)
	}
	return s.providers.FindByID(ctx, p.ID)
}

// Specializations は登録済みの専門分野一覧を返す。
func (s *Service) Specializations(ctx context.Context) ([]string, error) {
	specs, err := s.providers.Specializations(ctx)
	if err != nil {
		return nil, fmt.Errorf("専門分野一覧の取得に失敗しました: %w", err)
	}
	return specs, nil
}

// Stats はアクティブなプロバイダーの統計情報を返す。
func (s *Service) Stats(ctx context.Context) (*model.ProviderStats, error) {
	stats, err := s.providers.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("統計情報の取得に失敗しました: %w", err)
	}
	return stats, nil
}
