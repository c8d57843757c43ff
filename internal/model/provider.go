package model

import "time"

// Provider はプロバイダー（専門家）のプロフィールを表す。
// RatingとTotalReviewsは非正規化された集計値であり、
// 対応するレビュー行の算術平均・件数と常に一致させる（レビュー登録と同一トランザクションで更新）。
type Provider struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Specialization  string    `json:"specialization,omitempty"`
	ExperienceYears int       `json:"experience_years"`
	LicenseNumber   string    `json:"license_number,omitempty"`
	Qualification   string    `json:"qualification,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	ConsultationFee float64   `json:"consultation_fee"`
	HourlyRate      float64   `json:"hourly_rate"`
	Rating          float64   `json:"rating"`
	TotalReviews    int       `json:"total_reviews"`
	IsVerified      bool      `json:"is_verified"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProviderWithUser はプロバイダー検索結果の1件を表す。
// プロフィールと公開可能なユーザー情報を結合したもの。
type ProviderWithUser struct {
	Provider
	User PublicUser `json:"user"`
}

// PublicUser はプロバイダー検索等で公開されるユーザー情報のサブセット。
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

// ProviderStats はプロバイダー全体の統計情報。
type ProviderStats struct {
	TotalProviders    int     `json:"total_providers"`
	VerifiedProviders int     `json:"verified_providers"`
	AverageRating     float64 `json:"average_rating"`
}
