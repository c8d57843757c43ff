package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/provider"
	"github.com/hitoshi/yoyakuba/internal/repository"
)

// ProviderServiceInterface はプロバイダーハンドラーが必要とするサービスインターフェース。
type ProviderServiceInterface interface {
	// Search は条件に合致するアクティブなプロバイダーを検索する。
	Search(ctx context.Context, f repository.SearchFilter) (*provider.SearchResult, error)
	// GetDetail はプロバイダーの詳細（プロフィール、公開ユーザー情報、直近レビュー）を返す。
	GetDetail(ctx context.Context, profileID int64) (*provider.Detail, error)
	// GetOwnProfile はユーザー自身のプロバイダープロフィールを返す。
	GetOwnProfile(ctx context.Context, userID int64) (*model.Provider, error)
	// UpdateProfile は自分のプロバイダープロフィールを部分更新する。
	UpdateProfile(ctx context.Context, userID int64, upd provider.ProfileUpdate) (*model.Provider, error)
	// Specializations は登録済みの専門分野一覧を返す。
	Specializations(ctx context.Context) ([]string, error)
	// Stats はアクティブなプロバイダーの統計情報を返す。
	Stats(ctx context.Context) (*model.ProviderStats, error)
}

// ProviderHandler はプロバイダー検索・プロフィール管理のHTTPハンドラー。
type ProviderHandler struct {
	service ProviderServiceInterface
}

// NewProviderHandler はProviderHandlerを生成する。
func NewProviderHandler(service ProviderServiceInterface) *ProviderHandler {
	return &ProviderHandler{service: service}
}

// updateProviderProfileRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProviderProfileRequest struct {
	Specialization  *string  `json:"specialization"`
	ExperienceYears *int     `json:"experience_years"`
	LicenseNumber   *string  `json:"license_number"`
	Qualification   *string  `json:"qualification"`
	Bio             *string  `json:"bio"`
	ConsultationFee *float64 `json:"consultation_fee"`
	HourlyRate      *float64 `json:"hourly_rate"`
}

// Search はプロバイダーを検索する。
// GET /api/providers
func (h *ProviderHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.SearchFilter{
		Query:          q.Get("q"),
		Role:           model.Role(q.Get("role")),
		Specialization: q.Get("specialization"),
		City:           q.Get("city"),
		State:          q.Get("state"),
		MinRating:      queryFloat(r, "min_rating"),
		MinFee:         queryFloat(r, "min_fee"),
		MaxFee:         queryFloat(r, "max_fee"),
		VerifiedOnly:   queryBool(r, "verified"),
		SortBy:         q.Get("sort_by"),
		SortOrder:      q.Get("sort_order"),
		Page:           queryInt(r, "page"),
		PerPage:        queryInt(r, "per_page"),
	}

	result, err := h.service.Search(r.Context(), f)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetDetail はプロバイダー詳細を取得する。
// GET /api/providers/{id}
func (h *ProviderHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	profileID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("プロバイダーIDは数値で指定してください。"))
		return
	}

	detail, err := h.service.GetDetail(r.Context(), profileID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Specializations は登録済みの専門分野一覧を返す。
// GET /api/providers/specializations
func (h *ProviderHandler) Specializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.service.Specializations(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"specializations": specs})
}

// Stats はアクティブなプロバイダーの統計情報を返す。
// GET /api/providers/stats
func (h *ProviderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetOwnProfile は自分のプロバイダープロフィールを取得する。
// GET /api/providers/profile
func (h *ProviderHandler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	p, err := h.service.GetOwnProfile(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile は自分のプロバイダープロフィールを部分更新する。
// PUT /api/providers/profile
func (h *ProviderHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req updateProviderProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), user.ID, provider.ProfileUpdate{
		Specialization:  req.Specialization,
		ExperienceYears: req.ExperienceYears,
		LicenseNumber:   req.LicenseNumber,
		Qualification:   req.Qualification,
		Bio:             req.Bio,
		ConsultationFee: req.ConsultationFee,
		HourlyRate:      req.HourlyRate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}
