package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
)

// AdminUserServiceInterface は管理者ハンドラーが必要とするユーザー操作のインターフェース。
type AdminUserServiceInterface interface {
	// List はフィルタ条件付きでユーザー一覧と総件数を返す。
	List(ctx context.Context, f repository.UserFilter) ([]*model.User, int64, error)
	// SetActive はアカウントの有効化・無効化を行う。
	SetActive(ctx context.Context, userID int64, active bool) error
}

// AdminProviderServiceInterface は管理者ハンドラーが必要とするプロバイダー操作のインターフェース。
type AdminProviderServiceInterface interface {
	// SetVerified はプロバイダーの認証済みマークの付け外しを行う。
	SetVerified(ctx context.Context, profileID int64, verified bool) (*model.Provider, error)
}

// AdminBookingServiceInterface は管理者ハンドラーが必要とする予約操作のインターフェース。
type AdminBookingServiceInterface interface {
	// ListAll は全予約の一覧を返す。
	ListAll(ctx context.Context, f repository.BookingFilter) ([]*model.Booking, int64, error)
}

// AdminHandler は管理者向け操作のHTTPハンドラー。
// ルーティング側でRequireRole(admin)を通過したリクエストのみ到達する。
type AdminHandler struct {
	users     AdminUserServiceInterface
	providers AdminProviderServiceInterface
	bookings  AdminBookingServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(
	users AdminUserServiceInterface,
	providers AdminProviderServiceInterface,
	bookings AdminBookingServiceInterface,
) *AdminHandler {
	return &AdminHandler{
		users:     users,
		providers: providers,
		bookings:  bookings,
	}
}

// setActiveRequest はアカウント有効化・無効化リクエストのボディ。
type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// setVerifiedRequest はプロバイダー認証マーク変更リクエストのボディ。
type setVerifiedRequest struct {
	IsVerified bool `json:"is_verified"`
}

// ListUsers はユーザー一覧を返す。
// GET /api/admin/users?role=&is_active=&q=&page=&per_page=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.UserFilter{
		Role:    model.Role(q.Get("role")),
		Query:   q.Get("q"),
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true" || v == "1"
		f.IsActive = &active
	}

	users, total, err := h.users.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, perPage := repository.ClampPagination(f.Page, f.PerPage)
	writeJSON(w, http.StatusOK, listResponse[*model.User]{
		Items:   users,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

// SetUserActive はアカウントの有効化・無効化を行う。
// PUT /api/admin/users/{id}/active
func (h *AdminHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ユーザーIDは数値で指定してください。"))
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.users.SetActive(r.Context(), userID, req.IsActive); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetProviderVerified はプロバイダーの認証済みマークを変更する。
// PUT /api/admin/providers/{id}/verify
func (h *AdminHandler) SetProviderVerified(w http.ResponseWriter, r *http.Request) {
	profileID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("プロバイダーIDは数値で指定してください。"))
		return
	}

	var req setVerifiedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	p, err := h.providers.SetVerified(r.Context(), profileID, req.IsVerified)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// ListBookings は全予約の一覧を返す。
// GET /api/admin/bookings?status=&page=&per_page=
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	f := repository.BookingFilter{
		Status:  model.BookingStatus(r.URL.Query().Get("status")),
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	}
	if f.Status != "" && !f.Status.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidStatusError(string(f.Status)))
		return
	}

	bookings, total, err := h.bookings.ListAll(r.Context(), f)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, perPage := repository.ClampPagination(f.Page, f.PerPage)
	writeJSON(w, http.StatusOK, listResponse[*model.Booking]{
		Items:   bookings,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}
