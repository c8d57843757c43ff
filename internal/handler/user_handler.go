package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile は自分のプロフィールを取得する。
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	// UpdateProfile はプロフィールを部分更新する。
	UpdateProfile(ctx context.Context, userID int64, upd user.ProfileUpdate) (*model.User, error)
	// ChangePassword は現在のパスワードを検証してから新しいパスワードへ変更する。
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// UserHandler はユーザープロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	City     *string `json:"city"`
	State    *string `json:"state"`
	Pincode  *string `json:"pincode"`
}

// changePasswordRequest はパスワード変更リクエストのボディ。
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// GetProfile は自分のプロフィールを取得する。
// GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	authUser, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	u, err := h.service.GetProfile(r.Context(), authUser.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// UpdateProfile は自分のプロフィールを部分更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	authUser, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), authUser.ID, user.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
		City:     req.City,
		State:    req.State,
		Pincode:  req.Pincode,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// ChangePassword はパスワード変更を処理する。
// PUT /api/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.service.ChangePassword(r.Context(), authUser.ID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
