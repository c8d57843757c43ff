package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/yoyakuba/internal/auth"
	"github.com/hitoshi/yoyakuba/internal/metrics"
	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録する。
	Register(ctx context.Context, req auth.RegisterRequest) (*model.User, error)
	// Login はパスワードを検証してワンタイムパスコードを発行する。
	Login(ctx context.Context, username, password string) (*auth.LoginChallenge, error)
	// VerifyOTP はワンタイムパスコードを検証してアクセストークンを発行する。
	VerifyOTP(ctx context.Context, userID int64, code string) (*auth.AuthResult, error)
	// GetLoginURL はGoogle OAuthの認証URLを生成する。
	GetLoginURL(state string) (string, error)
	// HandleGoogleCallback はGoogle OAuthコールバックを処理してトークンを発行する。
	HandleGoogleCallback(ctx context.Context, code string) (*auth.AuthResult, error)
	// CurrentUser は認証済みユーザーの現在の情報を返す。
	CurrentUser(ctx context.Context, userID int64) (*model.User, error)
}

// oauthStateCookie はOAuth CSRF対策のstateを保持するCookie名。
const oauthStateCookie = "oauth_state"

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics metrics.BusinessCollector
}

// NewAuthHandler はAuthHandlerを生成する。collectorはnilでもよい（メトリクス無効）。
func NewAuthHandler(service AuthServiceInterface, collector metrics.BusinessCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: collector,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// verifyOTPRequest はワンタイムパスコード検証リクエストのボディ。
type verifyOTPRequest struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Role(req.Role),
		FullName: req.FullName,
		Phone:    req.Phone,
		City:     req.City,
		State:    req.State,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUserRegistered(string(user.Role))
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login はパスワード認証とワンタイムパスコード発行を処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ユーザー名とパスワードを入力してください。"))
		return
	}

	challenge, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, challenge)
}

// VerifyOTP はワンタイムパスコードを検証してアクセストークンを返す。
// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.UserID <= 0 || req.Code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ユーザーIDとコードを指定してください。"))
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.UserID, req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GoogleLogin はGoogle OAuth認証URLへリダイレクトする。
// GET /api/auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	url, err := h.service.GetLoginURL(state)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback はGoogle OAuthコールバックを処理してアクセストークンを返す。
// GET /api/auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("stateパラメータが一致しません。最初からやり直してください。"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("認可コードがありません。"))
		return
	}

	// stateは使い捨て
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	result, err := h.service.HandleGoogleCallback(r.Context(), code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Me は認証済みユーザーの現在の情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	authUser, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), authUser.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
