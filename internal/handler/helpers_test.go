package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/yoyakuba/internal/auth"
	"github.com/hitoshi/yoyakuba/internal/booking"
	"github.com/hitoshi/yoyakuba/internal/message"
	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/provider"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/user"
)

// --- サービスモック ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, req auth.RegisterRequest) (*model.User, error)
	loginFn          func(ctx context.Context, username, password string) (*auth.LoginChallenge, error)
	verifyOTPFn      func(ctx context.Context, userID int64, code string) (*auth.AuthResult, error)
	getLoginURLFn    func(state string) (string, error)
	googleCallbackFn func(ctx context.Context, code string) (*auth.AuthResult, error)
	currentUserFn    func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*model.User, error) {
	return m.registerFn(ctx, req)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*auth.LoginChallenge, error) {
	return m.loginFn(ctx, username, password)
}

func (m *mockAuthService) VerifyOTP(ctx context.Context, userID int64, code string) (*auth.AuthResult, error) {
	return m.verifyOTPFn(ctx, userID, code)
}

func (m *mockAuthService) GetLoginURL(state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://accounts.google.example/auth?state=" + state, nil
}

func (m *mockAuthService) HandleGoogleCallback(ctx context.Context, code string) (*auth.AuthResult, error) {
	return m.googleCallbackFn(ctx, code)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	return m.currentUserFn(ctx, userID)
}

type mockUserService struct {
	getProfileFn     func(ctx context.Context, userID int64) (*model.User, error)
	updateProfileFn  func(ctx context.Context, userID int64, upd user.ProfileUpdate) (*model.User, error)
	changePasswordFn func(ctx context.Context, userID int64, current, next string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return m.getProfileFn(ctx, userID)
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID int64, upd user.ProfileUpdate) (*model.User, error) {
	return m.updateProfileFn(ctx, userID, upd)
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	return m.changePasswordFn(ctx, userID, current, next)
}

type mockProviderService struct {
	searchFn          func(ctx context.Context, f repository.SearchFilter) (*provider.SearchResult, error)
	getDetailFn       func(ctx context.Context, profileID int64) (*provider.Detail, error)
	getOwnProfileFn   func(ctx context.Context, userID int64) (*model.Provider, error)
	updateProfileFn   func(ctx context.Context, userID int64, upd provider.ProfileUpdate) (*model.Provider, error)
	specializationsFn func(ctx context.Context) ([]string, error)
	statsFn           func(ctx context.Context) (*model.ProviderStats, error)
}

func (m *mockProviderService) Search(ctx context.Context, f repository.SearchFilter) (*provider.SearchResult, error) {
	return m.searchFn(ctx, f)
}

func (m *mockProviderService) GetDetail(ctx context.Context, profileID int64) (*provider.Detail, error) {
	return m.getDetailFn(ctx, profileID)
}

func (m *mockProviderService) GetOwnProfile(ctx context.Context, userID int64) (*model.Provider, error) {
	return m.getOwnProfileFn(ctx, userID)
}

func (m *mockProviderService) UpdateProfile(ctx context.Context, userID int64, upd provider.ProfileUpdate) (*model.Provider, error) {
	return m.updateProfileFn(ctx, userID, upd)
}

func (m *mockProviderService) Specializations(ctx context.Context) ([]string, error) {
	return m.specializationsFn(ctx)
}

func (m *mockProviderService) Stats(ctx context.Context) (*model.ProviderStats, error) {
	return m.statsFn(ctx)
}

type mockBookingService struct {
	createFn       func(ctx context.Context, actor booking.Actor, req booking.CreateRequest) (*model.Booking, error)
	getFn          func(ctx context.Context, actor booking.Actor, bookingID int64) (*model.Booking, error)
	listForUserFn  func(ctx context.Context, actor booking.Actor) ([]*model.Booking, error)
	updateStatusFn func(ctx context.Context, actor booking.Actor, bookingID int64, upd booking.StatusUpdate) (*model.Booking, error)
	createReviewFn func(ctx context.Context, actor booking.Actor, bookingID int64, rating int, comment string) (*model.Review, error)
}

func (m *mockBookingService) Create(ctx context.Context, actor booking.Actor, req booking.CreateRequest) (*model.Booking, error) {
	return m.createFn(ctx, actor, req)
}

func (m *mockBookingService) Get(ctx context.Context, actor booking.Actor, bookingID int64) (*model.Booking, error) {
	return m.getFn(ctx, actor, bookingID)
}

func (m *mockBookingService) ListForUser(ctx context.Context, actor booking.Actor) ([]*model.Booking, error) {
	return m.listForUserFn(ctx, actor)
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, actor booking.Actor, bookingID int64, upd booking.StatusUpdate) (*model.Booking, error) {
	return m.updateStatusFn(ctx, actor, bookingID, upd)
}

func (m *mockBookingService) CreateReview(ctx context.Context, actor booking.Actor, bookingID int64, rating int, comment string) (*model.Review, error) {
	return m.createReviewFn(ctx, actor, bookingID, rating, comment)
}

type mockMessageService struct {
	sendFn     func(ctx context.Context, senderID int64, req message.SendRequest) (*model.Message, error)
	listFn     func(ctx context.Context, userID, bookingID int64) ([]*model.Message, error)
	markReadFn func(ctx context.Context, messageID, userID int64) (*model.Message, error)
}

func (m *mockMessageService) Send(ctx context.Context, senderID int64, req message.SendRequest) (*model.Message, error) {
	return m.sendFn(ctx, senderID, req)
}

func (m *mockMessageService) List(ctx context.Context, userID, bookingID int64) ([]*model.Message, error) {
	return m.listFn(ctx, userID, bookingID)
}

func (m *mockMessageService) MarkRead(ctx context.Context, messageID, userID int64) (*model.Message, error) {
	return m.markReadFn(ctx, messageID, userID)
}

type mockAdminUserService struct {
	listFn      func(ctx context.Context, f repository.UserFilter) ([]*model.User, int64, error)
	setActiveFn func(ctx context.Context, userID int64, active bool) error
}

func (m *mockAdminUserService) List(ctx context.Context, f repository.UserFilter) ([]*model.User, int64, error) {
	return m.listFn(ctx, f)
}

func (m *mockAdminUserService) SetActive(ctx context.Context, userID int64, active bool) error {
	return m.setActiveFn(ctx, userID, active)
}

type mockAdminProviderService struct {
	setVerifiedFn func(ctx context.Context, profileID int64, verified bool) (*model.Provider, error)
}

func (m *mockAdminProviderService) SetVerified(ctx context.Context, profileID int64, verified bool) (*model.Provider, error) {
	return m.setVerifiedFn(ctx, profileID, verified)
}

type mockAdminBookingService struct {
	listAllFn func(ctx context.Context, f repository.BookingFilter) ([]*model.Booking, int64, error)
}

func (m *mockAdminBookingService) ListAll(ctx context.Context, f repository.BookingFilter) ([]*model.Booking, int64, error) {
	return m.listAllFn(ctx, f)
}

var (
	_ AuthServiceInterface          = (*mockAuthService)(nil)
	_ UserServiceInterface          = (*mockUserService)(nil)
	_ ProviderServiceInterface      = (*mockProviderService)(nil)
	_ BookingServiceInterface       = (*mockBookingService)(nil)
	_ MessageServiceInterface       = (*mockMessageService)(nil)
	_ AdminUserServiceInterface     = (*mockAdminUserService)(nil)
	_ AdminProviderServiceInterface = (*mockAdminProviderService)(nil)
	_ AdminBookingServiceInterface  = (*mockAdminBookingService)(nil)
)

// --- リクエスト構築ヘルパー ---

// jsonRequest はJSONボディ付きのテストリクエストを作る。
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("リクエストボディの生成に失敗: %v", err)
		}
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser は認証済みユーザーをリクエストコンテキストに注入する。
func asUser(req *http.Request, userID int64, role model.Role) *http.Request {
	ctx := middleware.ContextWithAuthUser(req.Context(), middleware.AuthUser{ID: userID, Role: role})
	return req.WithContext(ctx)
}

// decodeErrorBody は統一エラーフォーマットのレスポンスボディを読み取る。
func decodeErrorBody(t *testing.T, resp *http.Response) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスの解析に失敗: %v", err)
	}
	return body
}
