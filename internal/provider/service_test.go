package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
)

// --- モック定義 ---

type mockProviderRepo struct {
	findByIDFn        func(ctx context.Context, id int64) (*model.Provider, error)
	findByUserIDFn    func(ctx context.Context, userID int64) (*model.Provider, error)
	updateFn          func(ctx context.Context, id int64, fields map[string]any) error
	searchFn          func(ctx context.Context, f repository.SearchFilter) ([]*model.ProviderWithUser, int64, error)
	specializationsFn func(ctx context.Context) ([]string, error)
	statsFn           func(ctx context.Context) (*model.ProviderStats, error)
}

func (m *mockProviderRepo) Create(_ context.Context, _ *model.Provider) (int64, error) {
	return 1, nil
}

func (m *mockProviderRepo) FindByID(ctx context.Context, id int64) (*model.Provider, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProviderRepo) FindByUserID(ctx context.Context, userID int64) (*model.Provider, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProviderRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return nil
}

func (m *mockProviderRepo) Search(ctx context.Context, f repository.SearchFilter) ([]*model.ProviderWithUser, int64, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, f)
	}
	return nil, 0, nil
}

func (m *mockProviderRepo) Specializations(ctx context.Context) ([]string, error) {
	if m.specializationsFn != nil {
		return m.specializationsFn(ctx)
	}
	return nil, nil
}

func (m *mockProviderRepo) Stats(ctx context.Context) (*model.ProviderStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return nil, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User, _ string) (int64, error) {
	return 1, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByGoogleID(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) LinkGoogleID(_ context.Context, _ int64, _ string) error {
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, _ int64, _ map[string]any) error {
	return nil
}

func (m *mockUserRepo) List(_ context.Context, _ repository.UserFilter) ([]*model.User, int64, error) {
	return nil, 0, nil
}

type mockReviewRepo struct {
	listByProviderFn func(ctx context.Context, providerID int64, limit int) ([]*model.Review, error)
}

func (m *mockReviewRepo) Create(_ context.Context, _ *model.Review) (int64, error) {
	return 1, nil
}

func (m *mockReviewRepo) FindByBookingID(_ context.Context, _ int64) (*model.Review, error) {
	return nil, nil
}

func (m *mockReviewRepo) ListByProvider(ctx context.Context, providerID int64, limit int) ([]*model.Review, error) {
	if m.listByProviderFn != nil {
		return m.listByProviderFn(ctx, providerID, limit)
	}
	return nil, nil
}

var (
	_ repository.ProviderRepository = (*mockProviderRepo)(nil)
	_ repository.UserRepository     = (*mockUserRepo)(nil)
	_ repository.ReviewRepository   = (*mockReviewRepo)(nil)
)

func newTestService(providers *mockProviderRepo, users *mockUserRepo, reviews *mockReviewRepo) *Service {
	return NewService(providers, users, reviews, security.NewContentSanitizer())
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError ではないエラー: %v", err)
	}
	return apiErr.Code
}

// --- テスト ---

func TestSearch_ClampsPaginationAndComputesTotalPages(t *testing.T) {
	var got repository.SearchFilter
	providers := &mockProviderRepo{
		searchFn: func(_ context.Context, f repository.SearchFilter) ([]*model.ProviderWithUser, int64, error) {
			got = f
			return []*model.ProviderWithUser{{}}, 45, nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	result, err := svc.Search(context.Background(), repository.SearchFilter{Page: 0, PerPage: 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.Page != 1 || got.PerPage != 20 {
		t.Errorf("リポジトリへ渡された page/per_page = %d/%d, want 1/20", got.Page, got.PerPage)
	}
	if result.Page != 1 || result.PerPage != 20 {
		t.Errorf("結果の page/per_page = %d/%d, want 1/20", result.Page, result.PerPage)
	}
	if result.Total != 45 {
		t.Errorf("Total = %d, want 45", result.Total)
	}
	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}
}

func TestSearch_TotalPagesExactDivision(t *testing.T) {
	providers := &mockProviderRepo{
		searchFn: func(_ context.Context, _ repository.SearchFilter) ([]*model.ProviderWithUser, int64, error) {
			return nil, 40, nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	result, err := svc.Search(context.Background(), repository.SearchFilter{Page: 2, PerPage: 20})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", result.TotalPages)
	}
}

func TestGetDetail_Success(t *testing.T) {
	providers := &mockProviderRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Provider, error) {
			return &model.Provider{ID: id, UserID: 7, Specialization: "family", IsActive: true}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "yamada", FullName: "山田 太郎", IsActive: true}, nil
		},
	}
	var gotLimit int
	reviews := &mockReviewRepo{
		listByProviderFn: func(_ context.Context, providerID int64, limit int) ([]*model.Review, error) {
			gotLimit = limit
			return []*model.Review{{ID: 1, ProviderID: providerID, Rating: 5, CreatedAt: time.Now()}}, nil
		},
	}
	svc := newTestService(providers, users, reviews)

	detail, err := svc.GetDetail(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}

	if detail.Provider.ID != 3 {
		t.Errorf("Provider.ID = %d, want 3", detail.Provider.ID)
	}
	if detail.User.Username != "yamada" {
		t.Errorf("User.Username = %q, want yamada", detail.User.Username)
	}
	if len(detail.Reviews) != 1 {
		t.Errorf("Reviews の件数 = %d, want 1", len(detail.Reviews))
	}
	if gotLimit != recentReviewLimit {
		t.Errorf("レビュー取得件数の上限 = %d, want %d", gotLimit, recentReviewLimit)
	}
}

func TestGetDetail_NotFound(t *testing.T) {
	svc := newTestService(&mockProviderRepo{}, &mockUserRepo{}, &mockReviewRepo{})

	_, err := svc.GetDetail(context.Background(), 999)
	if code := apiErrorCode(t, err); code != model.ErrCodeProviderNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeProviderNotFound)
	}
}

func TestGetDetail_InactiveProfileHidden(t *testing.T) {
	providers := &mockProviderRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Provider, error) {
			return &model.Provider{ID: id, UserID: 7, IsActive: false}, nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	_, err := svc.GetDetail(context.Background(), 3)
	if code := apiErrorCode(t, err); code != model.ErrCodeProviderNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeProviderNotFound)
	}
}

func TestUpdateProfile_SanitizesFreeText(t *testing.T) {
	var gotFields map[string]any
	providers := &mockProviderRepo{
		findByUserIDFn: func(_ context.Context, userID int64) (*model.Provider, error) {
			return &model.Provider{ID: 10, UserID: userID, IsActive: true}, nil
		},
		findByIDFn: func(_ context.Context, id int64) (*model.Provider, error) {
			return &model.Provider{ID: id}, nil
		},
		updateFn: func(_ context.Context, _ int64, fields map[string]any) error {
			gotFields = fields
			return nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	bio := "  経験豊富です<script>alert(1)</script>  "
	fee := 500.0
	_, err := svc.UpdateProfile(context.Background(), 7, ProfileUpdate{Bio: &bio, ConsultationFee: &fee})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	if got := gotFields["bio"]; got != "経験豊富です" {
		t.Errorf("bio = %q, want %q", got, "経験豊富です")
	}
	if got := gotFields["consultation_fee"]; got != 500.0 {
		t.Errorf("consultation_fee = %v, want 500", got)
	}
	if _, ok := gotFields["rating"]; ok {
		t.Error("rating がフィールドに含まれている")
	}
}

func TestUpdateProfile_Validation(t *testing.T) {
	providers := &mockProviderRepo{
		findByUserIDFn: func(_ context.Context, userID int64) (*model.Provider, error) {
			return &model.Provider{ID: 10, UserID: userID}, nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	negYears := -1
	negFee := -100.0
	negRate := -5.0
	tests := []struct {
		name string
		upd  ProfileUpdate
	}{
		{"経験年数が負", ProfileUpdate{ExperienceYears: &negYears}},
		{"相談料金が負", ProfileUpdate{ConsultationFee: &negFee}},
		{"時間単価が負", ProfileUpdate{HourlyRate: &negRate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), 7, tt.upd)
			if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
				t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeValidation)
			}
		})
	}
}

func TestUpdateProfile_NoProfile(t *testing.T) {
	svc := newTestService(&mockProviderRepo{}, &mockUserRepo{}, &mockReviewRepo{})

	bio := "x"
	_, err := svc.UpdateProfile(context.Background(), 7, ProfileUpdate{Bio: &bio})
	if code := apiErrorCode(t, err); code != model.ErrCodeProviderNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeProviderNotFound)
	}
}

func TestUpdateProfile_EmptyUpdateSkipsWrite(t *testing.T) {
	updated := false
	providers := &mockProviderRepo{
		findByUserIDFn: func(_ context.Context, userID int64) (*model.Provider, error) {
			return &model.Provider{ID: 10, UserID: userID}, nil
		},
		findByIDFn: func(_ context.Context, id int64) (*model.Provider, error) {
			return &model.Provider{ID: id}, nil
		},
		updateFn: func(_ context.Context, _ int64, _ map[string]any) error {
			updated = true
			return nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	if _, err := svc.UpdateProfile(context.Background(), 7, ProfileUpdate{}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated {
		t.Error("変更なしの入力でUpdateが呼ばれた")
	}
}

func TestSetVerified(t *testing.T) {
	var gotFields map[string]any
	providers := &mockProviderRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Provider, error) {
			return &model.Provider{ID: id, IsActive: true}, nil
		},
		updateFn: func(_ context.Context, _ int64, fields map[string]any) error {
			gotFields = fields
			return nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	if _, err := svc.SetVerified(context.Background(), 3, true); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if got := gotFields["is_verified"]; got != true {
		t.Errorf("is_verified = %v, want true", got)
	}
	if len(gotFields) != 1 {
		t.Errorf("更新フィールド数 = %d, want 1", len(gotFields))
	}
}

func TestSetVerified_NotFound(t *testing.T) {
	svc := newTestService(&mockProviderRepo{}, &mockUserRepo{}, &mockReviewRepo{})

	_, err := svc.SetVerified(context.Background(), 999, true)
	if code := apiErrorCode(t, err); code != model.ErrCodeProviderNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeProviderNotFound)
	}
}

func TestSpecializationsAndStats(t *testing.T) {
	providers := &mockProviderRepo{
		specializationsFn: func(_ context.Context) ([]string, error) {
			return []string{"corporate", "family"}, nil
		},
		statsFn: func(_ context.Context) (*model.ProviderStats, error) {
			return &model.ProviderStats{TotalProviders: 2, VerifiedProviders: 1, AverageRating: 4.5}, nil
		},
	}
	svc := newTestService(providers, &mockUserRepo{}, &mockReviewRepo{})

	specs, err := svc.Specializations(context.Background())
	if err != nil {
		t.Fatalf("Specializations: %v", err)
	}
	if len(specs) != 2 {
		t.Errorf("専門分野の件数 = %d, want 2", len(specs))
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalProviders != 2 || stats.VerifiedProviders != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
