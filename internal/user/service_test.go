package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
	updateFn   func(ctx context.Context, id int64, fields map[string]any) error
	listFn     func(ctx context.Context, f repository.UserFilter) ([]*model.User, int64, error)
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

func (m *mockUserRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, f repository.UserFilter) ([]*model.User, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, 0, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// mockVerifier は固定のパスワードのみ照合成功とみなす。
type mockVerifier struct {
	valid string
}

func (m *mockVerifier) Verify(_, plain string) bool {
	return plain == m.valid
}

func newTestService(users *mockUserRepo, verifier *mockVerifier) *Service {
	if verifier == nil {
		verifier = &mockVerifier{valid: "current-pass"}
	}
	return NewService(users, verifier, security.NewContentSanitizer())
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError ではないエラー: %v", err)
	}
	return apiErr.Code
}

func activeUser(id int64, role model.Role) *model.User {
	return &model.User{ID: id, Username: "yamada", Role: role, FullName: "山田 太郎", IsActive: true, PasswordHash: "hash"}
}

// --- テスト ---

func TestGetProfile_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil)

	_, err := svc.GetProfile(context.Background(), 999)
	if code := apiErrorCode(t, err); code != model.ErrCodeUserNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}

func TestUpdateProfile_SanitizesAndSkipsNilFields(t *testing.T) {
	var gotFields map[string]any
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return activeUser(id, model.RoleClient), nil
		},
		updateFn: func(_ context.Context, _ int64, fields map[string]any) error {
			gotFields = fields
			return nil
		},
	}
	svc := newTestService(users, nil)

	city := "  東京<script>x</script>  "
	_, err := svc.UpdateProfile(context.Background(), 1, ProfileUpdate{City: &city})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	if gotFields["city"] != "東京" {
		t.Errorf("city = %q, サニタイズされていない", gotFields["city"])
	}
	if _, ok := gotFields["full_name"]; ok {
		t.Error("nilのフィールドが更新対象に含まれている")
	}
}

func TestUpdateProfile_EmptyFullNameRejected(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil)

	empty := "   "
	_, err := svc.UpdateProfile(context.Background(), 1, ProfileUpdate{FullName: &empty})
	if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeValidation)
	}
}

func TestUpdateProfile_NoFieldsSkipsWrite(t *testing.T) {
	updated := false
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return activeUser(id, model.RoleClient), nil
		},
		updateFn: func(_ context.Context, _ int64, _ map[string]any) error {
			updated = true
			return nil
		},
	}
	svc := newTestService(users, nil)

	if _, err := svc.UpdateProfile(context.Background(), 1, ProfileUpdate{}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated {
		t.Error("変更なしの入力でUpdateが呼ばれた")
	}
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		next     string
		wantCode string
	}{
		{"成功", "current-pass", "new-password-1", ""},
		{"新パスワードが短い", "current-pass", "short", model.ErrCodeValidation},
		{"現在のパスワードが不一致", "wrong-pass", "new-password-1", model.ErrCodeInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotFields map[string]any
			users := &mockUserRepo{
				findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
					return activeUser(id, model.RoleClient), nil
				},
				updateFn: func(_ context.Context, _ int64, fields map[string]any) error {
					gotFields = fields
					return nil
				},
			}
			svc := newTestService(users, nil)

			err := svc.ChangePassword(context.Background(), 1, tt.current, tt.next)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ChangePassword: %v", err)
				}
				if gotFields["password"] != tt.next {
					t.Errorf(`fields["password"] = %v, want %q`, gotFields["password"], tt.next)
				}
				return
			}
			if code := apiErrorCode(t, err); code != tt.wantCode {
				t.Errorf("エラーコード = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestSetActive_AdminCannotBeDeactivated(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return activeUser(id, model.RoleAdmin), nil
		},
	}
	svc := newTestService(users, nil)

	err := svc.SetActive(context.Background(), 1, false)
	if code := apiErrorCode(t, err); code != model.ErrCodeAccessDenied {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeAccessDenied)
	}

	// 有効化の方向は許可される
	if err := svc.SetActive(context.Background(), 1, true); err != nil {
		t.Errorf("SetActive(true): %v", err)
	}
}

func TestSetActive_DeactivatesClient(t *testing.T) {
	var gotFields map[string]any
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return activeUser(id, model.RoleClient), nil
		},
		updateFn: func(_ context.Context, _ int64, fields map[string]any) error {
			gotFields = fields
			return nil
		},
	}
	svc := newTestService(users, nil)

	if err := svc.SetActive(context.Background(), 1, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if gotFields["is_active"] != false {
		t.Errorf(`fields["is_active"] = %v, want false`, gotFields["is_active"])
	}
}
