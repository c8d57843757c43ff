package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// testHash はテスト用の決定的なハッシュ関数。bcryptは遅いのでテストでは使わない。
func testHash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

type testEnv struct {
	db        *database.DB
	users     UserRepository
	providers ProviderRepository
	bookings  BookingRepository
	reviews   ReviewRepository
	messages  MessageRepository
	otps      OTPRepository
}

// newTestEnv は一時SQLiteデータベース上に全リポジトリを構築する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.InitSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	return &testEnv{
		db:        db,
		users:     NewUserRepo(db, testHash),
		providers: NewProviderRepo(db),
		bookings:  NewBookingRepo(db),
		reviews:   NewReviewRepo(db),
		messages:  NewMessageRepo(db),
		otps:      NewOTPRepo(db),
	}
}

// createUser はテスト用ユーザーを作成して採番IDを返す。
func (e *testEnv) createUser(t *testing.T, username string, role model.Role) int64 {
	t.Helper()

	id, err := e.users.Create(context.Background(), &model.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		FullName: "User " + username,
		IsActive: true,
	}, "secret-"+username)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return id
}

// createProvider はプロバイダーロールのユーザーとプロフィールを作成する。
// 返り値は (userID, profileID)。
func (e *testEnv) createProvider(t *testing.T, username string, p model.Provider) (int64, int64) {
	t.Helper()

	userID := e.createUser(t, username, model.RoleConsultant)
	p.UserID = userID
	if !p.IsActive {
		p.IsActive = true
	}
	profileID, err := e.providers.Create(context.Background(), &p)
	if err != nil {
		t.Fatalf("failed to create provider %s: %v", username, err)
	}
	return userID, profileID
}

// createBooking は指定ステータスの予約を作成して採番IDを返す。
func (e *testEnv) createBooking(t *testing.T, clientID, providerUserID, profileID int64, status model.BookingStatus) int64 {
	t.Helper()

	id, err := e.bookings.Create(context.Background(), &model.Booking{
		ClientID:          clientID,
		ProviderID:        providerUserID,
		ProviderProfileID: profileID,
		ServiceType:       "consultation",
		BookingDate:       time.Now().UTC().Add(24 * time.Hour),
		DurationMinutes:   60,
		Fee:               100,
		Status:            status,
	})
	if err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	return id
}
