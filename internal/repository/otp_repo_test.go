package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/yoyakuba/internal/model"
)

// 新しいコードの発行で同一ユーザーの未使用コードが無効化されることを検証
func TestOTPRepo_Create_InvalidatesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.createUser(t, "alice", model.RoleClient)
	now := time.Now().UTC()
	expires := now.Add(10 * time.Minute)

	if _, err := env.otps.Create(ctx, &model.OTP{UserID: userID, Code: "111111", ExpiresAt: expires}); err != nil {
		t.Fatalf("first otp failed: %v", err)
	}
	if _, err := env.otps.Create(ctx, &model.OTP{UserID: userID, Code: "222222", ExpiresAt: expires}); err != nil {
		t.Fatalf("second otp failed: %v", err)
	}

	old, err := env.otps.FindValid(ctx, userID, "111111", now)
	if err != nil {
		t.Fatalf("FindValid failed: %v", err)
	}
	if old != nil {
		t.Error("previous code should be invalidated by new issuance")
	}

	current, err := env.otps.FindValid(ctx, userID, "222222", now)
	if err != nil {
		t.Fatalf("FindValid failed: %v", err)
	}
	if current == nil {
		t.Fatal("latest code should be valid")
	}
}

// 期限切れ・使用済み・コード不一致のいずれもFindValidに掛からないことを検証
func TestOTPRepo_FindValid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.createUser(t, "alice", model.RoleClient)
	now := time.Now().UTC()

	id, err := env.otps.Create(ctx, &model.OTP{
		UserID: userID, Code: "123456", ExpiresAt: now.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if o, err := env.otps.FindValid(ctx, userID, "654321", now); err != nil || o != nil {
		t.Errorf("wrong code: got %+v, %v", o, err)
	}

	if o, err := env.otps.FindValid(ctx, userID, "123456", now.Add(11*time.Minute)); err != nil || o != nil {
		t.Errorf("expired lookup: got %+v, %v", o, err)
	}

	if err := env.otps.MarkUsed(ctx, id); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}
	if o, err := env.otps.FindValid(ctx, userID, "123456", now); err != nil || o != nil {
		t.Errorf("used lookup: got %+v, %v", o, err)
	}
}

// 期限切れコードの削除: 対象のみ消え、有効なコードは残ることを検証
func TestOTPRepo_DeleteExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	aliceID := env.createUser(t, "alice", model.RoleClient)
	bobID := env.createUser(t, "bob", model.RoleClient)
	now := time.Now().UTC()

	if _, err := env.otps.Create(ctx, &model.OTP{UserID: aliceID, Code: "111111", ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := env.otps.Create(ctx, &model.OTP{UserID: bobID, Code: "222222", ExpiresAt: now.Add(10 * time.Minute)}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := env.otps.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	remaining, err := env.otps.FindValid(ctx, bobID, "222222", now)
	if err != nil || remaining == nil {
		t.Errorf("valid code should remain: %+v, %v", remaining, err)
	}
}
