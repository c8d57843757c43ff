package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type mockOTPStore struct {
	calls   int32
	gotTime time.Time
	deleted int64
	err     error
}

func (m *mockOTPStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	atomic.AddInt32(&m.calls, 1)
	m.gotTime = before
	return m.deleted, m.err
}

type mockRecorder struct {
	gotDeleted int64
	called     bool
}

func (m *mockRecorder) RecordOTPCleanup(deleted int64) {
	m.called = true
	m.gotDeleted = deleted
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestRunOnce_DeletesExpiredCodes(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{deleted: 5}
	job := NewJob(store, newTestLogger(&buf), nil)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("DeleteExpired の呼び出し回数 = %d, want 1", store.calls)
	}
}

func TestRunOnce_PassesCurrentTime(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{}
	job := NewJob(store, newTestLogger(&buf), nil)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	_ = job.RunOnce(context.Background())

	if !store.gotTime.Equal(fixed) {
		t.Errorf("before = %v, want %v", store.gotTime, fixed)
	}
}

func TestRunOnce_RecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{deleted: 42}
	rec := &mockRecorder{}
	job := NewJob(store, newTestLogger(&buf), rec)

	_ = job.RunOnce(context.Background())

	if !rec.called {
		t.Fatal("RecordOTPCleanup が呼び出されなかった")
	}
	if rec.gotDeleted != 42 {
		t.Errorf("deleted = %d, want 42", rec.gotDeleted)
	}
}

func TestRunOnce_NilRecorder(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{deleted: 1}
	job := NewJob(store, newTestLogger(&buf), nil)

	// recorderがnilでもpanicせず完了すること
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
}

func TestRunOnce_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{deleted: 7}
	job := NewJob(store, newTestLogger(&buf), nil)

	_ = job.RunOnce(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok && count == float64(7) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=7 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestRunOnce_ReturnsErrorOnStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{err: errors.New("connection refused")}
	rec := &mockRecorder{}
	job := NewJob(store, newTestLogger(&buf), rec)

	err := job.RunOnce(context.Background())
	if err == nil {
		t.Fatal("ストア障害時にエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if rec.called {
		t.Error("失敗時にはメトリクスを記録すべきでない")
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestRunOnce_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{deleted: 0}
	job := NewJob(store, newTestLogger(&buf), nil)

	// 削除対象がなくても繰り返し実行できること
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("1回目の RunOnce がエラーを返した: %v", err)
	}
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("2回目の RunOnce がエラーを返した: %v", err)
	}
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{}
	job := NewJob(store, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回目の実行を待つ
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&store.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("起動直後の実行が行われなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後にStartが終了しなかった")
	}
}

func TestStart_RepeatsOnInterval(t *testing.T) {
	var buf bytes.Buffer
	store := &mockOTPStore{}
	job := NewJob(store, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go job.Start(ctx, 10*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&store.calls) < 3 {
		select {
		case <-deadline:
			t.Fatalf("ティッカーによる繰り返し実行が行われなかった: calls = %d", store.calls)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
