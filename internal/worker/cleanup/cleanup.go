// Package cleanup は期限切れワンタイムパスコードの自動削除ジョブを提供する。
// ログイン時に発行されたコードは有効期限を過ぎると検証に使えなくなるが、
// レコード自体は残るため、定期バッチで物理削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// OTPStore は期限切れコードの削除に必要な永続化層のインターフェース。
// repository.OTPRepositoryが満たす。
type OTPStore interface {
	// DeleteExpired はbeforeより前に期限が切れたコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Recorder は削除件数をメトリクスに記録するインターフェース。
// metrics.Collectorが満たす。nilの場合は記録しない。
type Recorder interface {
	RecordOTPCleanup(deleted int64)
}

// Job は期限切れコードの削除ジョブ。
// 定期実行のバッチとして設計されており、冪等な削除処理を保証する。
type Job struct {
	otps     OTPStore
	logger   *slog.Logger
	recorder Recorder

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewJob は新しいJobを生成する。recorderはnilでもよい。
func NewJob(otps OTPStore, logger *slog.Logger, recorder Recorder) *Job {
	return &Job{
		otps:     otps,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// RunOnce は現時点で期限切れのコードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) RunOnce(ctx context.Context) error {
	start := j.now()

	deleted, err := j.otps.DeleteExpired(ctx, start)
	if err != nil {
		j.logger.Error("期限切れコードの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れコードの削除に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordOTPCleanup(deleted)
	}

	duration := time.Since(start)
	j.logger.Info("期限切れコードの削除が完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで繰り返す。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("クリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
