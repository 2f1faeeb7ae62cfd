// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッション検証時の遅延削除では、アクセスされないまま期限切れになった
// セッションが残り続けるため、workerモードで定期的にまとめて削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/readshare/internal/metrics"
)

// ExpiredSessionDeleter は期限切れセッションを削除する。
// repository.SessionRepositoryが実装する。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupJob はexpires_atを過ぎたセッションを削除するジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type SessionCleanupJob struct {
	sessions ExpiredSessionDeleter
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewSessionCleanupJob(sessions ExpiredSessionDeleter, logger *slog.Logger, mc metrics.MetricsCollector) *SessionCleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &SessionCleanupJob{
		sessions: sessions,
		logger:   logger,
		metrics:  mc,
		now:      time.Now,
	}
}

// Run は現在時刻時点で期限切れのセッションを削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsPurged(int(deleted))

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	// 失敗はRun内でログ出力済み。次の周期で再試行する。
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
