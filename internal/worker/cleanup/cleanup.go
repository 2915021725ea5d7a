// Package cleanup は期限切れの対話セッションを削除する定期ジョブを提供する。
// 期限切れのセッションは読み込み時にも無視されるが、放置された行はこのジョブで消す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は指定日時より前に更新されたセッションを削除する。
// repository.ConversationRepository が満たす。
type SessionPurger interface {
	DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は有効期間を過ぎた対話セッションの削除ジョブ。
type CleanupJob struct {
	repo   SessionPurger
	logger *slog.Logger
	TTL    time.Duration // セッションの有効期間（デフォルト: 24時間）
	now    func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// ttlが0以下の場合は24時間を使用する。
func NewCleanupJob(repo SessionPurger, logger *slog.Logger, ttl time.Duration) *CleanupJob {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CleanupJob{
		repo:   repo,
		logger: logger,
		TTL:    ttl,
		now:    time.Now,
	}
}

// Run は最終更新からTTLを超えたセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	before := j.now().Add(-j.TTL)

	deletedCount, err := j.repo.DeleteUpdatedBefore(ctx, before)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("ttl", j.TTL),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("ttl", j.TTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降 interval ごとに実行する。ctxがキャンセルされると戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
