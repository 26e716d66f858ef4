// Package reconcile はユーザー名予約の整合性ジョブを提供する。
// サインアップの書き込みが途中で失敗したアカウントの予約を補完し、
// 期限切れセッションを削除する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/makersgallery/internal/docstore"
	"github.com/hitoshi/makersgallery/internal/identity"
	"github.com/hitoshi/makersgallery/internal/metrics"
	"github.com/hitoshi/makersgallery/internal/repository"
)

// DefaultInterval は0以下の間隔が渡された場合に使用する実行間隔。
const DefaultInterval = 24 * time.Hour

// Report は1回の実行結果。
type Report struct {
	Repaired       int
	Conflicts      int
	Skipped        int
	SessionsPurged int64
}

// Job はプロフィールと予約の突き合わせ、期限切れセッションの削除を行う。
type Job struct {
	store    docstore.Store
	sessions repository.SessionRepository
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewJob はJobを生成する。collectorはnilでもよい。
func NewJob(
	store docstore.Store,
	sessions repository.SessionRepository,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Job{
		store:    store,
		sessions: sessions,
		logger:   logger,
		metrics:  collector,
	}
}

// Start はintervalごとにRunOnceを実行する。起動直後に1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.Warn("実行間隔が不正なため既定値を使用します",
			slog.Duration("interval", interval),
			slog.Duration("default", DefaultInterval),
		)
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("整合性ジョブを開始しました", slog.Duration("interval", interval))

	j.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("整合性ジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("整合性ジョブの実行に失敗しました", slog.String("error", err.Error()))
	}
}

// RunOnce は予約の補完とセッション削除を1回実行する。
// 予約が別のアカウントに属している場合はどちらも変更しない。
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	if err := j.reconcileReservations(ctx, &report); err != nil {
		return report, err
	}

	purged, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		return report, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	report.SessionsPurged = purged

	j.metrics.RecordReservationsRepaired(report.Repaired)
	j.metrics.RecordReservationConflicts(report.Conflicts)
	j.metrics.RecordSessionsPurged(purged)

	j.logger.Info("整合性ジョブが完了しました",
		slog.Int("repaired_count", report.Repaired),
		slog.Int("conflict_count", report.Conflicts),
		slog.Int("skipped_count", report.Skipped),
		slog.Int64("sessions_purged", purged),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return report, nil
}

func (j *Job) reconcileReservations(ctx context.Context, report *Report) error {
	docs, err := j.store.List(ctx, identity.UsersCollection)
	if err != nil {
		return fmt.Errorf("プロフィール一覧の取得に失敗: %w", err)
	}

	for _, doc := range docs {
		username, _ := doc.Fields["username"].(string)
		if strings.TrimSpace(username) == "" {
			report.Skipped++
			j.logger.Warn("ユーザー名のないプロフィールをスキップしました",
				slog.String("account_id", doc.ID),
			)
			continue
		}

		path := identity.ReservationPath(username)
		reservation, err := j.store.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("予約の取得に失敗: %w", err)
		}

		if reservation == nil {
			if err := j.store.Set(ctx, path, docstore.Fields{"uid": doc.ID}); err != nil {
				return fmt.Errorf("予約の補完に失敗: %w", err)
			}
			report.Repaired++
			j.logger.Info("ユーザー名予約を補完しました",
				slog.String("account_id", doc.ID),
				slog.String("username", strings.ToLower(username)),
			)
			continue
		}

		if owner, _ := reservation.Fields["uid"].(string); owner != doc.ID {
			report.Conflicts++
			j.logger.Warn("ユーザー名予約が別のアカウントに属しています",
				slog.String("account_id", doc.ID),
				slog.String("owner_id", owner),
				slog.String("username", strings.ToLower(username)),
			)
		}
	}
	return nil
}
