package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/adledger/internal/bot/callback"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/repository"
)

// Sweeper は期限を迎えたリマインダーを定期的に送信し、送信後に削除する。
// 一致したリマインダーは送信の成否にかかわらず削除されるため、各リマインダーは高々1回送信される。
// 複数プロセスでの同時実行は想定しない。
type Sweeper struct {
	repo      repository.ReminderRepository
	notifier  notify.Notifier
	catalog   *messages.Catalog
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	limiter   *rate.Limiter
	tolerance time.Duration
	loc       *time.Location
	now       func() time.Time
}

// SweeperOptions はSweeperの設定。
type SweeperOptions struct {
	Tolerance time.Duration // 期限の前後に許容する幅
	SendRate  float64       // 1秒あたりの最大送信数
	Location  *time.Location
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
func NewSweeper(
	repo repository.ReminderRepository,
	notifier notify.Notifier,
	catalog *messages.Catalog,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts SweeperOptions,
) *Sweeper {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 40 * time.Second
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 20
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Sweeper{
		repo:      repo,
		notifier:  notifier,
		catalog:   catalog,
		metrics:   collector,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(opts.SendRate), 1),
		tolerance: opts.Tolerance,
		loc:       opts.Location,
		now:       time.Now,
	}
}

// Start は指定間隔でスイープを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リマインダースイーパーを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("tolerance", s.tolerance),
	)

	// 起動直後に1回実行
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("リマインダースイープに失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リマインダースイーパーを停止しました")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("リマインダースイープに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は現在時刻の前後 tolerance 以内が期限のリマインダーを送信し、まとめて削除する。
// 送信したリマインダーの件数を返す。
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.now()

	due, err := s.repo.ListDueBetween(ctx, now.Add(-s.tolerance), now.Add(s.tolerance))
	if err != nil {
		return 0, fmt.Errorf("期限のリマインダー取得に失敗しました: %w", err)
	}
	if len(due) == 0 {
		s.metrics.RecordReminderSweep(0, time.Since(start))
		return 0, nil
	}

	ids := make([]int64, 0, len(due))
	sent := 0
	for _, r := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			// 停止時は未送信のものを残す
			break
		}
		ids = append(ids, r.ID)
		if err := s.deliver(ctx, r); err != nil {
			s.metrics.RecordReminderFailed()
			s.logger.Error("リマインダーの送信に失敗しました",
				slog.Int64("reminder_id", r.ID),
				slog.Int64("sale_id", r.SaleID),
				slog.Int64("user_id", r.Sale.WriterID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.metrics.RecordReminderSent()
		sent++
	}

	deleted, err := s.repo.DeleteByIDs(context.WithoutCancel(ctx), ids)
	if err != nil {
		return sent, fmt.Errorf("送信済みリマインダーの削除に失敗しました: %w", err)
	}

	s.metrics.RecordReminderSweep(len(due), time.Since(start))
	s.logger.Info("リマインダースイープが完了しました",
		slog.Int("matched", len(due)),
		slog.Int("sent", sent),
		slog.Int64("deleted", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return sent, nil
}

func (s *Sweeper) deliver(ctx context.Context, r *model.DueReminder) error {
	msg := s.Compose(&r.Sale)
	if _, err := s.notifier.Send(ctx, r.Sale.WriterID, msg); err != nil {
		return model.NewDeliveryError(r.Sale.WriterID, err)
	}
	return nil
}

// Compose は売上の支払い状態に応じたリマインダーの文面を組み立てる。
func (s *Sweeper) Compose(sale *model.Sale) notify.Message {
	key := "reminder_booked"
	if sale.Status == model.PaymentPendingSettlement {
		key = "reminder_pending_settlement"
	}
	t := sale.PublishedAt.In(s.loc)
	text := s.catalog.Format(key,
		"date", t.Format("02.01.2006"),
		"time", t.Format("15:04"),
		"buyer", sale.Buyer,
	)
	open := callback.Data{Action: callback.SaleOpen, SaleID: sale.ID}
	return notify.Message{
		Text:   text,
		Inline: [][]notify.Button{{notify.CallbackButton(s.catalog.Get("btn_open_sale"), open.String())}},
	}
}
