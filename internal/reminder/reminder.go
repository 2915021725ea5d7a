// Package reminder は支払いリマインダーの予定作成と定期送信を提供する。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/repository"
)

const (
	// SettlementDelay は掲載後精算の売上に対する通知までの時間。
	SettlementDelay = 23*time.Hour + 58*time.Minute
	// BookingLead は予約のみの売上に対して掲載の何時間前に通知するか。
	BookingLead = 24 * time.Hour
)

// DueAt は売上の支払い状態から通知予定時刻を求める。
// 通知が不要な状態ではfalseを返す。
func DueAt(sale *model.Sale) (time.Time, bool) {
	switch sale.Status {
	case model.PaymentPendingSettlement:
		return sale.PublishedAt.Add(SettlementDelay), true
	case model.PaymentBooked:
		return sale.PublishedAt.Add(-BookingLead), true
	}
	return time.Time{}, false
}

// Scheduler は売上の記録時にリマインダーを登録する。
type Scheduler struct {
	repo   repository.ReminderRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(repo repository.ReminderRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{repo: repo, logger: logger, now: time.Now}
}

// Schedule は売上に対するリマインダーを登録する。
// 通知不要の状態、または予定時刻が既に過ぎている場合は何もせずnilを返す。
func (s *Scheduler) Schedule(ctx context.Context, sale *model.Sale) (*model.PendingReminder, error) {
	due, ok := DueAt(sale)
	if !ok {
		return nil, nil
	}
	if !due.After(s.now()) {
		s.logger.Info("通知予定時刻を過ぎているためリマインダーを登録しません",
			slog.Int64("sale_id", sale.ID),
			slog.Time("due_at", due),
		)
		return nil, nil
	}

	reminder := &model.PendingReminder{SaleID: sale.ID, DueAt: due}
	if err := s.repo.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("リマインダーの登録に失敗しました: %w", err)
	}
	return reminder, nil
}

// Reschedule は支払い状態の変更後にリマインダーを付け直す。
// 通知が不要になった、または予定時刻が過ぎた場合は既存のリマインダーを削除する。
func (s *Scheduler) Reschedule(ctx context.Context, sale *model.Sale) (*model.PendingReminder, error) {
	if due, ok := DueAt(sale); ok && due.After(s.now()) {
		return s.Schedule(ctx, sale)
	}

	existing, err := s.repo.FindBySaleID(ctx, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if _, err := s.repo.DeleteByIDs(ctx, []int64{existing.ID}); err != nil {
		return nil, fmt.Errorf("リマインダーの削除に失敗しました: %w", err)
	}
	return nil, nil
}
