// Package sale は売上の記録・編集・削除と、それに伴うスプレッドシート反映と通知を提供する。
package sale

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/adledger/internal/access"
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/mirror"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/reminder"
	"github.com/hitoshi/adledger/internal/repository"
	"github.com/hitoshi/adledger/internal/view"
)

// スプレッドシートのタイトルの接頭辞。
const tablePrefix = "Продажи "

// Receipt は売上記録の結果。
// 売上の保存後に行う処理の失敗は記録を取り消さず、ここに残す。
type Receipt struct {
	Sale     *model.Sale
	Channel  *model.Channel
	Summary  *calendar.MonthSummary
	TableURL string
	Reminder *model.PendingReminder
	// MirrorErr はスプレッドシート反映の失敗。
	MirrorErr error
	// CreatorNotified は作成者への通知を送った場合にtrue。
	CreatorNotified bool
}

// EditResult は売上編集の結果。
type EditResult struct {
	Sale      *model.Sale
	Channel   *model.Channel
	MirrorErr error
}

// DeleteResult は売上削除の結果。
type DeleteResult struct {
	Sale      *model.Sale
	Channel   *model.Channel
	Position  int
	MirrorErr error
}

// Service は売上のサービス層。
type Service struct {
	sales     repository.SaleRepository
	channels  repository.ChannelRepository
	users     repository.UserRepository
	gate      *access.Gate
	mirror    *mirror.Dispatcher
	index     *calendar.Index
	scheduler *reminder.Scheduler
	notifier  notify.Notifier
	view      *view.Renderer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// Deps はServiceの依存をまとめたもの。
type Deps struct {
	Sales     repository.SaleRepository
	Channels  repository.ChannelRepository
	Users     repository.UserRepository
	Gate      *access.Gate
	Mirror    *mirror.Dispatcher
	Index     *calendar.Index
	Scheduler *reminder.Scheduler
	Notifier  notify.Notifier
	View      *view.Renderer
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &Service{
		sales:     d.Sales,
		channels:  d.Channels,
		users:     d.Users,
		gate:      d.Gate,
		mirror:    d.Mirror,
		index:     d.Index,
		scheduler: d.Scheduler,
		notifier:  d.Notifier,
		view:      d.View,
		metrics:   d.Metrics,
		logger:    d.Logger,
	}
}

// Validate は保存前の売上の不変条件を検証する。
func Validate(s *model.Sale) error {
	switch {
	case s.Buyer == "":
		return model.NewEmptyInputError()
	case s.Format.String() == "":
		return model.NewEmptyInputError()
	case s.Cost < 0 || s.Cost > model.MaxMoney:
		return model.NewInvalidCostError(s.Cost.String())
	case s.ManagerPercent < 0:
		return model.NewInvalidPercentError(s.ManagerPercent.String())
	case s.ManagerPercent > model.MaxPercent:
		return model.NewPercentTooLargeError(s.ManagerPercent.String())
	case !s.Status.Valid():
		return model.NewInvalidPaymentStatusError(string(s.Status))
	}
	return nil
}

// Commit は売上を保存し、続けてスプレッドシートへの行追加、月集計、リマインダー登録、
// 作成者への通知を順に行う。保存より後の処理の失敗はReceiptに残し、エラーにはしない。
func (s *Service) Commit(ctx context.Context, writer *model.User, sale *model.Sale) (*Receipt, error) {
	ch, err := s.gate.RequireWrite(ctx, writer.ID, sale.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := Validate(sale); err != nil {
		return nil, err
	}

	sale.WriterID = writer.ID
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("売上の保存に失敗しました: %w", err)
	}
	s.metrics.RecordSaleCommitted(string(sale.Status))
	s.logger.Info("売上を記録しました",
		slog.Int64("sale_id", sale.ID),
		slog.Int64("channel_id", ch.ID),
		slog.Int64("writer_id", writer.ID),
	)

	receipt := &Receipt{Sale: sale, Channel: ch}
	receipt.TableURL, receipt.MirrorErr = s.appendRow(ctx, ch.ID, sale)

	month := calendar.MonthOf(sale.PublishedAt, s.index.Location())
	if sum, err := s.index.Month(ctx, ch.ID, month); err != nil {
		s.logger.Warn("月集計の取得に失敗しました",
			slog.Int64("channel_id", ch.ID),
			slog.String("error", err.Error()),
		)
	} else {
		receipt.Summary = sum
	}

	if rem, err := s.scheduler.Schedule(ctx, sale); err != nil {
		s.logger.Error("リマインダーの登録に失敗しました",
			slog.Int64("sale_id", sale.ID),
			slog.String("error", err.Error()),
		)
	} else {
		receipt.Reminder = rem
	}

	if writer.ID != ch.CreatorID {
		msg := s.view.CreatorNotice(ch, writer, sale)
		if _, err := s.notifier.Send(ctx, ch.CreatorID, msg); err != nil {
			s.logger.Warn("作成者への通知に失敗しました",
				slog.Int64("creator_id", ch.CreatorID),
				slog.Int64("sale_id", sale.ID),
				slog.String("error", err.Error()),
			)
		} else {
			receipt.CreatorNotified = true
		}
	}
	return receipt, nil
}

// appendRow はチャンネルのスプレッドシートに売上の行を挿入する。
// 未作成なら作成してから挿入し、表示用URLを返す。
func (s *Service) appendRow(ctx context.Context, channelID int64, sale *model.Sale) (string, error) {
	var url string
	err := s.mirror.Do(ctx, channelID, "append_row", func(ctx context.Context, st mirror.Store) error {
		// 並行する記録が先に作成している可能性があるので読み直す
		ch, err := s.channels.FindByID(ctx, channelID)
		if err != nil {
			return fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
		}
		if ch == nil {
			return model.NewChannelNotFoundError(channelID)
		}

		if !ch.HasMirror() {
			id, createErr := st.CreateTable(ctx, tablePrefix+ch.Title, model.MirrorHeader)
			if id == "" {
				return createErr
			}
			// ヘッダーや共有の設定に失敗してもIDは保存する
			if err := s.channels.SetMirrorID(ctx, ch.ID, id); err != nil {
				return fmt.Errorf("スプレッドシートIDの保存に失敗しました: %w", err)
			}
			ch.MirrorID = id
			if createErr != nil {
				return createErr
			}
		}

		pos, err := s.sales.Position(ctx, ch.ID, sale.ID)
		if err != nil {
			return fmt.Errorf("行位置の取得に失敗しました: %w", err)
		}
		url, err = st.AppendRow(ctx, ch.MirrorID, sale.MirrorRow(s.index.Location()), pos)
		return err
	})
	return url, err
}

// Change は売上1項目の変更内容。Field に対応する値だけを使う。
type Change struct {
	Field   model.SaleField
	Buyer   string
	Cost    model.Money
	Percent model.Percent
	Format  model.PublicationFormat
	Status  model.PaymentStatus
}

// Apply は変更を売上に適用する。
func (c Change) Apply(s *model.Sale) {
	switch c.Field {
	case model.FieldBuyer:
		s.Buyer = c.Buyer
	case model.FieldCost:
		s.Cost = c.Cost
	case model.FieldPercent:
		s.ManagerPercent = c.Percent
	case model.FieldFormat:
		s.Format = c.Format
	case model.FieldStatus:
		s.Status = c.Status
	}
}

// Edit は売上の1項目を変更し、スプレッドシートの該当セルを更新する。
// セルの行は変更時点の順位から求め直す。
func (s *Service) Edit(ctx context.Context, userID, saleID int64, change Change) (*EditResult, error) {
	if !change.Field.Valid() {
		return nil, fmt.Errorf("編集できない項目です: %q", change.Field)
	}
	sale, ch, err := s.gate.RequireSaleWrite(ctx, userID, saleID)
	if err != nil {
		return nil, err
	}

	change.Apply(sale)
	if err := Validate(sale); err != nil {
		return nil, err
	}
	ok, err := s.sales.UpdateField(ctx, sale, change.Field)
	if err != nil {
		return nil, fmt.Errorf("売上の更新に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewSaleNotFoundError(saleID)
	}
	s.metrics.RecordSaleEdited(string(change.Field))

	if change.Field == model.FieldStatus {
		if _, err := s.scheduler.Reschedule(ctx, sale); err != nil {
			s.logger.Error("リマインダーの付け直しに失敗しました",
				slog.Int64("sale_id", sale.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	result := &EditResult{Sale: sale, Channel: ch}
	if ch.HasMirror() {
		result.MirrorErr = s.mirror.Do(ctx, ch.ID, "update_cell", func(ctx context.Context, st mirror.Store) error {
			pos, err := s.sales.Position(ctx, ch.ID, sale.ID)
			if err != nil {
				return fmt.Errorf("行位置の取得に失敗しました: %w", err)
			}
			return st.UpdateCell(ctx, ch.MirrorID, pos, change.Field.Column(), sale.MirrorValue(change.Field))
		})
	}
	return result, nil
}

// Delete は売上を削除し、スプレッドシートの該当行を削除する。
// 行の位置は削除直前の順位で、同じチャンネルの他の反映とは直列に実行する。
func (s *Service) Delete(ctx context.Context, userID, saleID int64) (*DeleteResult, error) {
	sale, ch, err := s.gate.RequireDelete(ctx, userID, saleID)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Sale: sale, Channel: ch}
	if !ch.HasMirror() {
		if err := s.deleteRecord(ctx, saleID); err != nil {
			return nil, err
		}
		s.metrics.RecordSaleDeleted()
		return result, nil
	}

	var (
		ran   bool
		dbErr error
	)
	mirrorErr := s.mirror.Do(ctx, ch.ID, "delete_row", func(ctx context.Context, st mirror.Store) error {
		ran = true
		pos, err := s.sales.Position(ctx, ch.ID, sale.ID)
		if err != nil {
			dbErr = fmt.Errorf("行位置の取得に失敗しました: %w", err)
			return nil
		}
		if dbErr = s.deleteRecord(ctx, saleID); dbErr != nil {
			return nil
		}
		result.Position = pos
		return st.DeleteRow(ctx, ch.MirrorID, pos)
	})
	if !ran {
		// 枠を取得できず削除自体が実行されていない
		return nil, fmt.Errorf("売上の削除に失敗しました: %w", mirrorErr)
	}
	if dbErr != nil {
		return nil, dbErr
	}
	s.metrics.RecordSaleDeleted()
	result.MirrorErr = mirrorErr
	return result, nil
}

func (s *Service) deleteRecord(ctx context.Context, saleID int64) error {
	ok, err := s.sales.Delete(ctx, saleID)
	if err != nil {
		return fmt.Errorf("売上の削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewSaleNotFoundError(saleID)
	}
	s.logger.Info("売上を削除しました", slog.Int64("sale_id", saleID))
	return nil
}

// Card は売上カードの表示に必要な情報を集める。
func (s *Service) Card(ctx context.Context, userID, saleID int64) (*model.Sale, *model.User, bool, error) {
	sale, ch, err := s.gate.RequireSaleWrite(ctx, userID, saleID)
	if err != nil {
		return nil, nil, false, err
	}
	writer, err := s.users.FindByID(ctx, sale.WriterID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("記録者の取得に失敗しました: %w", err)
	}
	return sale, writer, access.CanDelete(userID, sale, ch), nil
}
