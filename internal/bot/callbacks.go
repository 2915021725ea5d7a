package bot

import (
	"context"
	"log/slog"

	"github.com/hitoshi/adledger/internal/bot/callback"
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/conversation"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
)

func channelListAction(calendarView bool) callback.Action {
	if calendarView {
		return callback.CalendarOpen
	}
	return callback.ChannelSettings
}

// handleCallback はボタン押下を処理する。応答は押されたメッセージの書き換えを基本とする。
func (r *Router) handleCallback(ctx context.Context, user *model.User, cb *Callback) error {
	answer := ""
	replies, err := r.routeCallback(ctx, user, cb, &answer)
	if ackErr := r.Notifier.AnswerCallback(ctx, cb.QueryID, answer); ackErr != nil {
		r.Logger.Warn("ボタンへの応答に失敗しました",
			slog.Int64("user_id", user.ID),
			slog.String("error", ackErr.Error()),
		)
	}
	if err != nil {
		r.sendInternalError(ctx, user.ID)
		return err
	}
	return r.deliver(ctx, user.ID, cb.MessageID, replies)
}

func (r *Router) routeCallback(ctx context.Context, user *model.User, cb *Callback, answer *string) ([]conversation.Reply, error) {
	d, err := callback.Parse(cb.Data)
	if err != nil {
		r.Logger.Warn("解釈できないボタンです",
			slog.Int64("user_id", user.ID),
			slog.String("data", cb.Data),
		)
		*answer = r.View.Catalog().Get("stale_button")
		return nil, nil
	}

	switch d.Action {
	case callback.PickChannel, callback.DateNav, callback.DatePick, callback.Cancel:
		return r.saleFlowButton(ctx, user, d, answer)
	case callback.CalendarOpen, callback.CalendarNav, callback.CalendarDay:
		return r.calendarButton(ctx, user, d)
	case callback.SaleOpen:
		return r.openSale(ctx, user, d.SaleID)
	case callback.SaleEdit:
		return r.Edit.Begin(ctx, user, d.SaleID, d.Field)
	case callback.SaleDelete:
		return r.confirmDelete(ctx, user, d.SaleID)
	case callback.SaleDeleteYes:
		return r.deleteSale(ctx, user, d.SaleID)
	case callback.ChannelList:
		channels, err := r.Channels.ListForUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return replaceWith(r.View.ChannelList(channels, callback.ChannelSettings)), nil
	case callback.ChannelSettings:
		st, err := r.Channels.Settings(ctx, user.ID, d.ChannelID)
		if err != nil {
			return r.userError(err)
		}
		return replaceWith(r.View.ChannelSettings(st.Channel, st.InviteLink, st.TableURL)), nil
	}
	return nil, nil
}

// saleFlowButton は売上作成中のボタンを処理する。
// 現在のセッションのトークンを持たないボタンは古いものとして無視する。
func (r *Router) saleFlowButton(ctx context.Context, user *model.User, d callback.Data, answer *string) ([]conversation.Reply, error) {
	sess, err := r.Sessions.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Flow != conversation.FlowCreateSale || sess.Token() != d.Token {
		*answer = r.View.Catalog().Get("stale_button")
		return nil, nil
	}

	var ev conversation.Event
	switch d.Action {
	case callback.PickChannel:
		ev = conversation.PickChannel{ChannelID: d.ChannelID}
	case callback.DateNav:
		ev = conversation.Navigate{Month: d.Month}
	case callback.DatePick:
		ev = conversation.DaySelected{Date: d.Date}
	default:
		ev = conversation.Cancel{}
	}
	return r.Create.Handle(ctx, user, sess, ev)
}

// calendarButton はカレンダー閲覧の遷移。範囲外の月や不正な日付は何もしない。
func (r *Router) calendarButton(ctx context.Context, user *model.User, d callback.Data) ([]conversation.Reply, error) {
	ch, err := r.Gate.RequireWrite(ctx, user.ID, d.ChannelID)
	if err != nil {
		return r.userError(err)
	}

	var ev calendar.Event
	switch d.Action {
	case callback.CalendarNav:
		ev = calendar.Navigate{Month: d.Month}
	case callback.CalendarDay:
		ev = calendar.DaySelected{Date: d.Date}
	default:
		ev = calendar.FreshView{}
	}
	next, ok := calendar.Transition(ev, r.now(), r.Index.Location())
	if !ok {
		return nil, nil
	}
	msg, err := r.calendarScreen(ctx, ch, next)
	if err != nil {
		return nil, err
	}
	return replaceWith(msg), nil
}

func (r *Router) calendarScreen(ctx context.Context, ch *model.Channel, v calendar.View) (notify.Message, error) {
	if v.Kind == calendar.ViewDay {
		sales, err := r.Index.Day(ctx, ch.ID, v.Date)
		if err != nil {
			return notify.Message{}, err
		}
		return r.View.DayView(ch, v.Date, sales), nil
	}
	sum, err := r.Index.Month(ctx, ch.ID, v.Month)
	if err != nil {
		return notify.Message{}, err
	}
	return r.View.MonthView(ch, sum), nil
}

func (r *Router) openSale(ctx context.Context, user *model.User, saleID int64) ([]conversation.Reply, error) {
	s, writer, canDelete, err := r.Sales.Card(ctx, user.ID, saleID)
	if err != nil {
		return r.userError(err)
	}
	return replaceWith(r.View.SaleCard(s, writer, canDelete)), nil
}

func (r *Router) confirmDelete(ctx context.Context, user *model.User, saleID int64) ([]conversation.Reply, error) {
	s, _, canDelete, err := r.Sales.Card(ctx, user.ID, saleID)
	if err != nil {
		return r.userError(err)
	}
	if !canDelete {
		return r.userError(model.NewNoDeleteAccessError(user.ID, saleID))
	}
	return replaceWith(r.View.DeleteConfirm(s)), nil
}

// deleteSale は売上を削除し、その日の一覧を表示し直す。その日が空になれば月カレンダーを出す。
func (r *Router) deleteSale(ctx context.Context, user *model.User, saleID int64) ([]conversation.Reply, error) {
	res, err := r.Sales.Delete(ctx, user.ID, saleID)
	if err != nil {
		return r.userError(err)
	}

	date := calendar.DateOf(res.Sale.PublishedAt, r.Index.Location())
	view := calendar.View{Kind: calendar.ViewDay, Month: date.MonthOf(), Date: date}
	remaining, err := r.Index.Day(ctx, res.Channel.ID, date)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		view.Kind = calendar.ViewMonth
	}
	screen, err := r.calendarScreen(ctx, res.Channel, view)
	if err != nil {
		return nil, err
	}

	replies := []conversation.Reply{{Message: r.View.Text("sale_deleted"), Replace: true}}
	if res.MirrorErr != nil {
		replies = append(replies, conversation.Reply{Message: r.View.Error(res.MirrorErr)})
	}
	return append(replies, conversation.Reply{Message: screen}), nil
}

// userError は利用者に見せるべきエラーを文面にする。それ以外はそのまま返す。
func (r *Router) userError(err error) ([]conversation.Reply, error) {
	switch model.KindOf(err) {
	case model.KindAuthorization, model.KindNotFound, model.KindConflict, model.KindValidation:
		return []conversation.Reply{{Message: r.View.Error(err)}}, nil
	}
	return nil, err
}

func replaceWith(msg notify.Message) []conversation.Reply {
	return []conversation.Reply{{Message: msg, Replace: true}}
}
