package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/adledger/internal/access"
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/channel"
	"github.com/hitoshi/adledger/internal/conversation"
	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/repository"
	"github.com/hitoshi/adledger/internal/sale"
	"github.com/hitoshi/adledger/internal/view"
)

// Deps はRouterの依存をまとめたもの。
type Deps struct {
	Users    repository.UserRepository
	Channels *channel.Service
	Sales    *sale.Service
	Gate     *access.Gate
	Index    *calendar.Index
	Sessions conversation.Store
	Create   *conversation.SaleFlow
	Edit     *conversation.EditFlow
	Notifier notify.Notifier
	View     *view.Renderer
	Metrics  metrics.MetricsCollector
	Logger   *slog.Logger
}

// Router は Update を対話・閲覧・編集の各処理へ振り分ける。
type Router struct {
	Deps
	now   func() time.Time
	menu  map[string]menuAction
	queue *UserQueue
}

type menuAction func(ctx context.Context, user *model.User) ([]conversation.Reply, error)

// NewRouter はRouterを生成する。
func NewRouter(d Deps) *Router {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	r := &Router{Deps: d, now: time.Now, queue: NewUserQueue()}
	cat := d.View.Catalog()
	r.menu = map[string]menuAction{
		cat.Get("btn_create_sale"): r.startSale,
		cat.Get("btn_calendar"):    r.openCalendarList,
		cat.Get("btn_income"):      r.showIncome,
		cat.Get("btn_channels"):    r.showChannels,
	}
	return r
}

// Submit は更新をユーザーごとのキューに積んで非同期に処理する。
// 同じユーザーの更新は到着順に1つずつ処理される。
func (r *Router) Submit(ctx context.Context, upd Update) {
	if upd.From == nil {
		return
	}
	r.queue.Submit(upd.From.ID, func() {
		if err := r.Handle(ctx, upd); err != nil {
			r.Logger.Error("更新の処理に失敗しました",
				slog.Int64("user_id", upd.From.ID),
				slog.String("kind", upd.Kind()),
				slog.String("error", err.Error()),
			)
		}
	})
}

// Wait は積まれた更新の処理がすべて終わるまで待つ。
func (r *Router) Wait() {
	r.queue.Wait()
}

// Handle は1件の更新を同期的に処理する。
// 想定外のエラーは利用者に汎用の文面を返したうえで呼び出し元に返す。
func (r *Router) Handle(ctx context.Context, upd Update) error {
	if upd.From == nil {
		return nil
	}
	r.Metrics.RecordUpdateHandled(upd.Kind())

	user, err := r.register(ctx, upd)
	if err != nil {
		return err
	}

	if upd.Callback != nil {
		return r.handleCallback(ctx, user, upd.Callback)
	}

	var replies []conversation.Reply
	if upd.WebAppData != "" {
		replies, err = r.handleWebApp(ctx, user, upd.WebAppData)
	} else {
		replies, err = r.handleText(ctx, user, upd.Text)
	}
	if err != nil {
		r.sendInternalError(ctx, user.ID)
		return err
	}
	return r.deliver(ctx, user.ID, 0, replies)
}

// register は送信者を登録または更新する。
// IDしか分からない場合は保存済みのユーザーを使う。
func (r *Router) register(ctx context.Context, upd Update) (*model.User, error) {
	user := upd.From
	if upd.Partial {
		stored, err := r.Users.FindByID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if stored != nil {
			return stored, nil
		}
	}
	if err := r.Users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Router) handleText(ctx context.Context, user *model.User, text string) ([]conversation.Reply, error) {
	text = strings.TrimSpace(text)

	if payload, ok := startPayload(text); ok {
		return r.start(ctx, user, payload)
	}
	if action, ok := r.menu[text]; ok {
		return action(ctx, user)
	}

	sess, err := r.Sessions.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if text == r.View.Catalog().Get("btn_cancel") {
		if sess == nil {
			return []conversation.Reply{{Message: r.View.WithMenu("cancelled")}}, nil
		}
		return r.continueFlow(ctx, user, sess, conversation.Cancel{})
	}
	if sess == nil {
		return []conversation.Reply{{Message: r.View.WithMenu("unknown_command")}}, nil
	}
	return r.continueFlow(ctx, user, sess, conversation.Text{Text: text})
}

func (r *Router) handleWebApp(ctx context.Context, user *model.User, data string) ([]conversation.Reply, error) {
	sess, err := r.Sessions.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Flow != conversation.FlowCreateSale {
		return []conversation.Reply{{Message: r.View.WithMenu("unknown_command")}}, nil
	}
	h, m, err := ParseWebAppTime(data)
	if err != nil {
		r.Logger.Warn("WebAppデータを解釈できませんでした",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return r.continueFlow(ctx, user, sess, conversation.Text{Text: data})
	}
	return r.continueFlow(ctx, user, sess, conversation.WebAppTime{Hour: h, Minute: m})
}

func (r *Router) continueFlow(ctx context.Context, user *model.User, sess *conversation.Session, ev conversation.Event) ([]conversation.Reply, error) {
	switch sess.Flow {
	case conversation.FlowCreateSale:
		return r.Create.Handle(ctx, user, sess, ev)
	case conversation.FlowEditSale:
		return r.Edit.Handle(ctx, user, sess, ev)
	}
	// 未知のフローは破棄してメニューへ戻す
	if err := r.Sessions.Clear(ctx, user.ID); err != nil {
		return nil, err
	}
	return []conversation.Reply{{Message: r.View.WithMenu("menu")}}, nil
}

// start は /start を処理する。進行中の対話は破棄する。
// share_<code> が付いていれば招待コードで編集者に加わる。
func (r *Router) start(ctx context.Context, user *model.User, payload string) ([]conversation.Reply, error) {
	if err := r.Sessions.Clear(ctx, user.ID); err != nil {
		return nil, err
	}
	replies := []conversation.Reply{{Message: r.View.WithMenu("welcome")}}

	code, ok := strings.CutPrefix(payload, invitePrefix)
	if !ok || code == "" {
		return replies, nil
	}
	res, err := r.Channels.JoinByInviteCode(ctx, user, code)
	if model.IsKind(err, model.KindConflict) {
		return append(replies, conversation.Reply{Message: r.View.Error(err)}), nil
	}
	if err != nil {
		return nil, err
	}
	key := "joined"
	if !res.Added {
		key = "already_writer"
	}
	return append(replies, conversation.Reply{Message: r.View.Text(key, "channel", res.Channel.Title)}), nil
}

// --- メニュー ---

func (r *Router) startSale(ctx context.Context, user *model.User) ([]conversation.Reply, error) {
	return r.Create.Start(ctx, user)
}

func (r *Router) openCalendarList(ctx context.Context, user *model.User) ([]conversation.Reply, error) {
	return r.channelList(ctx, user, true)
}

func (r *Router) showChannels(ctx context.Context, user *model.User) ([]conversation.Reply, error) {
	return r.channelList(ctx, user, false)
}

func (r *Router) channelList(ctx context.Context, user *model.User, calendarView bool) ([]conversation.Reply, error) {
	if err := r.Sessions.Clear(ctx, user.ID); err != nil {
		return nil, err
	}
	channels, err := r.Channels.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	msg := r.View.ChannelList(channels, channelListAction(calendarView))
	return []conversation.Reply{{Message: msg}}, nil
}

func (r *Router) showIncome(ctx context.Context, user *model.User) ([]conversation.Reply, error) {
	if err := r.Sessions.Clear(ctx, user.ID); err != nil {
		return nil, err
	}
	totals, err := r.Channels.Totals(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return []conversation.Reply{{Message: r.View.Income(totals)}}, nil
}

// --- 送信 ---

// deliver は応答を順に送る。Replace の応答は押されたボタンのメッセージを書き換える。
// 送信の失敗はログに残して残りの応答を続ける。
func (r *Router) deliver(ctx context.Context, userID int64, messageID int, replies []conversation.Reply) error {
	for _, rep := range replies {
		if rep.Replace && messageID != 0 && rep.Message.Reply == nil {
			err := r.Notifier.Edit(ctx, userID, messageID, rep.Message)
			if err == nil {
				continue
			}
			r.Logger.Warn("メッセージの書き換えに失敗しました",
				slog.Int64("user_id", userID),
				slog.Int("message_id", messageID),
				slog.String("error", err.Error()),
			)
		}
		if _, err := r.Notifier.Send(ctx, userID, rep.Message); err != nil {
			r.Logger.Warn("メッセージの送信に失敗しました",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (r *Router) sendInternalError(ctx context.Context, userID int64) {
	if _, err := r.Notifier.Send(ctx, userID, r.View.WithMenu("internal_error")); err != nil {
		r.Logger.Warn("エラー通知の送信に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
