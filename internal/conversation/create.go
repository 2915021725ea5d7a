package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/sale"
	"github.com/hitoshi/adledger/internal/security"
	"github.com/hitoshi/adledger/internal/view"
)

// 売上作成のステップ。この順にしか進まない。
const (
	StateSelectChannel State = "select_channel"
	StateSelectDate    State = "select_date"
	StateSelectTime    State = "select_time"
	StateEnterBuyer    State = "enter_buyer"
	StateEnterFormat   State = "enter_format"
	StateEnterCost     State = "enter_cost"
	StateEnterPercent  State = "enter_manager_percent"
	StateEnterStatus   State = "enter_payment_status"
)

// SaleDraft は売上作成中に集めた値。各ステップが1項目ずつ埋める。
type SaleDraft struct {
	ChannelID    int64  `json:"channel_id,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
	ViewYear     int    `json:"view_year,omitempty"`
	ViewMonth    int    `json:"view_month,omitempty"`
	Date         string `json:"date,omitempty"`
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	Buyer        string `json:"buyer,omitempty"`
	Format       string `json:"format,omitempty"`
	Cost         int64  `json:"cost"`
	Percent      int64  `json:"percent"`
}

func (d *SaleDraft) viewMonth() calendar.Month {
	return calendar.Month{Year: d.ViewYear, Month: time.Month(d.ViewMonth)}
}

func (d *SaleDraft) setViewMonth(m calendar.Month) {
	d.ViewYear, d.ViewMonth = m.Year, int(m.Month)
}

// ChannelDirectory はチャンネルの一覧と作成。
type ChannelDirectory interface {
	ListForUser(ctx context.Context, userID int64) ([]*model.Channel, error)
	Create(ctx context.Context, creatorID int64, rawTitle string) (*model.Channel, error)
}

// WriteGate は書き込み権限の確認。
type WriteGate interface {
	RequireWrite(ctx context.Context, userID, channelID int64) (*model.Channel, error)
}

// MonthReader は月ごとの売上件数の読み出し。
type MonthReader interface {
	Month(ctx context.Context, channelID int64, m calendar.Month) (*calendar.MonthSummary, error)
}

// Committer は完成した下書きから売上を記録する。
type Committer interface {
	Commit(ctx context.Context, writer *model.User, s *model.Sale) (*sale.Receipt, error)
}

// SaleFlowDeps はSaleFlowの依存をまとめたもの。
type SaleFlowDeps struct {
	Store     Store
	Channels  ChannelDirectory
	Gate      WriteGate
	Index     MonthReader
	Committer Committer
	View      *view.Renderer
	Sanitizer security.TextSanitizer
	Logger    *slog.Logger
}

// SaleFlow は売上作成の対話。
type SaleFlow struct {
	SaleFlowDeps
	now   func() time.Time
	steps map[State]saleStep
}

type saleStep func(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error)

// saleTurn は1回の入力の処理中に扱う状態。
type saleTurn struct {
	user  *model.User
	sess  *Session
	draft *SaleDraft
	done  bool
}

// NewSaleFlow はSaleFlowを生成する。
func NewSaleFlow(d SaleFlowDeps) *SaleFlow {
	f := &SaleFlow{SaleFlowDeps: d, now: time.Now}
	f.steps = map[State]saleStep{
		StateSelectChannel: f.selectChannel,
		StateSelectDate:    f.selectDate,
		StateSelectTime:    f.selectTime,
		StateEnterBuyer:    f.enterBuyer,
		StateEnterFormat:   f.enterFormat,
		StateEnterCost:     f.enterCost,
		StateEnterPercent:  f.enterPercent,
		StateEnterStatus:   f.enterStatus,
	}
	return f
}

// Start は売上作成を始める。既存のセッションは置き換える。
func (f *SaleFlow) Start(ctx context.Context, user *model.User) ([]Reply, error) {
	channels, err := f.Channels.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	sess := NewSession(user.ID, FlowCreateSale, StateSelectChannel)
	if err := f.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return send(f.View.Prompt("ask_channel_first", f.View.CancelKeyboard())), nil
	}
	return send(
		f.View.Prompt("ask_channel", f.View.CancelKeyboard()),
		f.channelPicker(sess, channels),
	), nil
}

func (f *SaleFlow) channelPicker(sess *Session, channels []*model.Channel) notify.Message {
	return notify.Message{
		Text:   f.View.Catalog().Get("channels_list"),
		Inline: f.View.ChannelPicker(sess.Token(), channels),
	}
}

// Handle は進行中のセッションに入力を適用する。
// 入力不正は同じステップで再入力を促し、下書きは保持する。
func (f *SaleFlow) Handle(ctx context.Context, user *model.User, sess *Session, ev Event) ([]Reply, error) {
	if _, ok := ev.(Cancel); ok {
		return cancel(ctx, f.Store, f.View, user.ID)
	}

	step, ok := f.steps[sess.State]
	if !ok {
		return nil, fmt.Errorf("未定義のステップです: %q", sess.State)
	}
	t := &saleTurn{user: user, sess: sess, draft: &SaleDraft{}}
	if err := sess.Decode(t.draft); err != nil {
		return nil, err
	}

	replies, err := step(ctx, t, ev)
	if err != nil {
		return nil, err
	}
	if t.done {
		if err := f.Store.Clear(ctx, user.ID); err != nil {
			return nil, err
		}
		return replies, nil
	}
	if err := sess.Encode(t.draft); err != nil {
		return nil, err
	}
	if err := f.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return replies, nil
}

func cancel(ctx context.Context, store Store, v *view.Renderer, userID int64) ([]Reply, error) {
	if err := store.Clear(ctx, userID); err != nil {
		return nil, err
	}
	return send(v.WithMenu("cancelled")), nil
}

// reprompt は入力エラーの文面を現在のステップのキーボード付きで返す。
// AppError 以外はそのまま返す。
func reprompt(v *view.Renderer, err error, kb *notify.ReplyKeyboard) ([]Reply, error) {
	switch model.KindOf(err) {
	case model.KindValidation, model.KindConflict:
		msg := v.Error(err)
		msg.Reply = kb
		return send(msg), nil
	}
	return nil, err
}

func (f *SaleFlow) selectChannel(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	switch e := ev.(type) {
	case PickChannel:
		ch, err := f.Gate.RequireWrite(ctx, t.user.ID, e.ChannelID)
		if model.IsKind(err, model.KindAuthorization) || model.IsKind(err, model.KindNotFound) {
			return send(f.View.Error(err)), nil
		}
		if err != nil {
			return nil, err
		}
		return f.toDate(ctx, t, ch, true)

	case Text:
		ch, err := f.Channels.Create(ctx, t.user.ID, e.Text)
		if err != nil {
			return reprompt(f.View, err, f.View.CancelKeyboard())
		}
		replies, err := f.toDate(ctx, t, ch, false)
		if err != nil {
			return nil, err
		}
		created := f.View.Text("channel_created", "channel", ch.Title)
		return append(send(created), replies...), nil
	}
	return nil, nil
}

func (f *SaleFlow) toDate(ctx context.Context, t *saleTurn, ch *model.Channel, fromButton bool) ([]Reply, error) {
	t.draft.ChannelID = ch.ID
	t.draft.ChannelTitle = ch.Title
	m := calendar.MonthOf(f.now(), f.View.Location())
	t.draft.setViewMonth(m)
	t.sess.State = StateSelectDate

	picker, err := f.datePicker(ctx, t, m)
	if err != nil {
		return nil, err
	}
	if fromButton {
		return []Reply{replace(picker)}, nil
	}
	return send(picker), nil
}

func (f *SaleFlow) datePicker(ctx context.Context, t *saleTurn, m calendar.Month) (notify.Message, error) {
	sum, err := f.Index.Month(ctx, t.draft.ChannelID, m)
	if err != nil {
		return notify.Message{}, err
	}
	return f.View.DatePicker(t.sess.Token(), m, sum.Counts), nil
}

func (f *SaleFlow) selectDate(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	var cev calendar.Event
	switch e := ev.(type) {
	case Navigate:
		cev = calendar.Navigate{Month: e.Month}
	case DaySelected:
		cev = calendar.DaySelected{Date: e.Date}
	case Text:
		picker, err := f.datePicker(ctx, t, t.draft.viewMonth())
		if err != nil {
			return nil, err
		}
		return send(picker), nil
	default:
		return nil, nil
	}

	next, ok := calendar.Transition(cev, f.now(), f.View.Location())
	if !ok {
		return nil, nil
	}
	if next.Kind == calendar.ViewMonth {
		t.draft.setViewMonth(next.Month)
		picker, err := f.datePicker(ctx, t, next.Month)
		if err != nil {
			return nil, err
		}
		return []Reply{replace(picker)}, nil
	}

	t.draft.Date = next.Date.String()
	t.sess.State = StateSelectTime
	return []Reply{
		replace(f.View.Text("date_chosen", "date", next.Date.Display())),
		{Message: f.View.Prompt("ask_time", f.View.TimeKeyboard())},
	}, nil
}

func (f *SaleFlow) selectTime(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	var h, m int
	switch e := ev.(type) {
	case Text:
		var err error
		if h, m, err = ParseClock(e.Text); err != nil {
			return reprompt(f.View, err, f.View.TimeKeyboard())
		}
	case WebAppTime:
		if !ValidClock(e.Hour, e.Minute) {
			return reprompt(f.View, model.NewInvalidTimeError(fmt.Sprintf("%d:%d", e.Hour, e.Minute)), f.View.TimeKeyboard())
		}
		h, m = e.Hour, e.Minute
	default:
		return nil, nil
	}

	t.draft.Hour, t.draft.Minute = h, m
	t.sess.State = StateEnterBuyer
	return send(f.View.Prompt("ask_buyer", f.View.CancelKeyboard())), nil
}

func (f *SaleFlow) enterBuyer(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	e, ok := ev.(Text)
	if !ok {
		return nil, nil
	}
	buyer, err := cleanText(f.Sanitizer, e.Text, security.MaxBuyerLen)
	if err != nil {
		return reprompt(f.View, err, f.View.CancelKeyboard())
	}
	t.draft.Buyer = buyer
	t.sess.State = StateEnterFormat
	return send(f.View.Prompt("ask_format", f.View.FormatKeyboard())), nil
}

func (f *SaleFlow) enterFormat(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	e, ok := ev.(Text)
	if !ok {
		return nil, nil
	}
	format, err := cleanText(f.Sanitizer, e.Text, security.MaxFormatLen)
	if err != nil {
		return reprompt(f.View, err, f.View.FormatKeyboard())
	}
	t.draft.Format = format
	t.sess.State = StateEnterCost
	return send(f.View.Prompt("ask_cost", f.View.CancelKeyboard())), nil
}

func (f *SaleFlow) enterCost(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	e, ok := ev.(Text)
	if !ok {
		return nil, nil
	}
	cost, err := ParseCost(e.Text)
	if err != nil {
		return reprompt(f.View, err, f.View.CancelKeyboard())
	}
	t.draft.Cost = int64(cost)
	t.sess.State = StateEnterPercent
	return send(f.View.Prompt("ask_percent", f.View.CancelKeyboard())), nil
}

func (f *SaleFlow) enterPercent(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	e, ok := ev.(Text)
	if !ok {
		return nil, nil
	}
	p, err := ParseManagerPercent(e.Text)
	if err != nil {
		return reprompt(f.View, err, f.View.CancelKeyboard())
	}
	t.draft.Percent = int64(p)
	t.sess.State = StateEnterStatus
	return send(f.View.Prompt("ask_status", f.View.StatusKeyboard())), nil
}

func (f *SaleFlow) enterStatus(ctx context.Context, t *saleTurn, ev Event) ([]Reply, error) {
	e, ok := ev.(Text)
	if !ok {
		return nil, nil
	}
	status, err := ParseStatus(e.Text)
	if err != nil {
		return reprompt(f.View, err, f.View.StatusKeyboard())
	}

	s, err := t.draft.toSale(status, f.View.Location())
	if err != nil {
		return nil, err
	}
	receipt, err := f.Committer.Commit(ctx, t.user, s)
	switch model.KindOf(err) {
	case "":
	case model.KindAuthorization, model.KindNotFound, model.KindValidation:
		// 途中で権限を失った場合などは下書きを破棄して終える
		t.done = true
		msg := f.View.Error(err)
		msg.Reply = f.View.MainMenu()
		return send(msg), nil
	}
	if err != nil {
		return nil, err
	}

	t.done = true
	return f.receiptReplies(receipt), nil
}

func (f *SaleFlow) receiptReplies(r *sale.Receipt) []Reply {
	msgs := []notify.Message{f.View.Report(r.Sale, r.TableURL)}
	if r.MirrorErr != nil {
		msgs = append(msgs, f.View.Error(r.MirrorErr))
	}
	var closing notify.Message
	if r.Summary != nil {
		closing = f.View.MonthSummary(r.Summary)
	} else {
		closing = f.View.Text("menu")
	}
	closing.Reply = f.View.MainMenu()
	return send(append(msgs, closing)...)
}

func (d *SaleDraft) toSale(status model.PaymentStatus, loc *time.Location) (*model.Sale, error) {
	date, err := calendar.ParseDate(d.Date)
	if err != nil {
		return nil, fmt.Errorf("下書きの日付が不正です: %w", err)
	}
	return &model.Sale{
		ChannelID:      d.ChannelID,
		Buyer:          d.Buyer,
		Cost:           model.Money(d.Cost),
		ManagerPercent: model.Percent(d.Percent),
		Format:         model.ParsePublicationFormat(d.Format),
		Status:         status,
		PublishedAt:    date.At(d.Hour, d.Minute, loc),
	}, nil
}
