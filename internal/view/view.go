// Package view は文面カタログとコールバック符号を使って送信メッセージを組み立てる。
package view

import (
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/adledger/internal/bot/callback"
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
)

// Renderer はメッセージとキーボードを組み立てる。
type Renderer struct {
	catalog   *messages.Catalog
	loc       *time.Location
	webAppURL string
}

// NewRenderer はRendererを生成する。webAppURL が空なら時刻選択のWebAppボタンは出さない。
func NewRenderer(catalog *messages.Catalog, loc *time.Location, webAppURL string) *Renderer {
	return &Renderer{catalog: catalog, loc: loc, webAppURL: webAppURL}
}

// Catalog は文面カタログを返す。
func (r *Renderer) Catalog() *messages.Catalog { return r.catalog }

// Location は表示に使うタイムゾーンを返す。
func (r *Renderer) Location() *time.Location { return r.loc }

// Text は文面だけのメッセージを返す。
func (r *Renderer) Text(key string, kv ...string) notify.Message {
	return notify.Message{Text: r.catalog.Format(key, kv...)}
}

// --- 返信キーボード ---

// MainMenu はメインメニューのキーボード。
func (r *Renderer) MainMenu() *notify.ReplyKeyboard {
	c := r.catalog
	return &notify.ReplyKeyboard{Rows: [][]notify.ReplyButton{
		{{Text: c.Get("btn_create_sale")}, {Text: c.Get("btn_calendar")}},
		{{Text: c.Get("btn_income")}, {Text: c.Get("btn_channels")}},
	}}
}

// WithMenu はメインメニューを付けたメッセージを返す。
func (r *Renderer) WithMenu(key string, kv ...string) notify.Message {
	msg := r.Text(key, kv...)
	msg.Reply = r.MainMenu()
	return msg
}

// CancelKeyboard は取り消しボタンだけのキーボード。
func (r *Renderer) CancelKeyboard() *notify.ReplyKeyboard {
	return &notify.ReplyKeyboard{Rows: [][]notify.ReplyButton{{{Text: r.catalog.Get("btn_cancel")}}}}
}

// TimeKeyboard は時刻入力用のキーボード。WebAppが設定されていれば時刻選択ボタンを出す。
func (r *Renderer) TimeKeyboard() *notify.ReplyKeyboard {
	kb := r.CancelKeyboard()
	if r.webAppURL != "" {
		picker := []notify.ReplyButton{{Text: r.catalog.Get("btn_time_picker"), WebAppURL: r.webAppURL}}
		kb.Rows = append([][]notify.ReplyButton{picker}, kb.Rows...)
	}
	return kb
}

// FormatKeyboard は掲載フォーマットの選択肢。
func (r *Renderer) FormatKeyboard() *notify.ReplyKeyboard {
	var row []notify.ReplyButton
	for _, f := range model.PresetFormats() {
		row = append(row, notify.ReplyButton{Text: f.String()})
	}
	return &notify.ReplyKeyboard{Rows: [][]notify.ReplyButton{
		row[:4], row[4:],
		{{Text: r.catalog.Get("btn_cancel")}},
	}}
}

// StatusKeyboard は支払い状態の選択肢。
func (r *Renderer) StatusKeyboard() *notify.ReplyKeyboard {
	var row []notify.ReplyButton
	for _, s := range model.PaymentStatuses() {
		row = append(row, notify.ReplyButton{Text: s.Label()})
	}
	return &notify.ReplyKeyboard{Rows: [][]notify.ReplyButton{
		row,
		{{Text: r.catalog.Get("btn_cancel")}},
	}}
}

// Prompt はキーボード付きの入力促しメッセージ。
func (r *Renderer) Prompt(key string, kb *notify.ReplyKeyboard) notify.Message {
	return notify.Message{Text: r.catalog.Get(key), Reply: kb}
}

// --- インラインキーボード ---

// ChannelPicker は対話中のチャンネル選択ボタン。
func (r *Renderer) ChannelPicker(token string, channels []*model.Channel) [][]notify.Button {
	rows := make([][]notify.Button, 0, len(channels))
	for _, ch := range channels {
		data := callback.Data{Action: callback.PickChannel, Token: token, ChannelID: ch.ID}
		rows = append(rows, []notify.Button{notify.CallbackButton(ch.Title, data.String())})
	}
	return rows
}

// CalendarKeyboard は月曜始まりのカレンダー。nav と day は各ボタンのコールバックデータを作る。
// 売上のある日には件数の点表記を付ける。
func (r *Renderer) CalendarKeyboard(m calendar.Month, counts map[int]int, nav func(calendar.Month) string, day func(calendar.Date) string) [][]notify.Button {
	noop := callback.Data{Action: callback.Noop}.String()

	var rows [][]notify.Button
	header := []notify.Button{
		notify.CallbackButton("‹", noop),
		notify.CallbackButton(r.catalog.MonthTitle(m.Year, m.Month), noop),
		notify.CallbackButton("›", noop),
	}
	if prev := m.Prev(); prev.Valid() {
		header[0].Data = nav(prev)
	}
	if next := m.Next(); next.Valid() {
		header[2].Data = nav(next)
	}
	rows = append(rows, header)

	weekdays := make([]notify.Button, 0, 7)
	for _, w := range r.catalog.Weekdays {
		weekdays = append(weekdays, notify.CallbackButton(w, noop))
	}
	rows = append(rows, weekdays)

	for _, week := range calendar.Grid(m, counts) {
		row := make([]notify.Button, 0, 7)
		for _, cell := range week {
			if cell.Day == 0 {
				row = append(row, notify.CallbackButton(" ", noop))
				continue
			}
			label := strconv.Itoa(cell.Day) + calendar.DensityMarker(cell.Count)
			date := calendar.Date{Year: m.Year, Month: m.Month, Day: cell.Day}
			row = append(row, notify.CallbackButton(label, day(date)))
		}
		rows = append(rows, row)
	}
	return rows
}

// DatePicker は売上作成中の日付選択カレンダー。
func (r *Renderer) DatePicker(token string, m calendar.Month, counts map[int]int) notify.Message {
	kb := r.CalendarKeyboard(m, counts,
		func(to calendar.Month) string {
			return callback.Data{Action: callback.DateNav, Token: token, Month: to}.String()
		},
		func(d calendar.Date) string {
			return callback.Data{Action: callback.DatePick, Token: token, Date: d}.String()
		},
	)
	cancel := callback.Data{Action: callback.Cancel, Token: token}.String()
	kb = append(kb, []notify.Button{notify.CallbackButton(r.catalog.Get("btn_cancel"), cancel)})
	return notify.Message{Text: r.catalog.Get("ask_date"), Inline: kb}
}

// MonthView はカレンダー閲覧の月画面。
func (r *Renderer) MonthView(ch *model.Channel, sum *calendar.MonthSummary) notify.Message {
	kb := r.CalendarKeyboard(sum.Month, sum.Counts,
		func(to calendar.Month) string {
			return callback.Data{Action: callback.CalendarNav, ChannelID: ch.ID, Month: to}.String()
		},
		func(d calendar.Date) string {
			return callback.Data{Action: callback.CalendarDay, ChannelID: ch.ID, Date: d}.String()
		},
	)
	return notify.Message{
		Text: r.catalog.Format("calendar_month",
			"channel", ch.Title,
			"month", r.catalog.MonthTitle(sum.Month.Year, sum.Month.Month),
			"count", strconv.Itoa(sum.SalesCount),
			"revenue", r.catalog.Money(sum.Revenue),
			"share", r.catalog.Money(sum.ManagerShare),
		),
		Inline: kb,
	}
}

// DayView は日ごとの売上一覧。各売上はカードを開くボタンになる。
func (r *Renderer) DayView(ch *model.Channel, d calendar.Date, sales []*model.Sale) notify.Message {
	var kb [][]notify.Button
	for _, s := range sales {
		// ボタンの文字はHTMLとして解釈されない
		label := r.catalog.FormatRaw("day_sale_line",
			"time", s.PublishedAt.In(r.loc).Format("15:04"),
			"buyer", s.Buyer,
			"cost", r.catalog.Money(s.Cost),
		)
		data := callback.Data{Action: callback.SaleOpen, SaleID: s.ID}
		kb = append(kb, []notify.Button{notify.CallbackButton(label, data.String())})
	}
	back := callback.Data{Action: callback.CalendarNav, ChannelID: ch.ID, Month: d.MonthOf()}
	kb = append(kb, []notify.Button{notify.CallbackButton(r.catalog.Get("btn_back"), back.String())})

	total := calendar.DayTotal(sales)
	text := r.catalog.Format("day_header", "channel", ch.Title, "date", d.Display()) + "\n\n" +
		r.catalog.Format("day_total", "cost", r.catalog.Money(total.Cost), "share", r.catalog.Money(total.ManagerShare))
	return notify.Message{Text: text, Inline: kb}
}

// SaleCard は売上の詳細と編集ボタン。削除ボタンは canDelete のときだけ出す。
func (r *Renderer) SaleCard(s *model.Sale, writer *model.User, canDelete bool) notify.Message {
	t := s.PublishedAt.In(r.loc)
	writerName := "—"
	if writer != nil {
		writerName = writer.DisplayName()
	}
	text := r.catalog.Format("sale_card",
		"writer", writerName,
		"percent", s.ManagerPercent.String(),
		"share", r.catalog.Money(s.ManagerShare()),
		"cost", r.catalog.Money(s.Cost),
		"format", s.Format.String(),
		"buyer", s.Buyer,
		"status", s.Status.Label(),
		"date", t.Format("02.01.2006"),
		"time", t.Format("15:04"),
	)

	edit := func(key string, f model.SaleField) notify.Button {
		return notify.CallbackButton(r.catalog.Get(key), callback.Data{Action: callback.SaleEdit, SaleID: s.ID, Field: f}.String())
	}
	kb := [][]notify.Button{
		{edit("btn_edit_buyer", model.FieldBuyer), edit("btn_edit_cost", model.FieldCost)},
		{edit("btn_edit_percent", model.FieldPercent), edit("btn_edit_format", model.FieldFormat)},
		{edit("btn_edit_status", model.FieldStatus)},
	}
	if canDelete {
		del := callback.Data{Action: callback.SaleDelete, SaleID: s.ID}
		kb = append(kb, []notify.Button{notify.CallbackButton(r.catalog.Get("btn_delete"), del.String())})
	}
	back := callback.Data{Action: callback.CalendarDay, ChannelID: s.ChannelID, Date: calendar.DateOf(s.PublishedAt, r.loc)}
	kb = append(kb, []notify.Button{notify.CallbackButton(r.catalog.Get("btn_back"), back.String())})
	return notify.Message{Text: text, Inline: kb}
}

// DeleteConfirm は削除の確認。
func (r *Renderer) DeleteConfirm(s *model.Sale) notify.Message {
	yes := callback.Data{Action: callback.SaleDeleteYes, SaleID: s.ID}
	no := callback.Data{Action: callback.SaleOpen, SaleID: s.ID}
	return notify.Message{
		Text: r.catalog.Get("ask_delete"),
		Inline: [][]notify.Button{{
			notify.CallbackButton(r.catalog.Get("btn_delete_confirm"), yes.String()),
			notify.CallbackButton(r.catalog.Get("btn_back"), no.String()),
		}},
	}
}

// FieldPrompt は編集項目ごとの入力促し。
func (r *Renderer) FieldPrompt(f model.SaleField) notify.Message {
	switch f {
	case model.FieldCost:
		return r.Prompt("ask_cost", r.CancelKeyboard())
	case model.FieldPercent:
		return r.Prompt("ask_percent", r.CancelKeyboard())
	case model.FieldFormat:
		return r.Prompt("ask_format", r.FormatKeyboard())
	case model.FieldStatus:
		return r.Prompt("ask_status", r.StatusKeyboard())
	}
	return r.Prompt("ask_buyer", r.CancelKeyboard())
}

// --- チャンネル ---

// ChannelList はチャンネル一覧。各チャンネルは設定画面を開くボタンになる。
func (r *Renderer) ChannelList(channels []*model.Channel, action callback.Action) notify.Message {
	if len(channels) == 0 {
		return r.WithMenu("no_channels")
	}
	key := "channels_list"
	if action == callback.CalendarOpen {
		key = "calendar_choose_channel"
	}
	kb := make([][]notify.Button, 0, len(channels))
	for _, ch := range channels {
		data := callback.Data{Action: action, ChannelID: ch.ID}
		kb = append(kb, []notify.Button{notify.CallbackButton(ch.Title, data.String())})
	}
	return notify.Message{Text: r.catalog.Get(key), Inline: kb}
}

// ChannelSettings はチャンネル設定画面。
func (r *Renderer) ChannelSettings(ch *model.Channel, inviteLink, tableURL string) notify.Message {
	text := r.catalog.Format("channel_settings", "channel", ch.Title, "link", inviteLink)
	var kb [][]notify.Button
	if tableURL != "" {
		kb = append(kb, []notify.Button{notify.URLButton(r.catalog.Get("btn_open_table"), tableURL)})
	}
	back := callback.Data{Action: callback.ChannelList}
	kb = append(kb, []notify.Button{notify.CallbackButton(r.catalog.Get("btn_back"), back.String())})
	return notify.Message{Text: text, Inline: kb, NoPreview: true}
}

// Income はチャンネルごとの累計売上。
func (r *Renderer) Income(totals []*model.ChannelTotals) notify.Message {
	if len(totals) == 0 {
		return r.WithMenu("no_channels")
	}
	parts := []string{r.catalog.Get("income_header")}
	for _, t := range totals {
		parts = append(parts, r.catalog.Format("income_line",
			"channel", t.Title,
			"revenue", r.catalog.Money(t.Revenue),
			"share", r.catalog.Money(t.ManagerShare),
		))
	}
	msg := notify.Message{Text: strings.Join(parts, "\n\n")}
	msg.Reply = r.MainMenu()
	return msg
}

// --- 売上の記録 ---

// Report は記録完了時の報告。tableURL があれば表を開くボタンを付ける。
func (r *Renderer) Report(s *model.Sale, tableURL string) notify.Message {
	t := s.PublishedAt.In(r.loc)
	msg := notify.Message{Text: r.catalog.Format("report",
		"date", t.Format("02.01.2006"),
		"time", t.Format("15:04"),
		"cost", r.catalog.Money(s.Cost),
		"percent", s.ManagerPercent.String(),
		"share", r.catalog.Money(s.ManagerShare()),
	)}
	if tableURL != "" {
		msg.Inline = [][]notify.Button{{notify.URLButton(r.catalog.Get("btn_open_table"), tableURL)}}
	}
	return msg
}

// MonthSummary は記録した月の集計。
func (r *Renderer) MonthSummary(sum *calendar.MonthSummary) notify.Message {
	return notify.Message{Text: r.catalog.Format("month_summary",
		"month", r.catalog.MonthName(sum.Month.Month),
		"revenue", r.catalog.Money(sum.Revenue),
		"share", r.catalog.Money(sum.ManagerShare),
	)}
}

// CreatorNotice は編集者が記録した売上をチャンネル作成者に知らせる。
func (r *Renderer) CreatorNotice(ch *model.Channel, writer *model.User, s *model.Sale) notify.Message {
	t := s.PublishedAt.In(r.loc)
	open := callback.Data{Action: callback.SaleOpen, SaleID: s.ID}
	return notify.Message{
		Text: r.catalog.Format("creator_notice",
			"channel", ch.Title,
			"manager", writer.DisplayName(),
			"date", t.Format("02.01.2006"),
			"time", t.Format("15:04"),
			"cost", r.catalog.Money(s.Cost),
			"format", s.Format.String(),
		),
		Inline: [][]notify.Button{{notify.CallbackButton(r.catalog.Get("btn_open_sale"), open.String())}},
	}
}

// Error はエラーに対応する文面。
func (r *Renderer) Error(err error) notify.Message {
	return notify.Message{Text: r.catalog.Error(err)}
}
