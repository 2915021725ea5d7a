package model

import (
	"strings"
	"time"
)

// PaymentStatus は売上の支払い状態を表す。
type PaymentStatus string

const (
	// PaymentPaid は支払い済み。
	PaymentPaid PaymentStatus = "paid"
	// PaymentBooked は予約のみで未払い。
	PaymentBooked PaymentStatus = "booked"
	// PaymentPendingSettlement は掲載後に精算する（СПМ）。
	PaymentPendingSettlement PaymentStatus = "pending_settlement"
)

var paymentLabels = map[PaymentStatus]string{
	PaymentPaid:              "Оплачено",
	PaymentBooked:            "Забронировано",
	PaymentPendingSettlement: "По СПМ",
}

// PaymentStatuses は選択肢として提示する順序で全ステータスを返す。
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentPaid, PaymentBooked, PaymentPendingSettlement}
}

// Label は利用者に表示するラベルを返す。
func (s PaymentStatus) Label() string {
	return paymentLabels[s]
}

// Valid は定義済みのステータスかどうかを返す。
func (s PaymentStatus) Valid() bool {
	_, ok := paymentLabels[s]
	return ok
}

// ParsePaymentStatusLabel はラベルの完全一致でステータスを解決する。
func ParsePaymentStatusLabel(label string) (PaymentStatus, bool) {
	label = strings.TrimSpace(label)
	for _, s := range PaymentStatuses() {
		if paymentLabels[s] == label {
			return s, true
		}
	}
	return "", false
}

// FormatKind は掲載フォーマットの種別を表す。
type FormatKind int

const (
	// FormatCustom は利用者が自由入力したフォーマット。
	FormatCustom FormatKind = iota
	Format1x1
	Format1x24
	Format1x48
	Format1x72
	// FormatPermanent は削除なしの掲載。
	FormatPermanent
)

var formatLabels = map[FormatKind]string{
	Format1x1:       "1/1",
	Format1x24:      "1/24",
	Format1x48:      "1/48",
	Format1x72:      "1/72",
	FormatPermanent: "Без удаления",
}

// PublicationFormat は掲載フォーマット。定義済みの種別か自由入力のいずれか。
type PublicationFormat struct {
	Kind FormatKind
	Text string // Kind が FormatCustom のときのみ使う
}

// PresetFormats は選択肢として提示する定義済みフォーマットを返す。
func PresetFormats() []PublicationFormat {
	return []PublicationFormat{
		{Kind: Format1x1}, {Kind: Format1x24}, {Kind: Format1x48}, {Kind: Format1x72}, {Kind: FormatPermanent},
	}
}

// ParsePublicationFormat は入力を定義済みフォーマットに照合し、一致しなければ自由入力として扱う。
func ParsePublicationFormat(s string) PublicationFormat {
	s = strings.TrimSpace(s)
	for kind, label := range formatLabels {
		if label == s {
			return PublicationFormat{Kind: kind}
		}
	}
	return PublicationFormat{Kind: FormatCustom, Text: s}
}

// String は保存および表示に使う文字列を返す。
func (f PublicationFormat) String() string {
	if f.Kind == FormatCustom {
		return f.Text
	}
	return formatLabels[f.Kind]
}

// Sale は1件の広告枠販売を表す。
type Sale struct {
	ID             int64
	ChannelID      int64
	WriterID       int64
	Buyer          string
	Cost           Money
	ManagerPercent Percent
	Format         PublicationFormat
	Status         PaymentStatus
	PublishedAt    time.Time // 掲載日時
	CreatedAt      time.Time
}

// ManagerShare はマネージャー取り分を返す。
func (s *Sale) ManagerShare() Money {
	return ManagerShare(s.Cost, s.ManagerPercent)
}

// PendingReminder は未送信の支払いリマインダーを表す。
type PendingReminder struct {
	ID        int64
	SaleID    int64
	DueAt     time.Time
	CreatedAt time.Time
}

// DueReminder は送信対象のリマインダーと関連する売上をまとめたもの。
type DueReminder struct {
	PendingReminder
	Sale Sale
}

// SaleField は編集可能な売上の項目を表す。
type SaleField string

const (
	FieldBuyer   SaleField = "buyer"
	FieldCost    SaleField = "cost"
	FieldPercent SaleField = "percent"
	FieldFormat  SaleField = "format"
	FieldStatus  SaleField = "status"
)

// スプレッドシート上の列番号（1始まり）。
var fieldColumns = map[SaleField]int{
	FieldBuyer:   3,
	FieldCost:    4,
	FieldPercent: 5,
	FieldFormat:  6,
	FieldStatus:  7,
}

// Column はスプレッドシート上の列番号を返す。未定義なら0。
func (f SaleField) Column() int {
	return fieldColumns[f]
}

// Valid は編集可能な項目かどうかを返す。
func (f SaleField) Valid() bool {
	_, ok := fieldColumns[f]
	return ok
}

// MirrorHeader はスプレッドシートのヘッダー行。
var MirrorHeader = []string{
	"Дата", "Время", "Покупатель", "Стоимость", "Процент менеджеру", "Формат публикации", "Статус оплаты",
}

// MirrorRow はスプレッドシートに書き込む1行分の値を返す。
func (s *Sale) MirrorRow(loc *time.Location) []string {
	t := s.PublishedAt.In(loc)
	return []string{
		t.Format("02.01.2006"),
		t.Format("15:04"),
		s.Buyer,
		s.Cost.String(),
		s.ManagerPercent.String(),
		s.Format.String(),
		s.Status.Label(),
	}
}

// MirrorValue は指定項目のスプレッドシート上の値を返す。
func (s *Sale) MirrorValue(f SaleField) string {
	switch f {
	case FieldBuyer:
		return s.Buyer
	case FieldCost:
		return s.Cost.String()
	case FieldPercent:
		return s.ManagerPercent.String()
	case FieldFormat:
		return s.Format.String()
	case FieldStatus:
		return s.Status.Label()
	}
	return ""
}
