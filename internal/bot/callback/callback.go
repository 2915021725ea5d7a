// Package callback はインラインボタンのコールバックデータを符号化する。
// 形式は "<action>:<arg>:..." で、Telegramの上限64バイトに収める。
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/model"
)

// MaxLen はコールバックデータの最大バイト数。
const MaxLen = 64

// Action はボタンの操作種別。
type Action string

const (
	// 売上作成の対話内の操作。Token は対話セッションの識別子。
	PickChannel Action = "pc" // pc:<token>:<channelID>
	DateNav     Action = "dn" // dn:<token>:<yyyy>:<mm>
	DatePick    Action = "dp" // dp:<token>:<yyyymmdd>
	Cancel      Action = "cx" // cx:<token>

	// カレンダー閲覧
	CalendarOpen Action = "co" // co:<channelID>
	CalendarNav  Action = "cn" // cn:<channelID>:<yyyy>:<mm>
	CalendarDay  Action = "cd" // cd:<channelID>:<yyyymmdd>

	// 売上カード
	SaleOpen      Action = "so" // so:<saleID>
	SaleEdit      Action = "se" // se:<saleID>:<field>
	SaleDelete    Action = "sd" // sd:<saleID>
	SaleDeleteYes Action = "sy" // sy:<saleID>

	// チャンネル
	ChannelList     Action = "cl" // cl
	ChannelSettings Action = "cs" // cs:<channelID>

	// Noop は空白マスなど押しても何もしないボタン。
	Noop Action = "no"
)

// ErrMalformed は解釈できないコールバックデータ。
var ErrMalformed = errors.New("malformed callback data")

// Data は復号済みのコールバックデータ。
type Data struct {
	Action    Action
	Token     string
	ChannelID int64
	SaleID    int64
	Month     calendar.Month
	Date      calendar.Date
	Field     model.SaleField
}

const dateLayout = "20060102"

func formatDate(d calendar.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

func parseDate(s string) (calendar.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return calendar.Date{}, err
	}
	return calendar.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String はコールバックデータを符号化する。
func (d Data) String() string {
	parts := []string{string(d.Action)}
	switch d.Action {
	case PickChannel:
		parts = append(parts, d.Token, strconv.FormatInt(d.ChannelID, 10))
	case DateNav:
		parts = append(parts, d.Token, strconv.Itoa(d.Month.Year), strconv.Itoa(int(d.Month.Month)))
	case DatePick:
		parts = append(parts, d.Token, formatDate(d.Date))
	case Cancel:
		parts = append(parts, d.Token)
	case CalendarOpen, ChannelSettings:
		parts = append(parts, strconv.FormatInt(d.ChannelID, 10))
	case CalendarNav:
		parts = append(parts, strconv.FormatInt(d.ChannelID, 10), strconv.Itoa(d.Month.Year), strconv.Itoa(int(d.Month.Month)))
	case CalendarDay:
		parts = append(parts, strconv.FormatInt(d.ChannelID, 10), formatDate(d.Date))
	case SaleOpen, SaleDelete, SaleDeleteYes:
		parts = append(parts, strconv.FormatInt(d.SaleID, 10))
	case SaleEdit:
		parts = append(parts, strconv.FormatInt(d.SaleID, 10), string(d.Field))
	}
	return strings.Join(parts, ":")
}

var arity = map[Action]int{
	PickChannel: 2, DateNav: 3, DatePick: 2, Cancel: 1,
	CalendarOpen: 1, CalendarNav: 3, CalendarDay: 2,
	SaleOpen: 1, SaleEdit: 2, SaleDelete: 1, SaleDeleteYes: 1,
	ChannelList: 0, ChannelSettings: 1, Noop: 0,
}

// Parse はコールバックデータを復号する。
func Parse(s string) (Data, error) {
	if len(s) == 0 || len(s) > MaxLen {
		return Data{}, ErrMalformed
	}
	parts := strings.Split(s, ":")
	d := Data{Action: Action(parts[0])}
	n, ok := arity[d.Action]
	if !ok || len(parts)-1 != n {
		return Data{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	args := parts[1:]

	var err error
	switch d.Action {
	case PickChannel:
		d.Token = args[0]
		d.ChannelID, err = strconv.ParseInt(args[1], 10, 64)
	case DateNav:
		d.Token = args[0]
		d.Month, err = parseMonth(args[1], args[2])
	case DatePick:
		d.Token = args[0]
		d.Date, err = parseDate(args[1])
	case Cancel:
		d.Token = args[0]
	case CalendarOpen, ChannelSettings:
		d.ChannelID, err = strconv.ParseInt(args[0], 10, 64)
	case CalendarNav:
		d.ChannelID, err = strconv.ParseInt(args[0], 10, 64)
		if err == nil {
			d.Month, err = parseMonth(args[1], args[2])
		}
	case CalendarDay:
		d.ChannelID, err = strconv.ParseInt(args[0], 10, 64)
		if err == nil {
			d.Date, err = parseDate(args[1])
		}
	case SaleOpen, SaleDelete, SaleDeleteYes:
		d.SaleID, err = strconv.ParseInt(args[0], 10, 64)
	case SaleEdit:
		d.SaleID, err = strconv.ParseInt(args[0], 10, 64)
		d.Field = model.SaleField(args[1])
		if err == nil && !d.Field.Valid() {
			err = fmt.Errorf("unknown field %q", args[1])
		}
	}
	if err != nil {
		return Data{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return d, nil
}

func parseMonth(year, month string) (calendar.Month, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return calendar.Month{}, err
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return calendar.Month{}, err
	}
	return calendar.Month{Year: y, Month: time.Month(m)}, nil
}
