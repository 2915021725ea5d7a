package calendar

import "time"

// Event はカレンダー操作の入力。FreshView, Navigate, DaySelected のいずれか。
type Event interface {
	calendarEvent()
}

// FreshView は現在月のカレンダーを新しく開く要求。
type FreshView struct{}

// Navigate は指定月への移動要求。
type Navigate struct {
	Month Month
}

// DaySelected は日付の選択。
type DaySelected struct {
	Date Date
}

func (FreshView) calendarEvent()   {}
func (Navigate) calendarEvent()    {}
func (DaySelected) calendarEvent() {}

// ViewKind は表示する画面の種類。
type ViewKind int

const (
	// ViewMonth は月カレンダー。
	ViewMonth ViewKind = iota + 1
	// ViewDay は日ごとの売上一覧。
	ViewDay
)

// View は遷移後に表示する画面。
type View struct {
	Kind  ViewKind
	Month Month
	Date  Date
}

// Transition はイベントから次の画面を決める。
// 範囲外の月への移動や不正な日付は無視され、okはfalseになる。
func Transition(ev Event, now time.Time, loc *time.Location) (View, bool) {
	switch e := ev.(type) {
	case FreshView:
		return View{Kind: ViewMonth, Month: MonthOf(now, loc)}, true
	case Navigate:
		if !e.Month.Valid() {
			return View{}, false
		}
		return View{Kind: ViewMonth, Month: e.Month}, true
	case DaySelected:
		m := e.Date.MonthOf()
		if !m.Valid() || e.Date.Day < 1 || e.Date.Day > m.Days() {
			return View{}, false
		}
		return View{Kind: ViewDay, Month: m, Date: e.Date}, true
	}
	return View{}, false
}
