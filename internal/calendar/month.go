// Package calendar は売上のカレンダー表示に使う月・日単位の集計を提供する。
// 集計関数はすべて副作用のない純粋関数で、売上のない日は0として扱う。
package calendar

import (
	"fmt"
	"time"
)

// 表示可能な年の範囲（両端を含まない）。
const (
	minYearExclusive = 2015
	maxYearExclusive = 2100
)

// Month は年と月の組を表す。
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf はtをlocで解釈した月を返す。
func MonthOf(t time.Time, loc *time.Location) Month {
	t = t.In(loc)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Valid は表示可能な範囲の月かどうかを返す。
func (m Month) Valid() bool {
	return m.Year > minYearExclusive && m.Year < maxYearExclusive &&
		m.Month >= time.January && m.Month <= time.December
}

// Prev は前月を返す。1月の前月は前年の12月。
func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next は翌月を返す。12月の翌月は翌年の1月。
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Range は月初から翌月初までの [from, to) をlocで返す。
func (m Month) Range(loc *time.Location) (time.Time, time.Time) {
	from := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// Days は月の日数を返す。
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Date は時刻を持たない日付を表す。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf はtをlocで解釈した日付を返す。
func DateOf(t time.Time, loc *time.Location) Date {
	t = t.In(loc)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate は "2006-01-02" 形式の文字列を日付に変換する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// MonthOf は日付が属する月を返す。
func (d Date) MonthOf() Month {
	return Month{Year: d.Year, Month: d.Month}
}

// Start はlocにおける日付の0時を返す。
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At はlocにおける日付の指定時刻を返す。hourに24を渡すと翌日の0時台になる。
func (d Date) At(hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Display は "15.06.2024" 形式で返す。
func (d Date) Display() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}
