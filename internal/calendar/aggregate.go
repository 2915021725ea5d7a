package calendar

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/adledger/internal/model"
)

// DaySum は1日分の売上合計を表す。
type DaySum struct {
	Cost         model.Money
	ManagerShare model.Money
}

// MonthSummary は1か月分の集計結果。
type MonthSummary struct {
	Month        Month
	Counts       map[int]int    // 日 → 件数
	Sums         map[int]DaySum // 日 → 合計
	Revenue      model.Money
	ManagerShare model.Money
	SalesCount   int
}

// DayCounts は月内の売上を日ごとに数える。月外の売上は無視する。
func DayCounts(m Month, sales []*model.Sale, loc *time.Location) map[int]int {
	counts := make(map[int]int)
	for _, s := range sales {
		d := DateOf(s.PublishedAt, loc)
		if d.MonthOf() != m {
			continue
		}
		counts[d.Day]++
	}
	return counts
}

// DaySums は月内の売上を日ごとに合計する。
// マネージャー取り分は売上ごとに丸めてから合計する。
func DaySums(m Month, sales []*model.Sale, loc *time.Location) map[int]DaySum {
	sums := make(map[int]DaySum)
	for _, s := range sales {
		d := DateOf(s.PublishedAt, loc)
		if d.MonthOf() != m {
			continue
		}
		cur := sums[d.Day]
		cur.Cost += s.Cost
		cur.ManagerShare += s.ManagerShare()
		sums[d.Day] = cur
	}
	return sums
}

// Summarize は月の件数・合計・月計をまとめて返す。
func Summarize(m Month, sales []*model.Sale, loc *time.Location) *MonthSummary {
	sum := &MonthSummary{
		Month:  m,
		Counts: DayCounts(m, sales, loc),
		Sums:   DaySums(m, sales, loc),
	}
	for _, day := range sum.Sums {
		sum.Revenue += day.Cost
		sum.ManagerShare += day.ManagerShare
	}
	for _, n := range sum.Counts {
		sum.SalesCount += n
	}
	return sum
}

// SalesOn は指定日の売上をID順で返す。該当がなければ空スライス。
func SalesOn(date Date, sales []*model.Sale, loc *time.Location) []*model.Sale {
	out := make([]*model.Sale, 0)
	for _, s := range sales {
		if DateOf(s.PublishedAt, loc) == date {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DayTotal は売上リストの合計を返す。
func DayTotal(sales []*model.Sale) DaySum {
	var total DaySum
	for _, s := range sales {
		total.Cost += s.Cost
		total.ManagerShare += s.ManagerShare()
	}
	return total
}

// DensityMarker は件数をカレンダーの点表記にする。2件ごとに ":"、端数1件は "."。
func DensityMarker(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(":", n/2) + strings.Repeat(".", n%2)
}

// Cell はカレンダーの1マス。Day が0のマスは空白。
type Cell struct {
	Day   int
	Count int
}

// Grid は月曜始まりの週ごとにマスを並べる。先頭と末尾は空白マスで埋める。
func Grid(m Month, counts map[int]int) [][]Cell {
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7

	var weeks [][]Cell
	week := make([]Cell, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, Cell{})
	}
	for day := 1; day <= m.Days(); day++ {
		week = append(week, Cell{Day: day, Count: counts[day]})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]Cell, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, Cell{})
		}
		weeks = append(weeks, week)
	}
	return weeks
}
