package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/adledger/internal/model"
)

// SaleLister は期間内の売上を取得する。
type SaleLister interface {
	ListPublishedBetween(ctx context.Context, channelID int64, from, to time.Time) ([]*model.Sale, error)
}

// Index はチャンネルの売上をカレンダー単位で読み出す。読み取り専用。
type Index struct {
	sales SaleLister
	loc   *time.Location
}

// NewIndex はIndexを生成する。
func NewIndex(sales SaleLister, loc *time.Location) *Index {
	return &Index{sales: sales, loc: loc}
}

// Location は日付の解釈に使うタイムゾーンを返す。
func (ix *Index) Location() *time.Location {
	return ix.loc
}

// Month は指定月の日ごとの件数と合計を返す。
func (ix *Index) Month(ctx context.Context, channelID int64, m Month) (*MonthSummary, error) {
	from, to := m.Range(ix.loc)
	sales, err := ix.sales.ListPublishedBetween(ctx, channelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("月の売上取得に失敗しました: %w", err)
	}
	return Summarize(m, sales, ix.loc), nil
}

// Day は指定日の売上をID順で返す。
func (ix *Index) Day(ctx context.Context, channelID int64, d Date) ([]*model.Sale, error) {
	from := d.Start(ix.loc)
	sales, err := ix.sales.ListPublishedBetween(ctx, channelID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("日の売上取得に失敗しました: %w", err)
	}
	return SalesOn(d, sales, ix.loc), nil
}
