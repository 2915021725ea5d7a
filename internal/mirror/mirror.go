// Package mirror は売上を外部スプレッドシートへ複製する。
// 行の位置はチャンネル内の売上をID順に並べた順位（1始まり）で、1行目はヘッダー。
package mirror

import "context"

// Store は外部スプレッドシートへの操作。
// 呼び出しはリモートで一時的に失敗しうる。自動リトライは行わない。
type Store interface {
	// CreateTable はヘッダー行付きの表を作成し、表のIDを返す。
	// 空のIDを返した場合、複製は無効として扱われる。
	// 作成後のヘッダー書き込みや共有設定に失敗した場合は、IDとエラーの両方を返す。
	CreateTable(ctx context.Context, name string, header []string) (string, error)
	// AppendRow は position 番目のデータ行として値を挿入し、表のURLを返す。
	AppendRow(ctx context.Context, tableID string, values []string, position int) (string, error)
	// UpdateCell は position 番目のデータ行の column 列（1始まり）を書き換える。
	UpdateCell(ctx context.Context, tableID string, position, column int, value string) error
	// DeleteRow は position 番目のデータ行を削除し、以降の行を詰める。
	DeleteRow(ctx context.Context, tableID string, position int) error
	// TableURL は表を開くURLを返す。
	TableURL(tableID string) string
}

// Noop は何もしないStore。認証情報が設定されていない場合に使う。
type Noop struct{}

func (Noop) CreateTable(context.Context, string, []string) (string, error) { return "", nil }
func (Noop) AppendRow(context.Context, string, []string, int) (string, error) {
	return "", nil
}
func (Noop) UpdateCell(context.Context, string, int, int, string) error { return nil }
func (Noop) DeleteRow(context.Context, string, int) error { return nil }
func (Noop) TableURL(string) string { return "" }

var _ Store = Noop{}
