package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/adledger/internal/model"
)

// PostgresSaleRepo はPostgreSQLを使用した売上リポジトリ。
type PostgresSaleRepo struct {
	db *sql.DB
}

// NewPostgresSaleRepo はPostgresSaleRepoを生成する。
func NewPostgresSaleRepo(db *sql.DB) *PostgresSaleRepo {
	return &PostgresSaleRepo{db: db}
}

const saleColumns = `id, channel_id, writer_id, buyer, cost, manager_percent,
	publication_format, payment_status, published_at, created_at`

func scanSale(row interface{ Scan(...any) error }) (*model.Sale, error) {
	s := &model.Sale{}
	var format, status string
	err := row.Scan(&s.ID, &s.ChannelID, &s.WriterID, &s.Buyer, &s.Cost, &s.ManagerPercent,
		&format, &status, &s.PublishedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Format = model.ParsePublicationFormat(format)
	s.Status = model.PaymentStatus(status)
	return s, nil
}

// Create は売上を作成し、IDと作成日時を設定する。
func (r *PostgresSaleRepo) Create(ctx context.Context, sale *model.Sale) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sales (channel_id, writer_id, buyer, cost, manager_percent,
			publication_format, payment_status, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		sale.ChannelID, sale.WriterID, sale.Buyer, sale.Cost, sale.ManagerPercent,
		sale.Format.String(), string(sale.Status), sale.PublishedAt,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("売上の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの売上を取得する。見つからない場合はnilを返す。
func (r *PostgresSaleRepo) FindByID(ctx context.Context, id int64) (*model.Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("売上の取得に失敗しました: %w", err)
	}
	return s, nil
}

// fieldColumn は編集項目に対応する列名と値を返す。
func fieldColumn(sale *model.Sale, field model.SaleField) (string, any, error) {
	switch field {
	case model.FieldBuyer:
		return "buyer", sale.Buyer, nil
	case model.FieldCost:
		return "cost", sale.Cost, nil
	case model.FieldPercent:
		return "manager_percent", sale.ManagerPercent, nil
	case model.FieldFormat:
		return "publication_format", sale.Format.String(), nil
	case model.FieldStatus:
		return "payment_status", string(sale.Status), nil
	}
	return "", nil, fmt.Errorf("編集できない項目です: %q", field)
}

// UpdateField は指定した1項目のみをsaleの値で更新する。
func (r *PostgresSaleRepo) UpdateField(ctx context.Context, sale *model.Sale, field model.SaleField) (bool, error) {
	column, value, err := fieldColumn(sale, field)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE sales SET `+column+` = $2 WHERE id = $1`,
		sale.ID, value,
	)
	if err != nil {
		return false, fmt.Errorf("売上の更新に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("売上更新件数の取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// Delete は売上を削除する。
func (r *PostgresSaleRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("売上の削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("売上削除件数の取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// CountByChannel はチャンネルの売上件数を返す。
func (r *PostgresSaleRepo) CountByChannel(ctx context.Context, channelID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales WHERE channel_id = $1`,
		channelID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("売上件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Position はチャンネル内でID順に並べたときの売上の順位（1始まり）を返す。
func (r *PostgresSaleRepo) Position(ctx context.Context, channelID, saleID int64) (int, error) {
	var pos int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales WHERE channel_id = $1 AND id <= $2`,
		channelID, saleID,
	).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("売上の順位の取得に失敗しました: %w", err)
	}
	return pos, nil
}

// ListPublishedBetween は掲載日時が [from, to) に含まれる売上をID順で返す。
func (r *PostgresSaleRepo) ListPublishedBetween(ctx context.Context, channelID int64, from, to time.Time) ([]*model.Sale, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales
		 WHERE channel_id = $1 AND published_at >= $2 AND published_at < $3
		 ORDER BY id ASC`,
		channelID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("売上一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sales []*model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("売上行の読み取りに失敗しました: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("売上一覧の走査に失敗しました: %w", err)
	}
	return sales, nil
}

// TotalsForUser はユーザーが閲覧できる各チャンネルの累計売上をチャンネルID順で返す。
// 売上のないチャンネルも0件として含める。
func (r *PostgresSaleRepo) TotalsForUser(ctx context.Context, userID int64) ([]*model.ChannelTotals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.title,
			COALESCE(SUM(s.cost), 0),
			COALESCE(SUM(ROUND(s.cost * s.manager_percent / 100, 2)), 0),
			COUNT(s.id)
		 FROM channels c
		 LEFT JOIN sales s ON s.channel_id = c.id
		 WHERE c.creator_id = $1
			OR c.id IN (SELECT channel_id FROM channel_writers WHERE user_id = $1)
		 GROUP BY c.id, c.title
		 ORDER BY c.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("累計売上の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var totals []*model.ChannelTotals
	for rows.Next() {
		t := &model.ChannelTotals{}
		if err := rows.Scan(&t.ChannelID, &t.Title, &t.Revenue, &t.ManagerShare, &t.SalesCount); err != nil {
			return nil, fmt.Errorf("累計売上行の読み取りに失敗しました: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("累計売上の走査に失敗しました: %w", err)
	}
	return totals, nil
}

var _ SaleRepository = (*PostgresSaleRepo)(nil)
