package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/adledger/internal/model"
)

// PostgresReminderRepo はPostgreSQLを使用したリマインダーリポジトリ。
type PostgresReminderRepo struct {
	db *sql.DB
}

// NewPostgresReminderRepo はPostgresReminderRepoを生成する。
func NewPostgresReminderRepo(db *sql.DB) *PostgresReminderRepo {
	return &PostgresReminderRepo{db: db}
}

// Create はリマインダーを作成する。同じ売上のリマインダーが既にあれば期限を上書きする。
func (r *PostgresReminderRepo) Create(ctx context.Context, reminder *model.PendingReminder) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO pending_reminders (sale_id, due_at)
		 VALUES ($1, $2)
		 ON CONFLICT (sale_id) DO UPDATE SET due_at = EXCLUDED.due_at
		 RETURNING id, created_at`,
		reminder.SaleID, reminder.DueAt,
	).Scan(&reminder.ID, &reminder.CreatedAt)
	if err != nil {
		return fmt.Errorf("リマインダーの作成に失敗しました: %w", err)
	}
	return nil
}

// ListDueBetween は期限が [from, to] に含まれるリマインダーを売上とともに期限順で返す。
func (r *PostgresReminderRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.DueReminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.sale_id, r.due_at, r.created_at,
			s.id, s.channel_id, s.writer_id, s.buyer, s.cost, s.manager_percent,
			s.publication_format, s.payment_status, s.published_at, s.created_at
		 FROM pending_reminders r
		 JOIN sales s ON s.id = r.sale_id
		 WHERE r.due_at BETWEEN $1 AND $2
		 ORDER BY r.due_at ASC, r.id ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("送信対象リマインダーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var due []*model.DueReminder
	for rows.Next() {
		d := &model.DueReminder{}
		var format, status string
		if err := rows.Scan(&d.ID, &d.SaleID, &d.DueAt, &d.CreatedAt,
			&d.Sale.ID, &d.Sale.ChannelID, &d.Sale.WriterID, &d.Sale.Buyer, &d.Sale.Cost, &d.Sale.ManagerPercent,
			&format, &status, &d.Sale.PublishedAt, &d.Sale.CreatedAt); err != nil {
			return nil, fmt.Errorf("リマインダー行の読み取りに失敗しました: %w", err)
		}
		d.Sale.Format = model.ParsePublicationFormat(format)
		d.Sale.Status = model.PaymentStatus(status)
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リマインダー一覧の走査に失敗しました: %w", err)
	}
	return due, nil
}

// DeleteByIDs は指定IDのリマインダーを一括削除し、削除件数を返す。
func (r *PostgresReminderRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_reminders WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("リマインダーの一括削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("リマインダー削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// FindBySaleID は売上に紐づくリマインダーを取得する。見つからない場合はnilを返す。
func (r *PostgresReminderRepo) FindBySaleID(ctx context.Context, saleID int64) (*model.PendingReminder, error) {
	rem := &model.PendingReminder{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sale_id, due_at, created_at FROM pending_reminders WHERE sale_id = $1`,
		saleID,
	).Scan(&rem.ID, &rem.SaleID, &rem.DueAt, &rem.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リマインダーの取得に失敗しました: %w", err)
	}
	return rem, nil
}

var _ ReminderRepository = (*PostgresReminderRepo)(nil)
