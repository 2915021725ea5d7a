package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/adledger/internal/model"
)

// PostgresConversationRepo はPostgreSQLを使用した対話セッションリポジトリ。
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo はPostgresConversationRepoを生成する。
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

// Save はユーザーのセッションを作成または置き換える。
func (r *PostgresConversationRepo) Save(ctx context.Context, rec *model.ConversationRecord) error {
	draft := rec.Draft
	if len(draft) == 0 {
		draft = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, session_id, flow, state, draft, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			flow = EXCLUDED.flow,
			state = EXCLUDED.state,
			draft = EXCLUDED.draft,
			updated_at = EXCLUDED.updated_at`,
		rec.UserID, rec.SessionID, rec.Flow, rec.State, string(draft), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Find はユーザーのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresConversationRepo) Find(ctx context.Context, userID int64) (*model.ConversationRecord, error) {
	rec := &model.ConversationRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, session_id, flow, state, draft, updated_at
		 FROM conversations WHERE user_id = $1`,
		userID,
	).Scan(&rec.UserID, &rec.SessionID, &rec.Flow, &rec.State, &rec.Draft, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return rec, nil
}

// Delete はユーザーのセッションを削除する。
func (r *PostgresConversationRepo) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// DeleteUpdatedBefore は指定日時より前に更新されたセッションを削除する。
func (r *PostgresConversationRepo) DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

var _ ConversationRepository = (*PostgresConversationRepo)(nil)
