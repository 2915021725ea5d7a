package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/adledger/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Upsert はユーザーを作成、またはプロフィールと最終操作日時を更新する。
// access_hashが0で渡された場合は既存の値を保持する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, access_hash, name, username, bot_blocked, last_activity, registered_at)
		 VALUES ($1, $2, $3, $4, false, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
			access_hash = CASE WHEN EXCLUDED.access_hash <> 0 THEN EXCLUDED.access_hash ELSE users.access_hash END,
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			bot_blocked = false,
			last_activity = now()
		 RETURNING access_hash, last_activity, registered_at`,
		user.ID, user.AccessHash, user.Name, user.Username,
	).Scan(&user.AccessHash, &user.LastActivity, &user.RegisteredAt)
	if err != nil {
		return fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}
	user.BotBlocked = false
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, access_hash, name, username, bot_blocked, last_activity, registered_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.AccessHash, &u.Name, &u.Username, &u.BotBlocked, &u.LastActivity, &u.RegisteredAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return u, nil
}

// SetBotBlocked はボットのブロック状態を記録する。
func (r *PostgresUserRepo) SetBotBlocked(ctx context.Context, id int64, blocked bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET bot_blocked = $2 WHERE id = $1`,
		id, blocked,
	)
	if err != nil {
		return fmt.Errorf("ブロック状態の更新に失敗しました: %w", err)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)
