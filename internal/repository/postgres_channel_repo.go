package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/adledger/internal/model"
)

const uniqueViolation = "23505"

// PostgresChannelRepo はPostgreSQLを使用したチャンネルリポジトリ。
type PostgresChannelRepo struct {
	db *sql.DB
}

// NewPostgresChannelRepo はPostgresChannelRepoを生成する。
func NewPostgresChannelRepo(db *sql.DB) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

const channelColumns = `id, title, invite_code, mirror_id, creator_id, created_at`

func scanChannel(row interface{ Scan(...any) error }) (*model.Channel, error) {
	ch := &model.Channel{}
	err := row.Scan(&ch.ID, &ch.Title, &ch.InviteCode, &ch.MirrorID, &ch.CreatorID, &ch.CreatedAt)
	return ch, err
}

func (r *PostgresChannelRepo) findOne(ctx context.Context, where string, arg any) (*model.Channel, error) {
	ch, err := scanChannel(r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	return ch, nil
}

// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByID(ctx context.Context, id int64) (*model.Channel, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByTitle はタイトルでチャンネルを検索する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByTitle(ctx context.Context, title string) (*model.Channel, error) {
	return r.findOne(ctx, `title = $1`, title)
}

// FindByInviteCode は招待コードでチャンネルを検索する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByInviteCode(ctx context.Context, code string) (*model.Channel, error) {
	return r.findOne(ctx, `invite_code = $1`, code)
}

// Create はチャンネルを作成し、IDと作成日時を設定する。
func (r *PostgresChannelRepo) Create(ctx context.Context, ch *model.Channel) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO channels (title, invite_code, mirror_id, creator_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ch.Title, ch.InviteCode, ch.MirrorID, ch.CreatorID,
	).Scan(&ch.ID, &ch.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			switch pqErr.Constraint {
			case "channels_title_key":
				return ErrDuplicateTitle
			case "channels_invite_code_key":
				return ErrDuplicateInviteCode
			}
		}
		return fmt.Errorf("チャンネルの作成に失敗しました: %w", err)
	}
	return nil
}

// ReplaceInviteCode は招待コードがoldCodeのままである場合に限り置き換える。
func (r *PostgresChannelRepo) ReplaceInviteCode(ctx context.Context, id int64, oldCode, newCode string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE channels SET invite_code = $3 WHERE id = $1 AND invite_code = $2`,
		id, oldCode, newCode,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, ErrDuplicateInviteCode
		}
		return false, fmt.Errorf("招待コードの更新に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("招待コード更新件数の取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// SetMirrorID はスプレッドシートIDを保存する。
func (r *PostgresChannelRepo) SetMirrorID(ctx context.Context, id int64, mirrorID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE channels SET mirror_id = $2 WHERE id = $1`,
		id, mirrorID,
	)
	if err != nil {
		return fmt.Errorf("スプレッドシートIDの保存に失敗しました: %w", err)
	}
	return nil
}

// ListForUser はユーザーが作成した、または書き込み権限を持つチャンネルをID順で返す。
func (r *PostgresChannelRepo) ListForUser(ctx context.Context, userID int64) ([]*model.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels
		 WHERE creator_id = $1
			OR id IN (SELECT channel_id FROM channel_writers WHERE user_id = $1)
		 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("チャンネル行の読み取りに失敗しました: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャンネル一覧の走査に失敗しました: %w", err)
	}
	return channels, nil
}

// AddWriter は書き込み権限を付与する。既に付与済みならfalseを返す。
func (r *PostgresChannelRepo) AddWriter(ctx context.Context, userID, channelID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO channel_writers (user_id, channel_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, channel_id) DO NOTHING`,
		userID, channelID,
	)
	if err != nil {
		return false, fmt.Errorf("編集者の追加に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("編集者追加件数の取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// IsWriter は書き込み権限の行が存在するかどうかを返す。
func (r *PostgresChannelRepo) IsWriter(ctx context.Context, userID, channelID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM channel_writers WHERE user_id = $1 AND channel_id = $2)`,
		userID, channelID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("編集者の確認に失敗しました: %w", err)
	}
	return exists, nil
}

var _ ChannelRepository = (*PostgresChannelRepo)(nil)
