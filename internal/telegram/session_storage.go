package telegram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
)

// DBSessionStorage はMTProtoセッションをtelegram_sessionsテーブルに保存する。
// 再起動のたびに認証をやり直さないために使う。
type DBSessionStorage struct {
	DB   *sql.DB
	Name string
}

// NewDBSessionStorage はDBSessionStorageを生成する。
func NewDBSessionStorage(db *sql.DB, name string) *DBSessionStorage {
	return &DBSessionStorage{DB: db, Name: name}
}

// LoadSession は保存済みのセッションを返す。未保存ならsession.ErrNotFound。
func (s *DBSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, session.ErrNotFound
	}
	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT data FROM telegram_sessions WHERE name = $1`, s.Name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Telegramセッションの読み込みに失敗しました: %w", err)
	}
	return data, nil
}

// StoreSession はセッションを上書き保存する。
func (s *DBSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.DB == nil {
		return session.ErrNotFound
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO telegram_sessions (name, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		s.Name, data,
	)
	if err != nil {
		return fmt.Errorf("Telegramセッションの保存に失敗しました: %w", err)
	}
	return nil
}

var _ session.Storage = (*DBSessionStorage)(nil)
