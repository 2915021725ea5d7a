// Package conversation はユーザーごとの対話セッションと、
// 売上作成・売上編集の状態機械を提供する。
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/repository"
)

// DefaultTTL はセッションの有効期間のデフォルト値。
const DefaultTTL = 24 * time.Hour

// TokenLen はボタンに埋め込むセッショントークンの長さ。
const TokenLen = 8

// Flow は対話の種類。
type Flow string

const (
	FlowCreateSale Flow = "create_sale"
	FlowEditSale   Flow = "edit_sale"
)

// State は対話中のステップ。
type State string

// Session はユーザーの進行中の対話。1ユーザーにつき高々1つ。
type Session struct {
	UserID    int64
	ID        string
	Flow      Flow
	State     State
	Draft     json.RawMessage
	UpdatedAt time.Time
}

// NewSession は新しいIDのセッションを生成する。
func NewSession(userID int64, flow Flow, state State) *Session {
	return &Session{UserID: userID, ID: uuid.NewString(), Flow: flow, State: state}
}

// Token はセッションIDの先頭8桁の16進数を返す。
// このトークンを持たないボタンは古いセッションのものとして無視する。
func (s *Session) Token() string {
	id := strings.ReplaceAll(s.ID, "-", "")
	if len(id) < TokenLen {
		return id
	}
	return id[:TokenLen]
}

// Decode は下書きを v に読み込む。下書きが空なら何もしない。
func (s *Session) Decode(v any) error {
	if len(s.Draft) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Draft, v); err != nil {
		return fmt.Errorf("下書きの読み込みに失敗しました: %w", err)
	}
	return nil
}

// Encode は v を下書きとして保持する。
func (s *Session) Encode(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("下書きの書き込みに失敗しました: %w", err)
	}
	s.Draft = b
	return nil
}

// Store はセッションの保存先。
type Store interface {
	// Load は有効なセッションを返す。存在しないか期限切れならnil。
	Load(ctx context.Context, userID int64) (*Session, error)
	// Save はユーザーの既存セッションを置き換えて保存する。
	Save(ctx context.Context, sess *Session) error
	// Clear はユーザーのセッションを削除する。
	Clear(ctx context.Context, userID int64) error
}

// RepoStore はConversationRepositoryを保存先とするStore。
// PostgreSQLでもインメモリのリポジトリでも同じように動く。
type RepoStore struct {
	repo repository.ConversationRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewRepoStore はRepoStoreを生成する。ttlが0以下ならDefaultTTLを使う。
func NewRepoStore(repo repository.ConversationRepository, ttl time.Duration) *RepoStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RepoStore{repo: repo, ttl: ttl, now: time.Now}
}

// TTL はセッションの有効期間を返す。
func (s *RepoStore) TTL() time.Duration {
	return s.ttl
}

func (s *RepoStore) Load(ctx context.Context, userID int64) (*Session, error) {
	rec, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if s.now().Sub(rec.UpdatedAt) > s.ttl {
		if err := s.repo.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("期限切れセッションの削除に失敗しました: %w", err)
		}
		return nil, nil
	}
	return &Session{
		UserID:    rec.UserID,
		ID:        rec.SessionID,
		Flow:      Flow(rec.Flow),
		State:     State(rec.State),
		Draft:     rec.Draft,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (s *RepoStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	rec := &model.ConversationRecord{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Flow:      string(sess.Flow),
		State:     string(sess.State),
		Draft:     sess.Draft,
		UpdatedAt: sess.UpdatedAt,
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return nil
}

func (s *RepoStore) Clear(ctx context.Context, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

var _ Store = (*RepoStore)(nil)
