// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/adledger/internal/model"
)

var (
	// ErrDuplicateTitle は同名のチャンネルが既に存在する場合に返される。
	ErrDuplicateTitle = errors.New("channel title already exists")
	// ErrDuplicateInviteCode は招待コードが他のチャンネルと衝突した場合に返される。
	ErrDuplicateInviteCode = errors.New("invite code already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Upsert はユーザーを作成、または表示名・ユーザー名・アクセスハッシュと最終操作日時を更新する。
	// ボットをブロック済みとして記録されていた場合は解除する。
	Upsert(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// SetBotBlocked はボットのブロック状態を記録する。
	SetBotBlocked(ctx context.Context, id int64, blocked bool) error
}

// ChannelRepository はチャンネルと書き込み権限の永続化インターフェース。
type ChannelRepository interface {
	// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Channel, error)

	// FindByTitle はタイトルでチャンネルを検索する。見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.Channel, error)

	// FindByInviteCode は招待コードでチャンネルを検索する。見つからない場合はnilを返す。
	FindByInviteCode(ctx context.Context, code string) (*model.Channel, error)

	// Create はチャンネルを作成し、IDと作成日時を設定する。
	// タイトル重複時はErrDuplicateTitle、招待コード衝突時はErrDuplicateInviteCodeを返す。
	Create(ctx context.Context, ch *model.Channel) error

	// ReplaceInviteCode は招待コードがoldCodeのままである場合に限りnewCodeへ置き換える。
	// 置き換えた場合はtrueを返す。
	ReplaceInviteCode(ctx context.Context, id int64, oldCode, newCode string) (bool, error)

	// SetMirrorID はスプレッドシートIDを保存する。
	SetMirrorID(ctx context.Context, id int64, mirrorID string) error

	// ListForUser はユーザーが作成した、または書き込み権限を持つチャンネルをID順で返す。
	ListForUser(ctx context.Context, userID int64) ([]*model.Channel, error)

	// AddWriter は書き込み権限を付与する。既に付与済みならfalseを返す。
	AddWriter(ctx context.Context, userID, channelID int64) (bool, error)

	// IsWriter は書き込み権限の行が存在するかどうかを返す。
	IsWriter(ctx context.Context, userID, channelID int64) (bool, error)
}

// SaleRepository は売上データの永続化インターフェース。
type SaleRepository interface {
	// Create は売上を作成し、IDと作成日時を設定する。
	Create(ctx context.Context, sale *model.Sale) error

	// FindByID は指定IDの売上を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Sale, error)

	// UpdateField は指定した1項目のみをsaleの値で更新する。
	// 対象の売上が存在しない場合はfalseを返す。
	UpdateField(ctx context.Context, sale *model.Sale, field model.SaleField) (bool, error)

	// Delete は売上を削除する。リマインダーはCASCADE削除される。
	// 対象の売上が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// CountByChannel はチャンネルの売上件数を返す。
	CountByChannel(ctx context.Context, channelID int64) (int, error)

	// Position はチャンネル内でID順に並べたときの売上の順位（1始まり）を返す。
	Position(ctx context.Context, channelID, saleID int64) (int, error)

	// ListPublishedBetween は掲載日時が [from, to) に含まれる売上をID順で返す。
	ListPublishedBetween(ctx context.Context, channelID int64, from, to time.Time) ([]*model.Sale, error)

	// TotalsForUser はユーザーが閲覧できる各チャンネルの累計売上を返す。
	TotalsForUser(ctx context.Context, userID int64) ([]*model.ChannelTotals, error)
}

// ReminderRepository は未送信リマインダーの永続化インターフェース。
type ReminderRepository interface {
	// Create はリマインダーを作成する。同じ売上のリマインダーが既にあれば期限を上書きする。
	Create(ctx context.Context, reminder *model.PendingReminder) error

	// ListDueBetween は期限が [from, to] に含まれるリマインダーを売上とともに返す。
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.DueReminder, error)

	// DeleteByIDs は指定IDのリマインダーを一括削除し、削除件数を返す。
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)

	// FindBySaleID は売上に紐づくリマインダーを取得する。見つからない場合はnilを返す。
	FindBySaleID(ctx context.Context, saleID int64) (*model.PendingReminder, error)
}

// ConversationRepository は対話セッションの永続化インターフェース。
type ConversationRepository interface {
	// Save はユーザーのセッションを作成または置き換える。
	Save(ctx context.Context, rec *model.ConversationRecord) error

	// Find はユーザーのセッションを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, userID int64) (*model.ConversationRecord, error)

	// Delete はユーザーのセッションを削除する。
	Delete(ctx context.Context, userID int64) error

	// DeleteUpdatedBefore は指定日時より前に更新されたセッションを削除し、削除件数を返す。
	DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error)
}
