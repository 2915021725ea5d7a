// Package channel はチャンネルの作成、招待による編集者の追加、一覧と累計の取得を提供する。
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/adledger/internal/access"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/repository"
	"github.com/hitoshi/adledger/internal/security"
)

// 招待コード衝突時の再生成回数。
const maxCodeAttempts = 5

// JoinResult は招待コードによる参加の結果。
type JoinResult struct {
	Channel *model.Channel
	// Added は新たに編集者になった場合にtrue。作成者や既存の編集者ならfalse。
	Added bool
}

// Settings はチャンネル設定画面の表示内容。
type Settings struct {
	Channel    *model.Channel
	InviteLink string
	TableURL   string
}

// Service はチャンネル管理のサービス層。
type Service struct {
	channels    repository.ChannelRepository
	sales       repository.SaleRepository
	gate        *access.Gate
	notifier    notify.Notifier
	catalog     *messages.Catalog
	sanitizer   security.TextSanitizer
	logger      *slog.Logger
	botUsername string
	tableURL    func(tableID string) string
	newCode     func() (string, error)
}

// NewService はServiceの新しいインスタンスを生成する。
// tableURL はスプレッドシートIDから表示用URLを作る関数。
func NewService(
	channels repository.ChannelRepository,
	sales repository.SaleRepository,
	gate *access.Gate,
	notifier notify.Notifier,
	catalog *messages.Catalog,
	sanitizer security.TextSanitizer,
	logger *slog.Logger,
	botUsername string,
	tableURL func(tableID string) string,
) *Service {
	return &Service{
		channels:    channels,
		sales:       sales,
		gate:        gate,
		notifier:    notifier,
		catalog:     catalog,
		sanitizer:   sanitizer,
		logger:      logger,
		botUsername: botUsername,
		tableURL:    tableURL,
		newCode:     NewInviteCode,
	}
}

// Create はチャンネルを作成する。作成者は暗黙に書き込み権限を持つ。
// 同名のチャンネルがあれば KindConflict のエラーを返す。
func (s *Service) Create(ctx context.Context, creatorID int64, rawTitle string) (*model.Channel, error) {
	title := s.sanitizer.Clean(rawTitle, security.MaxTitleLen)
	if title == "" {
		return nil, model.NewEmptyInputError()
	}

	existing, err := s.channels.FindByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewChannelExistsError(title)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("招待コードの生成に失敗しました: %w", err)
		}
		ch := &model.Channel{Title: title, InviteCode: code, CreatorID: creatorID}
		err = s.channels.Create(ctx, ch)
		switch {
		case err == nil:
			s.logger.Info("チャンネルを作成しました",
				slog.Int64("channel_id", ch.ID),
				slog.Int64("creator_id", creatorID),
			)
			return ch, nil
		case errors.Is(err, repository.ErrDuplicateTitle):
			return nil, model.NewChannelExistsError(title)
		case errors.Is(err, repository.ErrDuplicateInviteCode):
			continue
		default:
			return nil, fmt.Errorf("チャンネルの作成に失敗しました: %w", err)
		}
	}
	return nil, fmt.Errorf("招待コードの生成が%d回衝突しました", maxCodeAttempts)
}

// JoinByInviteCode は招待コードを消費して編集者に追加し、作成者に通知する。
// コードは1回の参加でのみ有効で、使用と同時に再生成される。
func (s *Service) JoinByInviteCode(ctx context.Context, user *model.User, code string) (*JoinResult, error) {
	ch, err := s.channels.FindByInviteCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("招待コードの検索に失敗しました: %w", err)
	}
	if ch == nil {
		return nil, model.NewInviteExpiredError()
	}
	if ch.CreatorID == user.ID {
		return &JoinResult{Channel: ch}, nil
	}

	if err := s.consumeCode(ctx, ch); err != nil {
		return nil, err
	}

	added, err := s.channels.AddWriter(ctx, user.ID, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("編集者の追加に失敗しました: %w", err)
	}
	if added {
		s.logger.Info("編集者を追加しました",
			slog.Int64("channel_id", ch.ID),
			slog.Int64("user_id", user.ID),
		)
		msg := notify.Message{Text: s.catalog.Format("writer_joined", "name", user.DisplayName(), "channel", ch.Title)}
		if _, err := s.notifier.Send(ctx, ch.CreatorID, msg); err != nil {
			s.logger.Warn("作成者への通知に失敗しました",
				slog.Int64("creator_id", ch.CreatorID),
				slog.String("error", err.Error()),
			)
		}
	}
	return &JoinResult{Channel: ch, Added: added}, nil
}

func (s *Service) consumeCode(ctx context.Context, ch *model.Channel) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		next, err := s.newCode()
		if err != nil {
			return fmt.Errorf("招待コードの生成に失敗しました: %w", err)
		}
		ok, err := s.channels.ReplaceInviteCode(ctx, ch.ID, ch.InviteCode, next)
		if errors.Is(err, repository.ErrDuplicateInviteCode) {
			continue
		}
		if err != nil {
			return fmt.Errorf("招待コードの更新に失敗しました: %w", err)
		}
		if !ok {
			// 他の利用者が先に使った
			return model.NewInviteExpiredError()
		}
		ch.InviteCode = next
		return nil
	}
	return fmt.Errorf("招待コードの生成が%d回衝突しました", maxCodeAttempts)
}

// ListForUser はユーザーが作成した、または編集者であるチャンネルを返す。
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*model.Channel, error) {
	chs, err := s.channels.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	return chs, nil
}

// Totals はユーザーのチャンネルごとの累計売上を返す。
func (s *Service) Totals(ctx context.Context, userID int64) ([]*model.ChannelTotals, error) {
	totals, err := s.sales.TotalsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("累計売上の取得に失敗しました: %w", err)
	}
	return totals, nil
}

// Settings はチャンネルの招待リンクとスプレッドシートURLを返す。
func (s *Service) Settings(ctx context.Context, userID, channelID int64) (*Settings, error) {
	ch, err := s.gate.RequireWrite(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	st := &Settings{
		Channel:    ch,
		InviteLink: InviteLink(s.botUsername, ch.InviteCode),
	}
	if ch.HasMirror() && s.tableURL != nil {
		st.TableURL = s.tableURL(ch.MirrorID)
	}
	return st, nil
}
