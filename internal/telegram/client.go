// Package telegram はgotd/tdを使ったボットの送受信を提供する。
// notify.Notifier を実装し、受信した更新は bot.Update に変換して渡す。
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"golang.org/x/time/rate"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
)

// ErrNotConnected は Connect 前に送信しようとした場合のエラー。
var ErrNotConnected = errors.New("telegram client is not connected")

// UserDirectory は宛先のアクセスハッシュの取得とブロック状態の記録。
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	SetBotBlocked(ctx context.Context, id int64, blocked bool) error
}

// Options はClientの設定。
type Options struct {
	AppID    int
	AppHash  string
	BotToken string
	Storage  session.Storage
	SendRate float64 // 1秒あたりの最大API呼び出し数
}

// Client はMTProtoでボットとしてログインし、メッセージを送受信する。
type Client struct {
	opts       Options
	users      UserDirectory
	logger     *slog.Logger
	limiter    *rate.Limiter
	dispatcher tg.UpdateDispatcher
	client     *telegram.Client

	mu     sync.Mutex
	api    *tg.Client
	runCtx context.Context
	cancel context.CancelFunc
	done   chan error
}

// NewClient はClientを生成する。接続は Connect で行う。
func NewClient(opts Options, users UserDirectory, logger *slog.Logger) *Client {
	if opts.SendRate <= 0 {
		opts.SendRate = 25
	}
	c := &Client{
		opts:       opts,
		users:      users,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(opts.SendRate), 1),
		dispatcher: tg.NewUpdateDispatcher(),
		runCtx:     context.Background(),
	}
	c.client = telegram.NewClient(opts.AppID, opts.AppHash, telegram.Options{
		SessionStorage: opts.Storage,
		UpdateHandler:  c.dispatcher,
	})
	return c
}

// Connect は接続してボットとして認証する。認証済みのセッションがあれば再利用する。
// 接続は Close までバックグラウンドで維持される。
func (c *Client) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.client.Run(runCtx, func(ctx context.Context) error {
			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("認証状態の取得に失敗しました: %w", err)
			}
			if !status.Authorized {
				if _, err := c.client.Auth().Bot(ctx, c.opts.BotToken); err != nil {
					return fmt.Errorf("ボットの認証に失敗しました: %w", err)
				}
			}

			c.mu.Lock()
			c.api = c.client.API()
			c.runCtx = ctx
			c.mu.Unlock()
			close(ready)

			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		c.mu.Lock()
		c.cancel, c.done = cancel, done
		c.mu.Unlock()
		c.logger.Info("Telegramに接続しました")
		return nil
	case err := <-done:
		cancel()
		return fmt.Errorf("Telegramへの接続に失敗しました: %w", err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Close は接続を終了し、バックグラウンドの処理が止まるまで待つ。
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.api, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("Telegram接続の終了に失敗しました: %w", err)
	}
	c.logger.Info("Telegramとの接続を終了しました")
	return nil
}

func (c *Client) apiClient() (*tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, ErrNotConnected
	}
	return c.api, nil
}

// updateContext は受信した更新の処理に使うコンテキストを返す。接続が切れると取り消される。
func (c *Client) updateContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCtx
}

func (c *Client) peer(ctx context.Context, userID int64) (*tg.InputPeerUser, error) {
	u, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("宛先ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewDeliveryError(userID, fmt.Errorf("unknown user %d", userID))
	}
	return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, nil
}

// call はレート制限を守って API を呼ぶ。
func (c *Client) call(ctx context.Context, userID int64, fn func(api *tg.Client, peer *tg.InputPeerUser) error) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}
	peer, err := c.peer(ctx, userID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := fn(api, peer); err != nil {
		return c.deliveryError(ctx, userID, err)
	}
	return nil
}

// deliveryError は送信失敗を分類する。ボットをブロックした利用者は記録しておく。
func (c *Client) deliveryError(ctx context.Context, userID int64, err error) error {
	if tgerr.Is(err, "USER_IS_BLOCKED", "INPUT_USER_DEACTIVATED") {
		if setErr := c.users.SetBotBlocked(ctx, userID, true); setErr != nil {
			c.logger.Warn("ブロック状態の記録に失敗しました",
				slog.Int64("user_id", userID),
				slog.String("error", setErr.Error()),
			)
		}
	}
	return model.NewDeliveryError(userID, err)
}

// Send はメッセージを送信し、メッセージIDを返す。
func (c *Client) Send(ctx context.Context, userID int64, msg notify.Message) (int, error) {
	text, entities, err := formatHTML(msg.Text)
	if err != nil {
		return 0, err
	}
	var id int
	err = c.call(ctx, userID, func(api *tg.Client, peer *tg.InputPeerUser) error {
		upd, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:        peer,
			Message:     text,
			Entities:    entities,
			ReplyMarkup: replyMarkup(msg),
			NoWebpage:   msg.NoPreview,
			RandomID:    rand.Int63(),
		})
		if err != nil {
			return err
		}
		id = sentMessageID(upd)
		return nil
	})
	return id, err
}

// Edit は送信済みメッセージの本文とインラインキーボードを書き換える。
// 返信キーボードは書き換えできないため無視する。
func (c *Client) Edit(ctx context.Context, userID int64, messageID int, msg notify.Message) error {
	text, entities, err := formatHTML(msg.Text)
	if err != nil {
		return err
	}
	return c.call(ctx, userID, func(api *tg.Client, peer *tg.InputPeerUser) error {
		req := &tg.MessagesEditMessageRequest{
			Peer:      peer,
			ID:        messageID,
			Message:   text,
			Entities:  entities,
			NoWebpage: msg.NoPreview,
		}
		if len(msg.Inline) > 0 {
			req.ReplyMarkup = inlineMarkup(msg.Inline)
		}
		_, err := api.MessagesEditMessage(ctx, req)
		if tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
			return nil
		}
		return err
	})
}

// Delete は送信済みメッセージを削除する。
func (c *Client) Delete(ctx context.Context, userID int64, messageIDs ...int) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return c.call(ctx, userID, func(api *tg.Client, _ *tg.InputPeerUser) error {
		_, err := api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
			Revoke: true,
			ID:     messageIDs,
		})
		return err
	})
}

// AnswerCallback はボタン押下に応答する。
func (c *Client) AnswerCallback(ctx context.Context, queryID int64, text string) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: queryID,
		Message: text,
	}); err != nil {
		return fmt.Errorf("コールバックへの応答に失敗しました: %w", err)
	}
	return nil
}

var (
	_ notify.Notifier  = (*Client)(nil)
	_ notify.Lifecycle = (*Client)(nil)
)
