package telegram

import (
	"context"
	"strings"

	"github.com/gotd/td/tg"

	"github.com/hitoshi/adledger/internal/bot"
	"github.com/hitoshi/adledger/internal/model"
)

// UpdateSink は変換済みの更新の受け取り先。
type UpdateSink interface {
	Submit(ctx context.Context, upd bot.Update)
}

// Listen は受信した更新を sink に渡すよう登録する。Connect の前に呼ぶ。
// 個人チャット以外の更新と自分が送ったメッセージは無視する。
func (c *Client) Listen(sink UpdateSink) {
	c.dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		if upd, ok := messageUpdate(e, u.Message); ok {
			sink.Submit(c.updateContext(), upd)
		}
		return nil
	})
	c.dispatcher.OnBotCallbackQuery(func(ctx context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
		sink.Submit(c.updateContext(), callbackUpdate(e, u))
		return nil
	})
}

func messageUpdate(e tg.Entities, m tg.MessageClass) (bot.Update, bool) {
	switch msg := m.(type) {
	case *tg.Message:
		if msg.Out {
			return bot.Update{}, false
		}
		from, partial, ok := sender(e, msg.PeerID)
		if !ok {
			return bot.Update{}, false
		}
		return bot.Update{From: from, Partial: partial, Text: msg.Message}, true

	case *tg.MessageService:
		data, isWebApp := msg.Action.(*tg.MessageActionWebViewDataSentMe)
		if msg.Out || !isWebApp {
			return bot.Update{}, false
		}
		from, partial, ok := sender(e, msg.PeerID)
		if !ok {
			return bot.Update{}, false
		}
		return bot.Update{From: from, Partial: partial, WebAppData: data.Data}, true
	}
	return bot.Update{}, false
}

func callbackUpdate(e tg.Entities, u *tg.UpdateBotCallbackQuery) bot.Update {
	from, partial := lookupUser(e, u.UserID)
	return bot.Update{
		From:    from,
		Partial: partial,
		Callback: &bot.Callback{
			QueryID:   u.QueryID,
			MessageID: u.MsgID,
			Data:      string(u.Data),
		},
	}
}

// sender は個人チャットの相手を返す。グループやチャンネルなら ok は false。
func sender(e tg.Entities, peer tg.PeerClass) (*model.User, bool, bool) {
	p, ok := peer.(*tg.PeerUser)
	if !ok {
		return nil, false, false
	}
	if u, found := e.Users[p.UserID]; found && u.Bot {
		return nil, false, false
	}
	from, partial := lookupUser(e, p.UserID)
	return from, partial, true
}

// lookupUser は更新に含まれるユーザー情報を返す。含まれていなければIDだけを持つ。
func lookupUser(e tg.Entities, id int64) (*model.User, bool) {
	u, ok := e.Users[id]
	if !ok {
		return &model.User{ID: id}, true
	}
	return &model.User{
		ID:         u.ID,
		AccessHash: u.AccessHash,
		Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
		Username:   u.Username,
	}, false
}
