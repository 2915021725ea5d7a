package telegram

import (
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"

	"github.com/hitoshi/adledger/internal/notify"
)

// formatHTML はHTML形式の本文をプレーンテキストとエンティティに変換する。
func formatHTML(text string) (string, []tg.MessageEntityClass, error) {
	var b entity.Builder
	if err := html.HTML(strings.NewReader(text), &b, html.Options{}); err != nil {
		return "", nil, fmt.Errorf("HTMLの変換に失敗しました: %w", err)
	}
	plain, entities := b.Complete()
	return plain, entities, nil
}

// replyMarkup はメッセージのキーボード指定をMTProtoの表現に変換する。
// インラインキーボードを優先し、なければ返信キーボード、閉じる指定の順に見る。
func replyMarkup(msg notify.Message) tg.ReplyMarkupClass {
	switch {
	case len(msg.Inline) > 0:
		return inlineMarkup(msg.Inline)
	case msg.Reply != nil:
		return replyKeyboard(msg.Reply)
	case msg.RemoveReply:
		return &tg.ReplyKeyboardHide{}
	}
	return nil
}

func inlineMarkup(rows [][]notify.Button) *tg.ReplyInlineMarkup {
	out := &tg.ReplyInlineMarkup{Rows: make([]tg.KeyboardButtonRow, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]tg.KeyboardButtonClass, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineButton(b))
		}
		out.Rows = append(out.Rows, tg.KeyboardButtonRow{Buttons: buttons})
	}
	return out
}

func inlineButton(b notify.Button) tg.KeyboardButtonClass {
	switch b.Kind {
	case notify.ButtonURL:
		return &tg.KeyboardButtonURL{Text: b.Text, URL: b.URL}
	case notify.ButtonWebApp:
		return &tg.KeyboardButtonWebView{Text: b.Text, URL: b.URL}
	}
	return &tg.KeyboardButtonCallback{Text: b.Text, Data: []byte(b.Data)}
}

func replyKeyboard(kb *notify.ReplyKeyboard) *tg.ReplyKeyboardMarkup {
	out := &tg.ReplyKeyboardMarkup{
		Resize:    true,
		SingleUse: kb.OneTime,
		Rows:      make([]tg.KeyboardButtonRow, 0, len(kb.Rows)),
	}
	for _, row := range kb.Rows {
		buttons := make([]tg.KeyboardButtonClass, 0, len(row))
		for _, b := range row {
			if b.WebAppURL != "" {
				// sendData が届くのは返信キーボードから開いたWebAppだけ
				buttons = append(buttons, &tg.KeyboardButtonSimpleWebView{Text: b.Text, URL: b.WebAppURL})
				continue
			}
			buttons = append(buttons, &tg.KeyboardButton{Text: b.Text})
		}
		out.Rows = append(out.Rows, tg.KeyboardButtonRow{Buttons: buttons})
	}
	return out
}

// sentMessageID は送信結果から新しいメッセージのIDを取り出す。見つからなければ0。
func sentMessageID(u tg.UpdatesClass) int {
	switch v := u.(type) {
	case *tg.UpdateShortSentMessage:
		return v.ID
	case *tg.Updates:
		return messageIDFrom(v.Updates)
	case *tg.UpdatesCombined:
		return messageIDFrom(v.Updates)
	}
	return 0
}

func messageIDFrom(updates []tg.UpdateClass) int {
	for _, upd := range updates {
		switch v := upd.(type) {
		case *tg.UpdateMessageID:
			return v.ID
		case *tg.UpdateNewMessage:
			return v.Message.GetID()
		}
	}
	return 0
}
