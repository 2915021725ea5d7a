package conversation

import (
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/notify"
)

// Event は対話への入力。以下の型のいずれか。
type Event interface {
	conversationEvent()
}

// Text は利用者が入力した文字列。
type Text struct {
	Text string
}

// WebAppTime は時刻選択WebAppから送られた時刻。
type WebAppTime struct {
	Hour   int
	Minute int
}

// PickChannel はチャンネル選択ボタンの押下。
type PickChannel struct {
	ChannelID int64
}

// Navigate はカレンダーの月移動。
type Navigate struct {
	Month calendar.Month
}

// DaySelected はカレンダーの日付選択。
type DaySelected struct {
	Date calendar.Date
}

// Cancel は対話の取り消し。
type Cancel struct{}

func (Text) conversationEvent()        {}
func (WebAppTime) conversationEvent()  {}
func (PickChannel) conversationEvent() {}
func (Navigate) conversationEvent()    {}
func (DaySelected) conversationEvent() {}
func (Cancel) conversationEvent()      {}

// Reply は対話の1ステップが返す応答。
type Reply struct {
	Message notify.Message
	// Replace が true なら押されたボタンのメッセージを書き換える。
	Replace bool
}

func send(msgs ...notify.Message) []Reply {
	out := make([]Reply, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Reply{Message: m})
	}
	return out
}

func replace(msg notify.Message) Reply {
	return Reply{Message: msg, Replace: true}
}
