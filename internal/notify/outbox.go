package notify

import (
	"context"
	"sync"
)

// Sent はOutboxに記録された1件の配信。
type Sent struct {
	UserID    int64
	MessageID int
	Message   Message
	Edited    bool
}

// Outbox は配信内容をメモリに記録するNotifier。
// ボット層の動作確認で実際の送信の代わりに使う。
type Outbox struct {
	mu       sync.Mutex
	nextID   int
	sent     []Sent
	deleted  map[int64][]int
	answered []int64
	// Fail が設定されていれば、そのユーザー宛ての送信はこのエラーで失敗する。
	Fail map[int64]error
}

// NewOutbox は空のOutboxを生成する。
func NewOutbox() *Outbox {
	return &Outbox{deleted: make(map[int64][]int)}
}

// Send はメッセージを記録する。
func (o *Outbox) Send(ctx context.Context, userID int64, msg Message) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.Fail[userID]; err != nil {
		return 0, err
	}
	o.nextID++
	o.sent = append(o.sent, Sent{UserID: userID, MessageID: o.nextID, Message: msg})
	return o.nextID, nil
}

// Edit は書き換えを記録する。
func (o *Outbox) Edit(ctx context.Context, userID int64, messageID int, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.Fail[userID]; err != nil {
		return err
	}
	o.sent = append(o.sent, Sent{UserID: userID, MessageID: messageID, Message: msg, Edited: true})
	return nil
}

// Delete は削除を記録する。
func (o *Outbox) Delete(ctx context.Context, userID int64, messageIDs ...int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted[userID] = append(o.deleted[userID], messageIDs...)
	return nil
}

// AnswerCallback は応答を記録する。
func (o *Outbox) AnswerCallback(ctx context.Context, queryID int64, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.answered = append(o.answered, queryID)
	return nil
}

// To は指定ユーザー宛ての配信を古い順に返す。
func (o *Outbox) To(userID int64) []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Sent
	for _, s := range o.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Last は指定ユーザー宛ての最後の配信を返す。
func (o *Outbox) Last(userID int64) (Sent, bool) {
	all := o.To(userID)
	if len(all) == 0 {
		return Sent{}, false
	}
	return all[len(all)-1], true
}

// Deleted は指定ユーザーについて削除されたメッセージIDを返す。
func (o *Outbox) Deleted(userID int64) []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.deleted[userID]...)
}

// Reset は記録を消去する。
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = nil
	o.deleted = make(map[int64][]int)
	o.answered = nil
}

var _ Notifier = (*Outbox)(nil)
