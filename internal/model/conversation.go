package model

import "time"

// ConversationRecord はユーザーごとの対話セッションの永続化形式。
// Draft は対話の種類ごとに異なるJSONで、解釈はconversationパッケージが行う。
type ConversationRecord struct {
	UserID    int64
	SessionID string
	Flow      string
	State     string
	Draft     []byte
	UpdatedAt time.Time
}
