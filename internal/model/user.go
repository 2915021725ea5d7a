// Package model はドメインモデルを定義する。
package model

import "time"

// User はボットと対話したTelegramユーザーを表す。
// IDはTelegramのユーザーIDで、AccessHashは後からメッセージを送るために必要となる。
type User struct {
	ID           int64
	AccessHash   int64
	Name         string
	Username     string
	BotBlocked   bool
	LastActivity time.Time
	RegisteredAt time.Time
}

// DisplayName は通知文面に使う表示名を返す。
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "Пользователь"
}
