package model

import "time"

// Channel は広告枠を販売するTelegramチャンネルを表す。
// タイトルは全体で一意。InviteCodeは一度使われると再生成される。
type Channel struct {
	ID         int64
	Title      string
	InviteCode string
	MirrorID   string // 外部スプレッドシートのID。未作成なら空
	CreatorID  int64
	CreatedAt  time.Time
}

// HasMirror はスプレッドシートが作成済みかどうかを返す。
func (c *Channel) HasMirror() bool {
	return c.MirrorID != ""
}

// ChannelWriter はユーザーへのチャンネル書き込み権限の付与を表す。
// 作成者は行がなくても暗黙に書き込み可能。
type ChannelWriter struct {
	ID        int64
	UserID    int64
	ChannelID int64
	CreatedAt time.Time
}

// ChannelTotals はチャンネルの累計売上を表す。
type ChannelTotals struct {
	ChannelID    int64
	Title        string
	Revenue      Money
	ManagerShare Money
	SalesCount   int
}
