// Package bot はチャット上の操作を売上台帳の各サービスへ振り分け、応答を送信する。
// トランスポートには依存せず、Update を受け取って notify.Notifier で返信する。
package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/adledger/internal/model"
)

// 更新の種類。メトリクスのラベルに使う。
const (
	KindMessage  = "message"
	KindWebApp   = "web_app"
	KindCallback = "callback"
)

// Update はトランスポートから受け取った1件の入力。
type Update struct {
	From *model.User
	// Partial が true なら From にはIDしか入っていない。
	Partial bool

	Text       string
	WebAppData string
	Callback   *Callback
}

// Callback はインラインボタンの押下。
type Callback struct {
	QueryID   int64
	MessageID int
	Data      string
}

// Kind は更新の種類を返す。
func (u Update) Kind() string {
	switch {
	case u.Callback != nil:
		return KindCallback
	case u.WebAppData != "":
		return KindWebApp
	}
	return KindMessage
}

// webAppTime は時刻選択WebAppが sendData で送る内容。
type webAppTime struct {
	Hours   *int `json:"hours"`
	Minutes *int `json:"minutes"`
}

// ParseWebAppTime は {"hours":H,"minutes":M} を解釈する。
func ParseWebAppTime(data string) (int, int, error) {
	var t webAppTime
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return 0, 0, fmt.Errorf("WebAppデータの解析に失敗しました: %w", err)
	}
	if t.Hours == nil || t.Minutes == nil {
		return 0, 0, fmt.Errorf("WebAppデータに時刻がありません: %q", data)
	}
	return *t.Hours, *t.Minutes, nil
}

// startPayload は "/start <payload>" の payload を返す。/start でなければ ok は false。
func startPayload(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd := fields[0]
	// グループでは /start@bot の形で届く
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd != "/start" {
		return "", false
	}
	if len(fields) > 1 {
		return fields[1], true
	}
	return "", true
}

// invitePrefix は招待リンクの start パラメータの接頭辞。
const invitePrefix = "share_"
