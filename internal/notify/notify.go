// Package notify はチャットへのメッセージ配信を抽象化する。
// 実装はtelegramパッケージにあり、コアはこのインターフェースだけに依存する。
package notify

import "context"

// ButtonKind はインラインボタンの種類。
type ButtonKind int

const (
	// ButtonCallback は押下時にコールバックデータを送るボタン。
	ButtonCallback ButtonKind = iota
	// ButtonURL は外部URLを開くボタン。
	ButtonURL
	// ButtonWebApp はWebAppを開くボタン。
	ButtonWebApp
)

// Button はインラインキーボードのボタン。
type Button struct {
	Text string
	Kind ButtonKind
	Data string // ButtonCallback のときのコールバックデータ
	URL  string // ButtonURL / ButtonWebApp のときのURL
}

// CallbackButton はコールバックボタンを生成する。
func CallbackButton(text, data string) Button {
	return Button{Text: text, Kind: ButtonCallback, Data: data}
}

// URLButton はURLボタンを生成する。
func URLButton(text, url string) Button {
	return Button{Text: text, Kind: ButtonURL, URL: url}
}

// ReplyButton は返信キーボードのボタン。WebAppURLが空でなければWebAppを開く。
type ReplyButton struct {
	Text      string
	WebAppURL string
}

// ReplyKeyboard は入力欄の下に表示するキーボード。
type ReplyKeyboard struct {
	Rows    [][]ReplyButton
	OneTime bool
}

// Message は送信するメッセージ。Text はHTMLとして解釈される。
type Message struct {
	Text   string
	Inline [][]Button
	Reply  *ReplyKeyboard
	// RemoveReply が true なら返信キーボードを閉じる。
	RemoveReply bool
	NoPreview   bool
}

// Notifier はユーザーへのメッセージ配信を行う。
// 送信失敗は呼び出し側でログに記録し、処理を中断しない。
type Notifier interface {
	// Send はメッセージを送信し、メッセージIDを返す。
	Send(ctx context.Context, userID int64, msg Message) (int, error)
	// Edit は送信済みメッセージを書き換える。
	Edit(ctx context.Context, userID int64, messageID int, msg Message) error
	// Delete は送信済みメッセージを削除する。
	Delete(ctx context.Context, userID int64, messageIDs ...int) error
	// AnswerCallback はボタン押下に応答する。textが空なら通知は表示しない。
	AnswerCallback(ctx context.Context, queryID int64, text string) error
}

// Lifecycle は接続の開始と終了を持つ配信実装。
type Lifecycle interface {
	Connect(ctx context.Context) error
	Close() error
}
