// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者の自由入力（チャンネル名、購入者名、掲載フォーマット）から
// マークアップを取り除き、プレーンテキストとして保存できる形に整える。
// 整えたテキストはHTMLパースモードの文面に埋め込まれ、スプレッドシートにも書き込まれる。
package security

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 入力項目ごとの最大文字数（rune単位）。
const (
	MaxTitleLen  = 255
	MaxFormatLen = 255
	MaxBuyerLen  = 1000
)

// TextSanitizer は自由入力をプレーンテキストに整えるインターフェース。
type TextSanitizer interface {
	// Clean はタグを除去し、制御文字を取り除いて連続する空白を1つにまとめ、
	// 前後の空白を削ってmaxLen文字以内に切り詰める。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Clean(input string, maxLen int) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyは全タグを除去する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はテキストを整える。
func (s *textSanitizer) Clean(input string, maxLen int) string {
	if input == "" {
		return ""
	}
	// StrictPolicyは実体参照へエスケープするため元の文字に戻す
	text := html.UnescapeString(s.policy.Sanitize(input))

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")

	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:maxLen]))
	}
	return text
}
