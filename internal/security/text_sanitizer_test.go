package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestClean_StripsMarkup はタグが除去されテキストだけが残ることを検証する。
func TestClean_StripsMarkup(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "ООО Ромашка", "ООО Ромашка"},
		{"太字タグ", "<b>Alpha</b> channel", "Alpha channel"},
		{"scriptタグ", "<script>alert(1)</script>Beta", "Beta"},
		{"アンパサンド", "Tom & Jerry", "Tom & Jerry"},
		{"山括弧のみ", "1 < 2", "1 < 2"},
		{"空白の正規化", "  репост \n\n + закреп\t", "репост + закреп"},
		{"制御文字", "A\x07B\x1bC", "ABC"},
		{"空文字", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Clean(tt.input, MaxBuyerLen); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestClean_TruncatesByRune は文字数制限がrune単位で行われることを検証する。
func TestClean_TruncatesByRune(t *testing.T) {
	s := NewTextSanitizer()
	input := strings.Repeat("ж", 300)

	got := s.Clean(input, MaxTitleLen)
	if n := utf8.RuneCountInString(got); n != MaxTitleLen {
		t.Errorf("rune数 = %d, want %d", n, MaxTitleLen)
	}
	if !utf8.ValidString(got) {
		t.Error("切り詰め後も有効なUTF-8であるべき")
	}
}

// TestClean_Idempotent は2回適用しても結果が変わらないことを検証する。
func TestClean_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	inputs := []string{"<i>x</i> &amp; y", "Tom & Jerry", "  a  b "}
	for _, in := range inputs {
		once := s.Clean(in, 0)
		if twice := s.Clean(once, 0); twice != once {
			t.Errorf("Clean は冪等であるべき: %q → %q → %q", in, once, twice)
		}
	}
}
