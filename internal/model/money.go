package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money はコペイカ単位（小数点以下2桁）の金額を表す。
type Money int64

// Percent は0.01%単位の百分率を表す。10000が100%に相当する。
type Percent int64

// MaxPercent は許容される最大の百分率。
const MaxPercent Percent = 10000

// MaxMoney は保存できる最大の金額（NUMERIC(15,2) の上限 9 999 999 999 999.99）。
const MaxMoney Money = 999_999_999_999_999

// 整数部として受け付ける最大の桁数。先頭の0は数えない。
const maxWholeDigits = 15

// 数値入力のパースエラー。
var (
	ErrNotNumber = errors.New("数値ではありません")
	ErrNegative  = errors.New("負の値は指定できません")
	ErrTooLarge  = errors.New("値が大きすぎます")
)

// parseDecimal は "123", "123.45", "123,45" のような十進数を0.01単位の整数にする。
// 3桁目以降の小数は四捨五入する。切り捨てた結果が入力より小さい場合は above を true にする。
// 指数表記や16進表記は受け付けない。
func parseDecimal(s string) (v int64, above bool, err error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" || !isDigits(whole) || !isDigits(frac) {
		return 0, false, ErrNotNumber
	}
	if neg && strings.Trim(whole+frac, "0") != "" {
		return 0, false, ErrNegative
	}

	whole = strings.TrimLeft(whole, "0")
	if len(whole) > maxWholeDigits {
		return 0, false, ErrTooLarge
	}
	for _, c := range whole {
		v = v*10 + int64(c-'0')
	}
	for i := 0; i < 2; i++ {
		v *= 10
		if i < len(frac) {
			v += int64(frac[i] - '0')
		}
	}
	if len(frac) > 2 {
		if frac[2] >= '5' {
			v++
		} else {
			above = strings.Trim(frac[2:], "0") != ""
		}
	}
	return v, above, nil
}

// isDigits は s がASCII数字だけで構成されているかを返す。空文字列はtrue。
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseMoney は利用者の入力から金額をパースし、小数点以下2桁に丸める。
// MaxMoney を超える値は ErrTooLarge。
func ParseMoney(s string) (Money, error) {
	v, _, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if Money(v) > MaxMoney {
		return 0, ErrTooLarge
	}
	return Money(v), nil
}

// ParsePercent は "10", "12.5", "10%" のような入力をパースする。
// 0未満および100を超える値は拒否する。
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, above, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if p := Percent(v); p > MaxPercent || p == MaxPercent && above {
		return 0, ErrTooLarge
	}
	return Percent(v), nil
}

// ManagerShare は cost × percent / 100 を小数点以下2桁で四捨五入して返す。
// 0 ≤ p ≤ MaxPercent であれば任意の金額で桁あふれしない。
func ManagerShare(cost Money, p Percent) Money {
	neg := (cost < 0) != (p < 0)
	c, q := magnitude(int64(cost)), magnitude(int64(p))
	// c = hi×10000 + lo と分けて、hi×q の部分は割り算を省く
	hi, lo := c/10000, c%10000
	share := hi*q + (lo*q+5000)/10000
	if neg {
		return Money(-int64(share))
	}
	return Money(share)
}

func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// String は "1234.50" の形式で返す。
func (m Money) String() string {
	return formatHundredths(int64(m))
}

// Float は表示用の浮動小数点値を返す。
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String は "12.5" の形式で返す。末尾の0は省略する。
func (p Percent) String() string {
	s := formatHundredths(int64(p))
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func formatHundredths(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	u := magnitude(v)
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}

// Value はNUMERIC列へ書き込むための値を返す。
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan はNUMERIC列の値を読み込む。
func (m *Money) Scan(src any) error {
	v, err := scanHundredths(src)
	if err != nil {
		return fmt.Errorf("金額の読み込みに失敗しました: %w", err)
	}
	*m = Money(v)
	return nil
}

// Value はNUMERIC列へ書き込むための値を返す。
func (p Percent) Value() (driver.Value, error) {
	return formatHundredths(int64(p)), nil
}

// Scan はNUMERIC列の値を読み込む。
func (p *Percent) Scan(src any) error {
	v, err := scanHundredths(src)
	if err != nil {
		return fmt.Errorf("百分率の読み込みに失敗しました: %w", err)
	}
	*p = Percent(v)
	return nil
}

func scanHundredths(src any) (int64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case int64:
		return v * 100, nil
	case float64:
		return int64(math.Round(v * 100)), nil
	case []byte:
		return parseHundredths(string(v))
	case string:
		return parseHundredths(v)
	default:
		return 0, fmt.Errorf("未対応の型です: %T", src)
	}
}

// parseHundredths はNUMERIC文字列を誤差なく整数化する。
func parseHundredths(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return v, nil
}
