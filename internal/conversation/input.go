package conversation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/sale"
	"github.com/hitoshi/adledger/internal/security"
)

// ParseClock は "HH:MM" 形式の時刻をパースする。数字以外は受け付けない。
// 桁数は問わず、時は0〜24、分は0〜59。"14:5" は 14:05 になる。
func ParseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || !digits(hh) || !digits(mm) {
		return 0, 0, model.NewInvalidTimeError(s)
	}
	h, herr := strconv.Atoi(hh)
	m, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || !ValidClock(h, m) {
		return 0, 0, model.NewInvalidTimeError(s)
	}
	return h, m, nil
}

// ValidClock は時と分が範囲内かどうかを返す。
func ValidClock(h, m int) bool {
	return h >= 0 && h <= 24 && m >= 0 && m <= 59
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseCost は金額入力をパースする。
func ParseCost(s string) (model.Money, error) {
	m, err := model.ParseMoney(s)
	if err != nil {
		return 0, model.NewInvalidCostError(s)
	}
	return m, nil
}

// ParseManagerPercent は百分率入力をパースする。100を超える値は専用のエラーにする。
func ParseManagerPercent(s string) (model.Percent, error) {
	p, err := model.ParsePercent(s)
	if errors.Is(err, model.ErrTooLarge) {
		return 0, model.NewPercentTooLargeError(s)
	}
	if err != nil {
		return 0, model.NewInvalidPercentError(s)
	}
	return p, nil
}

// ParseStatus は支払い状態のラベルを完全一致で解決する。
func ParseStatus(s string) (model.PaymentStatus, error) {
	st, ok := model.ParsePaymentStatusLabel(s)
	if !ok {
		return "", model.NewInvalidPaymentStatusError(s)
	}
	return st, nil
}

// cleanText は自由入力を無害化し、空なら入力エラーにする。
func cleanText(san security.TextSanitizer, s string, maxLen int) (string, error) {
	out := san.Clean(s, maxLen)
	if out == "" {
		return "", model.NewEmptyInputError()
	}
	return out, nil
}

// ParseChange は編集項目への入力を変更内容に変換する。
func ParseChange(san security.TextSanitizer, field model.SaleField, s string) (sale.Change, error) {
	c := sale.Change{Field: field}
	var err error
	switch field {
	case model.FieldBuyer:
		c.Buyer, err = cleanText(san, s, security.MaxBuyerLen)
	case model.FieldCost:
		c.Cost, err = ParseCost(s)
	case model.FieldPercent:
		c.Percent, err = ParseManagerPercent(s)
	case model.FieldFormat:
		var text string
		if text, err = cleanText(san, s, security.MaxFormatLen); err == nil {
			c.Format = model.ParsePublicationFormat(text)
		}
	case model.FieldStatus:
		c.Status, err = ParseStatus(s)
	default:
		err = errors.New("編集できない項目です")
	}
	return c, err
}
