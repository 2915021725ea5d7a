package model

import (
	"errors"
	"testing"
	"time"
)

func TestParsePublicationFormat(t *testing.T) {
	if f := ParsePublicationFormat("1/24"); f.Kind != Format1x24 {
		t.Errorf("Kind = %v, want %v", f.Kind, Format1x24)
	}
	if f := ParsePublicationFormat("Без удаления"); f.Kind != FormatPermanent {
		t.Errorf("Kind = %v, want %v", f.Kind, FormatPermanent)
	}

	f := ParsePublicationFormat("  репост + закреп ")
	if f.Kind != FormatCustom {
		t.Fatalf("Kind = %v, want FormatCustom", f.Kind)
	}
	if f.String() != "репост + закреп" {
		t.Errorf("String() = %q, want %q", f.String(), "репост + закреп")
	}
}

func TestPublicationFormat_RoundTripsThroughString(t *testing.T) {
	for _, f := range PresetFormats() {
		got := ParsePublicationFormat(f.String())
		if got != f {
			t.Errorf("ParsePublicationFormat(%q) = %+v, want %+v", f.String(), got, f)
		}
	}
}

func TestParsePaymentStatusLabel(t *testing.T) {
	for _, s := range PaymentStatuses() {
		got, ok := ParsePaymentStatusLabel(s.Label())
		if !ok || got != s {
			t.Errorf("ParsePaymentStatusLabel(%q) = %v, %v", s.Label(), got, ok)
		}
	}
	if _, ok := ParsePaymentStatusLabel("оплачено"); ok {
		t.Error("大文字小文字が異なるラベルは一致しないべき")
	}
	if PaymentStatus("refunded").Valid() {
		t.Error("未定義のステータスは無効であるべき")
	}
}

func TestSale_MirrorRow(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	s := &Sale{
		Buyer:          "ООО Ромашка",
		Cost:           50000,
		ManagerPercent: 1000,
		Format:         PublicationFormat{Kind: Format1x24},
		Status:         PaymentPaid,
		PublishedAt:    time.Date(2024, 6, 15, 11, 30, 0, 0, time.UTC),
	}

	row := s.MirrorRow(loc)
	want := []string{"15.06.2024", "14:30", "ООО Ромашка", "500.00", "10", "1/24", "Оплачено"}
	if len(row) != len(want) {
		t.Fatalf("len(row) = %d, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
	if len(MirrorHeader) != len(want) {
		t.Errorf("ヘッダーの列数 = %d, want %d", len(MirrorHeader), len(want))
	}

	for _, f := range []SaleField{FieldBuyer, FieldCost, FieldPercent, FieldFormat, FieldStatus} {
		if got := s.MirrorValue(f); got != row[f.Column()-1] {
			t.Errorf("MirrorValue(%s) = %q, want %q", f, got, row[f.Column()-1])
		}
	}
	if got := s.ManagerShare(); got != 5000 {
		t.Errorf("ManagerShare() = %d, want 5000", got)
	}
}

func TestAppError_KindMatching(t *testing.T) {
	base := NewSaleNotFoundError(7)
	wrapped := errors.Join(errors.New("context"), base)

	if !IsKind(wrapped, KindNotFound) {
		t.Error("ラップされたエラーでも分類が判定できるべき")
	}
	if IsKind(wrapped, KindAuthorization) {
		t.Error("異なる分類に一致してはならない")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("AppError以外の分類は空であるべき")
	}

	cause := errors.New("quota exceeded")
	mirrorErr := NewMirrorError("行追加", cause)
	if !errors.Is(mirrorErr, cause) {
		t.Error("原因エラーを Unwrap で辿れるべき")
	}
}
