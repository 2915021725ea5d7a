package channel

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/hitoshi/adledger/internal/access"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/repository/memory"
	"github.com/hitoshi/adledger/internal/security"
)

type fixture struct {
	store  *memory.Store
	outbox *notify.Outbox
	svc    *Service
	logs   *bytes.Buffer
}

func newFixture() *fixture {
	store := memory.NewStore()
	outbox := notify.NewOutbox()
	logs := &bytes.Buffer{}
	gate := access.NewGate(store.Channels(), store.Sales())
	svc := NewService(store.Channels(), store.Sales(), gate, outbox, messages.Default(),
		security.NewTextSanitizer(), slog.New(slog.NewJSONHandler(logs, nil)), "adledger_bot",
		func(id string) string { return "https://docs.google.com/spreadsheets/d/" + id })
	return &fixture{store: store, outbox: outbox, svc: svc, logs: logs}
}

func TestNewInviteCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Za-z0-9]{15}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := NewInviteCode()
		if err != nil {
			t.Fatalf("NewInviteCode で予期しないエラー: %v", err)
		}
		if !re.MatchString(code) {
			t.Errorf("招待コードの形式が不正: %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 100 {
		t.Errorf("招待コードが重複した: %d 種類", len(seen))
	}
}

func TestInviteLink(t *testing.T) {
	got := InviteLink("adledger_bot", "abc")
	if got != "https://t.me/adledger_bot?start=share_abc" {
		t.Errorf("InviteLink = %q", got)
	}
}

func TestService_Create_RejectsDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.svc.Create(ctx, 1, "  <b>Alpha</b> ")
	if err != nil {
		t.Fatalf("Create で予期しないエラー: %v", err)
	}
	if first.Title != "Alpha" {
		t.Errorf("Title = %q, want %q", first.Title, "Alpha")
	}

	_, err = f.svc.Create(ctx, 2, "Alpha")
	if !model.IsKind(err, model.KindConflict) {
		t.Errorf("重複タイトルは KindConflict であるべき: %v", err)
	}
	chs, _ := f.store.Channels().ListForUser(ctx, 2)
	if len(chs) != 0 {
		t.Errorf("2つ目のチャンネルは作成されないべき: %d 件", len(chs))
	}

	_, err = f.svc.Create(ctx, 1, "   ")
	if !model.IsKind(err, model.KindValidation) {
		t.Errorf("空タイトルは KindValidation であるべき: %v", err)
	}
}

func TestService_Create_RetriesOnCodeCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	codes := []string{"SAMECODE0000000", "SAMECODE0000000", "OTHERCODE000000"}
	f.svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	if _, err := f.svc.Create(ctx, 1, "Alpha"); err != nil {
		t.Fatalf("Create で予期しないエラー: %v", err)
	}
	ch, err := f.svc.Create(ctx, 1, "Beta")
	if err != nil {
		t.Fatalf("衝突後の再生成で作成できるべき: %v", err)
	}
	if ch.InviteCode != "OTHERCODE000000" {
		t.Errorf("InviteCode = %q", ch.InviteCode)
	}
}

func TestService_JoinByInviteCode_SingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ch, err := f.svc.Create(ctx, 1, "Alpha")
	if err != nil {
		t.Fatalf("Create で予期しないエラー: %v", err)
	}
	code := ch.InviteCode
	writer := &model.User{ID: 2, Name: "Вася"}

	res, err := f.svc.JoinByInviteCode(ctx, writer, code)
	if err != nil {
		t.Fatalf("JoinByInviteCode で予期しないエラー: %v", err)
	}
	if !res.Added {
		t.Error("新しい編集者として追加されるべき")
	}
	if ok, _ := f.store.Channels().IsWriter(ctx, 2, ch.ID); !ok {
		t.Error("書き込み権限が付与されるべき")
	}

	// コードは再生成されている
	updated, _ := f.store.Channels().FindByID(ctx, ch.ID)
	if updated.InviteCode == code {
		t.Error("使用後の招待コードは再生成されるべき")
	}

	// 作成者に通知
	last, ok := f.outbox.Last(1)
	if !ok || !strings.Contains(last.Message.Text, "Вася") || !strings.Contains(last.Message.Text, "Alpha") {
		t.Errorf("作成者への通知 = %+v", last)
	}

	// 同じコードは2回目には使えない
	_, err = f.svc.JoinByInviteCode(ctx, &model.User{ID: 3}, code)
	if !model.IsKind(err, model.KindConflict) {
		t.Errorf("使用済みコードは KindConflict であるべき: %v", err)
	}
}

func TestService_JoinByInviteCode_CreatorIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ch, _ := f.svc.Create(ctx, 1, "Alpha")
	res, err := f.svc.JoinByInviteCode(ctx, &model.User{ID: 1}, ch.InviteCode)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if res.Added {
		t.Error("作成者は編集者として追加されないべき")
	}
	updated, _ := f.store.Channels().FindByID(ctx, ch.ID)
	if updated.InviteCode != ch.InviteCode {
		t.Error("作成者が開いた場合はコードを消費しないべき")
	}
}

func TestService_SettingsAndTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ch, _ := f.svc.Create(ctx, 1, "Alpha")
	_ = f.store.Channels().SetMirrorID(ctx, ch.ID, "sheet-1")
	_ = f.store.Sales().Create(ctx, &model.Sale{ChannelID: ch.ID, WriterID: 1, Cost: 50000, ManagerPercent: 1000})

	st, err := f.svc.Settings(ctx, 1, ch.ID)
	if err != nil {
		t.Fatalf("Settings で予期しないエラー: %v", err)
	}
	if !strings.HasPrefix(st.InviteLink, "https://t.me/adledger_bot?start=share_") {
		t.Errorf("InviteLink = %q", st.InviteLink)
	}
	if st.TableURL != "https://docs.google.com/spreadsheets/d/sheet-1" {
		t.Errorf("TableURL = %q", st.TableURL)
	}

	if _, err := f.svc.Settings(ctx, 9, ch.ID); !model.IsKind(err, model.KindAuthorization) {
		t.Errorf("権限のないユーザーは KindAuthorization であるべき: %v", err)
	}

	totals, err := f.svc.Totals(ctx, 1)
	if err != nil {
		t.Fatalf("Totals で予期しないエラー: %v", err)
	}
	if len(totals) != 1 || totals[0].Revenue != 50000 || totals[0].ManagerShare != 5000 {
		t.Errorf("totals = %+v", totals)
	}
}
