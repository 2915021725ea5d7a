package sale

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/adledger/internal/access"
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/mirror"
	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/reminder"
	"github.com/hitoshi/adledger/internal/repository/memory"
	"github.com/hitoshi/adledger/internal/view"
)

const (
	creatorID int64 = 1
	writerID  int64 = 2
	outsideID int64 = 3
)

type fixture struct {
	store   *memory.Store
	outbox  *notify.Outbox
	sheets  *mirror.MemoryStore
	svc     *Service
	channel *model.Channel
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:  memory.NewStore(),
		outbox: notify.NewOutbox(),
		sheets: mirror.NewMemoryStore(),
		logs:   &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))

	for _, u := range []*model.User{
		{ID: creatorID, Name: "Владелец"},
		{ID: writerID, Name: "Вася"},
		{ID: outsideID, Name: "Чужой"},
	} {
		if err := f.store.Users().Upsert(ctx, u); err != nil {
			t.Fatalf("ユーザーの作成に失敗: %v", err)
		}
	}
	f.channel = &model.Channel{Title: "Alpha", InviteCode: "code", CreatorID: creatorID}
	if err := f.store.Channels().Create(ctx, f.channel); err != nil {
		t.Fatalf("チャンネルの作成に失敗: %v", err)
	}
	if _, err := f.store.Channels().AddWriter(ctx, writerID, f.channel.ID); err != nil {
		t.Fatalf("編集者の追加に失敗: %v", err)
	}

	f.svc = NewService(Deps{
		Sales:     f.store.Sales(),
		Channels:  f.store.Channels(),
		Users:     f.store.Users(),
		Gate:      access.NewGate(f.store.Channels(), f.store.Sales()),
		Mirror:    mirror.NewDispatcher(f.sheets, nil, logger, 2, time.Second),
		Index:     calendar.NewIndex(f.store.Sales(), time.UTC),
		Scheduler: reminder.NewScheduler(f.store.Reminders(), logger),
		Notifier:  f.outbox,
		View:      view.NewRenderer(messages.Default(), time.UTC, ""),
		Logger:    logger,
	})
	return f
}

// 未来の掲載日時。リマインダーの期限が過去にならないようにする。
func futureAt(days int) time.Time {
	return time.Now().UTC().Truncate(time.Minute).AddDate(0, 0, days)
}

func (f *fixture) draft(cost model.Money, status model.PaymentStatus, at time.Time) *model.Sale {
	return &model.Sale{
		ChannelID:      f.channel.ID,
		Buyer:          "ООО Ромашка",
		Cost:           cost,
		ManagerPercent: 1000,
		Format:         model.PublicationFormat{Kind: model.Format1x24},
		Status:         status,
		PublishedAt:    at,
	}
}

func (f *fixture) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := f.store.Users().FindByID(context.Background(), id)
	if err != nil || u == nil {
		t.Fatalf("ユーザー %d の取得に失敗: %v", id, err)
	}
	return u
}

func TestValidate(t *testing.T) {
	base := model.Sale{
		Buyer:          "x",
		Cost:           100,
		ManagerPercent: 1000,
		Format:         model.PublicationFormat{Kind: model.Format1x1},
		Status:         model.PaymentPaid,
	}
	tests := []struct {
		name   string
		modify func(s *model.Sale)
		code   string
	}{
		{"正常", func(s *model.Sale) {}, ""},
		{"購入者が空", func(s *model.Sale) { s.Buyer = "" }, model.ErrCodeEmptyInput},
		{"自由入力フォーマットが空", func(s *model.Sale) { s.Format = model.PublicationFormat{} }, model.ErrCodeEmptyInput},
		{"負の金額", func(s *model.Sale) { s.Cost = -1 }, model.ErrCodeInvalidCost},
		{"上限を超える金額", func(s *model.Sale) { s.Cost = model.MaxMoney + 1 }, model.ErrCodeInvalidCost},
		{"100%超", func(s *model.Sale) { s.ManagerPercent = model.MaxPercent + 1 }, model.ErrCodePercentTooLarge},
		{"未定義の状態", func(s *model.Sale) { s.Status = "refunded" }, model.ErrCodeInvalidPaymentStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.modify(&s)
			err := Validate(&s)
			if tt.code == "" {
				if err != nil {
					t.Errorf("予期しないエラー: %v", err)
				}
				return
			}
			var appErr *model.AppError
			if !errors.As(err, &appErr) || appErr.Code != tt.code {
				t.Errorf("Validate = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestService_Commit_ByCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	receipt, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(50000, model.PaymentPaid, futureAt(3)))
	if err != nil {
		t.Fatalf("Commit で予期しないエラー: %v", err)
	}
	if receipt.Sale.ID == 0 || receipt.Sale.WriterID != creatorID {
		t.Errorf("売上が記録者付きで保存されるべき: %+v", receipt.Sale)
	}
	if receipt.MirrorErr != nil {
		t.Fatalf("スプレッドシート反映で予期しないエラー: %v", receipt.MirrorErr)
	}
	if receipt.TableURL != "memory://table-1" {
		t.Errorf("TableURL = %q", receipt.TableURL)
	}
	if receipt.Summary == nil || receipt.Summary.Revenue != 50000 || receipt.Summary.ManagerShare != 5000 {
		t.Errorf("月集計 = %+v", receipt.Summary)
	}
	if receipt.Reminder != nil {
		t.Errorf("支払い済みにはリマインダー不要: %+v", receipt.Reminder)
	}
	if receipt.CreatorNotified || len(f.outbox.To(creatorID)) != 0 {
		t.Error("作成者自身の記録では通知しないべき")
	}

	ch, _ := f.store.Channels().FindByID(ctx, f.channel.ID)
	if ch.MirrorID != "table-1" {
		t.Errorf("スプレッドシートIDが保存されるべき: %q", ch.MirrorID)
	}
	appends := f.sheets.Calls("append_row")
	if len(appends) != 1 || appends[0].Position != 1 {
		t.Errorf("1行目に挿入されるべき: %+v", appends)
	}

	// 2件目は同じ表に追加され、表は作り直さない
	if _, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(10000, model.PaymentPaid, futureAt(4))); err != nil {
		t.Fatalf("Commit で予期しないエラー: %v", err)
	}
	if n := len(f.sheets.Calls("create_table")); n != 1 {
		t.Errorf("表の作成回数 = %d, want 1", n)
	}
	if rows := f.sheets.Rows("table-1"); len(rows) != 2 {
		t.Errorf("行数 = %d, want 2", len(rows))
	}
}

func TestService_Commit_ByWriterNotifiesCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	receipt, err := f.svc.Commit(ctx, f.user(t, writerID), f.draft(50000, model.PaymentBooked, futureAt(3)))
	if err != nil {
		t.Fatalf("Commit で予期しないエラー: %v", err)
	}
	if !receipt.CreatorNotified {
		t.Fatal("作成者に通知されるべき")
	}
	last, ok := f.outbox.Last(creatorID)
	if !ok {
		t.Fatal("作成者宛てのメッセージがない")
	}
	for _, want := range []string{"Alpha", "Вася", "1/24"} {
		if !strings.Contains(last.Message.Text, want) {
			t.Errorf("通知に %q が含まれるべき: %q", want, last.Message.Text)
		}
	}
	if receipt.Reminder == nil {
		t.Error("予約にはリマインダーが登録されるべき")
	}
}

func TestService_Commit_NotifyFailureKeepsSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.outbox.Fail = map[int64]error{creatorID: errors.New("blocked")}

	receipt, err := f.svc.Commit(ctx, f.user(t, writerID), f.draft(100, model.PaymentPaid, futureAt(1)))
	if err != nil {
		t.Fatalf("通知の失敗で記録が失敗してはならない: %v", err)
	}
	if receipt.CreatorNotified {
		t.Error("通知失敗時は CreatorNotified がfalseであるべき")
	}
	if !strings.Contains(f.logs.String(), "作成者への通知に失敗しました") {
		t.Error("通知失敗がログに出力されるべき")
	}
}

func TestService_Commit_RejectsOutsider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Commit(ctx, f.user(t, outsideID), f.draft(100, model.PaymentPaid, futureAt(1)))
	if !model.IsKind(err, model.KindAuthorization) {
		t.Fatalf("権限のないユーザーは KindAuthorization であるべき: %v", err)
	}
	if n, _ := f.store.Sales().CountByChannel(ctx, f.channel.ID); n != 0 {
		t.Errorf("売上が保存されてはならない: %d 件", n)
	}
}

func TestService_Commit_MirrorFailureKeepsSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sheets.Err = errors.New("quota exceeded")

	receipt, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(100, model.PaymentPaid, futureAt(1)))
	if err != nil {
		t.Fatalf("反映の失敗で記録が失敗してはならない: %v", err)
	}
	if !model.IsKind(receipt.MirrorErr, model.KindRemoteMirror) {
		t.Errorf("MirrorErr は KindRemoteMirror であるべき: %v", receipt.MirrorErr)
	}
	if n, _ := f.store.Sales().CountByChannel(ctx, f.channel.ID); n != 1 {
		t.Errorf("売上は保存されるべき: %d 件", n)
	}
}

func TestService_Commit_PartialTableCreationKeepsID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sheets.SetupErr = errors.New("share failed")

	receipt, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(100, model.PaymentPaid, futureAt(1)))
	if err != nil {
		t.Fatalf("反映の失敗で記録が失敗してはならない: %v", err)
	}
	if !model.IsKind(receipt.MirrorErr, model.KindRemoteMirror) {
		t.Errorf("MirrorErr は KindRemoteMirror であるべき: %v", receipt.MirrorErr)
	}
	ch, _ := f.store.Channels().FindByID(ctx, f.channel.ID)
	if ch.MirrorID != "table-1" {
		t.Errorf("作成済みの表のIDは保存されるべき: %q", ch.MirrorID)
	}
	if n := len(f.sheets.Calls("append_row")); n != 0 {
		t.Errorf("設定に失敗した表へは追記しないべき: %d 回", n)
	}

	f.sheets.SetupErr = nil
	receipt, err = f.svc.Commit(ctx, f.user(t, creatorID), f.draft(200, model.PaymentPaid, futureAt(2)))
	if err != nil || receipt.MirrorErr != nil {
		t.Fatalf("Commit で予期しないエラー: %v / %v", err, receipt.MirrorErr)
	}
	if n := len(f.sheets.Calls("create_table")); n != 1 {
		t.Errorf("表は再作成されないべき: create_table %d 回", n)
	}
	appends := f.sheets.Calls("append_row")
	if len(appends) != 1 || appends[0].TableID != "table-1" {
		t.Errorf("既存の表へ追記されるべき: %+v", appends)
	}
}

func TestService_Edit_UpdatesCellAtCurrentPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		r, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(10000, model.PaymentBooked, futureAt(3+i)))
		if err != nil {
			t.Fatalf("Commit で予期しないエラー: %v", err)
		}
		ids = append(ids, r.Sale.ID)
	}

	res, err := f.svc.Edit(ctx, writerID, ids[2], Change{Field: model.FieldCost, Cost: 70000})
	if err != nil {
		t.Fatalf("Edit で予期しないエラー: %v", err)
	}
	if res.MirrorErr != nil {
		t.Fatalf("反映で予期しないエラー: %v", res.MirrorErr)
	}
	updates := f.sheets.Calls("update_cell")
	if len(updates) != 1 {
		t.Fatalf("セル更新回数 = %d, want 1", len(updates))
	}
	if u := updates[0]; u.Position != 3 || u.Column != 4 || u.Values[0] != "700.00" {
		t.Errorf("セル更新 = %+v", u)
	}
	stored, _ := f.store.Sales().FindByID(ctx, ids[2])
	if stored.Cost != 70000 {
		t.Errorf("保存された金額 = %d", stored.Cost)
	}

	// 支払い済みに変えるとリマインダーは消える
	if _, err := f.svc.Edit(ctx, creatorID, ids[0], Change{Field: model.FieldStatus, Status: model.PaymentPaid}); err != nil {
		t.Fatalf("Edit で予期しないエラー: %v", err)
	}
	if rem, _ := f.store.Reminders().FindBySaleID(ctx, ids[0]); rem != nil {
		t.Errorf("リマインダーが削除されるべき: %+v", rem)
	}

	_, err = f.svc.Edit(ctx, creatorID, ids[1], Change{Field: model.FieldPercent, Percent: model.MaxPercent + 1})
	if !model.IsKind(err, model.KindValidation) {
		t.Errorf("100%%超は KindValidation であるべき: %v", err)
	}
	_, err = f.svc.Edit(ctx, outsideID, ids[1], Change{Field: model.FieldBuyer, Buyer: "x"})
	if !model.IsKind(err, model.KindAuthorization) {
		t.Errorf("権限のないユーザーは KindAuthorization であるべき: %v", err)
	}
}

func TestService_Delete_RemovesRowAtCurrentPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		r, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(model.Money(i), model.PaymentPaid, futureAt(1+i)))
		if err != nil {
			t.Fatalf("Commit で予期しないエラー: %v", err)
		}
		ids = append(ids, r.Sale.ID)
	}
	writerSale, err := f.svc.Commit(ctx, f.user(t, writerID), f.draft(5, model.PaymentPaid, futureAt(5)))
	if err != nil {
		t.Fatalf("Commit で予期しないエラー: %v", err)
	}

	// 作成者でも記録者でもない編集者は削除できない
	if _, err := f.svc.Delete(ctx, writerID, ids[0]); !model.IsKind(err, model.KindAuthorization) {
		t.Errorf("他人の売上の削除は KindAuthorization であるべき: %v", err)
	}

	res, err := f.svc.Delete(ctx, creatorID, ids[1])
	if err != nil {
		t.Fatalf("Delete で予期しないエラー: %v", err)
	}
	if res.Position != 2 || res.MirrorErr != nil {
		t.Errorf("DeleteResult = %+v", res)
	}
	deletes := f.sheets.Calls("delete_row")
	if len(deletes) != 1 || deletes[0].Position != 2 {
		t.Errorf("2行目がちょうど1回削除されるべき: %+v", deletes)
	}
	if rows := f.sheets.Rows("table-1"); len(rows) != 3 {
		t.Errorf("行数 = %d, want 3", len(rows))
	}

	// 記録者本人は自分の売上を削除できる。順位は詰められている
	res, err = f.svc.Delete(ctx, writerID, writerSale.Sale.ID)
	if err != nil {
		t.Fatalf("Delete で予期しないエラー: %v", err)
	}
	if res.Position != 3 {
		t.Errorf("Position = %d, want 3", res.Position)
	}

	if _, err := f.svc.Delete(ctx, creatorID, ids[1]); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("削除済みの売上は KindNotFound であるべき: %v", err)
	}
}

func TestService_Delete_FailsWhenMirrorSlotUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.Commit(ctx, f.user(t, creatorID), f.draft(100, model.PaymentPaid, futureAt(1)))
	if err != nil {
		t.Fatalf("Commit で予期しないエラー: %v", err)
	}

	// 同時実行数1のディスパッチャーを別チャンネルの操作で塞ぐ
	d := mirror.NewDispatcher(f.sheets, nil, slog.New(slog.NewJSONHandler(f.logs, nil)), 1, time.Second)
	f.svc.mirror = d
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Do(ctx, f.channel.ID+100, "hold", func(context.Context, mirror.Store) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer func() {
		close(release)
		<-done
	}()

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	res, err := f.svc.Delete(short, creatorID, r.Sale.ID)
	if err == nil {
		t.Fatalf("削除が実行されなければエラーになるべき: %+v", res)
	}
	if stored, _ := f.store.Sales().FindByID(ctx, r.Sale.ID); stored == nil {
		t.Error("売上は残っているべき")
	}
	if n := len(f.sheets.Calls("delete_row")); n != 0 {
		t.Errorf("行は削除されないべき: delete_row %d 回", n)
	}
}

func TestService_Card(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.Commit(ctx, f.user(t, writerID), f.draft(100, model.PaymentPaid, futureAt(1)))
	if err != nil {
		t.Fatalf("Commit で予期しないエラー: %v", err)
	}

	sale, writer, canDelete, err := f.svc.Card(ctx, creatorID, r.Sale.ID)
	if err != nil {
		t.Fatalf("Card で予期しないエラー: %v", err)
	}
	if sale.ID != r.Sale.ID || writer.Name != "Вася" || !canDelete {
		t.Errorf("Card = %+v, %+v, %v", sale, writer, canDelete)
	}
	if _, _, _, err := f.svc.Card(ctx, outsideID, r.Sale.ID); !model.IsKind(err, model.KindAuthorization) {
		t.Errorf("権限のないユーザーは KindAuthorization であるべき: %v", err)
	}
}
