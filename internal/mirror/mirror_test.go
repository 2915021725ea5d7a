package mirror

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/adledger/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestCellRef(t *testing.T) {
	tests := []struct {
		position, column int
		want             string
	}{
		{1, 1, "A2"},
		{3, 4, "D4"},
		{10, 7, "G11"},
		{1, 27, "AA2"},
	}
	for _, tt := range tests {
		if got := CellRef(tt.position, tt.column); got != tt.want {
			t.Errorf("CellRef(%d, %d) = %q, want %q", tt.position, tt.column, got, tt.want)
		}
	}
}

func TestMemoryStore_PositionSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.CreateTable(ctx, "Продажи Alpha", model.MirrorHeader)
	if err != nil {
		t.Fatalf("CreateTable で予期しないエラー: %v", err)
	}
	for i, v := range []string{"a", "b", "c"} {
		if _, err := m.AppendRow(ctx, id, []string{v}, i+1); err != nil {
			t.Fatalf("AppendRow で予期しないエラー: %v", err)
		}
	}
	if err := m.DeleteRow(ctx, id, 2); err != nil {
		t.Fatalf("DeleteRow で予期しないエラー: %v", err)
	}
	if err := m.UpdateCell(ctx, id, 2, 1, "C"); err != nil {
		t.Fatalf("UpdateCell で予期しないエラー: %v", err)
	}

	rows := m.Rows(id)
	if len(rows) != 2 || rows[0][0] != "a" || rows[1][0] != "C" {
		t.Errorf("rows = %v, want [[a] [C]]", rows)
	}
	if len(m.Calls("delete_row")) != 1 {
		t.Errorf("delete_row の記録数 = %d, want 1", len(m.Calls("delete_row")))
	}
}

func TestDispatcher_SerializesSameChannel(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(NewMemoryStore(), nil, newTestLogger(&buf), 4, time.Second)

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), 1, "append_row", func(ctx context.Context, s Store) error {
				n := atomic.AddInt32(&running, 1)
				for {
					cur := atomic.LoadInt32(&maxRunning)
					if n <= cur || atomic.CompareAndSwapInt32(&maxRunning, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("同じチャンネルの最大同時実行数 = %d, want 1", maxRunning)
	}
	if len(d.locks) != 0 {
		t.Errorf("使い終わったロックは解放されるべき: %d 件残存", len(d.locks))
	}
}

func TestDispatcher_RunsDifferentChannelsConcurrently(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(NewMemoryStore(), nil, newTestLogger(&buf), 2, time.Second)

	// 2つのチャンネルの操作が同時に走らないと barrier を抜けられない
	barrier := make(chan struct{})
	var once sync.Once
	var arrived int32
	done := make(chan error, 2)
	for _, ch := range []int64{1, 2} {
		go func(channelID int64) {
			done <- d.Do(context.Background(), channelID, "update_cell", func(ctx context.Context, s Store) error {
				if atomic.AddInt32(&arrived, 1) == 2 {
					once.Do(func() { close(barrier) })
				}
				select {
				case <-barrier:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		}(ch)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("異なるチャンネルは並列に実行されるべき: %v", err)
		}
	}
}

func TestDispatcher_WrapsErrorsAsRemoteMirror(t *testing.T) {
	var buf bytes.Buffer
	store := NewMemoryStore()
	store.Err = errors.New("quota exceeded")
	d := NewDispatcher(store, nil, newTestLogger(&buf), 1, time.Second)

	err := d.Do(context.Background(), 1, "create_table", func(ctx context.Context, s Store) error {
		_, err := s.CreateTable(ctx, "x", nil)
		return err
	})
	if !model.IsKind(err, model.KindRemoteMirror) {
		t.Errorf("KindRemoteMirror であるべき: %v", err)
	}
	if !errors.Is(err, store.Err) {
		t.Errorf("原因エラーを辿れるべき: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("スプレッドシートの操作に失敗しました")) {
		t.Errorf("失敗はログに記録されるべき: %s", buf.String())
	}
}

func TestNoop_DisablesMirror(t *testing.T) {
	id, err := Noop{}.CreateTable(context.Background(), "x", nil)
	if id != "" || err != nil {
		t.Errorf("Noop.CreateTable = %q, %v; want empty id", id, err)
	}
}
