package mirror

import (
	"context"
	"fmt"
	"sync"
)

// Call は MemoryStore に記録された1回の操作。
type Call struct {
	Op       string
	TableID  string
	Position int
	Column   int
	Values   []string
}

// MemoryStore は表をメモリ上に保持するStore。操作の履歴も記録する。
type MemoryStore struct {
	mu     sync.Mutex
	next   int
	tables map[string][][]string // ヘッダーを含む行
	calls  []Call
	// Err が設定されていれば全操作がこのエラーで失敗する。
	Err error
	// SetupErr が設定されていれば CreateTable は表を作成したうえでこのエラーを返す。
	SetupErr error
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][][]string)}
}

func (m *MemoryStore) record(c Call) error {
	m.calls = append(m.calls, c)
	return m.Err
}

func (m *MemoryStore) CreateTable(ctx context.Context, name string, header []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: "create_table", Values: header}); err != nil {
		return "", err
	}
	m.next++
	id := fmt.Sprintf("table-%d", m.next)
	m.tables[id] = [][]string{append([]string(nil), header...)}
	return id, m.SetupErr
}

func (m *MemoryStore) AppendRow(ctx context.Context, tableID string, values []string, position int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: "append_row", TableID: tableID, Position: position, Values: values}); err != nil {
		return "", err
	}
	rows, ok := m.tables[tableID]
	if !ok {
		return "", fmt.Errorf("table not found: %s", tableID)
	}
	// 行数を超える位置は末尾に追加する
	if position > len(rows) {
		position = len(rows)
	}
	rows = append(rows, nil)
	copy(rows[position+1:], rows[position:])
	rows[position] = append([]string(nil), values...)
	m.tables[tableID] = rows
	return m.TableURL(tableID), nil
}

func (m *MemoryStore) UpdateCell(ctx context.Context, tableID string, position, column int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: "update_cell", TableID: tableID, Position: position, Column: column, Values: []string{value}}); err != nil {
		return err
	}
	rows := m.tables[tableID]
	if position < 1 || position >= len(rows) || column < 1 || column > len(rows[position]) {
		return fmt.Errorf("cell out of range: %d,%d", position, column)
	}
	rows[position][column-1] = value
	return nil
}

func (m *MemoryStore) DeleteRow(ctx context.Context, tableID string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: "delete_row", TableID: tableID, Position: position}); err != nil {
		return err
	}
	rows := m.tables[tableID]
	if position < 1 || position >= len(rows) {
		return fmt.Errorf("row out of range: %d", position)
	}
	m.tables[tableID] = append(rows[:position], rows[position+1:]...)
	return nil
}

func (m *MemoryStore) TableURL(tableID string) string {
	return "memory://" + tableID
}

// Rows は表のデータ行（ヘッダーを除く）を返す。
func (m *MemoryStore) Rows(tableID string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[tableID]
	if len(rows) == 0 {
		return nil
	}
	out := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, append([]string(nil), r...))
	}
	return out
}

// Calls は記録された操作のうち op に一致するものを返す。opが空なら全件。
func (m *MemoryStore) Calls(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
