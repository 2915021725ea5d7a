package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// captureDriver は実行されたExecのSQLと引数を記録するだけの最小限のドライバ。
// DBなしでクエリの組み立てを検証するために使う。
type captureDriver struct{}

type captureConn struct{}

type captureResult struct{ rows int64 }

type capturedExec struct {
	query string
	args  []driver.NamedValue
}

var (
	captureMu     sync.Mutex
	capturedExecs []capturedExec
	captureRows   int64 = 1
)

func (captureDriver) Open(string) (driver.Conn, error) { return captureConn{}, nil }

func (captureConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (captureConn) Close() error              { return nil }
func (captureConn) Begin() (driver.Tx, error) { return nil, errors.New("not implemented") }

func (captureConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	captureMu.Lock()
	defer captureMu.Unlock()
	capturedExecs = append(capturedExecs, capturedExec{query: query, args: args})
	return captureResult{rows: captureRows}, nil
}

// CheckNamedValue は pq.Array などの driver.Valuer をそのまま受け付ける。
func (captureConn) CheckNamedValue(nv *driver.NamedValue) error {
	if v, ok := nv.Value.(driver.Valuer); ok {
		val, err := v.Value()
		if err != nil {
			return err
		}
		nv.Value = val
	}
	return nil
}

func (r captureResult) LastInsertId() (int64, error) { return 0, nil }
func (r captureResult) RowsAffected() (int64, error) { return r.rows, nil }

func init() {
	sql.Register("capture", captureDriver{})
}

func openCaptureDB(rowsAffected int64) *sql.DB {
	captureMu.Lock()
	capturedExecs = nil
	captureRows = rowsAffected
	captureMu.Unlock()
	db, _ := sql.Open("capture", "")
	return db
}

func lastExec() capturedExec {
	captureMu.Lock()
	defer captureMu.Unlock()
	if len(capturedExecs) == 0 {
		return capturedExec{}
	}
	return capturedExecs[len(capturedExecs)-1]
}

func execCount() int {
	captureMu.Lock()
	defer captureMu.Unlock()
	return len(capturedExecs)
}
