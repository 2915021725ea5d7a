package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/model"
)

// Dispatcher はスプレッドシート操作をチャンネル単位で直列化して実行する。
// 行の位置はチャンネル内の順位なので、同じチャンネルへの操作は順番に、
// 異なるチャンネルへの操作は最大 maxConcurrent 並列で実行する。
type Dispatcher struct {
	store   Store
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	timeout time.Duration
	sem     chan struct{}

	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// maxConcurrentが0以下の場合は1を使用する。
func NewDispatcher(store Store, collector metrics.MetricsCollector, logger *slog.Logger, maxConcurrent int, timeout time.Duration) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Dispatcher{
		store:   store,
		metrics: collector,
		logger:  logger,
		timeout: timeout,
		sem:     make(chan struct{}, maxConcurrent),
		locks:   make(map[int64]*keyLock),
	}
}

// Store は操作対象のStoreを返す。
func (d *Dispatcher) Store() Store {
	return d.store
}

func (d *Dispatcher) acquire(key int64) *keyLock {
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &keyLock{}
		d.locks[key] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return l
}

func (d *Dispatcher) release(key int64, l *keyLock) {
	l.mu.Unlock()

	d.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, key)
	}
	d.mu.Unlock()
}

// Do はチャンネルのロックと並列数の枠を取得してから fn を実行する。
// 失敗は KindRemoteMirror のAppErrorに包んで返す。
func (d *Dispatcher) Do(ctx context.Context, channelID int64, op string, fn func(ctx context.Context, s Store) error) error {
	l := d.acquire(channelID)
	defer d.release(channelID, l)

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return model.NewMirrorError(op, ctx.Err())
	}
	defer func() { <-d.sem }()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx, d.store)
	d.metrics.RecordMirrorCall(op, err, time.Since(start))
	if err != nil {
		d.logger.Error("スプレッドシートの操作に失敗しました",
			slog.String("op", op),
			slog.Int64("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		return model.NewMirrorError(op, err)
	}
	return nil
}
