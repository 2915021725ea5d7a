package bot

import "sync"

// UserQueue はユーザーごとに処理を到着順で1つずつ実行する。
// 異なるユーザーの処理は並行に走る。
type UserQueue struct {
	mu     sync.Mutex
	queues map[int64][]func()
	wg     sync.WaitGroup
}

// NewUserQueue は空のUserQueueを生成する。
func NewUserQueue() *UserQueue {
	return &UserQueue{queues: make(map[int64][]func())}
}

// Submit は fn をユーザーのキューに積む。そのユーザーの処理が走っていなければ新しいゴルーチンで始める。
func (q *UserQueue) Submit(userID int64, fn func()) {
	q.mu.Lock()
	pending, running := q.queues[userID]
	q.queues[userID] = append(pending, fn)
	q.mu.Unlock()
	if running {
		return
	}
	q.wg.Add(1)
	go q.drain(userID)
}

func (q *UserQueue) drain(userID int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.queues[userID]
		if len(pending) == 0 {
			delete(q.queues, userID)
			q.mu.Unlock()
			return
		}
		fn := pending[0]
		q.queues[userID] = pending[1:]
		q.mu.Unlock()
		fn()
	}
}

// Wait はキューに積まれた処理がすべて終わるまで待つ。
func (q *UserQueue) Wait() {
	q.wg.Wait()
}
