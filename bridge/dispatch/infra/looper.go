package infra

import (
	"container/list"
	"context"
	"sync"

	"http-bridge/bridge/dispatch/domain"
)

type looperTask struct {
	index   int
	run     func()
	discard func()
}

// looper é a goroutine de dispatch: uma fila FIFO consumida por uma única goroutine.
// Tarefas ainda não iniciadas podem ser removidas pelo índice do slot.
type looper struct {
	mu     sync.Mutex
	queue  *list.List
	wake   chan struct{}
	closed bool
}

func NewLooper() domain.Looper {
	return &looper{
		queue: list.New(),
		wake:  make(chan struct{}, 1),
	}
}

func (l *looper) Post(index int, run, discard func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return domain.ErrQueueClosed
	}
	l.queue.PushBack(looperTask{index: index, run: run, discard: discard})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

func (l *looper) Remove(index int) bool {
	if index == domain.NoSlot {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for e := l.queue.Front(); e != nil; e = e.Next() {
		if e.Value.(looperTask).index == index {
			l.queue.Remove(e)
			return true
		}
	}
	return false
}

func (l *looper) next() (looperTask, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.queue.Front()
	if e == nil {
		return looperTask{}, false
	}
	l.queue.Remove(e)
	return e.Value.(looperTask), true
}

// Run consome a fila até ctx encerrar. No encerramento a fila é fechada e cada
// tarefa pendente recebe seu discard, fora do lock.
func (l *looper) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		var left []looperTask
		for e := l.queue.Front(); e != nil; e = e.Next() {
			left = append(left, e.Value.(looperTask))
		}
		l.queue.Init()
		l.mu.Unlock()

		for _, t := range left {
			if t.discard != nil {
				t.discard()
			}
		}
	}()

	for {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t, ok := l.next()
			if !ok {
				break
			}
			t.run()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
