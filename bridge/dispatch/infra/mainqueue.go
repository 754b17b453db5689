package infra

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"http-bridge/bridge/dispatch/domain"
)

// mainQueue é a fila de consumidor único onde os callbacks terminais rodam.
//
// Pode ser drenada de duas formas: Run (bloqueia até ctx encerrar) ou Update,
// chamado a cada iteração do loop do host. Os dois serializam no consumeMu.
type mainQueue struct {
	mu      sync.Mutex
	pending []func()
	spare   []func()
	wake    chan struct{}
	closed  bool

	consumeMu sync.Mutex
	consumer  atomic.Uint64
}

func NewMainQueue() domain.MainQueue {
	return &mainQueue{wake: make(chan struct{}, 1)}
}

func (q *mainQueue) Post(fn func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *mainQueue) Update() int {
	q.consumeMu.Lock()
	defer q.consumeMu.Unlock()
	return q.drain()
}

// drain exige consumeMu.
func (q *mainQueue) drain() int {
	q.consumer.Store(goroutineID())
	defer q.consumer.Store(0)

	q.mu.Lock()
	batch := q.pending
	q.pending = q.spare[:0]
	q.mu.Unlock()

	for i, fn := range batch {
		fn()
		batch[i] = nil
	}

	q.mu.Lock()
	q.spare = batch[:0]
	q.mu.Unlock()
	return len(batch)
}

// Run drena a fila até ctx encerrar. Ao sair, a fila é fechada e o que restou é executado.
func (q *mainQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
			q.Update()
			return ctx.Err()
		case <-q.wake:
			q.Update()
		}
	}
}

func (q *mainQueue) OnLoop() bool {
	id := q.consumer.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID lê o id da goroutine atual do cabeçalho de runtime.Stack
// ("goroutine 42 [running]:"). Usado só para a checagem de identidade do consumidor.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
