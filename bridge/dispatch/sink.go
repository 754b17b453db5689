package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

// SinkPublisher adapta um ResultSink para Callbacks. OnSuccess/OnFailure rodam
// na main queue e só entregam o resultado a uma fila; Run publica.
// Com a fila cheia o resultado é descartado e logado.
type SinkPublisher struct {
	sink    domain.ResultSink
	logger  *slog.Logger
	queue   chan domain.Result
	dropped atomic.Int64

	// Timeout limita cada Publish. 0 = 5s.
	Timeout time.Duration
}

// NewSinkPublisher: buffer <= 0 usa 1024.
func NewSinkPublisher(sink domain.ResultSink, logger *slog.Logger, buffer int) *SinkPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &SinkPublisher{
		sink:   sink,
		logger: logger,
		queue:  make(chan domain.Result, buffer),
	}
}

func (p *SinkPublisher) OnSuccess(data []byte, callback, payload domain.Token) {
	p.enqueue(domain.OutcomeSuccess, data, callback, payload)
}

func (p *SinkPublisher) OnFailure(data []byte, callback, payload domain.Token) {
	p.enqueue(domain.OutcomeFailure, data, callback, payload)
}

func (p *SinkPublisher) enqueue(outcome domain.Outcome, data []byte, callback, payload domain.Token) {
	res := domain.Result{
		Outcome:  outcome,
		Data:     data,
		Callback: callback,
		Payload:  payload,
		At:       time.Now(),
	}
	select {
	case p.queue <- res:
	default:
		p.dropped.Add(1)
		p.logger.Warn("dispatch: sink queue full, dropping result", "outcome", outcome, "callback", callback)
	}
}

// Dropped conta os resultados descartados com a fila cheia.
func (p *SinkPublisher) Dropped() int64 { return p.dropped.Load() }

// Run publica os resultados enfileirados até ctx encerrar; o que já estava na
// fila ainda é publicado antes de retornar.
func (p *SinkPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case res := <-p.queue:
					p.publish(res)
				default:
					return ctx.Err()
				}
			}
		case res := <-p.queue:
			p.publish(res)
		}
	}
}

func (p *SinkPublisher) publish(res domain.Result) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.sink.Publish(ctx, res); err != nil {
		p.logger.Warn("dispatch: sink publish failed", "outcome", res.Outcome, "callback", res.Callback, "error", err)
	}
}
