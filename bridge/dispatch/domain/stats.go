package domain

import (
	"context"
	"time"
)

// StatsEvent representa o desfecho de um slot.
//
// Observação: cuidado com cardinalidade (ex.: salvar Host/RequestID sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Slot      int
	RequestID string
	Outcome   Outcome

	Method string
	Host   string

	Duration time.Duration
	At       time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do dispatcher.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O dispatcher trata erro como best-effort (não afeta o slot).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
