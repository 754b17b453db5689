package domain

import (
	"context"
	"time"
)

// DefaultCapacity é o tamanho fixo da tabela de slots.
const DefaultCapacity = 128

// NoSlot é o sentinela de pool esgotado (e de "índice inválido" no Cancel).
const NoSlot = -1

type SlotState int

const (
	SlotIdle SlotState = iota
	// SlotBusy: reservado pelo Send, tarefa ainda na fila da goroutine de dispatch.
	SlotBusy
	SlotRunning
	// SlotResolved: callback terminal já enfileirado na main queue.
	SlotResolved
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotBusy:
		return "busy"
	case SlotRunning:
		return "running"
	case SlotResolved:
		return "resolved"
	}
	return "unknown"
}

// Slot é a cópia (snapshot) de uma entrada da tabela.
type Slot struct {
	Index           int
	State           SlotState
	CancelRequested bool
	Generation      uint64
	RequestID       string
	ClaimedAt       time.Time
	Request         Request
}

// SlotTable representa a tabela de capacidade fixa.
//
// Toda transição depois do Claim carrega a geração retornada por ele: uma tarefa
// antiga nunca altera um slot que foi liberado e reocupado.
type SlotTable interface {
	// Claim reserva o primeiro slot livre (menor índice). ok=false quando cheio.
	Claim(req Request, requestID string) (index int, gen uint64, ok bool)
	// Start marca o slot como running e guarda a primitiva de cancelamento.
	// Retorna false se o cancelamento já foi pedido ou a geração não confere.
	Start(index int, gen uint64, cancel context.CancelFunc) bool
	// RequestCancel marca o pedido de cancelamento. ok=false para slot ocioso ou índice inválido.
	RequestCancel(index int) (gen uint64, cancel context.CancelFunc, ok bool)
	// Resolve decide se o callback terminal pode ser enfileirado.
	Resolve(index int, gen uint64) bool
	// Release devolve o slot ao estado ocioso se a geração conferir.
	Release(index int, gen uint64) bool
	// Reset devolve o slot ao estado ocioso incondicionalmente.
	Reset(index int) bool
	Snapshot(index int) (Slot, bool)
	Cap() int
	InFlight() int
}

// HeaderTable é a tabela de headers pendentes, compartilhada pelo processo.
//
// Protocolo "prepara e consome": Take copia e limpa. Chamadores concorrentes que
// intercalam Add e Send podem vazar headers entre requisições.
type HeaderTable interface {
	Add(key, value string)
	AddPairs(kv []string) error
	Take() map[string]string
	Len() int
}

// Looper é a goroutine única que inicia as tarefas em ordem.
type Looper interface {
	// Post enfileira run associada a um slot (ou NoSlot para mensagens).
	// discard (pode ser nil) é chamada no lugar de run se a goroutine encerrar
	// antes de chegar nela.
	Post(index int, run, discard func()) error
	// Remove retira a tarefa ainda não iniciada do slot. true se removeu.
	Remove(index int) bool
	Run(ctx context.Context) error
}

// MainQueue é a fila de consumidor único onde todos os callbacks terminais rodam.
type MainQueue interface {
	Post(fn func()) error
	// Update drena o que estiver disponível sem bloquear e retorna quantas tarefas rodou.
	Update() int
	Run(ctx context.Context) error
	// OnLoop reporta se a goroutine atual é a consumidora da fila.
	OnLoop() bool
}
