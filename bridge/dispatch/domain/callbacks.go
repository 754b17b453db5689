package domain

import (
	"context"
	"time"
)

// Callbacks recebe os resultados terminais. Sempre chamado na main queue.
type Callbacks interface {
	OnSuccess(data []byte, callback, payload Token)
	OnFailure(data []byte, callback, payload Token)
}

// CallbackFuncs adapta funções soltas para Callbacks. Campos nil são ignorados.
type CallbackFuncs struct {
	Success func(data []byte, callback, payload Token)
	Failure func(data []byte, callback, payload Token)
}

func (c CallbackFuncs) OnSuccess(data []byte, callback, payload Token) {
	if c.Success != nil {
		c.Success(data, callback, payload)
	}
}

func (c CallbackFuncs) OnFailure(data []byte, callback, payload Token) {
	if c.Failure != nil {
		c.Failure(data, callback, payload)
	}
}

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeRejected: Send encontrou o pool esgotado.
	OutcomeRejected Outcome = "rejected"
)

// Result é a forma serializável de um resultado terminal, usada pelos sinks.
type Result struct {
	Outcome  Outcome
	Data     []byte
	Callback Token
	Payload  Token
	At       time.Time
}

// ResultSink publica resultados para chamadores remotos (Redis, MQTT, log...).
type ResultSink interface {
	Publish(ctx context.Context, res Result) error
}
