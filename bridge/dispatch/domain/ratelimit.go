package domain

import "context"

type Key string

// Limiter é um token bucket. Wait segura a saída de uma requisição até haver
// token; Allow decide na hora (usado na entrada da API).
//
// A camada de infra usa golang.org/x/time/rate.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

// LimiterStore obtém um limiter por chave (host de destino, ou chamador da API).
type LimiterStore interface {
	Get(Key) Limiter
}
