// Package dispatch fornece o dispatcher assíncrono de requisições HTTP com pool
// fixo de slots, e um adapter HTTP (net/http) para chamadores remotos.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (Send/Cancel/Complete, política de cancelamento)
//   - infra: implementações concretas (tabela de slots, filas, transportes, stats, sinks)
//   - dispatch (este pacote): wiring com defaults + handler HTTP + adapter de sinks
//
// Fluxo:
//
//  1. AddHeader/AddHeaders preparam headers na tabela compartilhada
//  2. Send reserva o primeiro slot livre (ou retorna -1) e consome os headers
//  3. A goroutine de dispatch inicia a transferência no transporte
//  4. O resultado (sucesso/falha) é entregue na main queue, e o slot volta a ficar livre
//
// A tabela de headers é estado compartilhado: chamadores concorrentes que intercalam
// AddHeader e Send podem vazar headers entre requisições. O handler HTTP preserva
// esse comportamento (POST /v1/headers e POST /v1/requests são chamadas separadas).
package dispatch
