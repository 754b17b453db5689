// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - NewSlotTable: tabela fixa de slots, alocação first-fit
//   - NewHeaderTable: headers pendentes, consumidos e limpos a cada Send
//   - NewLooper / NewMainQueue: goroutine de dispatch e fila de callbacks
//   - HTTPTransport / FastHTTPTransport: net/http e valyala/fasthttp
//   - Store: token bucket por host usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore / PrometheusStats: estatísticas de desfecho
//   - LogSink / RedisResultSink / MQTTResultSink: publicação de resultados
package infra
