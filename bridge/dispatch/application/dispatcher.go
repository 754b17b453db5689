package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"http-bridge/bridge/dispatch/domain"
)

// Dispatcher concentra a regra do pool de slots: alocação, cancelamento e
// entrega dos resultados na main queue, sem saber nada sobre o transporte.
//
// Política de cancelamento: Cancel suprime qualquer callback terminal que ainda
// não foi enfileirado na main queue; um callback já enfileirado nunca é retirado.
// Um slot cancelado é liberado na main queue, sem callback.
type Dispatcher struct {
	Slots      domain.SlotTable
	Headers    domain.HeaderTable
	Background domain.Looper
	Main       domain.MainQueue

	Transport    domain.Transport
	Callbacks    domain.Callbacks
	Cache        domain.ResponseCache
	Connectivity domain.ConnectivityProbe
	Stats        domain.StatsStore
	Logger       *slog.Logger

	// StatsTimeout limita cada Record (best-effort). 0 = 2s.
	StatsTimeout time.Duration
	// StatsBuffer é o tamanho da fila de eventos de stats. 0 = 1024.
	// Com a fila cheia o evento é descartado: Send, Cancel e a goroutine de
	// dispatch nunca esperam pelo StatsStore.
	StatsBuffer int

	// sendMu serializa Send: só Send ocupa slots, então "há vaga" checado sob
	// sendMu continua verdadeiro até o Claim.
	sendMu sync.Mutex

	ctxMu  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	statsOnce    sync.Once
	statsCh      chan domain.StatsEvent
	statsDropped atomic.Int64
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// baseCtx é o contexto pai das transferências; Stop cancela todas.
func (d *Dispatcher) baseCtx() context.Context {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	if d.ctx == nil {
		d.ctx, d.cancel = context.WithCancel(context.Background())
	}
	return d.ctx
}

// Stop cancela as transferências em andamento. Não encerra as filas: quem
// chamou Run nelas controla isso pelo próprio ctx. Transferências iniciadas
// depois de Stop usam um contexto novo, então o Dispatcher pode ser reutilizado.
func (d *Dispatcher) Stop() {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
}

// AddHeader prepara um header para o próximo Send.
func (d *Dispatcher) AddHeader(key, value string) {
	d.Headers.Add(key, value)
}

// AddHeaders prepara pares chave/valor em sequência ([k1, v1, k2, v2, ...]).
func (d *Dispatcher) AddHeaders(kv []string) error {
	return d.Headers.AddPairs(kv)
}

func (d *Dispatcher) IsConnected() bool {
	if d.Connectivity == nil {
		return true
	}
	return d.Connectivity.IsConnected()
}

func (d *Dispatcher) Capacity() int { return d.Slots.Cap() }
func (d *Dispatcher) InFlight() int { return d.Slots.InFlight() }

func (d *Dispatcher) Slot(index int) (domain.Slot, bool) {
	return d.Slots.Snapshot(index)
}

// Send reserva um slot e agenda a requisição na goroutine de dispatch.
//
// Retorna domain.NoSlot (-1) se o pool estiver cheio; nesse caso os headers
// pendentes não são consumidos. Nunca bloqueia esperando vaga.
func (d *Dispatcher) Send(req domain.Request) int {
	requestID := uuid.NewString()

	d.sendMu.Lock()
	if d.Slots.InFlight() >= d.Slots.Cap() {
		d.sendMu.Unlock()
		d.logger().Warn("dispatch: pool exhausted", "capacity", d.Slots.Cap(), "url", req.URL)
		d.record(domain.StatsEvent{
			Slot:      domain.NoSlot,
			RequestID: requestID,
			Outcome:   domain.OutcomeRejected,
			Method:    string(req.Method),
			Host:      hostOf(req.URL),
			At:        time.Now(),
		})
		return domain.NoSlot
	}
	req.Header = d.Headers.Take()
	index, gen, ok := d.Slots.Claim(req, requestID)
	d.sendMu.Unlock()
	if !ok {
		return domain.NoSlot
	}

	claimedAt := time.Now()
	err := d.Background.Post(index,
		func() { d.start(index, gen) },
		// descartada no encerramento da goroutine de dispatch
		func() { d.finish(index, gen, nil, domain.ErrQueueClosed, claimedAt) },
	)
	if err != nil {
		// goroutine de dispatch encerrada: resolve como falha, pelo mesmo caminho assíncrono
		d.logger().Error("dispatch: background queue closed", "slot", index, "error", err)
		d.finish(index, gen, nil, err, claimedAt)
	}
	d.logger().Debug("dispatch: slot claimed",
		"slot", index, "request_id", requestID, "method", req.Method, "url", req.URL)
	return index
}

// Cancel pede o cancelamento do slot. false para -1, índice inválido ou slot ocioso.
func (d *Dispatcher) Cancel(index int) bool {
	if index == domain.NoSlot {
		return false
	}
	gen, cancel, ok := d.Slots.RequestCancel(index)
	if !ok {
		return false
	}

	if d.Background.Remove(index) {
		// ainda não iniciada: nenhum transporte envolvido
		d.release(index, gen, domain.OutcomeCancelled)
		return true
	}

	// já iniciada (ou iniciando): a mensagem passa pela mesma goroutine de dispatch.
	// Se Start ainda não rodou, ele vê o pedido e aborta.
	postErr := d.Background.Post(domain.NoSlot, func() {
		if cancel != nil {
			cancel()
		}
	}, nil)
	if postErr != nil && cancel != nil {
		cancel()
	}
	return true
}

// Complete devolve o slot ao estado ocioso. Uso normal é interno; exposto para
// limpeza defensiva. Uma tarefa ainda em andamento no slot não entrega callback.
func (d *Dispatcher) Complete(index int) {
	if index == domain.NoSlot {
		return
	}
	d.Slots.Reset(index)
}

// start roda na goroutine de dispatch.
func (d *Dispatcher) start(index int, gen uint64) {
	snap, ok := d.Slots.Snapshot(index)
	if !ok || snap.Generation != gen {
		return
	}
	ctx, cancel := context.WithCancel(d.baseCtx())
	if !d.Slots.Start(index, gen, cancel) {
		cancel()
		d.release(index, gen, domain.OutcomeCancelled)
		return
	}

	req := snap.Request
	if !req.Method.Supported() {
		d.finish(index, gen, nil, fmt.Errorf("%w: %s", domain.ErrUnknownMethod, req.Method), snap.ClaimedAt)
		return
	}
	go d.execute(ctx, index, gen, &req, snap.ClaimedAt)
}

func (d *Dispatcher) execute(ctx context.Context, index int, gen uint64, req *domain.Request, claimedAt time.Time) {
	resp, err := d.Transport.Do(ctx, req)
	if err == nil && !resp.OK() {
		err = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: resp.Body}
	}
	if err == nil && req.CacheFile != "" && d.Cache != nil {
		if cerr := d.Cache.Write(req.CacheFile, resp.Body); cerr != nil {
			err = fmt.Errorf("HTTP response could not be cached: %w", cerr)
		}
	}
	var data []byte
	if err == nil {
		data = resp.Body
		if req.Base64 {
			data = []byte(base64.StdEncoding.EncodeToString(resp.Body))
		}
	}
	d.finish(index, gen, data, err, claimedAt)
}

// finish decide se o callback terminal é enfileirado. Se o cancelamento chegou
// antes, o slot só é liberado.
func (d *Dispatcher) finish(index int, gen uint64, data []byte, err error, claimedAt time.Time) {
	snap, _ := d.Slots.Snapshot(index)
	if !d.Slots.Resolve(index, gen) {
		if snap.Generation == gen && snap.State != domain.SlotIdle {
			d.release(index, gen, domain.OutcomeCancelled)
		}
		return
	}

	outcome := domain.OutcomeSuccess
	if err != nil {
		outcome = domain.OutcomeFailure
		data = failurePayload(err)
		d.logger().Warn("dispatch: send failure",
			"slot", index, "request_id", snap.RequestID, "url", snap.Request.URL, "error", err)
	}

	callback, payload := snap.Request.Callback, snap.Request.Payload
	ev := domain.StatsEvent{
		Slot:      index,
		RequestID: snap.RequestID,
		Outcome:   outcome,
		Method:    string(snap.Request.Method),
		Host:      hostOf(snap.Request.URL),
		Duration:  time.Since(claimedAt),
		At:        time.Now(),
	}
	postErr := d.Main.Post(func() {
		// liberado antes do callback: um Send feito dentro dele já pode reutilizar o slot
		d.Slots.Release(index, gen)
		if d.Callbacks != nil {
			if outcome == domain.OutcomeSuccess {
				d.Callbacks.OnSuccess(data, callback, payload)
			} else {
				d.Callbacks.OnFailure(data, callback, payload)
			}
		}
	})
	if postErr != nil {
		d.logger().Error("dispatch: main queue closed, dropping result", "slot", index, "error", postErr)
		d.Slots.Release(index, gen)
	}
	d.record(ev)
}

// release libera o slot na main queue, sem callback.
func (d *Dispatcher) release(index int, gen uint64, outcome domain.Outcome) {
	snap, _ := d.Slots.Snapshot(index)
	if err := d.Main.Post(func() { d.Slots.Release(index, gen) }); err != nil {
		d.Slots.Release(index, gen)
	}
	d.logger().Debug("dispatch: slot cancelled", "slot", index, "request_id", snap.RequestID)
	d.record(domain.StatsEvent{
		Slot:      index,
		RequestID: snap.RequestID,
		Outcome:   outcome,
		Method:    string(snap.Request.Method),
		Host:      hostOf(snap.Request.URL),
		Duration:  time.Since(snap.ClaimedAt),
		At:        time.Now(),
	})
}

func (d *Dispatcher) statsQueue() chan domain.StatsEvent {
	d.statsOnce.Do(func() {
		n := d.StatsBuffer
		if n <= 0 {
			n = 1024
		}
		d.statsCh = make(chan domain.StatsEvent, n)
	})
	return d.statsCh
}

// record só enfileira; quem grava é RunStats.
func (d *Dispatcher) record(ev domain.StatsEvent) {
	if d.Stats == nil {
		return
	}
	select {
	case d.statsQueue() <- ev:
	default:
		d.statsDropped.Add(1)
		d.logger().Warn("dispatch: stats queue full, dropping event", "outcome", ev.Outcome, "slot", ev.Slot)
	}
}

// StatsDropped conta os eventos descartados com a fila de stats cheia.
func (d *Dispatcher) StatsDropped() int64 { return d.statsDropped.Load() }

// RunStats grava os eventos enfileirados no StatsStore até ctx encerrar.
// Ao encerrar, o que já estava na fila ainda é gravado.
func (d *Dispatcher) RunStats(ctx context.Context) error {
	q := d.statsQueue()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-q:
					d.writeStats(ev)
				default:
					return ctx.Err()
				}
			}
		case ev := <-q:
			d.writeStats(ev)
		}
	}
}

func (d *Dispatcher) writeStats(ev domain.StatsEvent) {
	if d.Stats == nil {
		return
	}
	timeout := d.StatsTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.Stats.Record(ctx, ev); err != nil {
		d.logger().Warn("dispatch: stats record failed", "outcome", ev.Outcome, "error", err)
	}
}

// StatusError é uma resposta fora de 2xx.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "HTTP " + e.Status
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// failurePayload: o corpo de uma resposta de erro volta intacto (às vezes é uma
// página útil); os demais erros viram texto.
func failurePayload(err error) []byte {
	var se *StatusError
	if errors.As(err, &se) && len(se.Body) > 0 {
		return se.Body
	}
	return []byte(err.Error())
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
