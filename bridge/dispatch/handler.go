package dispatch

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"http-bridge/bridge/dispatch/domain"
)

type HandlerOptions struct {
	// MaxBodyBytes limita o corpo das chamadas de controle. 0 = 8 MiB.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

type sendBody struct {
	URL             string       `json:"url"`
	Method          string       `json:"method"`
	Callback        domain.Token `json:"callback"`
	Payload         domain.Token `json:"payload"`
	Body            []byte       `json:"body"`
	CacheFile       string       `json:"cache_file"`
	Base64          bool         `json:"base64"`
	FollowRedirects *bool        `json:"follow_redirects"`
}

type headersBody struct {
	Headers map[string]string `json:"headers"`
	Pairs   []string          `json:"pairs"`
}

type slotView struct {
	Index           int       `json:"index"`
	State           string    `json:"state"`
	CancelRequested bool      `json:"cancel_requested"`
	RequestID       string    `json:"request_id,omitempty"`
	URL             string    `json:"url,omitempty"`
	Method          string    `json:"method,omitempty"`
	ClaimedAt       time.Time `json:"claimed_at,omitempty"`
}

// Handler expõe o dispatcher para chamadores remotos:
//
//	POST   /v1/headers                   prepara headers para o próximo send
//	POST   /v1/requests                  send -> {"slot": n} (503 com -1 se cheio)
//	DELETE /v1/requests/{slot}           cancel -> {"cancelled": bool}
//	POST   /v1/requests/{slot}/complete  limpeza defensiva
//	GET    /v1/slots                     capacidade e ocupação
//	GET    /v1/slots/{slot}              snapshot de um slot
//	GET    /v1/connected                 {"connected": bool}
//
// Os resultados não voltam pela resposta HTTP: saem pelos Callbacks do dispatcher
// (tipicamente um SinkPublisher).
func Handler(d *Dispatcher, opts HandlerOptions) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handler{d: d, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/headers", h.addHeaders)
	mux.HandleFunc("POST /v1/requests", h.send)
	mux.HandleFunc("DELETE /v1/requests/{slot}", h.cancel)
	mux.HandleFunc("POST /v1/requests/{slot}/complete", h.complete)
	mux.HandleFunc("GET /v1/slots", h.slots)
	mux.HandleFunc("GET /v1/slots/{slot}", h.slot)
	mux.HandleFunc("GET /v1/connected", h.connected)
	return mux
}

type handler struct {
	d    *Dispatcher
	opts HandlerOptions
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *handler) addHeaders(w http.ResponseWriter, r *http.Request) {
	var in headersBody
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.d.AddHeaders(in.Pairs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for k, v := range in.Headers {
		h.d.AddHeader(k, v)
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": h.d.Headers.Len()})
}

func (h *handler) send(w http.ResponseWriter, r *http.Request) {
	in := sendBody{Method: string(domain.MethodGet)}
	if !h.decode(w, r, &in) {
		return
	}
	follow := true
	if in.FollowRedirects != nil {
		follow = *in.FollowRedirects
	}
	slot := h.d.Send(domain.Request{
		URL:             in.URL,
		Method:          domain.ParseMethod(in.Method),
		Callback:        in.Callback,
		Payload:         in.Payload,
		Body:            in.Body,
		CacheFile:       in.CacheFile,
		Base64:          in.Base64,
		FollowRedirects: follow,
	})
	if slot == domain.NoSlot {
		writeJSON(w, http.StatusServiceUnavailable, map[string]int{"slot": slot})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"slot": slot})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	idx, ok := slotParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": h.d.Cancel(idx)})
}

func (h *handler) complete(w http.ResponseWriter, r *http.Request) {
	idx, ok := slotParam(w, r)
	if !ok {
		return
	}
	h.d.Complete(idx)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) slots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"capacity":  h.d.Capacity(),
		"in_flight": h.d.InFlight(),
	})
}

func (h *handler) slot(w http.ResponseWriter, r *http.Request) {
	idx, ok := slotParam(w, r)
	if !ok {
		return
	}
	s, ok := h.d.Slot(idx)
	if !ok {
		writeError(w, http.StatusNotFound, "slot out of range")
		return
	}
	writeJSON(w, http.StatusOK, slotView{
		Index:           s.Index,
		State:           s.State.String(),
		CancelRequested: s.CancelRequested,
		RequestID:       s.RequestID,
		URL:             s.Request.URL,
		Method:          string(s.Request.Method),
		ClaimedAt:       s.ClaimedAt,
	})
}

func (h *handler) connected(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"connected": h.d.IsConnected()})
}

func slotParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return 0, false
	}
	return idx, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
