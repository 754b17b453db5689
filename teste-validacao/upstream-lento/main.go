package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Upstream lento para testar manualmente cancelamento e esgotamento do pool.
//
//	GET /lento?ms=3000   responde depois do atraso
//	GET /status?code=503 responde com o status pedido
//	GET /redir           302 para /lento
func main() {
	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/lento", func(w http.ResponseWriter, r *http.Request) {
		delay := 2 * time.Second
		if ms, err := strconv.Atoi(r.URL.Query().Get("ms")); err == nil && ms >= 0 {
			delay = time.Duration(ms) * time.Millisecond
		}
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			fmt.Printf("Log: cliente desistiu de /lento depois de %s\n", delay)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "lento ok (%s) client=%s\n", delay, r.Header.Get("X-Client"))
		fmt.Println("Log: /lento respondido")
	})
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.URL.Query().Get("code"))
		if err != nil || code < 100 {
			code = http.StatusInternalServerError
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, "status %d\n", code)
	})
	http.HandleFunc("/redir", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/lento?ms=100", http.StatusFound)
	})

	fmt.Printf("Upstream lento rodando em http://localhost%s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
