package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"http-bridge/bridge/dispatch"
	"http-bridge/bridge/dispatch/domain"
)

func main() {
	// Exemplo: dispatcher embutido num host com loop próprio (sem servidor HTTP).
	// Os callbacks rodam dentro de Update, na goroutine do loop.
	target := "http://localhost:8081/lento"
	if v := os.Getenv("TARGET_URL"); v != "" {
		target = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d := dispatch.New(dispatch.Options{
		Capacity: 4,
		Callbacks: domain.CallbackFuncs{
			Success: func(data []byte, callback, payload domain.Token) {
				log.Printf("success callback=%d payload=%d bytes=%d", callback, payload, len(data))
			},
			Failure: func(data []byte, callback, payload domain.Token) {
				log.Printf("failure callback=%d payload=%d: %s", callback, payload, data)
			},
		},
	})
	go func() { _ = d.Background.Run(ctx) }()
	defer d.Stop()

	log.Printf("connected=%v", d.IsConnected())

	// um método que só falha no caminho assíncrono; enviado antes de o pool encher
	if slot := d.Send(dispatch.Request{URL: target, Method: "DELETE", Callback: 99}); slot != dispatch.NoSlot {
		log.Printf("request DELETE -> slot %d", slot)
	}

	cacheDir := filepath.Join(os.TempDir(), "http-bridge-example")
	d.AddHeader("X-Client", "example-client")
	for i := 0; i < 6; i++ {
		req := dispatch.Request{
			URL:             target,
			Method:          domain.MethodGet,
			Callback:        dispatch.Token(i),
			Payload:         dispatch.Token(i * 10),
			FollowRedirects: true,
		}
		if i == 0 {
			req.CacheFile = filepath.Join(cacheDir, "first.bin")
		}
		slot := d.Send(req)
		if slot == dispatch.NoSlot {
			log.Printf("request %d: pool exhausted", i)
			continue
		}
		log.Printf("request %d -> slot %d", i, slot)
	}

	// cancela o último slot ocupado: não haverá callback para ele. A contagem
	// de pendentes vem do próprio pool, liberado na main queue.
	if d.Cancel(d.Capacity() - 1) {
		log.Printf("slot %d cancelled", d.Capacity()-1)
	}

	frame := time.NewTicker(16 * time.Millisecond)
	defer frame.Stop()
	for d.InFlight() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-frame.C:
			d.Main.Update()
		}
	}
	log.Printf("all slots released")
}
