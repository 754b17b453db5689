package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"http-bridge/bridge/dispatch"
	"http-bridge/bridge/dispatch/domain"
	"http-bridge/bridge/dispatch/infra"
	"http-bridge/internal/config"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// redis é compartilhado entre stats e sink
	var rdb *redis.Client
	if cfg.Stats.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
	}

	transport := newTransport(cfg)
	var hostLimits *infra.Store
	if cfg.Rate.Enabled {
		hostLimits = infra.NewStore(cfg.Rate.RPS, cfg.Rate.Burst, infra.WithIdleTTL(cfg.Rate.IdleTTL))
		transport = infra.RateLimitedTransport{Next: transport, Store: hostLimits}
	}

	sink, closeSink, err := newSink(cfg, rdb, logger)
	if err != nil {
		log.Fatalf("sink error: %v", err)
	}
	defer closeSink()
	publisher := dispatch.NewSinkPublisher(sink, logger, cfg.Sink.Buffer)

	d := dispatch.New(dispatch.Options{
		Capacity:     cfg.Capacity,
		Transport:    transport,
		Callbacks:    publisher,
		Connectivity: newProbe(cfg),
		Logger:       logger,
	})

	stats := infra.MultiStats{infra.NewMemoryStatsStore(infra.WithTrackHosts(cfg.Stats.TrackHosts))}
	if rdb != nil {
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackHosts(cfg.Stats.TrackHosts),
		))
	}

	mux := http.NewServeMux()
	if cfg.Stats.Prometheus {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		stats = append(stats, infra.NewPrometheusStats(reg, d.InFlight, d.Capacity))
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	d.Stats = stats

	var callerLimits *infra.Store
	if cfg.Guard.Enabled {
		callerLimits = infra.NewStore(cfg.Guard.RPS, cfg.Guard.Burst)
	}
	api := dispatch.Handler(d, dispatch.HandlerOptions{Logger: logger})
	guard := dispatch.GuardOptions{
		KeyHeader:          cfg.Guard.KeyHeader,
		TrustXForwardedFor: cfg.Guard.TrustXFF,
	}
	if callerLimits != nil {
		guard.Store = callerLimits
	}
	mux.Handle("/v1/", dispatch.Guard(guard)(api))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatch.Run(gctx, d) })
	g.Go(func() error {
		if err := publisher.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	for _, s := range []*infra.Store{hostLimits, callerLimits} {
		if s == nil {
			continue
		}
		g.Go(func() error {
			if err := s.RunJanitor(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	log.Printf("bridge listening on %s", cfg.ListenAddr)
	log.Printf("dispatch: capacity=%d transport=%s timeout=%s maxRedirects=%d", cfg.Capacity, cfg.Transport, cfg.RequestTimeout, cfg.MaxRedirects)
	log.Printf("rate: enabled=%v rps=%.3f burst=%d", cfg.Rate.Enabled, cfg.Rate.RPS, cfg.Rate.Burst)
	log.Printf("guard: enabled=%v rps=%.3f burst=%d keyHeader=%q trustXFF=%v", cfg.Guard.Enabled, cfg.Guard.RPS, cfg.Guard.Burst, cfg.Guard.KeyHeader, cfg.Guard.TrustXFF)
	log.Printf("stats: redisAddr=%q bucket=%q ttl=%s trackHosts=%v prometheus=%v", cfg.Stats.RedisAddr, cfg.Stats.Bucket, cfg.Stats.TTL, cfg.Stats.TrackHosts, cfg.Stats.Prometheus)
	log.Printf("sink: kind=%s buffer=%d", cfg.Sink.Kind, cfg.Sink.Buffer)

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newTransport(cfg config.Config) domain.Transport {
	if cfg.Transport == "fasthttp" {
		return infra.NewFastHTTPTransport(cfg.RequestTimeout, cfg.MaxRedirects)
	}
	return infra.NewHTTPTransport(
		infra.WithRequestTimeout(cfg.RequestTimeout),
		infra.WithMaxRedirects(cfg.MaxRedirects),
		infra.WithMaxResponseBody(cfg.MaxResponseBody),
	)
}

func newProbe(cfg config.Config) domain.ConnectivityProbe {
	if cfg.Connectivity.ProbeAddr != "" {
		return infra.DialProbe{Address: cfg.Connectivity.ProbeAddr, Timeout: cfg.Connectivity.Timeout}
	}
	return infra.InterfaceProbe{}
}

func newSink(cfg config.Config, rdb *redis.Client, logger *slog.Logger) (domain.ResultSink, func(), error) {
	switch cfg.Sink.Kind {
	case "redis":
		if rdb == nil {
			return nil, nil, errors.New("sink redis requires STATS_REDIS_ADDR")
		}
		return infra.NewRedisResultSink(rdb, cfg.Sink.RedisChannel), func() {}, nil
	case "mqtt":
		client, err := infra.ConnectMQTT(cfg.Sink.MQTTBroker, cfg.Sink.MQTTClientID, logger)
		if err != nil {
			return nil, nil, err
		}
		return infra.NewMQTTResultSink(client, cfg.Sink.MQTTTopic, cfg.Sink.MQTTQoS), func() { client.Disconnect(250) }, nil
	}
	return infra.LogSink{Logger: logger}, func() {}, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
