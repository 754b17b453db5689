package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnv sobrescreve cfg com as variáveis de ambiente definidas.
func applyEnv(cfg *Config) {
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.Capacity = getenvIntDefault("DISPATCH_CAPACITY", cfg.Capacity)
	cfg.Transport = getenvDefault("TRANSPORT", cfg.Transport)
	cfg.RequestTimeout = getenvDurationDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxRedirects = getenvIntDefault("MAX_REDIRECTS", cfg.MaxRedirects)
	cfg.MaxResponseBody = int64(getenvIntDefault("MAX_RESPONSE_BODY", int(cfg.MaxResponseBody)))
	cfg.ShutdownTimeout = getenvDurationDefault("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.Rate.Enabled = getenvBoolDefault("RATE_ENABLED", cfg.Rate.Enabled)
	cfg.Rate.RPS = getenvFloatDefault("RATE_RPS", cfg.Rate.RPS)
	// Com RPS < 1 e burst padrão, as primeiras requisições passam todas de uma vez.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.Rate.Burst = burst
	} else if getenvIsSet("RATE_RPS") && cfg.Rate.RPS > 0 && cfg.Rate.RPS < 1 {
		cfg.Rate.Burst = 1
	}

	cfg.Guard.Enabled = getenvBoolDefault("GUARD_ENABLED", cfg.Guard.Enabled)
	cfg.Guard.RPS = getenvFloatDefault("GUARD_RPS", cfg.Guard.RPS)
	cfg.Guard.Burst = getenvIntDefault("GUARD_BURST", cfg.Guard.Burst)
	cfg.Guard.KeyHeader = getenvDefault("GUARD_KEY_HEADER", cfg.Guard.KeyHeader)
	cfg.Guard.TrustXFF = getenvBoolDefault("TRUST_XFF", cfg.Guard.TrustXFF)

	cfg.Stats.RedisAddr = getenvDefault("STATS_REDIS_ADDR", cfg.Stats.RedisAddr)
	cfg.Stats.RedisPassword = getenvDefault("STATS_REDIS_PASSWORD", cfg.Stats.RedisPassword)
	cfg.Stats.RedisDB = getenvIntDefault("STATS_REDIS_DB", cfg.Stats.RedisDB)
	cfg.Stats.Prefix = getenvDefault("STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackHosts = getenvBoolDefault("STATS_TRACK_HOSTS", cfg.Stats.TrackHosts)
	cfg.Stats.Prometheus = getenvBoolDefault("STATS_PROMETHEUS", cfg.Stats.Prometheus)

	cfg.Sink.Kind = getenvDefault("SINK_KIND", cfg.Sink.Kind)
	cfg.Sink.RedisChannel = getenvDefault("SINK_REDIS_CHANNEL", cfg.Sink.RedisChannel)
	cfg.Sink.MQTTBroker = getenvDefault("SINK_MQTT_BROKER", cfg.Sink.MQTTBroker)
	cfg.Sink.MQTTTopic = getenvDefault("SINK_MQTT_TOPIC", cfg.Sink.MQTTTopic)
	cfg.Sink.MQTTClientID = getenvDefault("SINK_MQTT_CLIENT_ID", cfg.Sink.MQTTClientID)
	cfg.Sink.MQTTQoS = byte(getenvIntDefault("SINK_MQTT_QOS", int(cfg.Sink.MQTTQoS)))
	cfg.Sink.Buffer = getenvIntDefault("SINK_BUFFER", cfg.Sink.Buffer)

	cfg.Connectivity.ProbeAddr = getenvDefault("CONNECTIVITY_PROBE_ADDR", cfg.Connectivity.ProbeAddr)
	cfg.Connectivity.Timeout = getenvDurationDefault("CONNECTIVITY_TIMEOUT", cfg.Connectivity.Timeout)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
