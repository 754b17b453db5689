// Package config carrega a configuração do binário bridge: arquivo YAML opcional
// (CONFIG_FILE), depois variáveis de ambiente, depois validação.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	// Capacity é o tamanho da tabela de slots (128 no padrão).
	Capacity int `yaml:"capacity"`
	// Transport: "nethttp" (padrão) ou "fasthttp".
	Transport       string        `yaml:"transport"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxRedirects    int           `yaml:"max_redirects"`
	MaxResponseBody int64         `yaml:"max_response_body"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`

	Rate         RateConfig         `yaml:"rate"`
	Guard        GuardConfig        `yaml:"guard"`
	Stats        StatsConfig        `yaml:"stats"`
	Sink         SinkConfig         `yaml:"sink"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
}

// RateConfig limita a saída por host de destino.
type RateConfig struct {
	Enabled bool          `yaml:"enabled"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// GuardConfig limita os chamadores da API do bridge (por IP ou header).
type GuardConfig struct {
	Enabled   bool    `yaml:"enabled"`
	RPS       float64 `yaml:"rps"`
	Burst     int     `yaml:"burst"`
	KeyHeader string  `yaml:"key_header"`
	TrustXFF  bool    `yaml:"trust_xff"`
}

type StatsConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
	TTL           time.Duration `yaml:"ttl"`
	Bucket        string        `yaml:"bucket"`
	TrackHosts    bool          `yaml:"track_hosts"`
	Prometheus    bool          `yaml:"prometheus"`
}

// SinkConfig escolhe para onde vão os resultados: "log", "redis" ou "mqtt".
type SinkConfig struct {
	Kind         string `yaml:"kind"`
	RedisChannel string `yaml:"redis_channel"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTQoS      byte   `yaml:"mqtt_qos"`
	// Buffer é a fila entre os callbacks e o publisher. Cheia, o resultado é descartado.
	Buffer int `yaml:"buffer"`
}

// ConnectivityConfig: ProbeAddr vazio usa as interfaces de rede; senão, um dial TCP.
type ConnectivityConfig struct {
	ProbeAddr string        `yaml:"probe_addr"`
	Timeout   time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		Capacity:        128,
		Transport:       "nethttp",
		RequestTimeout:  30 * time.Second,
		MaxRedirects:    10,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		Rate: RateConfig{
			RPS:     10,
			Burst:   20,
			IdleTTL: 15 * time.Minute,
		},
		Guard: GuardConfig{
			RPS:   50,
			Burst: 100,
		},
		Stats: StatsConfig{
			Prefix:     "dispatch:stats",
			TTL:        24 * time.Hour,
			Bucket:     "minute",
			Prometheus: true,
		},
		Sink: SinkConfig{
			Kind:         "log",
			RedisChannel: "dispatch:results",
			MQTTTopic:    "dispatch/results",
			MQTTClientID: "http-bridge",
			Buffer:       1024,
		},
		Connectivity: ConnectivityConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Load aplica, nesta ordem: padrões, arquivo YAML (se path != ""), ambiente.
// O resultado já vem validado.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv é Load com o caminho vindo de CONFIG_FILE.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr is required")
	}
	if c.Capacity <= 0 {
		return errors.New("capacity must be > 0")
	}
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	switch c.Transport {
	case "", "nethttp":
		c.Transport = "nethttp"
	case "fasthttp":
	default:
		return fmt.Errorf("transport must be nethttp or fasthttp, got %q", c.Transport)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	if c.MaxRedirects < 0 {
		return errors.New("max_redirects must be >= 0")
	}
	if c.Rate.Enabled {
		if c.Rate.RPS <= 0 {
			return errors.New("rate.rps must be > 0")
		}
		if c.Rate.Burst <= 0 {
			return errors.New("rate.burst must be > 0")
		}
	}
	if c.Guard.Enabled && (c.Guard.RPS <= 0 || c.Guard.Burst <= 0) {
		return errors.New("guard.rps and guard.burst must be > 0")
	}

	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	switch c.Sink.Kind {
	case "", "log":
		c.Sink.Kind = "log"
	case "redis":
		if strings.TrimSpace(c.Stats.RedisAddr) == "" {
			return errors.New("stats.redis_addr is required when sink.kind=redis")
		}
	case "mqtt":
		if strings.TrimSpace(c.Sink.MQTTBroker) == "" {
			return errors.New("sink.mqtt_broker is required when sink.kind=mqtt")
		}
		if c.Sink.MQTTQoS > 2 {
			return errors.New("sink.mqtt_qos must be 0, 1 or 2")
		}
	default:
		return fmt.Errorf("sink.kind must be log, redis or mqtt, got %q", c.Sink.Kind)
	}
	return nil
}
