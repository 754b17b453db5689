package infra

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"http-bridge/bridge/dispatch/domain"
)

// ResultMessage é o formato publicado nos sinks. Data vai em base64 (bytes arbitrários).
type ResultMessage struct {
	Outcome  domain.Outcome `json:"outcome"`
	Data     string         `json:"data"`
	Callback domain.Token   `json:"callback"`
	Payload  domain.Token   `json:"payload"`
	At       time.Time      `json:"at"`
}

func EncodeResult(res domain.Result) ([]byte, error) {
	return json.Marshal(ResultMessage{
		Outcome:  res.Outcome,
		Data:     base64.StdEncoding.EncodeToString(res.Data),
		Callback: res.Callback,
		Payload:  res.Payload,
		At:       res.At,
	})
}

func DecodeResult(b []byte) (domain.Result, error) {
	var m ResultMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.Result{}, err
	}
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return domain.Result{}, fmt.Errorf("result data: %w", err)
	}
	return domain.Result{
		Outcome:  m.Outcome,
		Data:     data,
		Callback: m.Callback,
		Payload:  m.Payload,
		At:       m.At,
	}, nil
}

// LogSink só registra o resultado no log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(_ context.Context, res domain.Result) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dispatch: result",
		"outcome", res.Outcome,
		"callback", res.Callback,
		"payload", res.Payload,
		"bytes", len(res.Data))
	return nil
}

// RedisResultSink publica cada resultado (JSON) em um canal Redis via PUBLISH.
type RedisResultSink struct {
	rdb     *redis.Client
	channel string
}

func NewRedisResultSink(rdb *redis.Client, channel string) *RedisResultSink {
	if channel == "" {
		channel = "dispatch:results"
	}
	return &RedisResultSink{rdb: rdb, channel: channel}
}

func (s *RedisResultSink) Publish(ctx context.Context, res domain.Result) error {
	b, err := EncodeResult(res)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, b).Err()
}

// MQTTResultSink publica cada resultado (JSON) em um tópico MQTT.
type MQTTResultSink struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

func NewMQTTResultSink(client mqtt.Client, topic string, qos byte) *MQTTResultSink {
	if topic == "" {
		topic = "dispatch/results"
	}
	return &MQTTResultSink{client: client, topic: topic, qos: qos, timeout: 5 * time.Second}
}

func (s *MQTTResultSink) Publish(ctx context.Context, res domain.Result) error {
	b, err := EncodeResult(res)
	if err != nil {
		return err
	}
	token := s.client.Publish(s.topic, s.qos, false, b)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("mqtt publish timeout on %s", s.topic)
	}
}

// ConnectMQTT abre o client MQTT com reconexão automática.
func ConnectMQTT(broker, clientID string, logger *slog.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", broker)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}
