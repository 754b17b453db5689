package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"http-bridge/bridge/dispatch/domain"

	"github.com/redis/go-redis/v9"
)

type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por host.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackHosts bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackHosts(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackHosts = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "dispatch:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// redisStatsKey é um hash que recebe o evento. Cada desfecho vira dois campos:
// "<field><outcome>" (contagem) e "<field><outcome>_ms" (soma das durações).
type redisStatsKey struct {
	name   string
	field  string
	expire bool
}

// keys lista os hashes afetados por ev: total (sem TTL), bucket por minuto,
// rota "METHOD host" e, se habilitado, o host.
func (s *RedisStatsStore) keys(ev domain.StatsEvent, at time.Time) []redisStatsKey {
	keys := []redisStatsKey{{name: s.prefix + ":total"}}

	if s.bucket == "minute" {
		keys = append(keys, redisStatsKey{
			name:   s.prefix + ":minute:" + at.UTC().Format("200601021504"),
			expire: true,
		})
	}

	host := strings.TrimSpace(ev.Host)
	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + host); route != "" {
		keys = append(keys, redisStatsKey{name: s.prefix + ":route", field: route + ":"})
	}

	if s.trackHosts && host != "" {
		keys = append(keys, redisStatsKey{name: s.prefix + ":host:" + host, expire: true})
	}
	return keys
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil || ev.Outcome == "" {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	outcome := string(ev.Outcome)
	ms := ev.Duration.Milliseconds()

	pipe := s.rdb.Pipeline()
	for _, k := range s.keys(ev, at) {
		pipe.HIncrBy(ctx, k.name, k.field+outcome, 1)
		if ms > 0 {
			pipe.HIncrBy(ctx, k.name, k.field+outcome+"_ms", ms)
		}
		if k.expire && s.ttl > 0 {
			pipe.Expire(ctx, k.name, s.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis stats %s: %w", outcome, err)
	}
	return nil
}
