package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// Contador de janela fixa: o primeiro acesso cria a chave com TTL da janela,
// os seguintes incrementam. Tudo numa operação só para não haver corrida
// entre GET e INCR. Retorna {allowed, remaining, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local current = redis.call('GET', key)
if current == false then
    redis.call('SET', key, 1, 'PX', window)
    return {1, limit - 1, window}
end

local count = tonumber(current)
if count < limit then
    local newCount = redis.call('INCR', key)
    local ttl = redis.call('PTTL', key)
    if ttl < 0 then
        redis.call('PEXPIRE', key, window)
        ttl = window
    end
    return {1, limit - newCount, ttl}
end

local ttl = redis.call('PTTL', key)
if ttl < 0 then
    ttl = window
end
return {0, 0, ttl}
`)

const (
	defaultWindowPrefix = "ratelimit:window"
	defaultCallTimeout  = 500 * time.Millisecond
)

// RedisWindowStore conta numa janela FIXA no Redis, compartilhada entre
// instâncias do gateway.
//
// É uma aproximação da janela deslizante local: na virada de janela uma
// rajada curta pode passar de até duas vezes o limite. Em troca, o custo por
// requisição é um único round-trip.
type RedisWindowStore struct {
	rdb redis.Cmdable

	prefix  string
	timeout time.Duration
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithCallTimeout limita a espera por resposta do Redis em cada consulta.
// Com 0, vale só o deadline do contexto da requisição.
func WithCallTimeout(d time.Duration) RedisWindowOption {
	return func(s *RedisWindowStore) { s.timeout = d }
}

func NewRedisWindowStore(rdb redis.Cmdable, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:     rdb,
		prefix:  defaultWindowPrefix,
		timeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow implementa domain.WindowCounter.
func (s *RedisWindowStore) Allow(ctx context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Decision, error) {
	if s == nil || s.rdb == nil {
		return domain.Decision{}, errors.New("redis window store: no client configured")
	}
	if p.Limit <= 0 || p.Window <= 0 {
		return domain.Decision{
			Allowed:   true,
			Limit:     p.Limit,
			Remaining: p.Limit,
			Window:    p.Window,
			ResetAt:   now.Add(p.Window),
		}, nil
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := fixedWindowScript.Run(callCtx, s.rdb,
		[]string{s.prefix + ":" + string(key)},
		p.Window.Milliseconds(), p.Limit).Result()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("fixed window script: %w", err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 3 {
		return domain.Decision{}, fmt.Errorf("fixed window script: unexpected reply %v", res)
	}
	allowed, okA := vals[0].(int64)
	remaining, okR := vals[1].(int64)
	ttlMs, okT := vals[2].(int64)
	if !okA || !okR || !okT {
		return domain.Decision{}, fmt.Errorf("fixed window script: unexpected reply %v", res)
	}

	dec := domain.Decision{
		Allowed:   allowed == 1,
		Limit:     p.Limit,
		Remaining: int(remaining),
		Window:    p.Window,
		ResetAt:   now.Add(time.Duration(ttlMs) * time.Millisecond),
	}
	if !dec.Allowed {
		retry := time.Duration(ttlMs) * time.Millisecond
		if retry < time.Second {
			retry = time.Second
		}
		dec.RetryAfter = retry
	}
	return dec, nil
}
