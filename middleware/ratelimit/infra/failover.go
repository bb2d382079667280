package infra

import (
	"context"
	"errors"
	"log"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Logger é o mínimo que a infra precisa para avisar degradação.
// *log.Logger satisfaz.
type Logger interface {
	Printf(format string, v ...any)
}

// FailoverStore consulta o contador primário (tipicamente Redis) e, se ele
// falhar, responde com o contador local. A troca é por chamada: quando o
// primário volta a responder, volta a valer.
type FailoverStore struct {
	primary  domain.WindowCounter
	fallback domain.WindowCounter

	log Logger
	// no máximo um aviso de degradação a cada 10s
	logEvery *rate.Limiter
}

type FailoverOption func(*FailoverStore)

func WithFailoverLogger(l Logger) FailoverOption {
	return func(s *FailoverStore) { s.log = l }
}

func NewFailoverStore(primary, fallback domain.WindowCounter, opts ...FailoverOption) *FailoverStore {
	s := &FailoverStore{
		primary:  primary,
		fallback: fallback,
		log:      log.Default(),
		logEvery: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow implementa domain.WindowCounter.
func (s *FailoverStore) Allow(ctx context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Decision, error) {
	if s.primary == nil {
		if s.fallback == nil {
			return domain.Decision{}, errors.New("failover store: no counters configured")
		}
		return s.fallback.Allow(ctx, key, p, now)
	}

	dec, err := s.primary.Allow(ctx, key, p, now)
	if err == nil {
		return dec, nil
	}
	if s.fallback == nil {
		return domain.Decision{}, err
	}

	if s.log != nil && (s.logEvery == nil || s.logEvery.Allow()) {
		s.log.Printf("ratelimit: distributed counter unavailable, falling back to local: %v", err)
	}
	return s.fallback.Allow(ctx, key, p, now)
}
