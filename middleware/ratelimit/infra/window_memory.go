package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// Valores padrão do contador local.
const (
	DefaultMaxEntries   = 10000
	DefaultCleanupEvery = 5 * time.Minute

	// Uma entrada vira lixo depois de ficar parada por idleFactor janelas
	// (contadas sobre a maior janela já observada).
	defaultIdleFactor = 3
)

// MemoryWindowStore conta requisições por chave numa janela deslizante exata:
// guarda os timestamps dos acessos permitidos e poda os que saíram da janela
// a cada consulta. Negar não consome cota.
//
// O mapa é limitado por maxEntries; ao encher, a entrada com acesso mais
// antigo é descartada. Um janitor periódico remove entradas ociosas.
type MemoryWindowStore struct {
	mu      sync.RWMutex
	entries map[string]*windowEntry

	maxEntries   int
	cleanupEvery time.Duration
	idleFactor   int

	// maior janela vista em Allow, em nanos; o janitor deriva daí o corte
	// de ociosidade.
	maxWindow atomic.Int64
}

type windowEntry struct {
	mu     sync.Mutex
	stamps []time.Time

	// lastAccess em UnixNano; atômico para o toque não exigir o lock estrutural.
	lastAccess atomic.Int64
	// gone marca entradas já removidas do mapa, para um Allow em voo
	// não gravar numa entrada órfã.
	gone atomic.Bool
}

type MemoryWindowOption func(*MemoryWindowStore)

// WithMaxEntries limita quantas chaves o mapa retém (0 = sem limite).
func WithMaxEntries(n int) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.maxEntries = n }
}

func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

func WithIdleFactor(n int) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.idleFactor = n }
}

func NewMemoryWindowStore(opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		entries:      make(map[string]*windowEntry),
		maxEntries:   DefaultMaxEntries,
		cleanupEvery: DefaultCleanupEvery,
		idleFactor:   defaultIdleFactor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) MaxEntries() int             { return s.maxEntries }
func (s *MemoryWindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Len devolve quantas chaves o mapa retém agora.
func (s *MemoryWindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Allow implementa domain.WindowCounter.
func (s *MemoryWindowStore) Allow(_ context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Decision, error) {
	if p.Limit <= 0 || p.Window <= 0 {
		return domain.Decision{
			Allowed:   true,
			Limit:     p.Limit,
			Remaining: p.Limit,
			Window:    p.Window,
			ResetAt:   now.Add(p.Window),
		}, nil
	}

	s.observeWindow(p.Window)

	for {
		e := s.entry(string(key))
		e.mu.Lock()
		if e.gone.Load() {
			// evicção entre o lookup e o lock; pega a entrada nova
			e.mu.Unlock()
			continue
		}

		// poda o prefixo fora da janela; timestamp exatamente no corte já saiu
		cut := now.Add(-p.Window)
		i := 0
		for i < len(e.stamps) && !e.stamps[i].After(cut) {
			i++
		}
		if i > 0 {
			e.stamps = append(e.stamps[:0], e.stamps[i:]...)
		}

		if len(e.stamps) >= p.Limit {
			reset := e.stamps[0].Add(p.Window)
			dec := domain.Decision{
				Limit:      p.Limit,
				Window:     p.Window,
				ResetAt:    reset,
				RetryAfter: reset.Sub(now),
			}
			e.mu.Unlock()
			return dec, nil
		}

		e.stamps = append(e.stamps, now)
		rem := p.Limit - len(e.stamps)
		if rem < 0 {
			rem = 0
		}
		dec := domain.Decision{
			Allowed:   true,
			Limit:     p.Limit,
			Remaining: rem,
			Window:    p.Window,
			ResetAt:   now.Add(p.Window),
		}
		e.mu.Unlock()
		return dec, nil
	}
}

// entry devolve a entrada da chave, criando (e evictando, se preciso) sob o
// lock de escrita. No caminho quente o lock compartilhado basta: o toque em
// lastAccess é atômico.
func (s *MemoryWindowStore) entry(key string) *windowEntry {
	now := time.Now().UnixNano()

	s.mu.RLock()
	if e, ok := s.entries[key]; ok {
		e.lastAccess.Store(now)
		s.mu.RUnlock()
		return e
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.lastAccess.Store(now)
		return e
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	e := &windowEntry{}
	e.lastAccess.Store(now)
	s.entries[key] = e
	return e
}

func (s *MemoryWindowStore) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  int64
		found     bool
	)
	for k, e := range s.entries {
		at := e.lastAccess.Load()
		if !found || at < oldestAt {
			oldestKey, oldestAt, found = k, at, true
		}
	}
	if !found {
		return
	}
	s.entries[oldestKey].gone.Store(true)
	delete(s.entries, oldestKey)
}

func (s *MemoryWindowStore) observeWindow(w time.Duration) {
	n := int64(w)
	for {
		cur := s.maxWindow.Load()
		if cur >= n {
			return
		}
		if s.maxWindow.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Cleanup remove entradas sem acesso há idleFactor janelas.
// Não segura o lock de nenhuma entrada, só o estrutural.
func (s *MemoryWindowStore) Cleanup() {
	maxW := time.Duration(s.maxWindow.Load())
	if maxW <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(s.idleFactor) * maxW).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if e.lastAccess.Load() < cutoff {
			e.gone.Store(true)
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa entradas ociosas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
