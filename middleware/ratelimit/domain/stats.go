package domain

import (
	"context"
	"time"
)

// StatsEvent registra o resultado de uma decisão de admissão.
//
// Requisições negadas também geram evento (Allowed=false): contabilidade de
// admissão e analítica de negações são coisas separadas; negar nunca consome
// cota, mas interessa ao operador.
//
// Method/Path são strings genéricas de propósito; o evento não depende de
// net/http. Cuidado com cardinalidade ao persistir Key/Path sem controle
// (explosão de chaves em Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Allowed bool

	// Scope é a policy aplicada na decisão (pattern da regra ou "default").
	Scope string

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// Implementações podem armazenar em Redis, memória, etc. O middleware trata
// Record como best-effort: erro de stats nunca derruba a requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
