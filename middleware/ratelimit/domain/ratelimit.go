package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica quem está sendo limitado (ex: IP, API key, usuário).
//
// Quando uma policy por endpoint se aplica, a camada de application compõe a
// chave com o escopo da regra ("<pattern>:<cliente>"), de modo que o mesmo
// cliente tenha contadores independentes por policy.
type Key string

// Policy define o orçamento de admissões: no máximo Limit requisições por
// chave dentro de uma janela deslizante de duração Window.
//
// É um valor imutável; valide na construção (Limit e Window > 0).
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision é o resultado de uma checagem de admissão.
//
// Os campos carregam tudo que o adapter HTTP precisa para montar os headers
// X-RateLimit-* sem conhecer a implementação do contador.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Window    time.Duration
	// ResetAt é o instante em que a requisição mais antiga ainda contada sai
	// da janela (quando negado) ou now+Window (quando permitido).
	ResetAt time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Scope identifica a policy aplicada: o pattern da regra que casou, ou
	// "default". Contadores deixam vazio; a camada de application preenche.
	Scope string
}

// WindowCounter decide, de forma atômica por chave, se mais uma admissão cabe
// na janela, e registra a admissão quando cabe. Tentativas negadas não
// consomem cota.
//
// Implementações: contador local em memória (sliding window log) e contador
// distribuído (janela fixa no Redis). O ctx só importa para implementações
// que fazem I/O; o contador local o ignora.
//
// Erro aqui significa falha de infraestrutura (ex: Redis fora do ar), nunca
// "cota esgotada". Esgotar cota é uma Decision com Allowed=false.
type WindowCounter interface {
	Allow(ctx context.Context, key Key, p Policy, now time.Time) (Decision, error)
}
