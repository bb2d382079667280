package application

import (
	"context"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// DefaultScope é o escopo do contador quando nenhuma regra por endpoint casa.
const DefaultScope = "default"

// Service concentra a regra de aplicação do rate limit: resolve qual policy
// vale para o path (regra por endpoint ou padrão), compõe a chave do contador
// e consulta o WindowCounter.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store   domain.WindowCounter
	Default domain.Policy
	// Rules é verificada em ordem de declaração (ver domain.MatchRule).
	Rules []domain.Rule
}

// Decide resolve a policy do path e checa a admissão do cliente.
//
// A chave enviada ao contador é "<escopo>:<cliente>", onde o escopo é o
// padrão da regra que casou (ou "default"). Assim o mesmo cliente tem
// contadores independentes por policy.
//
// Falha do contador nunca bloqueia tráfego: em erro, permite (fail-open).
// Sem Store ou com policy sem limite, também permite.
func (s Service) Decide(ctx context.Context, client domain.Key, path string, now time.Time) domain.Decision {
	pol := s.Default
	scope := DefaultScope
	if rule, ok := domain.MatchRule(path, s.Rules); ok {
		pol = rule.Policy
		scope = rule.Pattern
	}

	if s.Store == nil || pol.Limit <= 0 || pol.Window <= 0 {
		return openDecision(pol, scope, now)
	}

	key := domain.Key(scope + ":" + string(client))
	dec, err := s.Store.Allow(ctx, key, pol, now)
	if err != nil {
		return openDecision(pol, scope, now)
	}
	dec.Scope = scope
	return dec
}

func openDecision(pol domain.Policy, scope string, now time.Time) domain.Decision {
	return domain.Decision{
		Allowed:   true,
		Limit:     pol.Limit,
		Remaining: pol.Limit,
		Window:    pol.Window,
		ResetAt:   now.Add(pol.Window),
		Scope:     scope,
	}
}
