package ratelimit

import (
	"net/http"
	"time"

	"ratelimit-gateway/middleware/ratelimit/application"
	"ratelimit-gateway/middleware/ratelimit/domain"

	"github.com/goccy/go-json"
)

// DefaultPolicy vale quando Options.Policy vier zerada.
var DefaultPolicy = domain.Policy{Limit: 100, Window: time.Minute}

type Options struct {
	// Store decide as admissões. Sem Store, o middleware só repassa.
	Store domain.WindowCounter
	// Stats é best-effort: erro de registro nunca derruba a requisição.
	Stats domain.StatsStore

	// Policy aplicada quando nenhuma regra casa.
	Policy domain.Policy
	// Rules por endpoint (match exato ganha de wildcard; ver domain.MatchRule).
	Rules []domain.Rule

	// KeyFn extrai a identidade do cliente. Sem KeyFn, é montada a partir
	// de Strategy/TrustXForwardedFor.
	KeyFn KeyFunc
	// Strategy: "ip" (padrão) ou "header:<Nome>".
	Strategy           string
	TrustXForwardedFor bool

	// ExcludePaths pula o rate limit por completo (match exato do path).
	// Nem headers nem stats são produzidos para esses paths.
	ExcludePaths []string

	RejectStatus int
}

type limitExceededBody struct {
	Detail string `json:"detail"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Policy.Limit <= 0 || opts.Policy.Window <= 0 {
		opts.Policy = DefaultPolicy
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = StrategyKeyFunc(opts.Strategy, opts.TrustXForwardedFor)
	}

	var excluded map[string]struct{}
	if len(opts.ExcludePaths) > 0 {
		excluded = make(map[string]struct{}, len(opts.ExcludePaths))
		for _, p := range opts.ExcludePaths {
			excluded[p] = struct{}{}
		}
	}

	svc := application.Service{
		Store:   opts.Store,
		Default: opts.Policy,
		Rules:   opts.Rules,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := excluded[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			dec := svc.Decide(r.Context(), domain.Key(key), r.URL.Path, time.Now())

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Scope:   dec.Scope,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
			h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			h.Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
			h.Set("X-RateLimit-Window", formatInt(int(dec.Window.Seconds())))

			if !dec.Allowed {
				writeLimitExceeded(w, dec, opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeLimitExceeded(w http.ResponseWriter, dec domain.Decision, status int) {
	w.Header().Set("Retry-After", formatInt(retrySeconds(dec.RetryAfter)))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	body := limitExceededBody{Detail: detailMessage(dec.Limit, dec.Window)}
	_ = json.NewEncoder(w).Encode(body)
}
