// Package ratelimit fornece adapters HTTP (net/http) para rate limit por
// janela deslizante e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (resolução de policy, decisão allow/deny,
//     acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante em memória, janela
//     fixa em Redis, failover, stats, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave +
//     tradução da decisão para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Resolve a policy do endpoint (regra que casou ou padrão)
//  3. Consulta o contador de janela; falha de backend permite (fail-open)
//  4. Publica X-RateLimit-Limit/-Remaining/-Reset/-Window
//  5. Se bloqueado, responde 429 com corpo JSON e Retry-After;
//     no limite de concorrência, 503
//  6. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como RATE_LIMIT, RATE_WINDOW, RATE_RULES, RATE_DISTRIBUTED
// e CONCURRENCY_MAX.
package ratelimit
