package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai a identidade do cliente de uma requisição.
type KeyFunc func(r *http.Request) string

// StrategyKeyFunc monta o KeyFunc a partir da estratégia configurada:
//
//	"ip" (ou vazia)  -> IP do cliente (XFF se confiável, senão RemoteAddr)
//	"header:<Nome>"  -> valor do header; cai para IP quando ausente
func StrategyKeyFunc(strategy string, trustXFF bool) KeyFunc {
	header := ""
	if name, ok := strings.CutPrefix(strings.TrimSpace(strategy), "header:"); ok {
		header = strings.TrimSpace(name)
	}
	return DefaultKeyFunc(header, trustXFF)
}

// DefaultKeyFunc prioriza keyHeader (se configurado), depois X-Forwarded-For
// (se confiável), depois RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
