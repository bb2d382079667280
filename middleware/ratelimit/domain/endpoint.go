package domain

import "strings"

// Rule associa um padrão de endpoint a uma Policy própria.
//
// O padrão é comparado segmento a segmento: "*" no fim casa o sufixo restante
// (ex: "/api/auth/*" casa "/api/auth/login", mas não "/api/auth"), e "*" no
// meio casa exatamente um segmento (ex: "/api/*/messages"). Sem "*", só casa
// o path exato. O "*" precisa ocupar o segmento inteiro; "auth*" é literal.
type Rule struct {
	Pattern string
	Policy  Policy
}

// MatchRule seleciona a regra aplicável ao path, ou ok=false para cair na
// policy padrão. Função pura; ausência de match não é erro.
//
// Ordem de especificidade: match exato vence; entre curingas que casam, vence
// o de maior prefixo antes do primeiro "*"; empate fica com a primeira regra
// declarada. Exatamente uma policy se aplica por requisição.
func MatchRule(path string, rules []Rule) (Rule, bool) {
	best := -1
	bestPrefix := -1

	for i, r := range rules {
		star := strings.IndexByte(r.Pattern, '*')
		if star < 0 {
			if r.Pattern == path {
				return r, true
			}
			continue
		}
		if !matchPattern(r.Pattern, path) {
			continue
		}
		// prefixo mais longo vence; ">" estrito mantém a primeira declarada em empate
		if star > bestPrefix {
			best = i
			bestPrefix = star
		}
	}

	if best >= 0 {
		return rules[best], true
	}
	return Rule{}, false
}

func matchPattern(pattern, path string) bool {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(path, "/")

	for i, seg := range ps {
		if i >= len(ts) {
			return false
		}
		if seg == "*" {
			if i == len(ps)-1 {
				// sufixo: consome o resto do path
				return true
			}
			continue
		}
		if seg != ts[i] {
			return false
		}
	}
	return len(ts) == len(ps)
}
