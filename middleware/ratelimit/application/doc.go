// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, client, path, now) resolve a política do endpoint,
// consulta o contador de janela e retorna uma Decision (allow/deny + quota).
package application
