// utilitário pequeno para formatação rápida/consistente de valores numéricos
// em headers e na mensagem de rejeição, sem puxar fmt para isso.

package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// retrySeconds arredonda para cima e nunca devolve menos que 1:
// Retry-After: 0 convida o cliente a repetir imediatamente.
func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func detailMessage(limit int, window time.Duration) string {
	return "Rate limit exceeded. Maximum " + strconv.Itoa(limit) +
		" requests per " + strconv.Itoa(int(window.Seconds())) + " seconds."
}
