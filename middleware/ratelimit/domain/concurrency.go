package domain

import "context"

// SlotPool representa um recurso com capacidade finita (requisições em voo).
//
// É o segundo eixo do controle de admissão: o WindowCounter limita vazão por
// janela, o SlotPool limita simultaneidade. Acquire bloqueia até conseguir
// uma vaga ou até o ctx encerrar; ao adquirir, retorna uma função de release
// que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
