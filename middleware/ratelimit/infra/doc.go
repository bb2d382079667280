// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore: janela deslizante exata por chave, em memória
//   - RedisWindowStore: janela fixa compartilhada entre instâncias (Redis)
//   - FailoverStore: primário com queda para o contador local em caso de erro
//   - RedisStatsStore / MemoryStatsStore: contadores de allowed/denied
//   - ChanPool: semáforo simples para limite de concorrência
package infra
