package fixture

// Tabela de transições do ciclo de vida.
//
//	SCHEDULED   -> IN_PROGRESS | FINAL | POSTPONED | VOID
//	IN_PROGRESS -> FINAL | POSTPONED | VOID
//	POSTPONED   -> SCHEDULED | VOID   (reagendamento ou cancelamento)
//	FINAL       -> terminal (correções viram evento, nunca transição)
//	VOID        -> terminal
//
// Qualquer outra combinação é inconsistência da fonte e deve ser
// rejeitada por fixture, sem derrubar a execução inteira.
var allowed = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusFinal, StatusPostponed, StatusVoid},
	StatusInProgress: {StatusFinal, StatusPostponed, StatusVoid},
	StatusPostponed:  {StatusScheduled, StatusVoid},
}

// CanTransition informa se a transição from -> to é legal.
// from == to não é transição (no-op tratado pelo chamador).
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}
