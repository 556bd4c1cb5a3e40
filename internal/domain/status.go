package domain

import "strings"

// ProjectStatus is a step in the project lifecycle.
type ProjectStatus string

// Project lifecycle states.
const (
	StatusEmAnalise        ProjectStatus = "EM_ANALISE"
	StatusAnaliseRealizada ProjectStatus = "ANALISE_REALIZADA"
	StatusAnaliseAprovada  ProjectStatus = "ANALISE_APROVADA"
	StatusIniciado         ProjectStatus = "INICIADO"
	StatusPlanejado        ProjectStatus = "PLANEJADO"
	StatusEmAndamento      ProjectStatus = "EM_ANDAMENTO"
	StatusEncerrado        ProjectStatus = "ENCERRADO"
	StatusCancelado        ProjectStatus = "CANCELADO"
)

// statusFlow is the ordered lifecycle. CANCELADO sits outside of it.
var statusFlow = []ProjectStatus{
	StatusEmAnalise,
	StatusAnaliseRealizada,
	StatusAnaliseAprovada,
	StatusIniciado,
	StatusPlanejado,
	StatusEmAndamento,
	StatusEncerrado,
}

var nonDeletableStatuses = map[ProjectStatus]struct{}{
	StatusIniciado:    {},
	StatusEmAndamento: {},
	StatusEncerrado:   {},
}

var terminalStatuses = map[ProjectStatus]struct{}{
	StatusEncerrado: {},
	StatusCancelado: {},
}

// AllStatuses lists every status in declaration order.
func AllStatuses() []ProjectStatus {
	out := make([]ProjectStatus, 0, len(statusFlow)+1)
	out = append(out, statusFlow...)
	return append(out, StatusCancelado)
}

// ParseProjectStatus validates a raw status name.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	status := ProjectStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrUnknownStatus
	}
	return status, nil
}

// Valid reports whether the status is a known lifecycle state.
func (s ProjectStatus) Valid() bool {
	if s == StatusCancelado {
		return true
	}
	return flowIndex(s) >= 0
}

// CanTransition reports whether a project may move from current to target.
// A cancelled project accepts any target, itself included; otherwise only
// the immediate successor in the flow is allowed.
func CanTransition(current, target ProjectStatus) bool {
	if !current.Valid() || !target.Valid() {
		return false
	}
	if current == StatusCancelado {
		return true
	}
	i := flowIndex(current)
	return i >= 0 && i+1 < len(statusFlow) && statusFlow[i+1] == target
}

// Deletable reports whether a project in this status may be deleted.
func Deletable(s ProjectStatus) bool {
	_, blocked := nonDeletableStatuses[s]
	return !blocked
}

// Active reports whether a project in this status counts toward a member's
// concurrent project limit.
func Active(s ProjectStatus) bool {
	_, terminal := terminalStatuses[s]
	return !terminal
}

func flowIndex(s ProjectStatus) int {
	for i, step := range statusFlow {
		if step == s {
			return i
		}
	}
	return -1
}
