package veto

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/tournament-engine/models"
)

// Speculative - действие, которое клиент показал до подтверждения сервером.
type Speculative struct {
	Tag       uuid.UUID         `json:"tag"`
	Action    models.VetoAction `json:"action"`
	AssumedAt time.Time         `json:"assumed_at"`
}

// View - то, что рисует клиент: авторитетное состояние плюс неподтвержденные действия.
type View struct {
	State                State       `json:"state"`
	SpeculativePositions []int       `json:"speculative_positions"`
	Pending              []uuid.UUID `json:"pending"`
}

type RefreshResult struct {
	Confirmed []uuid.UUID
	Rejected  []uuid.UUID
}

// Reconciler хранит клиентскую копию сессии. Неподтвержденные записи живут только до
// следующего состояния с сервера: Refresh удаляет их все, что бы ни ответил сервер.
type Reconciler struct {
	mu            sync.Mutex
	authoritative State
	pending       []Speculative
	opts          Options
}

func NewReconciler(initial State, opts Options) *Reconciler {
	return &Reconciler{authoritative: initial, opts: opts}
}

// Assume записывает оптимистичное действие teamID и возвращает его метку. Проверка идет
// по объединенному виду, поэтому клиент не может накопить ходы вне очереди.
func (r *Reconciler) Assume(p Proposal) (uuid.UUID, models.VetoAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := r.viewLocked()
	action, err := PlanAction(view.State, p)
	if err != nil {
		return uuid.Nil, models.VetoAction{}, err
	}

	entry := Speculative{Tag: uuid.New(), Action: action, AssumedAt: time.Now()}
	r.pending = append(r.pending, entry)
	return entry.Tag, action, nil
}

func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

func (r *Reconciler) viewLocked() View {
	if len(r.pending) == 0 {
		return View{State: r.authoritative, SpeculativePositions: []int{}, Pending: []uuid.UUID{}}
	}

	merged := make([]models.VetoAction, 0, len(r.authoritative.Actions)+len(r.pending))
	merged = append(merged, r.authoritative.Actions...)
	positions := make([]int, 0, len(r.pending))
	tags := make([]uuid.UUID, 0, len(r.pending))
	for _, p := range r.pending {
		merged = append(merged, p.Action)
		positions = append(positions, p.Action.OrderNumber)
		tags = append(tags, p.Tag)
	}

	_, st := Project(r.authoritative.Session, merged, r.opts)
	return View{State: st, SpeculativePositions: positions, Pending: tags}
}

// Refresh ставит новое авторитетное состояние и удаляет все неподтвержденные записи.
// Записи, найденные в новом журнале на той же позиции с той же картой, считаются
// подтвержденными, остальные отклоненными.
func (r *Reconciler) Refresh(st State) RefreshResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPos := make(map[int]models.VetoAction, len(st.Actions))
	for _, a := range st.Actions {
		byPos[a.OrderNumber] = a
	}

	var res RefreshResult
	for _, p := range r.pending {
		got, ok := byPos[p.Action.OrderNumber]
		if ok && sameAction(got, p.Action) {
			res.Confirmed = append(res.Confirmed, p.Tag)
		} else {
			res.Rejected = append(res.Rejected, p.Tag)
		}
	}

	r.authoritative = st
	r.pending = nil
	return res
}

// Reject удаляет все неподтвержденные записи после отказа сервера.
func (r *Reconciler) Reject() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := make([]uuid.UUID, 0, len(r.pending))
	for _, p := range r.pending {
		dropped = append(dropped, p.Tag)
	}
	r.pending = nil
	return dropped
}

func (r *Reconciler) Authoritative() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authoritative
}

func sameAction(a, b models.VetoAction) bool {
	if a.ActionType != b.ActionType || a.MapID != b.MapID {
		return false
	}
	if (a.TeamID == nil) != (b.TeamID == nil) {
		return false
	}
	return a.TeamID == nil || *a.TeamID == *b.TeamID
}
