package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
)

// memStore is a tiny in-memory database. Transactions snapshot it and restore on error.
// Writes made through commitOutsideTx belong to another connection and survive that restore.
type memStore struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	nextID      int
	committed   []func(*memStore)
	tournaments map[int]models.Tournament
	teams       map[int]models.Team
	matches     map[int]models.Match
	sessions    map[int]models.VetoSession
	actions     map[int][]models.VetoAction
	now         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		tournaments: map[int]models.Tournament{},
		teams:       map[int]models.Team{},
		matches:     map[int]models.Match{},
		sessions:    map[int]models.VetoSession{},
		actions:     map[int][]models.VetoAction{},
		now:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := &memStore{
		nextID:      s.nextID,
		tournaments: make(map[int]models.Tournament, len(s.tournaments)),
		teams:       make(map[int]models.Team, len(s.teams)),
		matches:     make(map[int]models.Match, len(s.matches)),
		sessions:    make(map[int]models.VetoSession, len(s.sessions)),
		actions:     make(map[int][]models.VetoAction, len(s.actions)),
	}
	for k, v := range s.tournaments {
		cp.tournaments[k] = v
	}
	for k, v := range s.teams {
		cp.teams[k] = v
	}
	for k, v := range s.matches {
		cp.matches[k] = v
	}
	for k, v := range s.sessions {
		cp.sessions[k] = v
	}
	for k, v := range s.actions {
		cp.actions[k] = append([]models.VetoAction(nil), v...)
	}
	return cp
}

func (s *memStore) restore(cp *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = cp.nextID
	s.tournaments = cp.tournaments
	s.teams = cp.teams
	s.matches = cp.matches
	s.sessions = cp.sessions
	s.actions = cp.actions
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, exec repositories.SQLExecutor) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	before := s.snapshot()
	s.mu.Lock()
	s.committed = nil
	s.mu.Unlock()
	if err := fn(ctx, nil); err != nil {
		s.restore(before)
		s.mu.Lock()
		for _, apply := range s.committed {
			apply(s)
		}
		s.committed = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// commitOutsideTx applies a write made by a concurrent connection that has already committed.
func (s *memStore) commitOutsideTx(apply func(*memStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(s)
	s.committed = append(s.committed, apply)
}

// --- tournaments

type memTournaments struct{ s *memStore }

func (r memTournaments) Create(_ context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tournaments {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.s.id()
	t.CreatedAt = r.s.now
	r.s.tournaments[t.ID] = *t
	return nil
}

func (r memTournaments) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r memTournaments) List(_ context.Context, f repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.s.tournaments {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTournaments) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	r.s.tournaments[id] = t
	return nil
}

// --- teams

type memTeams struct{ s *memStore }

func (r memTeams) Create(_ context.Context, _ repositories.SQLExecutor, team *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[team.TournamentID]; !ok {
		return repositories.ErrTeamTournamentInvalid
	}
	for _, existing := range r.s.teams {
		if existing.TournamentID == team.TournamentID && existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	team.ID = r.s.id()
	team.CreatedAt = r.s.now
	r.s.teams[team.ID] = *team
	return nil
}

func (r memTeams) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return &t, nil
}

func (r memTeams) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Team
	for _, t := range r.s.teams {
		if t.TournamentID == tournamentID {
			t := t
			out = append(out, &t)
		}
	}
	// ids grow with signup order
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTeams) UpdateSeeds(_ context.Context, _ repositories.SQLExecutor, seeds map[int]int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, seed := range seeds {
		t := r.s.teams[id]
		t.Seed = seed
		r.s.teams[id] = t
	}
	return nil
}

// --- matches

type memMatches struct{ s *memStore }

func (r memMatches) CreateBatch(_ context.Context, _ repositories.SQLExecutor, matches []*models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range matches {
		m.ID = r.s.id()
		m.UpdatedAt = r.s.now
		r.s.matches[m.ID] = *m
	}
	return nil
}

func (r memMatches) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (r memMatches) GetByPosition(_ context.Context, _ repositories.SQLExecutor, tournamentID, round, matchNumber int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.matches {
		if m.TournamentID == tournamentID && m.Round == round && m.MatchNumber == matchNumber {
			return &m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r memMatches) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Match
	for _, m := range r.s.matches {
		if m.TournamentID == tournamentID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (r memMatches) update(id int, fn func(m *models.Match)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	fn(&m)
	r.s.matches[id] = m
	return nil
}

func (r memMatches) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus, winnerID *int) error {
	return r.update(id, func(m *models.Match) {
		m.Status = status
		m.WinnerID = winnerID
	})
}

func (r memMatches) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus) error {
	return r.update(id, func(m *models.Match) { m.Status = status })
}

func (r memMatches) SetSlot(_ context.Context, _ repositories.SQLExecutor, id int, slot models.Slot, teamID *int) error {
	return r.update(id, func(m *models.Match) { m.SetSlot(slot, teamID) })
}

func (r memMatches) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.matches {
		if m.TournamentID == tournamentID {
			delete(r.s.matches, id)
		}
	}
	return nil
}

// --- veto

type memVetoes struct {
	s *memStore
	// beforeAppend runs right before an append lands, used to simulate a racing writer.
	beforeAppend func(sessionID int)
}

func (r *memVetoes) CreateSession(_ context.Context, _ repositories.SQLExecutor, session *models.VetoSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.MatchID == session.MatchID {
			return repositories.ErrVetoSessionExists
		}
	}
	session.ID = r.s.id()
	session.CreatedAt = r.s.now
	session.UpdatedAt = r.s.now
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *memVetoes) GetSession(_ context.Context, _ repositories.SQLExecutor, id int) (*models.VetoSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repositories.ErrVetoSessionNotFound
	}
	return &session, nil
}

func (r *memVetoes) GetSessionForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.VetoSession, error) {
	return r.GetSession(ctx, exec, id)
}

func (r *memVetoes) GetActiveSessionByMatch(_ context.Context, matchID int) (*models.VetoSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.MatchID == matchID && session.Status != models.VetoStatusCompleted {
			return &session, nil
		}
	}
	return nil, repositories.ErrVetoSessionNotFound
}

func (r *memVetoes) GetSessionByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) (*models.VetoSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.MatchID == matchID {
			return &session, nil
		}
	}
	return nil, repositories.ErrVetoSessionNotFound
}

func (r *memVetoes) ListActiveSessions(_ context.Context) ([]*models.VetoSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.VetoSession
	for _, session := range r.s.sessions {
		if session.Status != models.VetoStatusCompleted {
			session := session
			out = append(out, &session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memVetoes) UpdateTurn(_ context.Context, _ repositories.SQLExecutor, session *models.VetoSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.sessions[session.ID]
	if !ok {
		return repositories.ErrVetoSessionNotFound
	}
	stored.Status = session.Status
	stored.CurrentTurnTeamID = session.CurrentTurnTeamID
	stored.UpdatedAt = r.s.now
	r.s.sessions[session.ID] = stored
	return nil
}

func (r *memVetoes) ListActions(_ context.Context, _ repositories.SQLExecutor, sessionID int) ([]models.VetoAction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]models.VetoAction(nil), r.s.actions[sessionID]...), nil
}

func (r *memVetoes) AppendAction(_ context.Context, _ repositories.SQLExecutor, a *models.VetoAction) (bool, error) {
	if r.beforeAppend != nil {
		r.beforeAppend(a.SessionID)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.actions[a.SessionID]) != a.OrderNumber-1 {
		return false, nil
	}
	a.ID = r.s.id()
	a.CreatedAt = r.s.now
	r.s.actions[a.SessionID] = append(r.s.actions[a.SessionID], *a)
	return true, nil
}

func (r *memVetoes) DeleteActions(_ context.Context, _ repositories.SQLExecutor, sessionID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.actions, sessionID)
	return nil
}

// --- collaborators

type publishedEvent struct {
	Subject string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Subject: subject, Payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

func (p *recordingPublisher) last(subject string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Subject == subject {
			return p.events[i].Payload, true
		}
	}
	return nil, false
}

type recordingHub struct {
	mu       sync.Mutex
	messages map[string][]realtime.WebSocketMessage
}

func (h *recordingHub) BroadcastToRoom(room string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.messages == nil {
		h.messages = map[string][]realtime.WebSocketMessage{}
	}
	if msg, ok := message.(realtime.WebSocketMessage); ok {
		h.messages[room] = append(h.messages[room], msg)
	}
}

func (h *recordingHub) count(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages[room])
}

func (h *recordingHub) lastType(room string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.messages[room]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Type
}

type recordingArchiver struct {
	mu      sync.Mutex
	reports []int
	logs    []int
	dropped []int
}

func (a *recordingArchiver) ArchiveBracketReport(_ context.Context, tournamentID int, _ any) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, tournamentID)
	return "reports/test.json", nil
}

func (a *recordingArchiver) ArchiveVetoLog(_ context.Context, sessionID int, _ any) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, sessionID)
	return "veto/test.json", nil
}

func (a *recordingArchiver) DropVetoLog(_ context.Context, sessionID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropped = append(a.dropped, sessionID)
	return nil
}

func (e *env) lock(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	if e.onLock != nil {
		e.onLock(tournamentID)
	}
	return nil
}

// env wires every service over one memStore.
type env struct {
	store     *memStore
	vetoRepo  *memVetoes
	publisher *recordingPublisher
	hub       *recordingHub
	archiver  *recordingArchiver
	// onLock runs when a service takes the tournament lock.
	onLock func(tournamentID int)

	tournaments TournamentService
	teams       TeamService
	brackets    BracketService
	matches     MatchService
	vetoes      VetoService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := newMemStore()
	e := &env{
		store:     store,
		vetoRepo:  &memVetoes{s: store},
		publisher: &recordingPublisher{},
		hub:       &recordingHub{},
		archiver:  &recordingArchiver{},
	}
	deps := Deps{
		Tx:          store,
		Lock:        e.lock,
		Tournaments: memTournaments{s: store},
		Teams:       memTeams{s: store},
		Matches:     memMatches{s: store},
		Vetoes:      e.vetoRepo,
		Publisher:   e.publisher,
		Hub:         e.hub,
		Archiver:    e.archiver,
		Now:         func() time.Time { return store.now },
	}
	pools := map[string]models.MapPool{
		"competitive": {"ancient", "anubis", "inferno", "mirage", "nuke", "overpass", "vertigo"},
	}
	e.tournaments = NewTournamentService(deps, pools)
	e.teams = NewTeamService(deps)
	e.brackets = NewBracketService(deps)
	e.matches = NewMatchService(deps)
	e.vetoes = NewVetoService(deps, 15*time.Minute)
	return e
}

var _ events.Publisher = (*recordingPublisher)(nil)
