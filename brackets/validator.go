package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-engine/models"
)

type IssueKind string

const (
	IssueStructureMismatch    IssueKind = "structure_mismatch"
	IssueAdvancementMismatch  IssueKind = "advancement_mismatch"
	IssueStatusWinnerMismatch IssueKind = "status_winner_mismatch"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type Issue struct {
	Kind       IssueKind `json:"kind"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	MatchIDs   []int     `json:"match_ids"`
	Repairable bool      `json:"repairable"`
}

type Report struct {
	TournamentID int       `json:"tournament_id"`
	Structure    Structure `json:"structure"`
	Issues       []Issue   `json:"issues"`
}

func (r Report) Healthy() bool {
	return len(r.Issues) == 0
}

// Repairable сообщает, можно ли исправить автоматически хотя бы одну проблему.
func (r Report) Repairable() bool {
	for _, i := range r.Issues {
		if i.Repairable {
			return true
		}
	}
	return false
}

type CorrectionKind string

const (
	CorrectionSetStatus CorrectionKind = "set_status"
	CorrectionSetSlot   CorrectionKind = "set_slot"
)

// Correction - одна запись, которую медик хочет сделать в сохраненном матче.
type Correction struct {
	Kind        CorrectionKind     `json:"kind"`
	MatchID     int                `json:"match_id"`
	Round       int                `json:"round"`
	MatchNumber int                `json:"match_number"`
	Status      models.MatchStatus `json:"status,omitempty"`
	Slot        models.Slot        `json:"slot,omitempty"`
	TeamID      *int               `json:"team_id,omitempty"`
	Reason      string             `json:"reason"`
}

type matchKey struct {
	round, number int
}

type bracketIndex struct {
	ordered []*models.Match
	byPos   map[matchKey]*models.Match
}

func indexMatches(matches []*models.Match) bracketIndex {
	ordered := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Round != ordered[j].Round {
			return ordered[i].Round < ordered[j].Round
		}
		return ordered[i].MatchNumber < ordered[j].MatchNumber
	})

	byPos := make(map[matchKey]*models.Match, len(ordered))
	for _, m := range ordered {
		k := matchKey{m.Round, m.MatchNumber}
		if _, exists := byPos[k]; !exists {
			byPos[k] = m
		}
	}
	return bracketIndex{ordered: ordered, byPos: byPos}
}

// settledWinner возвращает победителя матча после нормализации статуса,
// nil если победителя нет.
func settledWinner(m *models.Match) *int {
	if m.WinnerID == nil || !m.HasTeam(*m.WinnerID) {
		return nil
	}
	return m.WinnerID
}

// Validate сверяет сохраненные матчи с ожидаемой топологией и возвращает каждое
// расхождение как проблему. Матчи не изменяются.
func Validate(s Structure, matches []*models.Match) Report {
	report := Report{Structure: s, Issues: []Issue{}}
	idx := indexMatches(matches)
	if len(idx.ordered) > 0 {
		report.TournamentID = idx.ordered[0].TournamentID
	}

	report.Issues = append(report.Issues, structureIssues(s, idx)...)
	for _, c := range statusCorrections(idx) {
		report.Issues = append(report.Issues, c.issue())
	}
	report.Issues = append(report.Issues, statusConflicts(idx)...)
	for _, f := range advancementFindings(s, idx) {
		report.Issues = append(report.Issues, f.issue)
	}
	return report
}

// PlanRepair перечисляет записи, исправляющие все исправимые проблемы: сначала статусы,
// потом недостающие слоты продвижения. Для исправленной сетки список пуст.
func PlanRepair(s Structure, matches []*models.Match) []Correction {
	idx := indexMatches(matches)
	corrections := statusCorrections(idx)
	for _, f := range advancementFindings(s, idx) {
		if f.correction != nil {
			corrections = append(corrections, *f.correction)
		}
	}
	return corrections
}

// ApplyCorrections возвращает копии матчей с примененными по порядку исправлениями.
func ApplyCorrections(matches []*models.Match, corrections []Correction) []*models.Match {
	out := make([]*models.Match, 0, len(matches))
	byPos := make(map[matchKey]*models.Match, len(matches))
	for _, m := range matches {
		if m == nil {
			continue
		}
		cp := *m
		out = append(out, &cp)
		k := matchKey{cp.Round, cp.MatchNumber}
		if _, exists := byPos[k]; !exists {
			byPos[k] = &cp
		}
	}

	for _, c := range corrections {
		m, ok := byPos[matchKey{c.Round, c.MatchNumber}]
		if !ok {
			continue
		}
		switch c.Kind {
		case CorrectionSetStatus:
			m.Status = c.Status
		case CorrectionSetSlot:
			if c.TeamID != nil {
				id := *c.TeamID
				m.SetSlot(c.Slot, &id)
			}
		}
	}
	return out
}

func structureIssues(s Structure, idx bracketIndex) []Issue {
	counts := make(map[int][]int)
	maxRound := s.TotalRounds
	for _, m := range idx.ordered {
		counts[m.Round] = append(counts[m.Round], m.ID)
		if m.Round > maxRound {
			maxRound = m.Round
		}
	}

	var issues []Issue
	for r := 1; r <= maxRound; r++ {
		expected := s.MatchesInRound(r)
		got := len(counts[r])
		if got == expected {
			continue
		}
		issues = append(issues, Issue{
			Kind:     IssueStructureMismatch,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("round %d has %d matches, expected %d for %d teams",
				r, got, expected, s.TeamCount),
			MatchIDs:   counts[r],
			Repairable: false,
		})
	}

	seen := make(map[matchKey]int)
	for _, m := range idx.ordered {
		k := matchKey{m.Round, m.MatchNumber}
		if first, dup := seen[k]; dup {
			issues = append(issues, Issue{
				Kind:       IssueStructureMismatch,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("round %d match %d is stored twice", m.Round, m.MatchNumber),
				MatchIDs:   []int{first, m.ID},
				Repairable: false,
			})
			continue
		}
		seen[k] = m.ID
	}
	return issues
}

func (c Correction) issue() Issue {
	return Issue{
		Kind:       IssueStatusWinnerMismatch,
		Severity:   SeverityError,
		Message:    c.Reason,
		MatchIDs:   []int{c.MatchID},
		Repairable: true,
	}
}

func statusCorrections(idx bracketIndex) []Correction {
	var out []Correction
	for _, m := range idx.ordered {
		switch {
		case m.WinnerID != nil && m.Status != models.MatchStatusCompleted && m.HasTeam(*m.WinnerID):
			out = append(out, Correction{
				Kind:        CorrectionSetStatus,
				MatchID:     m.ID,
				Round:       m.Round,
				MatchNumber: m.MatchNumber,
				Status:      models.MatchStatusCompleted,
				Reason: fmt.Sprintf("round %d match %d has winner %d but status %q",
					m.Round, m.MatchNumber, *m.WinnerID, m.Status),
			})
		case m.WinnerID == nil && m.Status == models.MatchStatusCompleted:
			out = append(out, Correction{
				Kind:        CorrectionSetStatus,
				MatchID:     m.ID,
				Round:       m.Round,
				MatchNumber: m.MatchNumber,
				Status:      models.MatchStatusPending,
				Reason: fmt.Sprintf("round %d match %d is completed without a winner",
					m.Round, m.MatchNumber),
			})
		}
	}
	return out
}

// statusConflicts находит победителей, которых нет в матче. Такое чинит только человек.
func statusConflicts(idx bracketIndex) []Issue {
	var issues []Issue
	for _, m := range idx.ordered {
		if m.WinnerID == nil || m.HasTeam(*m.WinnerID) {
			continue
		}
		issues = append(issues, Issue{
			Kind:     IssueStatusWinnerMismatch,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("round %d match %d has winner %d who is not one of its teams",
				m.Round, m.MatchNumber, *m.WinnerID),
			MatchIDs:   []int{m.ID},
			Repairable: false,
		})
	}
	return issues
}

type advancementFinding struct {
	issue      Issue
	correction *Correction
}

func advancementFindings(s Structure, idx bracketIndex) []advancementFinding {
	var out []advancementFinding
	for _, m := range idx.ordered {
		winner := settledWinner(m)
		if winner == nil {
			continue
		}
		adv, err := ResolveAdvancement(s, m.Round, m.MatchNumber)
		if err != nil || adv.IsFinal {
			// позиции вне сетки уже отмечены как проблемы структуры
			continue
		}
		target, ok := idx.byPos[matchKey{adv.Round, adv.MatchNumber}]
		if !ok {
			continue
		}

		current := target.SlotValue(adv.Slot)
		if current != nil && *current == *winner {
			continue
		}

		if current == nil && target.Status != models.MatchStatusCompleted {
			id := *winner
			out = append(out, advancementFinding{
				issue: Issue{
					Kind:     IssueAdvancementMismatch,
					Severity: SeverityError,
					Message: fmt.Sprintf("winner %d of round %d match %d is missing from slot %s of round %d match %d",
						id, m.Round, m.MatchNumber, adv.Slot, adv.Round, adv.MatchNumber),
					MatchIDs:   []int{m.ID, target.ID},
					Repairable: true,
				},
				correction: &Correction{
					Kind:        CorrectionSetSlot,
					MatchID:     target.ID,
					Round:       target.Round,
					MatchNumber: target.MatchNumber,
					Slot:        adv.Slot,
					TeamID:      &id,
					Reason: fmt.Sprintf("advance winner %d of round %d match %d",
						id, m.Round, m.MatchNumber),
				},
			})
			continue
		}

		msg := fmt.Sprintf("slot %s of round %d match %d holds team %s, expected winner %d of round %d match %d",
			adv.Slot, adv.Round, adv.MatchNumber, describeTeam(current), *winner, m.Round, m.MatchNumber)
		if current == nil {
			msg = fmt.Sprintf("round %d match %d is completed but slot %s is empty, expected winner %d of round %d match %d",
				adv.Round, adv.MatchNumber, adv.Slot, *winner, m.Round, m.MatchNumber)
		}
		out = append(out, advancementFinding{
			issue: Issue{
				Kind:       IssueAdvancementMismatch,
				Severity:   SeverityCritical,
				Message:    msg,
				MatchIDs:   []int{m.ID, target.ID},
				Repairable: false,
			},
		})
	}
	return out
}

func describeTeam(id *int) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}
