package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
	ErrCaptainActionForbidden = errors.New("only a captain of one of the two teams can act in this veto")

	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrVetoSessionNotFound = errors.New("veto session not found")

	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrTeamNameConflict       = errors.New("team name is already in use")

	// Турнир
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrRegistrationNotOpen               = errors.New("tournament registration is not open")
	ErrSeedingClosed                     = errors.New("seeding is only possible before the tournament goes live")
	ErrNotEnoughTeams                    = errors.New("not enough teams registered")
	ErrUnknownMapPoolPreset              = errors.New("unknown map pool preset")
	ErrUnsupportedFormat                 = errors.New("tournament format is not supported by the engine")
	ErrTournamentNotLive                 = errors.New("tournament is not live")

	// Сетка
	ErrBracketGenerationClosed = errors.New("bracket can only be generated while the tournament is seeded")
	ErrBracketNotGenerated     = errors.New("bracket has not been generated")
	ErrBracketUnhealthy        = errors.New("bracket has unresolved issues")
	ErrMatchesIncomplete       = errors.New("not all matches are completed")

	// Матчи
	ErrMatchNotReady       = errors.New("match does not have both teams assigned or already started")
	ErrWinnerNotInMatch    = errors.New("winner is not one of the match teams")
	ErrWinnerConflict      = errors.New("match already completed with a different winner")
	ErrAdvancementConflict = errors.New("next match slot is already held by another team")
	ErrVetoNotFinished     = errors.New("match veto is still in progress")
	ErrMatchAlreadyStarted = errors.New("match already started")

	// Вето
	ErrVetoSessionExists  = errors.New("match already has an active veto session")
	ErrVetoAlreadyDecided = errors.New("match veto is already completed")
	ErrVetoPositionTaken  = errors.New("veto position was taken by a concurrent submission")
	ErrVetoLogCorrupt     = errors.New("veto action log is inconsistent, reset the session instead")
)
