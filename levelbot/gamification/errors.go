package gamification

import "errors"

var (
	// ErrQuestNotFound is returned when the addressed quest does not exist.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrUserNotFound is returned when the addressed user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuestNotOpen is returned by player-triggered completion when the
	// quest is not open or outside its validity window.
	ErrQuestNotOpen = errors.New("quest is not open")
	// ErrAlreadyCompleted is returned when the user already completed the quest.
	ErrAlreadyCompleted = errors.New("quest already completed")
	// ErrClaimedByOther is returned when another user won a single-winner
	// quest first.
	ErrClaimedByOther = errors.New("quest claimed by another user")
	// ErrInvalidInput is returned for malformed domain values such as a
	// non-positive XP reward.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConcurrencyConflict is returned when the optimistic update retries
	// were exhausted.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
