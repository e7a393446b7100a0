package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskCompleted      = errors.New("task already completed")
	ErrSubtaskNotFound    = errors.New("subtask not found")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrAlreadyRedeemed    = errors.New("reward already redeemed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrQuestNotFound      = errors.New("quest not found")
	ErrQuestDone          = errors.New("quest already completed today")
)

// InsufficientPointsError tells the caller how many points are missing.
type InsufficientPointsError struct {
	Cost    int
	Balance int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: need %d more", e.Missing())
}

func (e *InsufficientPointsError) Missing() int {
	return e.Cost - e.Balance
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
