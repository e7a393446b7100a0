package model

import "time"

// User is a planner owner identified by Telegram id. SeededAt is set once the
// sample tasks, rewards and starting points have been written, so a returning
// user is never seeded twice.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	SeededAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
