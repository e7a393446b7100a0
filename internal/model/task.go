package model

import "time"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Category groups tasks by kind of study work.
type Category string

const (
	CategorySchool   Category = "school"
	CategoryExam     Category = "exam"
	CategoryHomework Category = "homework"
	CategoryProject  Category = "project"
	CategoryReading  Category = "reading"
	CategoryOther    Category = "other"
)

var Categories = []Category{
	CategorySchool, CategoryExam, CategoryHomework,
	CategoryProject, CategoryReading, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Task represents a single item in the planner.
type Task struct {
	ID            uint       `gorm:"primaryKey"`
	UserID        uint       `gorm:"index"`
	Title         string
	Description   string
	DueDate       time.Time  `gorm:"index"`
	Priority      Priority   `gorm:"default:medium"`
	Category      Category   `gorm:"default:other"`
	Completed     bool       `gorm:"default:false"`
	Points        int
	AwardedPoints int
	ReminderTime  *time.Time
	CompletedAt   *time.Time
	Subtasks      []SubTask  `gorm:"foreignKey:TaskID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EarnedPoints is what completing the task is worth right now: the sum of the
// finished subtasks, or the task's own value when it has none.
func (t Task) EarnedPoints() int {
	if len(t.Subtasks) == 0 {
		return t.Points
	}
	total := 0
	for _, sub := range t.Subtasks {
		if sub.Completed {
			total += sub.Points
		}
	}
	return total
}

// Worth is the most the task can pay out: all subtasks, or its own value.
func (t Task) Worth() int {
	if t.Completed {
		return t.AwardedPoints
	}
	if len(t.Subtasks) == 0 {
		return t.Points
	}
	total := 0
	for _, sub := range t.Subtasks {
		total += sub.Points
	}
	return total
}

// AllSubtasksDone reports whether the task has subtasks and every one is finished.
func (t Task) AllSubtasksDone() bool {
	if len(t.Subtasks) == 0 {
		return false
	}
	for _, sub := range t.Subtasks {
		if !sub.Completed {
			return false
		}
	}
	return true
}

// SubTask is a checklist item inside a task.
type SubTask struct {
	ID        uint      `gorm:"primaryKey"`
	TaskID    uint      `gorm:"index"`
	Title     string
	Completed bool      `gorm:"default:false"`
	Points    int
	CreatedAt time.Time
	UpdatedAt time.Time
}
