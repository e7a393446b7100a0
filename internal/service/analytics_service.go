package service

import (
	"context"
	"time"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

const pointsPerLevel = 100

// Bucket counts completed tasks against all tasks in a group.
type Bucket struct {
	Name      string
	Completed int
	Total     int
}

// DayActivity is one column of the weekly chart.
type DayActivity struct {
	Day       time.Time
	Completed int
	Due       int
}

// Level describes progress toward the next 100-point level.
type Level struct {
	Number   int
	Progress int
	Next     int
}

type Overview struct {
	Total          int
	Completed      int
	Pending        int
	CompletionRate float64
	ByPriority     []Bucket
	ByCategory     []Bucket
	Week           []DayActivity
	Balance        int
	Earned         int
	Spent          int
	Level          Level
}

// AnalyticsService derives dashboard numbers from tasks and the ledger.
type AnalyticsService struct {
	store *repository.Store
	loc   *time.Location
}

func NewAnalyticsService(store *repository.Store, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsService{store: store, loc: loc}
}

func (s *AnalyticsService) Overview(ctx context.Context, user *model.User, now time.Time) (*Overview, error) {
	tasks, err := s.store.Tasks.ListByUser(ctx, user.ID, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}
	balance, err := s.store.Ledger.Balance(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	earned, spent, err := s.store.Ledger.Totals(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	ov := &Overview{
		Total:   len(tasks),
		Balance: balance,
		Earned:  earned,
		Spent:   spent,
		Level:   LevelFor(balance),
		Week:    WeeklyActivity(tasks, now, s.loc),
	}
	for _, task := range tasks {
		if task.Completed {
			ov.Completed++
		}
	}
	ov.Pending = ov.Total - ov.Completed
	ov.CompletionRate = CompletionRate(ov.Completed, ov.Total)

	priorities := make([]string, 0, len(model.Priorities))
	for i := len(model.Priorities) - 1; i >= 0; i-- {
		priorities = append(priorities, string(model.Priorities[i]))
	}
	ov.ByPriority = bucketize(tasks, priorities, func(t model.Task) string { return string(t.Priority) })

	categories := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		categories = append(categories, string(c))
	}
	ov.ByCategory = bucketize(tasks, categories, func(t model.Task) string { return string(t.Category) })

	return ov, nil
}

// CompletionRate is a percentage; zero tasks means zero percent.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// LevelFor maps a point balance to a level. Negative balances count as zero.
func LevelFor(balance int) Level {
	if balance < 0 {
		balance = 0
	}
	number := balance/pointsPerLevel + 1
	return Level{
		Number:   number,
		Progress: balance % pointsPerLevel,
		Next:     number * pointsPerLevel,
	}
}

// WeeklyActivity covers the last seven local days, oldest first, ending today.
func WeeklyActivity(tasks []model.Task, now time.Time, loc *time.Location) []DayActivity {
	local := now.In(loc)
	year, month, d := local.Date()
	today := time.Date(year, month, d, 0, 0, 0, 0, loc)

	week := make([]DayActivity, 7)
	for i := range week {
		week[i].Day = today.AddDate(0, 0, i-6)
	}
	index := func(t time.Time) int {
		lt := t.In(loc)
		y, m, dd := lt.Date()
		start := time.Date(y, m, dd, 0, 0, 0, 0, loc)
		for i := range week {
			if week[i].Day.Equal(start) {
				return i
			}
		}
		return -1
	}
	for _, task := range tasks {
		if i := index(task.DueDate); i >= 0 {
			week[i].Due++
		}
		if task.Completed && task.CompletedAt != nil {
			if i := index(*task.CompletedAt); i >= 0 {
				week[i].Completed++
			}
		}
	}
	return week
}

func bucketize(tasks []model.Task, names []string, key func(model.Task) string) []Bucket {
	buckets := make([]Bucket, len(names))
	pos := make(map[string]int, len(names))
	for i, name := range names {
		buckets[i].Name = name
		pos[name] = i
	}
	for _, task := range tasks {
		i, ok := pos[key(task)]
		if !ok {
			continue
		}
		buckets[i].Total++
		if task.Completed {
			buckets[i].Completed++
		}
	}
	return buckets
}
