package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", invalid("unknown snapshot format %q", raw)
	}
}

// Snapshot is the portable copy of one user's planner. Dates are kept as
// strings so that loosely formatted documents still load.
type Snapshot struct {
	ID         string            `json:"id" yaml:"id"`
	ExportedAt string            `json:"exportedAt" yaml:"exportedAt"`
	Tasks      []snapshotTask    `json:"tasks" yaml:"tasks"`
	Rewards    []snapshotReward  `json:"rewards" yaml:"rewards"`
	History    []snapshotHistory `json:"pointHistory" yaml:"pointHistory"`
}

type snapshotTask struct {
	Title        string            `json:"title" yaml:"title"`
	Description  string            `json:"description" yaml:"description"`
	DueDate      string            `json:"dueDate" yaml:"dueDate"`
	Priority     string            `json:"priority" yaml:"priority"`
	Category     string            `json:"category" yaml:"category"`
	Completed    bool              `json:"completed" yaml:"completed"`
	Points       int               `json:"points" yaml:"points"`
	Awarded      int               `json:"awardedPoints,omitempty" yaml:"awardedPoints,omitempty"`
	ReminderTime string            `json:"reminderTime,omitempty" yaml:"reminderTime,omitempty"`
	CompletedAt  string            `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Subtasks     []snapshotSubtask `json:"subtasks" yaml:"subtasks"`
}

type snapshotSubtask struct {
	Title     string `json:"title" yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
	Points    int    `json:"points" yaml:"points"`
}

type snapshotReward struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Cost        int    `json:"cost" yaml:"cost"`
	Category    string `json:"category" yaml:"category"`
	Redeemed    bool   `json:"redeemed" yaml:"redeemed"`
	RedeemedAt  string `json:"redeemedAt,omitempty" yaml:"redeemedAt,omitempty"`
}

type snapshotHistory struct {
	Date   string `json:"date" yaml:"date"`
	Amount int    `json:"amount" yaml:"amount"`
	Reason string `json:"reason" yaml:"reason"`
}

// ImportResult reports how an import went. FellBack is set when the document
// could not be read and the defaults were restored instead.
type ImportResult struct {
	Tasks    int
	Rewards  int
	History  int
	FellBack bool
	Cause    error
}

// SnapshotService exports and restores a user's tasks, rewards and history.
type SnapshotService struct {
	store *repository.Store
	log   logrus.FieldLogger
}

func NewSnapshotService(store *repository.Store, log logrus.FieldLogger) *SnapshotService {
	return &SnapshotService{store: store, log: log}
}

func (s *SnapshotService) Export(ctx context.Context, user *model.User, format Format, now time.Time) ([]byte, error) {
	tasks, err := s.store.Tasks.ListByUser(ctx, user.ID, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}
	rewards, err := s.store.Rewards.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.Ledger.History(ctx, user.ID, 0)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{
		ID:         uuid.NewString(),
		ExportedAt: now.Format(time.RFC3339),
		Tasks:      make([]snapshotTask, 0, len(tasks)),
		Rewards:    make([]snapshotReward, 0, len(rewards)),
		History:    make([]snapshotHistory, 0, len(history)),
	}
	for _, t := range tasks {
		st := snapshotTask{
			Title:        t.Title,
			Description:  t.Description,
			DueDate:      t.DueDate.Format(time.RFC3339),
			Priority:     string(t.Priority),
			Category:     string(t.Category),
			Completed:    t.Completed,
			Points:       t.Points,
			Awarded:      t.AwardedPoints,
			ReminderTime: formatOptional(t.ReminderTime),
			CompletedAt:  formatOptional(t.CompletedAt),
			Subtasks:     make([]snapshotSubtask, 0, len(t.Subtasks)),
		}
		for _, sub := range t.Subtasks {
			st.Subtasks = append(st.Subtasks, snapshotSubtask{Title: sub.Title, Completed: sub.Completed, Points: sub.Points})
		}
		snap.Tasks = append(snap.Tasks, st)
	}
	for _, r := range rewards {
		snap.Rewards = append(snap.Rewards, snapshotReward{
			Title:       r.Title,
			Description: r.Description,
			Cost:        r.Cost,
			Category:    string(r.Category),
			Redeemed:    r.Redeemed,
			RedeemedAt:  formatOptional(r.RedeemedAt),
		})
	}
	// Stored oldest first so replaying the file keeps insertion order.
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		snap.History = append(snap.History, snapshotHistory{Date: h.Date.Format(time.RFC3339Nano), Amount: h.Amount, Reason: h.Reason})
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(&snap)
	default:
		return json.MarshalIndent(&snap, "", "  ")
	}
}

// Import replaces the user's state with the document. A document that does not
// parse, or that holds values the planner would never produce, restores the
// default tasks, rewards and history.
func (s *SnapshotService) Import(ctx context.Context, user *model.User, data []byte, format Format, now time.Time) (*ImportResult, error) {
	log := s.log.WithField("user", user.ID)

	tasks, rewards, history, parseErr := decodeSnapshot(data, format)
	result := &ImportResult{}
	if parseErr != nil {
		log.WithError(parseErr).Warn("snapshot unreadable, restoring defaults")
		tasks, rewards, history = DefaultTasks(now), DefaultRewards(), DefaultHistory(now)
		result.FellBack = true
		result.Cause = parseErr
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Tasks.DeleteAllForUser(ctx, user.ID); err != nil {
			return err
		}
		if err := tx.Rewards.DeleteAllForUser(ctx, user.ID); err != nil {
			return err
		}
		if err := tx.Ledger.DeleteAllForUser(ctx, user.ID); err != nil {
			return err
		}
		return writeState(ctx, tx, user.ID, tasks, rewards, history)
	})
	if err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}

	result.Tasks, result.Rewards, result.History = len(tasks), len(rewards), len(history)
	log.WithFields(logrus.Fields{"tasks": result.Tasks, "rewards": result.Rewards, "fallback": result.FellBack}).Info("snapshot imported")
	return result, nil
}

func decodeSnapshot(data []byte, format Format) ([]model.Task, []model.Reward, []model.PointTransaction, error) {
	var snap Snapshot
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &snap)
	default:
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Tasks == nil && snap.Rewards == nil && snap.History == nil {
		return nil, nil, nil, invalid("snapshot has no tasks, rewards or pointHistory")
	}

	tasks := make([]model.Task, 0, len(snap.Tasks))
	for i, st := range snap.Tasks {
		task, err := st.toModel()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks = append(tasks, task)
	}
	rewards := make([]model.Reward, 0, len(snap.Rewards))
	for i, sr := range snap.Rewards {
		reward, err := sr.toModel()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reward %d: %w", i, err)
		}
		rewards = append(rewards, reward)
	}
	history := make([]model.PointTransaction, 0, len(snap.History))
	for i, sh := range snap.History {
		date, err := parseFlexibleTime(sh.Date)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("history %d: %w", i, err)
		}
		history = append(history, model.PointTransaction{Date: date, Amount: sh.Amount, Reason: sh.Reason})
	}
	return tasks, rewards, history, nil
}

func (st snapshotTask) toModel() (model.Task, error) {
	if strings.TrimSpace(st.Title) == "" {
		return model.Task{}, invalid("title is required")
	}
	due, err := parseFlexibleTime(st.DueDate)
	if err != nil {
		return model.Task{}, err
	}
	priority := model.Priority(st.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return model.Task{}, invalid("unknown priority %q", st.Priority)
	}
	category := model.Category(st.Category)
	if category == "" {
		category = model.CategoryOther
	}
	if !category.Valid() {
		return model.Task{}, invalid("unknown category %q", st.Category)
	}
	reminder, err := parseOptional(st.ReminderTime)
	if err != nil {
		return model.Task{}, err
	}
	completedAt, err := parseOptional(st.CompletedAt)
	if err != nil {
		return model.Task{}, err
	}
	if st.Points < 0 {
		return model.Task{}, invalid("points must not be negative")
	}
	if st.Awarded < 0 || (!st.Completed && st.Awarded != 0) {
		return model.Task{}, invalid("awarded points %d do not match task state", st.Awarded)
	}

	task := model.Task{
		Title:         st.Title,
		Description:   st.Description,
		DueDate:       due,
		Priority:      priority,
		Category:      category,
		Completed:     st.Completed,
		Points:        st.Points,
		AwardedPoints: st.Awarded,
		ReminderTime:  reminder,
		CompletedAt:   completedAt,
	}
	open := 0
	for j, sub := range st.Subtasks {
		if strings.TrimSpace(sub.Title) == "" {
			return model.Task{}, invalid("subtask %d: title is required", j)
		}
		if sub.Points < MinSubtaskPoints || sub.Points > MaxSubtaskPoints {
			return model.Task{}, invalid("subtask %d: points must be between %d and %d", j, MinSubtaskPoints, MaxSubtaskPoints)
		}
		if !sub.Completed {
			open++
		}
		task.Subtasks = append(task.Subtasks, model.SubTask{Title: sub.Title, Completed: sub.Completed, Points: sub.Points})
	}
	// An open task with subtasks must still have one left to do.
	if !st.Completed && len(st.Subtasks) > 0 && open == 0 {
		return model.Task{}, invalid("task is open but all subtasks are done")
	}
	return task, nil
}

func (sr snapshotReward) toModel() (model.Reward, error) {
	if strings.TrimSpace(sr.Title) == "" {
		return model.Reward{}, invalid("title is required")
	}
	category := model.RewardCategory(sr.Category)
	if category == "" {
		category = model.RewardOther
	}
	if !category.Valid() {
		return model.Reward{}, invalid("unknown reward category %q", sr.Category)
	}
	if sr.Cost <= 0 {
		return model.Reward{}, invalid("cost must be positive")
	}
	redeemedAt, err := parseOptional(sr.RedeemedAt)
	if err != nil {
		return model.Reward{}, err
	}
	return model.Reward{
		Title:       sr.Title,
		Description: sr.Description,
		Cost:        sr.Cost,
		Category:    category,
		Redeemed:    sr.Redeemed,
		RedeemedAt:  redeemedAt,
	}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseFlexibleTime accepts the date shapes found in hand-edited or older snapshots.
func parseFlexibleTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("unrecognised date %q", raw)
}

func parseOptional(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseFlexibleTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
