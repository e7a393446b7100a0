package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

const (
	DefaultTaskPoints    = 10
	DefaultSubtaskPoints = 5
	MinSubtaskPoints     = 1
	MaxSubtaskPoints     = 20
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title        string
	Description  string
	DueDate      time.Time
	Priority     model.Priority
	Category     model.Category
	Points       *int
	ReminderTime *time.Time
}

// TaskPatch carries a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	Priority     *model.Priority
	Category     *model.Category
	Points       *int
	ReminderTime *time.Time
}

// Completion describes what a state change did to the parent task.
type Completion struct {
	Task      *model.Task
	Completed bool
	Earned    int
}

// TaskService wraps task-related business logic, including point awards.
type TaskService struct {
	store *repository.Store
	log   logrus.FieldLogger
}

func NewTaskService(store *repository.Store, log logrus.FieldLogger) *TaskService {
	return &TaskService{store: store, log: log}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if input.DueDate.IsZero() {
		return nil, invalid("due date is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalid("unknown priority %q", priority)
	}
	category := input.Category
	if category == "" {
		category = model.CategoryOther
	}
	if !category.Valid() {
		return nil, invalid("unknown category %q", category)
	}
	points := DefaultTaskPoints
	if input.Points != nil {
		points = *input.Points
	}
	if points < 0 {
		return nil, invalid("points must not be negative")
	}

	task := model.Task{
		UserID:       user.ID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		DueDate:      input.DueDate,
		Priority:     priority,
		Category:     category,
		Points:       points,
		ReminderTime: input.ReminderTime,
	}
	if err := s.store.Tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "task": task.ID}).Info("task created")
	return &task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, patch TaskPatch) (*model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return nil, ErrTaskCompleted
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, invalid("title is required")
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.DueDate != nil {
		if patch.DueDate.IsZero() {
			return nil, invalid("due date is required")
		}
		task.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, invalid("unknown priority %q", *patch.Priority)
		}
		task.Priority = *patch.Priority
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, invalid("unknown category %q", *patch.Category)
		}
		task.Category = *patch.Category
	}
	if patch.Points != nil {
		if *patch.Points < 0 {
			return nil, invalid("points must not be negative")
		}
		task.Points = *patch.Points
	}
	if patch.ReminderTime != nil {
		task.ReminderTime = patch.ReminderTime
	}

	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task with its subtasks. Points already earned stay in the ledger.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	if err := s.store.Tasks.Delete(ctx, user.ID, taskID); err != nil {
		return taskErr(err)
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "task": taskID}).Info("task deleted")
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.store.Tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, taskErr(err)
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, user *model.User, filter repository.TaskFilter) ([]model.Task, error) {
	return s.store.Tasks.ListByUser(ctx, user.ID, filter)
}

// UpcomingTasks returns open tasks due within the next days, soonest first.
func (s *TaskService) UpcomingTasks(ctx context.Context, user *model.User, days int, now time.Time) ([]model.Task, error) {
	open := false
	tasks, err := s.store.Tasks.ListByUser(ctx, user.ID, repository.TaskFilter{Completed: &open})
	if err != nil {
		return nil, err
	}
	until := now.Add(time.Duration(days) * day)
	var upcoming []model.Task
	for _, task := range tasks {
		if task.DueDate.Before(now) || task.DueDate.After(until) {
			continue
		}
		upcoming = append(upcoming, task)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(upcoming[j].DueDate)
	})
	return upcoming, nil
}

// CompleteTask closes the task and credits its points. A task with subtasks is
// worth only the subtasks finished so far.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint, now time.Time) (*Completion, error) {
	var result *Completion
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, user.ID, taskID)
		if err != nil {
			return taskErr(err)
		}
		if task.Completed {
			return ErrTaskCompleted
		}
		earned, err := completeTask(ctx, tx, task, now)
		if err != nil {
			return err
		}
		result = &Completion{Task: task, Completed: true, Earned: earned}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logCompletion(user, result)
	return result, nil
}

func (s *TaskService) AddSubtask(ctx context.Context, user *model.User, taskID uint, title string, points *int) (*model.SubTask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("subtask title is required")
	}
	value := DefaultSubtaskPoints
	if points != nil {
		value = *points
	}
	if value < MinSubtaskPoints || value > MaxSubtaskPoints {
		return nil, invalid("subtask points must be between %d and %d", MinSubtaskPoints, MaxSubtaskPoints)
	}

	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return nil, ErrTaskCompleted
	}

	sub := model.SubTask{TaskID: task.ID, Title: title, Points: value}
	if err := s.store.Tasks.CreateSubtask(ctx, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// SetSubtaskCompleted toggles a subtask. Finishing the last open subtask
// completes the parent task and credits the points.
func (s *TaskService) SetSubtaskCompleted(ctx context.Context, user *model.User, taskID, subID uint, done bool, now time.Time) (*Completion, error) {
	var result *Completion
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, user.ID, taskID)
		if err != nil {
			return taskErr(err)
		}
		if task.Completed {
			return ErrTaskCompleted
		}
		sub := findSubtask(task, subID)
		if sub == nil {
			return ErrSubtaskNotFound
		}
		if err := tx.Tasks.SetSubtaskCompleted(ctx, sub, done); err != nil {
			return err
		}
		result = &Completion{Task: task}
		if !task.AllSubtasksDone() {
			return nil
		}
		earned, err := completeTask(ctx, tx, task, now)
		if err != nil {
			return err
		}
		result.Completed = true
		result.Earned = earned
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logCompletion(user, result)
	return result, nil
}

// DeleteSubtask removes a subtask. If the ones left are all done, the parent completes.
func (s *TaskService) DeleteSubtask(ctx context.Context, user *model.User, taskID, subID uint, now time.Time) (*Completion, error) {
	var result *Completion
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, user.ID, taskID)
		if err != nil {
			return taskErr(err)
		}
		if task.Completed {
			return ErrTaskCompleted
		}
		if findSubtask(task, subID) == nil {
			return ErrSubtaskNotFound
		}
		if err := tx.Tasks.DeleteSubtask(ctx, task.ID, subID); err != nil {
			return err
		}
		kept := task.Subtasks[:0]
		for _, sub := range task.Subtasks {
			if sub.ID != subID {
				kept = append(kept, sub)
			}
		}
		task.Subtasks = kept

		result = &Completion{Task: task}
		if !task.AllSubtasksDone() {
			return nil
		}
		earned, err := completeTask(ctx, tx, task, now)
		if err != nil {
			return err
		}
		result.Completed = true
		result.Earned = earned
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logCompletion(user, result)
	return result, nil
}

func (s *TaskService) logCompletion(user *model.User, c *Completion) {
	if c == nil || !c.Completed {
		return
	}
	s.log.WithFields(logrus.Fields{
		"user":   user.ID,
		"task":   c.Task.ID,
		"earned": c.Earned,
	}).Info("task completed")
}

// completeTask must run inside a transaction.
func completeTask(ctx context.Context, tx *repository.Store, task *model.Task, now time.Time) (int, error) {
	earned := task.EarnedPoints()
	ok, err := tx.Tasks.MarkCompleted(ctx, task, earned, now)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrTaskCompleted
	}
	if earned > 0 {
		entry := model.PointTransaction{
			UserID: task.UserID,
			Amount: earned,
			Date:   now,
			Reason: fmt.Sprintf("Completed task: %s", task.Title),
		}
		if err := tx.Ledger.Append(ctx, &entry); err != nil {
			return 0, err
		}
	}
	return earned, nil
}

func findSubtask(task *model.Task, subID uint) *model.SubTask {
	for i := range task.Subtasks {
		if task.Subtasks[i].ID == subID {
			return &task.Subtasks[i]
		}
	}
	return nil
}

func taskErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTaskNotFound
	}
	return err
}
