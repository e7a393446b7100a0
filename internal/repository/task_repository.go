package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"study-garden/internal/model"
)

// TaskFilter narrows ListByUser; nil fields match everything.
type TaskFilter struct {
	Completed *bool
	Category  *model.Category
}

// TaskRepository handles CRUD for tasks and their subtasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) withSubtasks(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Subtasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint, filter TaskFilter) ([]model.Task, error) {
	query := r.withSubtasks(ctx).Where("user_id = ?", userID)
	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	var tasks []model.Task
	if err := query.Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.withSubtasks(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Update writes the editable task fields. Completion state is left alone.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	err := r.db.WithContext(ctx).Model(task).
		Select("title", "description", "due_date", "priority", "category", "points", "reminder_time").
		Updates(task).Error
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// MarkCompleted flips an open task to completed and stores the award. It
// reports false when the task was already completed, so an award is never
// written twice.
func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, awarded int, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed = ?", task.ID, false).
		Updates(map[string]interface{}{
			"completed":      true,
			"awarded_points": awarded,
			"completed_at":   completedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	task.Completed = true
	task.AwardedPoints = awarded
	task.CompletedAt = &completedAt
	return true, nil
}

// Delete removes a task and its subtasks.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	db := r.db.WithContext(ctx)
	res := db.Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	if err := db.Where("task_id = ?", taskID).Delete(&model.SubTask{}).Error; err != nil {
		return fmt.Errorf("delete subtasks: %w", err)
	}
	return nil
}

// DeleteAllForUser wipes every task of the user, used when a snapshot replaces state.
func (r *TaskRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id IN (?)", db.Model(&model.Task{}).Select("id").Where("user_id = ?", userID)).
		Delete(&model.SubTask{}).Error; err != nil {
		return fmt.Errorf("delete subtasks: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

func (r *TaskRepository) CreateSubtask(ctx context.Context, sub *model.SubTask) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subtask: %w", err)
	}
	return nil
}

func (r *TaskRepository) SetSubtaskCompleted(ctx context.Context, sub *model.SubTask, done bool) error {
	if err := r.db.WithContext(ctx).Model(sub).Update("completed", done).Error; err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	sub.Completed = done
	return nil
}

func (r *TaskRepository) DeleteSubtask(ctx context.Context, taskID, subID uint) error {
	res := r.db.WithContext(ctx).Where("task_id = ? AND id = ?", taskID, subID).Delete(&model.SubTask{})
	if res.Error != nil {
		return fmt.Errorf("delete subtask: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
