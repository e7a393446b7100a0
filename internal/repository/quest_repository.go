package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"study-garden/internal/model"
)

// ErrDuplicate is returned when a unique row already exists.
var ErrDuplicate = errors.New("duplicate record")

// QuestRepository records daily quest completions.
type QuestRepository struct {
	db *gorm.DB
}

func NewQuestRepository(db *gorm.DB) *QuestRepository {
	return &QuestRepository{db: db}
}

// Record stores a completion for the day, or returns ErrDuplicate if the quest
// was already finished that day.
func (r *QuestRepository) Record(ctx context.Context, userID uint, key, day string, at time.Time) error {
	row := model.QuestCompletion{UserID: userID, QuestKey: key, Day: day, CompletedAt: at}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("record quest: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// CompletedOn returns the set of quest keys the user finished on day.
func (r *QuestRepository) CompletedOn(ctx context.Context, userID uint, day string) (map[string]bool, error) {
	var keys []string
	if err := r.db.WithContext(ctx).Model(&model.QuestCompletion{}).
		Where("user_id = ? AND day = ?", userID, day).
		Pluck("quest_key", &keys).Error; err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(keys))
	for _, key := range keys {
		done[key] = true
	}
	return done, nil
}
