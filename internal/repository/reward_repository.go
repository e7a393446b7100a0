package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"study-garden/internal/model"
)

// RewardRepository handles CRUD for rewards.
type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) Create(ctx context.Context, reward *model.Reward) error {
	if err := r.db.WithContext(ctx).Create(reward).Error; err != nil {
		return fmt.Errorf("create reward: %w", err)
	}
	return nil
}

func (r *RewardRepository) ListByUser(ctx context.Context, userID uint) ([]model.Reward, error) {
	var rewards []model.Reward
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("redeemed ASC, cost ASC, id ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *RewardRepository) FindByID(ctx context.Context, userID, rewardID uint) (*model.Reward, error) {
	var reward model.Reward
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, rewardID).First(&reward).Error; err != nil {
		return nil, err
	}
	return &reward, nil
}

// MarkRedeemed flips an unredeemed reward. It reports false when another
// redemption got there first.
func (r *RewardRepository) MarkRedeemed(ctx context.Context, reward *model.Reward, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Reward{}).
		Where("id = ? AND redeemed = ?", reward.ID, false).
		Updates(map[string]interface{}{"redeemed": true, "redeemed_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("redeem reward: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	reward.Redeemed = true
	reward.RedeemedAt = &at
	return true, nil
}

func (r *RewardRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Reward{}).Error; err != nil {
		return fmt.Errorf("delete rewards: %w", err)
	}
	return nil
}
