package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

const defaultPointsReason = "Completed task"

// RewardInput represents data required to create a reward.
type RewardInput struct {
	Title       string
	Description string
	Cost        int
	Category    model.RewardCategory
}

// RewardService owns the point ledger and reward redemption.
type RewardService struct {
	store *repository.Store
	log   logrus.FieldLogger
}

func NewRewardService(store *repository.Store, log logrus.FieldLogger) *RewardService {
	return &RewardService{store: store, log: log}
}

func (s *RewardService) AddReward(ctx context.Context, user *model.User, input RewardInput) (*model.Reward, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if input.Cost <= 0 {
		return nil, invalid("cost must be positive")
	}
	category := input.Category
	if category == "" {
		category = model.RewardOther
	}
	if !category.Valid() {
		return nil, invalid("unknown reward category %q", category)
	}

	reward := model.Reward{
		UserID:      user.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Cost:        input.Cost,
		Category:    category,
	}
	if err := s.store.Rewards.Create(ctx, &reward); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "reward": reward.ID}).Info("reward added")
	return &reward, nil
}

func (s *RewardService) ListRewards(ctx context.Context, user *model.User) ([]model.Reward, error) {
	return s.store.Rewards.ListByUser(ctx, user.ID)
}

func (s *RewardService) GetReward(ctx context.Context, user *model.User, rewardID uint) (*model.Reward, error) {
	reward, err := s.store.Rewards.FindByID(ctx, user.ID, rewardID)
	if err != nil {
		return nil, rewardErr(err)
	}
	return reward, nil
}

// Redeem spends points on a reward. Either the reward is marked redeemed and
// the cost is debited, or nothing changes.
func (s *RewardService) Redeem(ctx context.Context, user *model.User, rewardID uint, now time.Time) (*model.Reward, error) {
	var redeemed *model.Reward
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		reward, err := tx.Rewards.FindByID(ctx, user.ID, rewardID)
		if err != nil {
			return rewardErr(err)
		}
		if reward.Redeemed {
			return ErrAlreadyRedeemed
		}
		if reward.Cost <= 0 {
			return invalid("reward %d has cost %d", reward.ID, reward.Cost)
		}
		balance, err := tx.Ledger.Balance(ctx, user.ID)
		if err != nil {
			return err
		}
		if balance < reward.Cost {
			return &InsufficientPointsError{Cost: reward.Cost, Balance: balance}
		}
		ok, err := tx.Rewards.MarkRedeemed(ctx, reward, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyRedeemed
		}
		entry := model.PointTransaction{
			UserID: user.ID,
			Amount: -reward.Cost,
			Date:   now,
			Reason: fmt.Sprintf("Redeemed: %s", reward.Title),
		}
		if err := tx.Ledger.Append(ctx, &entry); err != nil {
			return err
		}
		redeemed = reward
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "reward": redeemed.ID, "cost": redeemed.Cost}).Info("reward redeemed")
	return redeemed, nil
}

// AddPoints appends a manual ledger entry. An empty reason becomes "Completed task".
func (s *RewardService) AddPoints(ctx context.Context, user *model.User, amount int, reason string, now time.Time) (*model.PointTransaction, error) {
	if amount == 0 {
		return nil, invalid("amount must not be zero")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultPointsReason
	}
	entry := model.PointTransaction{UserID: user.ID, Amount: amount, Date: now, Reason: reason}
	if err := s.store.Ledger.Append(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *RewardService) Balance(ctx context.Context, user *model.User) (int, error) {
	return s.store.Ledger.Balance(ctx, user.ID)
}

// History returns the point log newest first; limit <= 0 returns everything.
func (s *RewardService) History(ctx context.Context, user *model.User, limit int) ([]model.PointTransaction, error) {
	return s.store.Ledger.History(ctx, user.ID, limit)
}

func rewardErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRewardNotFound
	}
	return err
}
