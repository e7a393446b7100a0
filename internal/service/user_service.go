package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

// Profile is the Telegram identity of whoever is talking to the bot.
type Profile struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
}

// UserService registers users and gives new ones the starter tasks, rewards and points.
type UserService struct {
	store *repository.Store
	log   logrus.FieldLogger
}

func NewUserService(store *repository.Store, log logrus.FieldLogger) *UserService {
	return &UserService{store: store, log: log}
}

// Ensure upserts the user and seeds defaults the first time they are seen.
func (s *UserService) Ensure(ctx context.Context, p Profile, now time.Time) (*model.User, error) {
	user, err := s.store.Users.UpsertFromTelegram(ctx, p.TelegramID, p.FirstName, p.LastName, p.Username)
	if err != nil {
		return nil, err
	}
	if user.SeededAt != nil {
		return user, nil
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := writeState(ctx, tx, user.ID, DefaultTasks(now), DefaultRewards(), DefaultHistory(now)); err != nil {
			return err
		}
		return tx.Users.MarkSeeded(ctx, user, now)
	})
	if err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	s.log.WithField("user", user.ID).Info("seeded new user with default tasks and rewards")
	return user, nil
}

func (s *UserService) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.store.Users.FindByTelegramID(ctx, telegramID)
}

func (s *UserService) ListAll(ctx context.Context) ([]model.User, error) {
	return s.store.Users.ListAll(ctx)
}

// writeState inserts tasks, rewards and history for a user. IDs are reassigned.
func writeState(ctx context.Context, tx *repository.Store, userID uint, tasks []model.Task, rewards []model.Reward, history []model.PointTransaction) error {
	for i := range tasks {
		task := tasks[i]
		task.ID = 0
		task.UserID = userID
		for j := range task.Subtasks {
			task.Subtasks[j].ID = 0
			task.Subtasks[j].TaskID = 0
		}
		if err := tx.Tasks.Create(ctx, &task); err != nil {
			return err
		}
	}
	for i := range rewards {
		reward := rewards[i]
		reward.ID = 0
		reward.UserID = userID
		if err := tx.Rewards.Create(ctx, &reward); err != nil {
			return err
		}
	}
	for i := range history {
		entry := history[i]
		entry.ID = 0
		entry.UserID = userID
		if err := tx.Ledger.Append(ctx, &entry); err != nil {
			return err
		}
	}
	return nil
}
