package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-garden/internal/model"
)

func TestAddRewardValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewRewardService(f.store, f.log)
	user := f.newUser(t, 1)
	ctx := context.Background()

	_, err := svc.AddReward(ctx, user, RewardInput{Title: "", Cost: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddReward(ctx, user, RewardInput{Title: "Movie", Cost: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddReward(ctx, user, RewardInput{Title: "Movie", Cost: 10, Category: "travel"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	reward, err := svc.AddReward(ctx, user, RewardInput{Title: "Movie", Cost: 10})
	require.NoError(t, err)
	assert.Equal(t, model.RewardOther, reward.Category)
	assert.False(t, reward.Redeemed)
}

func TestRedeemInsufficientPointsChangesNothing(t *testing.T) {
	f := newFixture(t)
	svc := NewRewardService(f.store, f.log)
	user := f.newUser(t, 1)
	ctx := context.Background()

	_, err := svc.AddPoints(ctx, user, 40, "", testNow)
	require.NoError(t, err)
	reward, err := svc.AddReward(ctx, user, RewardInput{Title: "Concert", Cost: 100})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, user, reward.ID, testNow)
	require.ErrorIs(t, err, ErrInsufficientPoints)

	var short *InsufficientPointsError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 60, short.Missing())

	assert.Equal(t, 40, f.balance(t, user))
	stored, err := svc.GetReward(ctx, user, reward.ID)
	require.NoError(t, err)
	assert.False(t, stored.Redeemed)
	assert.Nil(t, stored.RedeemedAt)
}

func TestRedeemDebitsOnce(t *testing.T) {
	f := newFixture(t)
	svc := NewRewardService(f.store, f.log)
	user := f.newUser(t, 1)
	ctx := context.Background()

	_, err := svc.AddPoints(ctx, user, 120, "Starter", testNow)
	require.NoError(t, err)
	reward, err := svc.AddReward(ctx, user, RewardInput{Title: "Study break", Cost: 30, Category: model.RewardAcademic})
	require.NoError(t, err)

	redeemed, err := svc.Redeem(ctx, user, reward.ID, testNow)
	require.NoError(t, err)
	assert.True(t, redeemed.Redeemed)
	assert.Equal(t, 90, f.balance(t, user))

	_, err = svc.Redeem(ctx, user, reward.ID, testNow)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	assert.Equal(t, 90, f.balance(t, user))

	history, err := svc.History(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, -30, history[0].Amount)
	assert.Equal(t, "Redeemed: Study break", history[0].Reason)
}

func TestRedeemUnknownReward(t *testing.T) {
	f := newFixture(t)
	svc := NewRewardService(f.store, f.log)
	owner := f.newUser(t, 1)
	other := f.newUser(t, 2)
	ctx := context.Background()

	reward, err := svc.AddReward(ctx, owner, RewardInput{Title: "Snack", Cost: 5})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, owner, 999, testNow)
	assert.ErrorIs(t, err, ErrRewardNotFound)
	_, err = svc.Redeem(ctx, other, reward.ID, testNow)
	assert.ErrorIs(t, err, ErrRewardNotFound)
}

func TestAddPoints(t *testing.T) {
	f := newFixture(t)
	svc := NewRewardService(f.store, f.log)
	user := f.newUser(t, 1)
	ctx := context.Background()

	_, err := svc.AddPoints(ctx, user, 0, "nothing", testNow)
	assert.ErrorIs(t, err, ErrInvalidInput)

	entry, err := svc.AddPoints(ctx, user, 25, "  ", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Completed task", entry.Reason)

	_, err = svc.AddPoints(ctx, user, -5, "Correction", testNow.Add(day))
	require.NoError(t, err)

	history, err := svc.History(ctx, user, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Correction", history[0].Reason)
}

func TestBalanceEqualsLedgerSum(t *testing.T) {
	f := newFixture(t)
	rewards := NewRewardService(f.store, f.log)
	tasks := NewTaskService(f.store, f.log)
	quests := NewQuestService(f.store, nil, f.log)
	user := f.newUser(t, 1)
	ctx := context.Background()

	check := func(step string) {
		balance, err := rewards.Balance(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, f.historySum(t, user), balance, step)
	}

	_, err := rewards.AddPoints(ctx, user, 50, "", testNow)
	require.NoError(t, err)
	check("manual points")

	task, err := tasks.CreateTask(ctx, user, TaskInput{Title: "Essay", DueDate: testNow.Add(day), Points: intPtr(35)})
	require.NoError(t, err)
	_, err = tasks.CompleteTask(ctx, user, task.ID, testNow)
	require.NoError(t, err)
	check("task completed")

	_, err = quests.Complete(ctx, user, "leetcode", testNow)
	require.NoError(t, err)
	check("quest completed")

	reward, err := rewards.AddReward(ctx, user, RewardInput{Title: "Game night", Cost: 100})
	require.NoError(t, err)
	_, err = rewards.Redeem(ctx, user, reward.ID, testNow)
	require.NoError(t, err)
	check("reward redeemed")

	pricey, err := rewards.AddReward(ctx, user, RewardInput{Title: "Trip", Cost: 1000})
	require.NoError(t, err)
	_, err = rewards.Redeem(ctx, user, pricey.ID, testNow)
	require.Error(t, err)
	check("failed redemption")

	balance, err := rewards.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)
}

func TestRedeemRejectsNonPositiveCost(t *testing.T) {
	f := newFixture(t)
	svc := NewRewardService(f.store, f.log)
	user := f.newUser(t, 1)
	ctx := context.Background()

	reward := model.Reward{UserID: user.ID, Title: "Free", Cost: -25, Category: model.RewardOther}
	require.NoError(t, f.store.Rewards.Create(ctx, &reward))

	_, err := svc.Redeem(ctx, user, reward.ID, testNow)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, f.balance(t, user))

	stored, err := f.store.Rewards.FindByID(ctx, user.ID, reward.ID)
	require.NoError(t, err)
	assert.False(t, stored.Redeemed)
}
