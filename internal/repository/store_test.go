package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"study-garden/internal/model"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, _ := test.NewNullLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := NewDB(dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func newTestUser(t *testing.T, store *Store, telegramID int64) *model.User {
	t.Helper()
	user, err := store.Users.UpsertFromTelegram(context.Background(), telegramID, "Ada", "", "ada")
	require.NoError(t, err)
	return user
}

func TestUpsertFromTelegram(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Users.UpsertFromTelegram(ctx, 7, "Ada", "", "ada")
	require.NoError(t, err)
	updated, err := store.Users.UpsertFromTelegram(ctx, 7, "Ada", "Lovelace", "ada")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	found, err := store.Users.FindByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", found.LastName)
	assert.Nil(t, found.SeededAt)

	require.NoError(t, store.Users.MarkSeeded(ctx, found, testNow))
	found, err = store.Users.FindByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.NotNil(t, found.SeededAt)

	_, err = store.Users.FindByTelegramID(ctx, 8)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLedgerBalanceAndTotals(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, 1)
	other := newTestUser(t, store, 2)
	ctx := context.Background()

	balance, err := store.Ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	for i, amount := range []int{30, 50, -20, 40} {
		entry := model.PointTransaction{UserID: user.ID, Amount: amount, Date: testNow.Add(time.Duration(i) * time.Hour), Reason: "entry"}
		require.NoError(t, store.Ledger.Append(ctx, &entry))
	}
	require.NoError(t, store.Ledger.Append(ctx, &model.PointTransaction{UserID: other.ID, Amount: 999, Date: testNow}))

	balance, err = store.Ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, balance)

	earned, spent, err := store.Ledger.Totals(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, earned)
	assert.Equal(t, 20, spent)

	history, err := store.Ledger.History(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 40, history[0].Amount)
	assert.Equal(t, -20, history[1].Amount)
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, 1)
	ctx := context.Background()

	task := model.Task{UserID: user.ID, Title: "Essay", DueDate: testNow, Points: 10}
	require.NoError(t, store.Tasks.Create(ctx, &task))

	ok, err := store.Tasks.MarkCompleted(ctx, &task, 10, testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	stale := model.Task{ID: task.ID}
	ok, err = store.Tasks.MarkCompleted(ctx, &stale, 10, testNow)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, stale.Completed)

	found, err := store.Tasks.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, found.Completed)
	assert.Equal(t, 10, found.AwardedPoints)
}

func TestMarkRedeemedOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, 1)
	ctx := context.Background()

	reward := model.Reward{UserID: user.ID, Title: "Snack", Cost: 10, Category: model.RewardFun}
	require.NoError(t, store.Rewards.Create(ctx, &reward))

	ok, err := store.Rewards.MarkRedeemed(ctx, &reward, testNow)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Rewards.MarkRedeemed(ctx, &model.Reward{ID: reward.ID}, testNow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskSubtasksAndFilters(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, 1)
	ctx := context.Background()

	task := model.Task{
		UserID:   user.ID,
		Title:    "Project",
		DueDate:  testNow,
		Category: model.CategoryProject,
		Subtasks: []model.SubTask{{Title: "One", Points: 5}, {Title: "Two", Points: 7}},
	}
	require.NoError(t, store.Tasks.Create(ctx, &task))
	require.NoError(t, store.Tasks.Create(ctx, &model.Task{UserID: user.ID, Title: "Book", DueDate: testNow, Category: model.CategoryReading}))

	found, err := store.Tasks.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	require.Len(t, found.Subtasks, 2)
	assert.Equal(t, "One", found.Subtasks[0].Title)
	assert.Equal(t, model.PriorityMedium, found.Priority)

	require.NoError(t, store.Tasks.SetSubtaskCompleted(ctx, &found.Subtasks[0], true))
	require.NoError(t, store.Tasks.DeleteSubtask(ctx, task.ID, found.Subtasks[1].ID))
	assert.ErrorIs(t, store.Tasks.DeleteSubtask(ctx, task.ID, found.Subtasks[1].ID), gorm.ErrRecordNotFound)

	found, err = store.Tasks.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	require.Len(t, found.Subtasks, 1)
	assert.True(t, found.Subtasks[0].Completed)

	project := model.CategoryProject
	tasks, err := store.Tasks.ListByUser(ctx, user.ID, TaskFilter{Category: &project})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	require.NoError(t, store.Tasks.DeleteAllForUser(ctx, user.ID))
	tasks, err = store.Tasks.ListByUser(ctx, user.ID, TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestQuestRecordRejectsSameDay(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, 1)
	ctx := context.Background()

	require.NoError(t, store.Quests.Record(ctx, user.ID, "steps", "2025-03-10", testNow))
	assert.ErrorIs(t, store.Quests.Record(ctx, user.ID, "steps", "2025-03-10", testNow), ErrDuplicate)
	require.NoError(t, store.Quests.Record(ctx, user.ID, "steps", "2025-03-11", testNow))
	require.NoError(t, store.Quests.Record(ctx, user.ID, "leetcode", "2025-03-10", testNow))

	done, err := store.Quests.CompletedOn(ctx, user.ID, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"steps": true, "leetcode": true}, done)
}

func TestTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, 1)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx *Store) error {
		if err := tx.Ledger.Append(ctx, &model.PointTransaction{UserID: user.ID, Amount: 50, Date: testNow}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	balance, err := store.Ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestEnsureDirForSQLite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureDirForSQLite("file:"+dir+"/nested/app.db?_busy_timeout=5000"))
	assert.DirExists(t, dir+"/nested")
	require.NoError(t, ensureDirForSQLite(":memory:"))
}
