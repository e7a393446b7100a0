package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store *repository.Store
	log   *logrus.Logger
	hook  *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, hook := test.NewNullLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := repository.NewDB(dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &fixture{store: repository.NewStore(db), log: log, hook: hook}
}

// newUser creates a bare user with no seeded data.
func (f *fixture) newUser(t *testing.T, telegramID int64) *model.User {
	t.Helper()
	user, err := f.store.Users.UpsertFromTelegram(context.Background(), telegramID, "Ada", "", "ada")
	require.NoError(t, err)
	return user
}

func (f *fixture) balance(t *testing.T, user *model.User) int {
	t.Helper()
	balance, err := f.store.Ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	return balance
}

// historySum adds up the ledger by hand so tests can compare it to Balance.
func (f *fixture) historySum(t *testing.T, user *model.User) int {
	t.Helper()
	entries, err := f.store.Ledger.History(context.Background(), user.ID, 0)
	require.NoError(t, err)
	sum := 0
	for _, e := range entries {
		sum += e.Amount
	}
	return sum
}

func intPtr(v int) *int { return &v }
