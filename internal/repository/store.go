package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one database handle, so a service
// can run several of them inside a single transaction.
type Store struct {
	db      *gorm.DB
	Users   *UserRepository
	Tasks   *TaskRepository
	Rewards *RewardRepository
	Ledger  *LedgerRepository
	Quests  *QuestRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:      db,
		Users:   NewUserRepository(db),
		Tasks:   NewTaskRepository(db),
		Rewards: NewRewardRepository(db),
		Ledger:  NewLedgerRepository(db),
		Quests:  NewQuestRepository(db),
	}
}

// Transaction runs fn against a Store bound to one database transaction.
// Only the tx store may be used inside fn.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
