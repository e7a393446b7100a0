package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-garden/internal/model"
)

// LedgerRepository stores the append-only point history.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Append(ctx context.Context, entry *model.PointTransaction) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append point transaction: %w", err)
	}
	return nil
}

// Balance sums every transaction of the user.
func (r *LedgerRepository) Balance(ctx context.Context, userID uint) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return total, nil
}

// Totals returns points earned (positive entries) and spent (negative entries, as a positive number).
func (r *LedgerRepository) Totals(ctx context.Context, userID uint) (earned, spent int, err error) {
	var row struct {
		Earned int
		Spent  int
	}
	err = r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS earned, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS spent").
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("sum totals: %w", err)
	}
	return row.Earned, row.Spent, nil
}

// History lists the user's transactions, newest first.
func (r *LedgerRepository) History(ctx context.Context, userID uint, limit int) ([]model.PointTransaction, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("date DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []model.PointTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteAllForUser clears the user's history. Only snapshot import calls it,
// and it always writes a full replacement history in the same transaction.
func (r *LedgerRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.PointTransaction{}).Error; err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
