package model

import "time"

// RewardCategory groups rewards in the shop.
type RewardCategory string

const (
	RewardAcademic RewardCategory = "academic"
	RewardFun      RewardCategory = "fun"
	RewardSelfCare RewardCategory = "self-care"
	RewardOther    RewardCategory = "other"
)

var RewardCategories = []RewardCategory{RewardAcademic, RewardFun, RewardSelfCare, RewardOther}

func (c RewardCategory) Valid() bool {
	for _, known := range RewardCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Reward is something a user can buy with points. Redemption is one-way.
type Reward struct {
	ID          uint           `gorm:"primaryKey"`
	UserID      uint           `gorm:"index"`
	Title       string
	Description string
	Cost        int
	Category    RewardCategory `gorm:"default:other"`
	Redeemed    bool           `gorm:"default:false"`
	RedeemedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PointTransaction is an append-only ledger entry. The balance is the sum of Amount.
type PointTransaction struct {
	ID     uint      `gorm:"primaryKey"`
	UserID uint      `gorm:"index"`
	Amount int
	Date   time.Time `gorm:"index"`
	Reason string
}
