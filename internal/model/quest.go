package model

import "time"

// Quest is a daily bonus challenge; the catalogue is fixed.
type Quest struct {
	Key         string
	Title       string
	Description string
	Points      int
}

// DailyQuests is the catalogue every user gets each day.
var DailyQuests = []Quest{
	{Key: "steps", Title: "2715 Steps More", Description: "Walk 2715 more steps today", Points: 20},
	{Key: "leetcode", Title: "LeetCode Daily Quest", Description: "Solve the daily LeetCode challenge", Points: 30},
	{Key: "meditation", Title: "Meditation", Description: "Complete 10 minutes of meditation", Points: 15},
}

// QuestCompletion marks a quest done for one user on one local day.
type QuestCompletion struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index:idx_quest_day,unique"`
	QuestKey    string `gorm:"index:idx_quest_day,unique"`
	Day         string `gorm:"index:idx_quest_day,unique"` // YYYY-MM-DD
	CompletedAt time.Time
}
