package service

import (
	"time"

	"study-garden/internal/model"
)

const day = 24 * time.Hour

// DefaultTasks are written for a new user and restored when a snapshot is unreadable.
func DefaultTasks(now time.Time) []model.Task {
	return []model.Task{
		{
			Title:       "Math Homework",
			Description: "Complete exercises 1-10 for Chapter 5",
			DueDate:     now.Add(day),
			Priority:    model.PriorityHigh,
			Category:    model.CategoryHomework,
			Points:      20,
		},
		{
			Title:       "Study for Chemistry Test",
			Description: "Review chapters 3-5 and practice problems",
			DueDate:     now.Add(2 * day),
			Priority:    model.PriorityHigh,
			Category:    model.CategoryExam,
			Points:      50,
		},
		{
			Title:       "English Essay Draft",
			Description: "Write first draft of analysis essay",
			DueDate:     now.Add(4 * day),
			Priority:    model.PriorityMedium,
			Category:    model.CategoryProject,
			Points:      30,
		},
	}
}

func DefaultRewards() []model.Reward {
	return []model.Reward{
		{
			Title:       "30 minutes of extra screen time",
			Description: "Redeem for 30 minutes of screen time beyond your usual limit",
			Cost:        50,
			Category:    model.RewardFun,
		},
		{
			Title:       "Special snack",
			Description: "Redeem for a special snack of your choice",
			Cost:        75,
			Category:    model.RewardSelfCare,
		},
		{
			Title:       "Study break",
			Description: "Take a 15-minute break during study time without affecting your schedule",
			Cost:        30,
			Category:    model.RewardAcademic,
		},
	}
}

// DefaultHistory starts every new user at 120 points.
func DefaultHistory(now time.Time) []model.PointTransaction {
	return []model.PointTransaction{
		{Date: now.Add(-2 * day), Amount: 30, Reason: "Completed Math Homework"},
		{Date: now.Add(-day), Amount: 50, Reason: "Completed Science Project"},
		{Date: now, Amount: 40, Reason: "Finished Reading Assignment"},
	}
}
