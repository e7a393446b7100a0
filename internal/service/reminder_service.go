package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	store  *repository.Store
	quests *QuestService
}

func NewReminderService(store *repository.Store, quests *QuestService) *ReminderService {
	return &ReminderService{store: store, quests: quests}
}

func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	open := false
	pending, err := s.store.Tasks.ListByUser(ctx, user.ID, repository.TaskFilter{Completed: &open})
	if err != nil {
		return "", err
	}
	quests, err := s.quests.Today(ctx, &user, now)
	if err != nil {
		return "", err
	}
	balance, err := s.store.Ledger.Balance(ctx, user.ID)
	if err != nil {
		return "", err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DueDate.Before(pending[j].DueDate)
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 02 Jan 2006")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— nothing open, enjoy the garden\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatTask(task, now))
		}
	}

	builder.WriteString(fmt.Sprintf("\n🏆 <b>Daily quests</b> (%d%%, resets in %s)\n", Progress(quests), FormatCountdown(s.quests.UntilReset(now))))
	for _, q := range quests {
		mark := "⬜"
		if q.Completed {
			mark = "✅"
		}
		builder.WriteString(fmt.Sprintf("%s %s <i>+%d</i>\n", mark, html.EscapeString(q.Title), q.Points))
	}

	level := LevelFor(balance)
	builder.WriteString(fmt.Sprintf("\n💰 <b>%d points</b> · level %d (%d/%d)\n", balance, level.Number, balance, level.Next))

	return strings.TrimSpace(builder.String()), nil
}

// DueIcon marks a task as overdue, due within two days, or fine.
func DueIcon(task model.Task, now time.Time) string {
	switch {
	case task.Completed:
		return "✅"
	case now.After(task.DueDate):
		return "⚠️"
	case task.DueDate.Sub(now) <= 48*time.Hour:
		return "⏳"
	default:
		return "🟢"
	}
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s <i>(%s, %s)</i>", DueIcon(task, now), title, task.Category, task.Priority))

	d := task.DueDate.In(now.Location())
	if now.After(d) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", d.Format("2006-01-02")))
	} else {
		daysLeft := int(d.Sub(now).Hours()/24) + 1
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d d left", d.Format("2006-01-02"), daysLeft))
	}

	if len(task.Subtasks) > 0 {
		done := 0
		for _, sub := range task.Subtasks {
			if sub.Completed {
				done++
			}
		}
		sb.WriteString(fmt.Sprintf("\n   ☑️ %d/%d subtasks", done, len(task.Subtasks)))
	}

	sb.WriteByte('\n')
	return sb.String()
}
