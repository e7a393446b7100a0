package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-garden/internal/model"
	"study-garden/internal/repository"
	"study-garden/internal/service"
)

// userMessage turns a service error into something a person can act on.
func userMessage(err error) string {
	var short *service.InsufficientPointsError
	switch {
	case errors.As(err, &short):
		return fmt.Sprintf("Not enough points: you need %d more.", short.Missing())
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found."
	case errors.Is(err, service.ErrTaskCompleted):
		return "That task is already completed."
	case errors.Is(err, service.ErrSubtaskNotFound):
		return "Subtask not found."
	case errors.Is(err, service.ErrRewardNotFound):
		return "Reward not found."
	case errors.Is(err, service.ErrAlreadyRedeemed):
		return "You already redeemed that reward."
	case errors.Is(err, service.ErrQuestNotFound):
		return "There is no such quest today."
	case errors.Is(err, service.ErrQuestDone):
		return "You already finished that quest today. It resets at midnight."
	case errors.Is(err, service.ErrInvalidInput):
		return escape(normalizeTitle(err.Error()))
	default:
		return fmt.Sprintf("Error: %s", escape(err.Error()))
	}
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleListDone(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	done := true
	tasks, err := b.svc.Tasks.ListTasks(ctx, user, repository.TaskFilter{Completed: &done})
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No completed tasks yet.")
	}
	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString("✅ <b>Completed tasks</b>\n\n")
	for _, task := range tasks {
		builder.WriteString(formatTaskLine(task, now))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleUpcoming(ctx context.Context, msg *tgbotapi.Message) error {
	days := 7
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return b.sendText(msg.Chat.ID, "Give a positive number of days, e.g. /upcoming 3")
		}
		days = n
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	now := b.now().In(b.loc)
	tasks, err := b.svc.Tasks.UpcomingTasks(ctx, user, days, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Nothing due in the next %d days.", days))
	}
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📅 <b>Due in the next %d days</b>\n\n", days))
	for _, task := range tasks {
		builder.WriteString(formatTaskLine(task, now))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	open := false
	tasks, err := b.svc.Tasks.ListTasks(ctx, user, repository.TaskFilter{Completed: &open})
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}

	now := b.now().In(b.loc)
	groups := make(map[model.Category][]model.Task)
	for _, task := range tasks {
		groups[task.Category] = append(groups[task.Category], task)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap a task to open it, or ✅ to finish it.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, category := range model.Categories {
		section := groups[category]
		if len(section) == 0 {
			continue
		}
		sortByDue(section)
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", categoryLabel(category)))
		for _, task := range section {
			builder.WriteString(formatTaskLine(task, now))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("#%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbOpenPrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("✅", fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
		builder.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.out.Send(msg)
	return err
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func (b *Bot) handleTaskDetail(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give a task ID: /task 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskDetail(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) sendTaskDetail(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.svc.Tasks.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	text := formatTaskDetail(*task, b.now().In(b.loc))
	if task.Completed {
		return b.sendText(chatID, text)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, sub := range task.Subtasks {
		mark := "⬜"
		if sub.Completed {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", mark, shortTitle(sub.Title, 28)), fmt.Sprintf("%s%d:%d", cbSubtaskPrefix, task.ID, sub.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Complete (+%d)", task.EarnedPoints()), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
	))
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give a task ID: /complete 12")
	}
	taskID, err := parseID(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	result, err := b.svc.Tasks.CompleteTask(ctx, user, taskID, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, completionText(result))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give a task ID: /delete 12")
	}
	taskID, err := parseID(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if err := b.svc.Tasks.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleSetPoints(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, value, err := parsePair(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /points &lt;task id&gt; &lt;points&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	points := int(value)
	task, err := b.svc.Tasks.UpdateTask(ctx, user, taskID, service.TaskPatch{Points: &points})
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("💎 \"%s\" is now worth %d points.", escape(normalizeTitle(task.Title)), task.Points))
}

func (b *Bot) handleAddSubtask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, title, points, err := parseSubtaskArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /subtask &lt;task id&gt; &lt;title&gt; [+points]")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if _, err := b.svc.Tasks.AddSubtask(ctx, user, taskID, title, points); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendTaskDetail(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handleCheckSubtask(ctx context.Context, msg *tgbotapi.Message, done bool) error {
	taskID, subID, err := parsePair(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /check &lt;task id&gt; &lt;subtask id&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	result, err := b.svc.Tasks.SetSubtaskCompleted(ctx, user, taskID, subID, done, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if result.Completed {
		return b.sendText(msg.Chat.ID, completionText(result))
	}
	return b.sendTaskDetail(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handleDeleteSubtask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, subID, err := parsePair(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /rmsubtask &lt;task id&gt; &lt;subtask id&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	result, err := b.svc.Tasks.DeleteSubtask(ctx, user, taskID, subID, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if result.Completed {
		return b.sendText(msg.Chat.ID, completionText(result))
	}
	return b.sendTaskDetail(ctx, msg.Chat.ID, user, taskID)
}

// toggleSubtask flips a subtask from its inline button.
func (b *Bot) toggleSubtask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID, subID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	done := true
	for _, sub := range task.Subtasks {
		if sub.ID == subID {
			done = !sub.Completed
		}
	}
	result, err := b.svc.Tasks.SetSubtaskCompleted(ctx, user, taskID, subID, done, b.now())
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if result.Completed {
		return b.sendText(chatID, completionText(result))
	}
	return b.sendTaskDetail(ctx, chatID, user, taskID)
}

func completionText(c *service.Completion) string {
	title := escape(normalizeTitle(c.Task.Title))
	if c.Earned == 0 {
		return fmt.Sprintf("✅ \"%s\" completed. No points this time.", title)
	}
	return fmt.Sprintf("🎉 \"%s\" completed! You earned <b>%d points</b>.", title, c.Earned)
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, req confirmationRequest) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	var text string
	switch req.action {
	case actionRedeem:
		reward, err := b.svc.Rewards.GetReward(ctx, user, req.id)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		if reward.Redeemed {
			return b.sendText(chatID, userMessage(service.ErrAlreadyRedeemed))
		}
		text = fmt.Sprintf("Spend %d points on \"%s\"?", reward.Cost, escape(normalizeTitle(reward.Title)))
	default:
		task, err := b.svc.Tasks.GetTask(ctx, user, req.id)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		if req.action == actionDelete {
			text = fmt.Sprintf("Delete task \"%s\" (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
		} else {
			if task.Completed {
				return b.sendText(chatID, userMessage(service.ErrTaskCompleted))
			}
			text = fmt.Sprintf("Mark \"%s\" (#%d) as completed for %d points?", escape(normalizeTitle(task.Title)), task.ID, task.EarnedPoints())
		}
	}

	b.clearConversation(from.ID)
	b.setConfirmation(from.ID, req)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		switch req.action {
		case actionDelete:
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, user, req.id)
		case actionRedeem:
			return b.redeemAndRefresh(ctx, msg.Chat.ID, user, req.id)
		default:
			return b.completeTaskAndRefresh(ctx, msg.Chat.ID, user, req.id)
		}
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Please confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	result, err := b.svc.Tasks.CompleteTask(ctx, user, taskID, b.now())
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	if err := b.sendTextWithRemove(chatID, completionText(result)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.svc.Tasks.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	if err := b.svc.Tasks.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}
