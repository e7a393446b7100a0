package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-garden/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stagePriority
	stageDueDate
	stagePoints
	stageRewardTitle
	stageRewardDescription
	stageRewardCost
	stageRewardCategory
)

type conversationState struct {
	stage  conversationStage
	task   service.TaskInput
	reward service.RewardInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) startNewRewardConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageRewardTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🎁 New reward.\n<b>Step 1:</b> what do you want to treat yourself to?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title can't be empty.", cancelKeyboard())
		}
		state.task.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press Skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.task.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category.", categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			category, ok := parseCategory(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Please pick one of the categories below.", categoryKeyboard())
			}
			state.task.Category = category
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "🚦 How urgent is it?", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			priority, ok := parsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Please pick low, medium or high.", priorityKeyboard())
			}
			state.task.Priority = priority
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2025-11-30</code> (Skip means tomorrow).", skipKeyboard())
	case stageDueDate:
		if isSkipInput(text) {
			state.task.DueDate = b.now().In(b.loc).Add(24 * time.Hour)
		} else {
			due, err := parseDueDate(text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "I can't read that date. Use <code>2025-11-30</code> or Skip.", skipKeyboard())
			}
			state.task.DueDate = due
		}
		state.stage = stagePoints
		return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("💎 How many points is it worth? (Skip means %d)", service.DefaultTaskPoints), skipKeyboard())
	case stagePoints:
		if !isSkipInput(text) {
			points, err := strconv.Atoi(text)
			if err != nil || points < 0 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Points must be a whole number, 0 or more.", skipKeyboard())
			}
			state.task.Points = &points
		}
		err := b.finishTaskCreation(ctx, msg, state.task)
		b.clearConversation(msg.From.ID)
		return err
	case stageRewardTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title can't be empty.", cancelKeyboard())
		}
		state.reward.Title = text
		state.stage = stageRewardDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Describe it (or press Skip).", skipKeyboard())
	case stageRewardDescription:
		if !isSkipInput(text) {
			state.reward.Description = text
		}
		state.stage = stageRewardCost
		return b.sendWithReplyMarkup(msg.Chat.ID, "💎 How many points should it cost?", cancelKeyboard())
	case stageRewardCost:
		cost, err := strconv.Atoi(text)
		if err != nil || cost <= 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The cost must be a positive number.", cancelKeyboard())
		}
		state.reward.Cost = cost
		state.stage = stageRewardCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a reward category.", rewardCategoryKeyboard())
	case stageRewardCategory:
		if !isSkipInput(text) {
			category, ok := parseRewardCategory(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Please pick one of the categories below.", rewardCategoryKeyboard())
			}
			state.reward.Category = category
		}
		err := b.finishRewardCreation(ctx, msg, state.reward)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "The dialog was reset. Try again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, msg *tgbotapi.Message, input service.TaskInput) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.CreateTask(ctx, user, input)
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", categoryLabel(task.Category)))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", priorityLabel(task.Priority)))
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.loc).Format(dateLayout)))
	summary.WriteString(fmt.Sprintf("• <b>Points:</b> %d\n", task.Points))

	if err := b.sendTextWithRemove(msg.Chat.ID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) finishRewardCreation(ctx context.Context, msg *tgbotapi.Message, input service.RewardInput) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	reward, err := b.svc.Rewards.AddReward(ctx, user, input)
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("Could not save the reward: %s", escape(err.Error())))
	}
	text := fmt.Sprintf("🎁 Reward <b>%s</b> added for %d points.", escape(normalizeTitle(reward.Title)), reward.Cost)
	if err := b.sendTextWithRemove(msg.Chat.ID, text); err != nil {
		return err
	}
	return b.sendRewardList(ctx, msg.Chat.ID, user)
}
