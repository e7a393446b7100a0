package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-garden/internal/model"
	"study-garden/internal/service"
)

func questKeyboard(statuses []service.QuestStatus) interface{} {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, st := range statuses {
		if st.Completed {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Complete %s (+%d)", st.Title, st.Points), cbQuestPrefix+st.Key),
		))
	}
	if len(rows) == 0 {
		return mainMenuKeyboard()
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleQuests(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendQuests(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendQuests(ctx context.Context, chatID int64, user *model.User) error {
	now := b.now()
	statuses, err := b.svc.Quests.Today(ctx, user, now)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendWithReplyMarkup(chatID, formatQuests(statuses, b.svc.Quests.UntilReset(now)), questKeyboard(statuses))
}

func (b *Bot) handleCompleteQuest(ctx context.Context, msg *tgbotapi.Message) error {
	key := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if key == "" {
		keys := make([]string, 0, len(model.DailyQuests))
		for _, q := range model.DailyQuests {
			keys = append(keys, q.Key)
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Which quest? /quest %s", strings.Join(keys, "|")))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.completeQuest(ctx, msg.Chat.ID, user, key)
}

func (b *Bot) completeQuest(ctx context.Context, chatID int64, user *model.User, key string) error {
	quest, err := b.svc.Quests.Complete(ctx, user, key, b.now())
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if err := b.sendText(chatID, fmt.Sprintf("🏆 Quest completed! You earned <b>%d points</b> for %s.", quest.Points, escape(quest.Title))); err != nil {
		return err
	}
	return b.sendQuests(ctx, chatID, user)
}
