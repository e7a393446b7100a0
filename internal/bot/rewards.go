package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-garden/internal/model"
	"study-garden/internal/service"
)

const historyLimit = 15

func (b *Bot) handleRewards(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendRewardList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendRewardList(ctx context.Context, chatID int64, user *model.User) error {
	rewards, err := b.svc.Rewards.ListRewards(ctx, user)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	balance, err := b.svc.Rewards.Balance(ctx, user)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if len(rewards) == 0 {
		return b.sendText(chatID, fmt.Sprintf("💰 %d points. No rewards yet, add one with /newreward.", balance))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🎁 <b>Rewards</b> · you have <b>%d points</b>\n\n", balance))
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range rewards {
		builder.WriteString(formatReward(r, balance))
		if !r.Redeemed && balance >= r.Cost {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🎁 %s · %d", shortTitle(r.Title, 22), r.Cost), fmt.Sprintf("%s%d", cbRedeemPrefix, r.ID)),
			))
		}
	}
	if len(rows) == 0 {
		return b.sendText(chatID, strings.TrimSpace(builder.String()))
	}
	return b.sendWithReplyMarkup(chatID, strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleRedeem(ctx context.Context, msg *tgbotapi.Message) error {
	rewardID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give a reward ID: /redeem 3")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	reward, err := b.svc.Rewards.Redeem(ctx, user, rewardID, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, redeemText(reward))
}

func (b *Bot) redeemAndRefresh(ctx context.Context, chatID int64, user *model.User, rewardID uint) error {
	reward, err := b.svc.Rewards.Redeem(ctx, user, rewardID, b.now())
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	if err := b.sendTextWithRemove(chatID, redeemText(reward)); err != nil {
		return err
	}
	return b.sendRewardList(ctx, chatID, user)
}

func redeemText(r *model.Reward) string {
	return fmt.Sprintf("🥳 You redeemed \"%s\" for %d points. Enjoy!", escape(normalizeTitle(r.Title)), r.Cost)
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	balance, err := b.svc.Rewards.Balance(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	level := service.LevelFor(balance)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("💰 <b>%d points</b>\nLevel %d · %d/100 toward level %d", balance, level.Number, level.Progress, level.Number+1))
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	entries, err := b.svc.Rewards.History(ctx, user, historyLimit)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, formatHistory(entries, b.loc))
}
