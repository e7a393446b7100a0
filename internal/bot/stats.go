package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-garden/internal/service"
)

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	ov, err := b.svc.Analytics.Overview(ctx, user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, formatOverview(ov))
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	format, err := service.ParseFormat(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Formats: /export json or /export yaml")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	data, err := b.svc.Snapshots.Export(ctx, user, format, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("study-garden.%s", strings.ToLower(string(format))),
		Bytes: data,
	})
	doc.Caption = "Your tasks, rewards and points history."
	_, err = b.out.Send(doc)
	return err
}
