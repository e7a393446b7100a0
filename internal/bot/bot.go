package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"study-garden/internal/config"
	"study-garden/internal/model"
	"study-garden/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbOpenPrefix     = "open:"
	cbSubtaskPrefix  = "sub:"
	cbRedeemPrefix   = "redeem:"
	cbQuestPrefix    = "quest:"
)

// sender is the part of the Telegram API the handlers talk to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services groups everything the bot delegates to.
type Services struct {
	Users     *service.UserService
	Tasks     *service.TaskService
	Rewards   *service.RewardService
	Quests    *service.QuestService
	Analytics *service.AnalyticsService
	Snapshots *service.SnapshotService
	Reminders *service.ReminderService
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
	actionRedeem
)

type confirmationRequest struct {
	id     uint
	action confirmationAction
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	out           sender
	svc           Services
	config        *config.Config
	loc           *time.Location
	log           logrus.FieldLogger
	now           func() time.Time
	onInterval    func(time.Duration) error
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services, cfg *config.Config, loc *time.Location, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.WithField("account", api.Self.UserName).Info("bot authorized")

	b := newBot(api, svc, cfg, loc, log)
	b.api = api
	return b, nil
}

func newBot(out sender, svc Services, cfg *config.Config, loc *time.Location, log logrus.FieldLogger) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		out:           out,
		svc:           svc,
		config:        cfg,
		loc:           loc,
		log:           log,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// OnIntervalChange lets the scheduler follow /interval updates.
func (b *Bot) OnIntervalChange(fn func(time.Duration) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onInterval = fn
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	log := b.log.WithField("update", update.UpdateID)
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.WithError(err).Error("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.WithError(err).Error("handle message")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled. Pick something from the menu.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"from": msg.From.ID, "command": msg.Command()}).Debug("command received")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't catch that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "done":
		return b.handleListDone(ctx, msg)
	case "upcoming":
		return b.handleUpcoming(ctx, msg)
	case "task":
		return b.handleTaskDetail(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "points":
		return b.handleSetPoints(ctx, msg)
	case "subtask":
		return b.handleAddSubtask(ctx, msg)
	case "check":
		return b.handleCheckSubtask(ctx, msg, true)
	case "uncheck":
		return b.handleCheckSubtask(ctx, msg, false)
	case "rmsubtask":
		return b.handleDeleteSubtask(ctx, msg)
	case "rewards":
		return b.handleRewards(ctx, msg)
	case "newreward":
		return b.startNewRewardConversation(ctx, msg)
	case "redeem":
		return b.handleRedeem(ctx, msg)
	case "balance":
		return b.handleBalance(ctx, msg)
	case "history":
		return b.handleHistory(ctx, msg)
	case "quests":
		return b.handleQuests(ctx, msg)
	case "quest":
		return b.handleCompleteQuest(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "export":
		return b.handleExport(ctx, msg)
	case "interval":
		return b.handleInterval(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. Have a look at /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	balance, err := b.svc.Rewards.Balance(ctx, user)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}

	text := fmt.Sprintf(
		"🌱 Hi, %s!\n<b>Finish tasks, grow points, treat yourself.</b>\nYou have <b>%d points</b>.\n\n"+
			"• /newtask — add a task\n"+
			"• /tasks — open tasks\n"+
			"• /rewards — spend your points\n"+
			"• /quests — today's bonus quests\n"+
			"• /stats — your progress\n"+
			"• /help — every command",
		escape(name), balance,
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"<b>Tasks</b>\n" +
		"• /newtask — add a task step by step\n" +
		"• /tasks, /done — open and finished tasks\n" +
		"• /upcoming [days] — due soon (default 7)\n" +
		"• /task &lt;id&gt; — details and subtasks\n" +
		"• /complete &lt;id&gt; — finish a task and collect points\n" +
		"• /delete &lt;id&gt; — remove a task\n" +
		"• /points &lt;id&gt; &lt;n&gt; — change what a task is worth\n" +
		"• /subtask &lt;id&gt; &lt;title&gt; [+pts] — add a subtask (1–20 pts)\n" +
		"• /check, /uncheck &lt;id&gt; &lt;sub&gt; — tick a subtask\n" +
		"• /rmsubtask &lt;id&gt; &lt;sub&gt; — remove a subtask\n" +
		"<b>Points</b>\n" +
		"• /rewards, /newreward, /redeem &lt;id&gt;\n" +
		"• /balance, /history\n" +
		"• /quests, /quest &lt;key&gt; — daily quests\n" +
		"<b>Other</b>\n" +
		"• /stats — analytics\n" +
		"• /export [yaml] — download your data\n" +
		"• /interval &lt;hours&gt; — report frequency\n" +
		"• /report — send the report now\n" +
		"• /cancel — stop the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.svc.Reminders.DailySummary(ctx, *user, b.now().In(b.loc))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.svc.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now().In(b.loc)
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		log := b.log.WithField("user", user.ID)
		text, err := b.svc.Reminders.DailySummary(ctx, user, now)
		if err != nil {
			log.WithError(err).Warn("build summary")
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.WithError(err).Warn("send summary")
		}
	}
	return nil
}

// SendQuestReset tells every user that a new quest day has started.
func (b *Bot) SendQuestReset(ctx context.Context) error {
	users, err := b.svc.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now().In(b.loc)
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		statuses, err := b.svc.Quests.Today(ctx, &user, now)
		if err != nil {
			b.log.WithError(err).WithField("user", user.ID).Warn("load quests")
			continue
		}
		text := "🌅 New day, new quests!\n\n" + formatQuests(statuses, b.svc.Quests.UntilReset(now))
		if err := b.sendWithReplyMarkup(user.TelegramID, text, questKeyboard(statuses)); err != nil {
			b.log.WithError(err).WithField("user", user.ID).Warn("send quest reset")
		}
	}
	return nil
}

func (b *Bot) handleInterval(msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		current := "5 hours"
		b.mu.Lock()
		if b.config != nil && b.config.ReportInterval > 0 {
			current = fmt.Sprintf("%d hours", int(b.config.ReportInterval.Hours()))
		}
		b.mu.Unlock()
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Reports are sent every %s. Change it with e.g. /interval 4", current))
	}
	hours, err := strconv.Atoi(args)
	if err != nil || hours <= 0 {
		return b.sendText(msg.Chat.ID, "The interval must be a positive number of hours, e.g. /interval 6")
	}
	interval := time.Duration(hours) * time.Hour
	b.mu.Lock()
	if b.config != nil {
		b.config.ReportInterval = interval
	}
	onInterval := b.onInterval
	b.mu.Unlock()
	if onInterval != nil {
		if err := onInterval(interval); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not reschedule reports: %s", escape(err.Error())))
		}
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("Reports will now arrive every %d hours.", hours))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelRewards):
		return true, b.handleRewards(ctx, msg)
	case strings.ToLower(menuLabelQuests):
		return true, b.handleQuests(ctx, msg)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Warn("callback ack")
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.WithFields(logrus.Fields{"from": cb.From.ID, "data": data}).Debug("callback received")

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		id, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, confirmationRequest{id: id, action: actionComplete})
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, confirmationRequest{id: id, action: actionDelete})
	case strings.HasPrefix(data, cbRedeemPrefix):
		id, err := parseTaskID(data, cbRedeemPrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, confirmationRequest{id: id, action: actionRedeem})
	case strings.HasPrefix(data, cbOpenPrefix):
		id, err := parseTaskID(data, cbOpenPrefix)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.sendTaskDetail(ctx, chatID, user, id)
	case strings.HasPrefix(data, cbSubtaskPrefix):
		taskID, subID, err := parsePair(strings.TrimPrefix(data, cbSubtaskPrefix))
		if err != nil {
			return nil
		}
		return b.toggleSubtask(ctx, chatID, cb.From, taskID, subID)
	case strings.HasPrefix(data, cbQuestPrefix):
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.completeQuest(ctx, chatID, user, strings.TrimPrefix(data, cbQuestPrefix))
	default:
		return nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.svc.Users.Ensure(ctx, service.Profile{
		TelegramID: from.ID,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Username:   from.UserName,
	}, b.now())
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.out.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
