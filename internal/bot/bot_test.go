package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-garden/internal/config"
	"study-garden/internal/repository"
	"study-garden/internal/service"
)

const testUserID int64 = 4242

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

// fakeSender records everything the bot would have sent to Telegram.
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

// joined returns every text sent so far as one string.
func (f *fakeSender) joined() string {
	return strings.Join(f.texts(), "\n---\n")
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type harness struct {
	bot *Bot
	out *fakeSender
	svc Services
	cfg *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log, _ := test.NewNullLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := repository.NewStore(db)

	quests := service.NewQuestService(store, time.UTC, log)
	svc := Services{
		Users:     service.NewUserService(store, log),
		Tasks:     service.NewTaskService(store, log),
		Rewards:   service.NewRewardService(store, log),
		Quests:    quests,
		Analytics: service.NewAnalyticsService(store, time.UTC),
		Snapshots: service.NewSnapshotService(store, log),
		Reminders: service.NewReminderService(store, quests),
	}
	cfg := &config.Config{ReportInterval: 5 * time.Hour}
	out := &fakeSender{}
	b := newBot(out, svc, cfg, time.UTC, log)
	b.now = func() time.Time { return testNow }
	return &harness{bot: b, out: out, svc: svc, cfg: cfg}
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: testUserID, FirstName: "Ada"},
		Chat: &tgbotapi.Chat{ID: testUserID, Type: "private"},
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

// say feeds messages to the bot and returns what it sent in reply.
func (h *harness) say(t *testing.T, texts ...string) string {
	t.Helper()
	h.out.reset()
	for _, text := range texts {
		h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: message(text)})
	}
	return h.out.joined()
}

func (h *harness) tap(t *testing.T, data string) string {
	t.Helper()
	h.out.reset()
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUserID, FirstName: "Ada"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testUserID, Type: "private"}},
		Data:    data,
	}
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: cb})
	return h.out.joined()
}

func (h *harness) balance(t *testing.T) int {
	t.Helper()
	user, err := h.svc.Users.FindByTelegramID(context.Background(), testUserID)
	require.NoError(t, err)
	balance, err := h.svc.Rewards.Balance(context.Background(), user)
	require.NoError(t, err)
	return balance
}

func TestStartSeedsNewUser(t *testing.T) {
	h := newHarness(t)

	reply := h.say(t, "/start")
	assert.Contains(t, reply, "Hi, Ada!")
	assert.Contains(t, reply, "You have <b>120 points</b>")

	reply = h.say(t, "/tasks")
	assert.Contains(t, reply, "Math Homework")
	assert.Contains(t, reply, "Study for Chemistry Test")
}

func TestGroupChatsAreIgnored(t *testing.T) {
	h := newHarness(t)
	msg := message("/start")
	msg.Chat.Type = "group"

	h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	assert.Empty(t, h.out.texts())
}

func TestCompleteCommandAwardsOnce(t *testing.T) {
	h := newHarness(t)

	reply := h.say(t, "/complete 1")
	assert.Contains(t, reply, "You earned <b>20 points</b>")

	reply = h.say(t, "/complete 1")
	assert.Contains(t, reply, "That task is already completed.")

	reply = h.say(t, "/balance")
	assert.Contains(t, reply, "<b>140 points</b>")
	assert.Contains(t, reply, "Level 2")

	reply = h.say(t, "/complete abc", "/complete 99")
	assert.Contains(t, reply, "The task ID must be a number.")
	assert.Contains(t, reply, "Task not found.")
}

func TestCompleteViaConfirmation(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	reply := h.tap(t, cbCompletePrefix+"2")
	assert.Contains(t, reply, "as completed for 50 points?")
	assert.Equal(t, 1, h.out.requests)

	reply = h.say(t, "maybe")
	assert.Contains(t, reply, "Please confirm or cancel.")

	reply = h.say(t, btnConfirm)
	assert.Contains(t, reply, "You earned <b>50 points</b>")
	assert.Equal(t, 170, h.balance(t))
}

func TestDeleteViaConfirmationCanBeCancelled(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	h.tap(t, cbDeletePrefix+"3")
	h.say(t, btnCancel)

	reply := h.say(t, "/task 3")
	assert.Contains(t, reply, "English Essay Draft")

	h.tap(t, cbDeletePrefix+"3")
	reply = h.say(t, btnConfirm)
	assert.Contains(t, reply, "deleted")
	reply = h.say(t, "/task 3")
	assert.Contains(t, reply, "Task not found.")
}

func TestNewTaskConversation(t *testing.T) {
	h := newHarness(t)

	reply := h.say(t, "/newtask", "read chapter 3", "skip", "nonsense")
	assert.Contains(t, reply, "Please pick one of the categories below.")

	reply = h.say(t, categoryLabel("reading"), priorityLabel("high"), "2025-03-12", "15")
	assert.Contains(t, reply, "<b>Task saved</b>")
	assert.Contains(t, reply, "<b>Title:</b> Read chapter 3")
	assert.Contains(t, reply, "<b>Category:</b> 📖 Reading")
	assert.Contains(t, reply, "<b>Due:</b> 2025-03-12")
	assert.Contains(t, reply, "<b>Points:</b> 15")
	assert.False(t, h.bot.hasConversation(testUserID))
}

func TestConversationCanBeStopped(t *testing.T) {
	h := newHarness(t)

	reply := h.say(t, "/newtask", btnCancelDialog)
	assert.Contains(t, reply, "Input cancelled")
	assert.False(t, h.bot.hasConversation(testUserID))

	reply = h.say(t, "hello there")
	assert.Contains(t, reply, "I didn't catch that.")
}

func TestSubtaskCompletesParent(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	reply := h.say(t, "/subtask 1 Read the chapter +5")
	assert.Contains(t, reply, "Read the chapter")

	reply = h.say(t, "/check 1 1")
	assert.Contains(t, reply, "You earned <b>5 points</b>")
	assert.Equal(t, 125, h.balance(t))

	reply = h.say(t, "/uncheck 1 1")
	assert.Contains(t, reply, "That task is already completed.")
}

func TestSubtaskToggleButton(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start", "/subtask 2 Chapter 3", "/subtask 2 Chapter 4 +8")

	reply := h.tap(t, cbSubtaskPrefix+"2:1")
	assert.Contains(t, reply, "✅ <code>1</code> Chapter 3")
	assert.Contains(t, reply, "⬜ <code>2</code> Chapter 4")

	reply = h.tap(t, cbSubtaskPrefix+"2:2")
	assert.Contains(t, reply, "You earned <b>13 points</b>")
}

func TestNewRewardAndRedeem(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	reply := h.say(t, "/newreward", "Weekend trip", "skip", "0", "500", rewardCategoryLabel("fun"))
	assert.Contains(t, reply, "The cost must be a positive number.")
	assert.Contains(t, reply, "Reward <b>Weekend trip</b> added for 500 points.")

	reply = h.say(t, "/redeem 4")
	assert.Contains(t, reply, "Not enough points: you need 380 more.")
	assert.Equal(t, 120, h.balance(t))

	reply = h.say(t, "/redeem 3")
	assert.Contains(t, reply, "You redeemed \"Study break\" for 30 points.")
	assert.Equal(t, 90, h.balance(t))

	reply = h.say(t, "/redeem 3")
	assert.Contains(t, reply, "You already redeemed that reward.")

	reply = h.say(t, "/history")
	assert.Contains(t, reply, "<b>-30</b> Redeemed: Study break")
}

func TestRedeemViaButton(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	reply := h.tap(t, cbRedeemPrefix+"1")
	assert.Contains(t, reply, "Spend 50 points on")

	reply = h.say(t, "yes")
	assert.Contains(t, reply, "You redeemed")
	assert.Contains(t, reply, "<b>Rewards</b> · you have <b>70 points</b>")
}

func TestQuestButtons(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	reply := h.say(t, "/quests")
	assert.Contains(t, reply, "resets in 14h 30m")

	reply = h.tap(t, cbQuestPrefix+"steps")
	assert.Contains(t, reply, "You earned <b>20 points</b>")

	reply = h.say(t, "/quest steps")
	assert.Contains(t, reply, "already finished that quest today")

	reply = h.say(t, "/quest juggling")
	assert.Contains(t, reply, "There is no such quest today.")
	assert.Equal(t, 140, h.balance(t))
}

func TestStatsAndUpcoming(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start", "/complete 1")

	reply := h.say(t, "/stats")
	assert.Contains(t, reply, "Tasks: 1/3 done (33%), 2 pending")
	assert.Contains(t, reply, "Earned 140 · spent 0")

	reply = h.say(t, "/upcoming 3")
	assert.Contains(t, reply, "Due in the next 3 days")
	assert.Contains(t, reply, "Study for Chemistry Test")
	assert.NotContains(t, reply, "English Essay Draft")

	reply = h.say(t, "/upcoming 0")
	assert.Contains(t, reply, "Give a positive number of days")
}

func TestExportSendsDocument(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/export yaml")

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	var doc *tgbotapi.DocumentConfig
	for _, c := range h.out.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			doc = &d
		}
	}
	require.NotNil(t, doc)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "study-garden.yaml", file.Name)
	assert.Contains(t, string(file.Bytes), "title: Math Homework")
}

func TestIntervalCommand(t *testing.T) {
	h := newHarness(t)
	var got time.Duration
	h.bot.OnIntervalChange(func(d time.Duration) error {
		got = d
		return nil
	})

	reply := h.say(t, "/interval")
	assert.Contains(t, reply, "every 5 hours")

	reply = h.say(t, "/interval 3")
	assert.Contains(t, reply, "every 3 hours")
	assert.Equal(t, 3*time.Hour, got)
	assert.Equal(t, 3*time.Hour, h.cfg.ReportInterval)

	reply = h.say(t, "/interval -2")
	assert.Contains(t, reply, "positive number of hours")
}

func TestBroadcasts(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")

	h.out.reset()
	require.NoError(t, h.bot.SendDailyReports(context.Background()))
	reply := h.out.joined()
	assert.Contains(t, reply, "Daily report")
	assert.Contains(t, reply, "<b>120 points</b>")

	h.out.reset()
	require.NoError(t, h.bot.SendQuestReset(context.Background()))
	assert.Contains(t, h.out.joined(), "New day, new quests!")
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.say(t, "/frobnicate"), "Unknown command.")
	assert.Contains(t, h.say(t, menuLabelHelp), "<b>Commands</b>")
}
