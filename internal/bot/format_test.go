package bot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-garden/internal/model"
	"study-garden/internal/service"
)

func TestParseSubtaskArgs(t *testing.T) {
	id, title, points, err := parseSubtaskArgs("12 Write intro +7")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
	assert.Equal(t, "Write intro", title)
	require.NotNil(t, points)
	assert.Equal(t, 7, *points)

	_, title, points, err = parseSubtaskArgs("3 +5")
	require.NoError(t, err)
	assert.Equal(t, "+5", title, "a lone +n is the title")
	assert.Nil(t, points)

	for _, bad := range []string{"", "12", "x Title", "4 Title +many"} {
		_, _, _, err := parseSubtaskArgs(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePair(t *testing.T) {
	for _, raw := range []string{"4 9", " 4:9 ", "4  9"} {
		a, b, err := parsePair(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, uint(4), a)
		assert.Equal(t, uint(9), b)
	}
	for _, bad := range []string{"", "4", "4 9 1", "a b"} {
		_, _, err := parsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLabels(t *testing.T) {
	for _, c := range model.Categories {
		got, ok := parseCategory(categoryLabel(c))
		require.True(t, ok, c)
		assert.Equal(t, c, got)
	}
	got, ok := parseCategory(" EXAM ")
	assert.True(t, ok)
	assert.Equal(t, model.CategoryExam, got)

	priority, ok := parsePriority("🔵 low")
	assert.True(t, ok)
	assert.Equal(t, model.PriorityLow, priority)
	_, ok = parsePriority("urgent")
	assert.False(t, ok)

	reward, ok := parseRewardCategory("self-care")
	assert.True(t, ok)
	assert.Equal(t, model.RewardSelfCare, reward)
}

func TestParseDueDate(t *testing.T) {
	due, err := parseDueDate("2025-03-12", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 12, 23, 59, 0, 0, time.UTC), due)

	_, err = parseDueDate("12.03.2025", time.UTC)
	assert.Error(t, err)
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "Essay", shortTitle(" essay ", 10))
	assert.Equal(t, "Chemist…", shortTitle("chemistry revision", 8))
	assert.Equal(t, "A b", shortTitle("a\nb", 10))
}

func TestUserMessage(t *testing.T) {
	short := &service.InsufficientPointsError{Cost: 75, Balance: 40}
	assert.Equal(t, "Not enough points: you need 35 more.", userMessage(fmt.Errorf("redeem: %w", short)))
	assert.Equal(t, "Task not found.", userMessage(service.ErrTaskNotFound))
	assert.Equal(t, "Error: &lt;boom&gt;", userMessage(errors.New("<boom>")))
}

func TestFormatTaskLine(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:       7,
		Title:    "essay <draft>",
		DueDate:  now.Add(-time.Hour),
		Priority: model.PriorityHigh,
		Points:   10,
		Subtasks: []model.SubTask{{Completed: true, Points: 4}, {Points: 6}},
	}
	line := formatTaskLine(task, now)
	assert.Contains(t, line, "⚠️ <b>#7</b> Essay &lt;draft&gt; <i>+10</i>")
	assert.Contains(t, line, "<b>overdue</b>")
	assert.Contains(t, line, "☑️ 1/2 subtasks")

	task.Completed = true
	task.AwardedPoints = 4
	line = formatTaskLine(task, now)
	assert.Contains(t, line, "✅ <b>#7</b>")
	assert.Contains(t, line, "earned 4 pts")
}

func TestQuestKeyboardHidesFinishedQuests(t *testing.T) {
	statuses := []service.QuestStatus{
		{Quest: model.DailyQuests[0], Completed: true},
		{Quest: model.DailyQuests[1]},
	}
	inline, ok := questKeyboard(statuses).(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, inline.InlineKeyboard, 1)
	assert.Equal(t, cbQuestPrefix+"leetcode", *inline.InlineKeyboard[0][0].CallbackData)

	for i := range statuses {
		statuses[i].Completed = true
	}
	_, ok = questKeyboard(statuses).(tgbotapi.InlineKeyboardMarkup)
	assert.False(t, ok, "nothing left to tap falls back to the main menu")
}
