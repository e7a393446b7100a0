package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	"study-garden/internal/model"
	"study-garden/internal/service"
)

const dateLayout = "2006-01-02"

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func categoryLabel(c model.Category) string {
	var icon string
	switch c {
	case model.CategorySchool:
		icon = "🏫"
	case model.CategoryExam:
		icon = "📝"
	case model.CategoryHomework:
		icon = "📚"
	case model.CategoryProject:
		icon = "🛠"
	case model.CategoryReading:
		icon = "📖"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, normalizeTitle(string(c)))
}

func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴 High"
	case model.PriorityLow:
		return "🔵 Low"
	default:
		return "🟡 Medium"
	}
}

func rewardCategoryLabel(c model.RewardCategory) string {
	switch c {
	case model.RewardAcademic:
		return "🎓 Academic"
	case model.RewardFun:
		return "🎉 Fun"
	case model.RewardSelfCare:
		return "🧘 Self-care"
	default:
		return "🎁 Other"
	}
}

// parseCategory accepts the bare name or the keyboard label.
func parseCategory(text string) (model.Category, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	for _, c := range model.Categories {
		if value == string(c) || value == strings.ToLower(categoryLabel(c)) {
			return c, true
		}
	}
	return "", false
}

func parsePriority(text string) (model.Priority, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	for _, p := range model.Priorities {
		if value == string(p) || value == strings.ToLower(priorityLabel(p)) {
			return p, true
		}
	}
	return "", false
}

func parseRewardCategory(text string) (model.RewardCategory, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	for _, c := range model.RewardCategories {
		if value == string(c) || value == strings.ToLower(rewardCategoryLabel(c)) {
			return c, true
		}
	}
	return "", false
}

// parseDueDate reads YYYY-MM-DD as the end of that day in loc.
func parseDueDate(text string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(text), loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(23*time.Hour + 59*time.Minute), nil
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseTaskID(data, prefix string) (uint, error) {
	return parseID(strings.TrimPrefix(data, prefix))
}

// parsePair reads "<a> <b>" or "<a>:<b>" as two ids.
func parsePair(raw string) (uint, uint, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == ' ' || r == ':'
	})
	if len(fields) != 2 {
		return 0, 0, errors.New("expected two ids")
	}
	a, err := parseID(fields[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseID(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// parseSubtaskArgs reads "<taskID> <title> [+points]".
func parseSubtaskArgs(raw string) (uint, string, *int, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return 0, "", nil, errors.New("expected task id and title")
	}
	taskID, err := parseID(fields[0])
	if err != nil {
		return 0, "", nil, fmt.Errorf("task id: %w", err)
	}
	rest := fields[1:]
	var points *int
	if last := rest[len(rest)-1]; len(rest) > 1 && strings.HasPrefix(last, "+") {
		value, err := strconv.Atoi(strings.TrimPrefix(last, "+"))
		if err != nil {
			return 0, "", nil, fmt.Errorf("points: %w", err)
		}
		points = &value
		rest = rest[:len(rest)-1]
	}
	return taskID, strings.Join(rest, " "), points, nil
}

func formatTaskLine(task model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s <i>+%d</i>\n", service.DueIcon(task, now), task.ID, escape(normalizeTitle(task.Title)), task.Worth()))
	d := task.DueDate.In(now.Location())
	switch {
	case task.Completed:
		b.WriteString(fmt.Sprintf("   ✅ earned %d pts\n", task.AwardedPoints))
	case now.After(d):
		b.WriteString(fmt.Sprintf("   ⏰ Due: %s — <b>overdue</b>\n", d.Format(dateLayout)))
	default:
		daysLeft := int(d.Sub(now).Hours()/24) + 1
		b.WriteString(fmt.Sprintf("   ⏰ Due: %s · ≈%d d left · %s\n", d.Format(dateLayout), daysLeft, priorityLabel(task.Priority)))
	}
	if len(task.Subtasks) > 0 {
		done := 0
		for _, sub := range task.Subtasks {
			if sub.Completed {
				done++
			}
		}
		b.WriteString(fmt.Sprintf("   ☑️ %d/%d subtasks\n", done, len(task.Subtasks)))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatTaskDetail(task model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>#%d %s</b>\n", service.DueIcon(task, now), task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("%s · %s · due %s\n", categoryLabel(task.Category), priorityLabel(task.Priority), task.DueDate.In(now.Location()).Format(dateLayout)))
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("📝 %s\n", escape(task.Description)))
	}
	if len(task.Subtasks) == 0 {
		b.WriteString(fmt.Sprintf("\nWorth %d pts. Add steps with /subtask %d &lt;title&gt; [+pts]\n", task.Points, task.ID))
	} else {
		b.WriteString("\n<b>Subtasks</b>\n")
		for _, sub := range task.Subtasks {
			mark := "⬜"
			if sub.Completed {
				mark = "✅"
			}
			b.WriteString(fmt.Sprintf("%s <code>%d</code> %s <i>+%d</i>\n", mark, sub.ID, escape(sub.Title), sub.Points))
		}
	}
	if task.Completed {
		b.WriteString(fmt.Sprintf("\n✅ Completed, earned %d pts\n", task.AwardedPoints))
	}
	return strings.TrimSpace(b.String())
}

func formatReward(r model.Reward, balance int) string {
	status := fmt.Sprintf("need %d more", r.Cost-balance)
	switch {
	case r.Redeemed:
		status = "redeemed"
	case balance >= r.Cost:
		status = "available"
	}
	line := fmt.Sprintf("%s <b>#%d</b> %s · <b>%d pts</b> (%s)\n", rewardCategoryLabel(r.Category), r.ID, escape(normalizeTitle(r.Title)), r.Cost, status)
	if r.Description != "" {
		line += fmt.Sprintf("   %s\n", escape(r.Description))
	}
	return line
}

func formatHistory(entries []model.PointTransaction, loc *time.Location) string {
	if len(entries) == 0 {
		return "No points history yet."
	}
	var b strings.Builder
	b.WriteString("🧾 <b>Points history</b>\n")
	for _, e := range entries {
		sign := "+"
		if e.Amount < 0 {
			sign = ""
		}
		b.WriteString(fmt.Sprintf("%s <b>%s%d</b> %s\n", e.Date.In(loc).Format("01-02 15:04"), sign, e.Amount, escape(e.Reason)))
	}
	return strings.TrimSpace(b.String())
}

func formatQuests(statuses []service.QuestStatus, left time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏆 <b>Daily quests</b> · %d%% · resets in %s\n\n", service.Progress(statuses), service.FormatCountdown(left)))
	for _, st := range statuses {
		mark := "⬜"
		if st.Completed {
			mark = "✅"
		}
		b.WriteString(fmt.Sprintf("%s <b>%s</b> <i>+%d</i>\n   %s\n", mark, escape(st.Title), st.Points, escape(st.Description)))
	}
	return strings.TrimSpace(b.String())
}

func formatOverview(ov *service.Overview) string {
	var b strings.Builder
	b.WriteString("📊 <b>Your garden</b>\n")
	b.WriteString(fmt.Sprintf("Tasks: %d/%d done (%.0f%%), %d pending\n", ov.Completed, ov.Total, ov.CompletionRate, ov.Pending))
	b.WriteString(fmt.Sprintf("Level %d · %d/%d pts · %d to next level\n", ov.Level.Number, ov.Balance, ov.Level.Next, ov.Level.Next-ov.Balance))
	b.WriteString(fmt.Sprintf("Earned %d · spent %d\n", ov.Earned, ov.Spent))

	b.WriteString("\n<b>By priority</b>\n")
	for _, bucket := range ov.ByPriority {
		b.WriteString(fmt.Sprintf("%s: %d/%d\n", priorityLabel(model.Priority(bucket.Name)), bucket.Completed, bucket.Total))
	}
	b.WriteString("\n<b>By category</b>\n")
	for _, bucket := range ov.ByCategory {
		if bucket.Total == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %d/%d\n", categoryLabel(model.Category(bucket.Name)), bucket.Completed, bucket.Total))
	}
	b.WriteString("\n<b>This week</b> (done/due)\n<code>")
	for _, d := range ov.Week {
		b.WriteString(fmt.Sprintf("%s %s %d/%d\n", d.Day.Format("Mon"), strings.Repeat("▇", d.Completed), d.Completed, d.Due))
	}
	b.WriteString("</code>")
	return b.String()
}
