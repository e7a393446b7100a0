package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"study-garden/internal/model"
	"study-garden/internal/repository"
)

const dayLayout = "2006-01-02"

// QuestStatus is a catalogue quest with today's state.
type QuestStatus struct {
	model.Quest
	Completed bool
}

// QuestService runs the daily quests. Completions are keyed by local day, so
// every quest opens again after midnight.
type QuestService struct {
	store *repository.Store
	loc   *time.Location
	log   logrus.FieldLogger
}

func NewQuestService(store *repository.Store, loc *time.Location, log logrus.FieldLogger) *QuestService {
	if loc == nil {
		loc = time.Local
	}
	return &QuestService{store: store, loc: loc, log: log}
}

func (s *QuestService) Today(ctx context.Context, user *model.User, now time.Time) ([]QuestStatus, error) {
	done, err := s.store.Quests.CompletedOn(ctx, user.ID, s.dayKey(now))
	if err != nil {
		return nil, err
	}
	statuses := make([]QuestStatus, 0, len(model.DailyQuests))
	for _, quest := range model.DailyQuests {
		statuses = append(statuses, QuestStatus{Quest: quest, Completed: done[quest.Key]})
	}
	return statuses, nil
}

// Complete credits the quest's points once per day.
func (s *QuestService) Complete(ctx context.Context, user *model.User, key string, now time.Time) (*model.Quest, error) {
	quest, ok := FindQuest(key)
	if !ok {
		return nil, ErrQuestNotFound
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Quests.Record(ctx, user.ID, quest.Key, s.dayKey(now), now); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrQuestDone
			}
			return err
		}
		entry := model.PointTransaction{
			UserID: user.ID,
			Amount: quest.Points,
			Date:   now,
			Reason: fmt.Sprintf("Quest: %s", quest.Title),
		}
		return tx.Ledger.Append(ctx, &entry)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "quest": quest.Key}).Info("quest completed")
	return &quest, nil
}

// UntilReset is how long the current quest day has left.
func (s *QuestService) UntilReset(now time.Time) time.Duration {
	local := now.In(s.loc)
	year, month, d := local.Date()
	midnight := time.Date(year, month, d+1, 0, 0, 0, 0, s.loc)
	return midnight.Sub(local)
}

func (s *QuestService) dayKey(now time.Time) string {
	return now.In(s.loc).Format(dayLayout)
}

func FindQuest(key string) (model.Quest, bool) {
	for _, quest := range model.DailyQuests {
		if quest.Key == key {
			return quest, true
		}
	}
	return model.Quest{}, false
}

// Progress is the share of today's quests that are done, 0..100.
func Progress(statuses []QuestStatus) int {
	if len(statuses) == 0 {
		return 0
	}
	done := 0
	for _, st := range statuses {
		if st.Completed {
			done++
		}
	}
	return done * 100 / len(statuses)
}

// FormatCountdown renders a duration as "Hh Mm".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
