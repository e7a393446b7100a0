package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"study-garden/internal/bot"
	"study-garden/internal/config"
	"study-garden/internal/repository"
	"study-garden/internal/service"
)

// app holds everything a command needs once config and storage are up.
type app struct {
	cfg   config.Config
	log   *logrus.Logger
	loc   *time.Location
	db    *gorm.DB
	store *repository.Store
	svc   bot.Services
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := config.NewLogger(cfg.LogLevel, os.Stderr)
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	store := repository.NewStore(db)

	quests := service.NewQuestService(store, loc, log)
	return &app{
		cfg:   cfg,
		log:   log,
		loc:   loc,
		db:    db,
		store: store,
		svc: bot.Services{
			Users:     service.NewUserService(store, log),
			Tasks:     service.NewTaskService(store, log),
			Rewards:   service.NewRewardService(store, log),
			Quests:    quests,
			Analytics: service.NewAnalyticsService(store, loc),
			Snapshots: service.NewSnapshotService(store, log),
			Reminders: service.NewReminderService(store, quests),
		},
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
