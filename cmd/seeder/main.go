package main

import (
	"context"

	"github.com/suvankar11223/chatzi-sub000/internal/config"
	"github.com/suvankar11223/chatzi-sub000/internal/database"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/seeds"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.Env)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Nobody is connected, so the hub only absorbs the announcements.
	hub := realtime.NewHub()
	participants := services.NewParticipants(db)
	directory := services.NewDirectory(db, participants, hub, realtime.NewMembership(hub, participants), cfg.AllowedAttachmentHosts())

	users, err := seeds.Demo(context.Background(), services.NewUsers(db, cfg.AllowedAttachmentHosts()), directory)
	if err != nil {
		logger.Fatal().Err(err).Msg("Seeding failed")
	}
	for _, u := range users {
		logger.Info().Str("email", u.Email).Str("password", seeds.DemoPassword).Msg("Demo account")
	}
}
