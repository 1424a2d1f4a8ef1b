package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"spendmillion/internal/archive"
	"spendmillion/internal/catalog"
	"spendmillion/internal/events"
	"spendmillion/internal/gateway"
	"spendmillion/internal/leaderboard"
	"spendmillion/internal/query"
	"spendmillion/internal/session"
	"spendmillion/internal/telegram"
)

// Services holds the wired application components.
type Services struct {
	Sessions    *session.App
	Leaderboard *leaderboard.App
	Query       *query.App
	Archive     *archive.Repository
	Publisher   events.Publisher
	Gateway     *gateway.Service
}

func setupServices(cfg *Config) (*Services, error) {
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN must be set for initData verification")
	}
	verifier := telegram.NewVerifier(botToken)

	items := cfg.Catalog
	if len(items) == 0 {
		log.Warn().Msg("no catalog in config, using built-in items")
		items = catalog.DefaultItems()
	}
	catalogRepo, err := catalog.NewRepository(items)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	board := leaderboard.NewApp(leaderboard.Config{Size: cfg.Game.LeaderboardSize})

	archiveRepo, err := archive.NewRepository(getEnv("ARCHIVE_PATH", "game.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	seedLeaderboard(board, archiveRepo)

	var publisher events.Publisher = events.NoopPublisher{}
	natsURL := os.Getenv("NATS_URL")
	subjectPrefix := getEnv("EVENTS_SUBJECT", "spend.events")
	if natsURL != "" {
		natsPublisher, err := events.NewNATSPublisher(natsURL, subjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		publisher = natsPublisher
	}

	repo := session.NewRepository()
	sessions := session.NewApp(repo, catalogRepo, board, archiveRepo, publisher, clockwork.NewRealClock(), session.Config{
		Budget:   cfg.Game.Budget,
		Duration: cfg.sessionDuration(),
	})

	queryApp := query.NewApp(repo, board)

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.ConsumerConfig.URL = natsURL
	gatewayCfg.ConsumerConfig.SubjectPrefix = subjectPrefix
	gw, err := gateway.NewService(gatewayCfg, sessions, queryApp, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &Services{
		Sessions:    sessions,
		Leaderboard: board,
		Query:       queryApp,
		Archive:     archiveRepo,
		Publisher:   publisher,
		Gateway:     gw,
	}, nil
}

// seedLeaderboard replays archived results so standings survive restarts.
func seedLeaderboard(board *leaderboard.App, archiveRepo *archive.Repository) {
	entries, err := archiveRepo.LoadResults(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("failed to load archived results")
		return
	}
	for _, entry := range entries {
		board.Publish(entry)
	}
	if len(entries) > 0 {
		log.Info().Int("count", len(entries)).Msg("seeded leaderboard from archive")
	}
}

// Close releases long-lived resources.
func (s *Services) Close() {
	if closer, ok := s.Publisher.(*events.NATSPublisher); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close publisher")
		}
	}
	if err := s.Archive.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close archive")
	}
}
