package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/rs/zerolog/log"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/PoluyanbIch/quizclock/internal/config"
	"github.com/PoluyanbIch/quizclock/internal/metrics"
	"github.com/PoluyanbIch/quizclock/internal/quiz"
	"github.com/PoluyanbIch/quizclock/internal/service"
	"github.com/PoluyanbIch/quizclock/internal/telegram"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("%s, try --help", err)
	}
	if err := cfg.SetupLogging(); err != nil {
		kingpin.Fatalf("%s", err)
	}

	quizzes, err := quiz.NewMemoryRepository(quiz.LoadQuizzes(cfg.QuizDir)...)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid quiz set.")
	}

	// Picks Redis, Gist or memory depending on configuration.
	leaderboard := service.NewLeaderboardService(cfg.RedisAddr, cfg.GistID, cfg.GitHubToken)

	var publisher service.Publisher = service.NopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := service.NewEventPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to RabbitMQ.")
		}
		publisher = p
	}
	defer publisher.Close()

	metrics.Serve(cfg.MetricsAddr)

	bot, err := telegram.NewBot(cfg.Token, cfg.Debug, telegram.Deps{
		Quizzes:     quizzes,
		Users:       service.NewUserDirectory(),
		Leaderboard: leaderboard,
		Publisher:   publisher,
	}, telegram.Options{
		Shuffle:       cfg.Shuffle,
		QuestionLimit: cfg.QuestionLimit,
		TickInterval:  cfg.TickInterval,
		IsTeacher:     cfg.IsTeacher,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("🤖 Bot is starting...")
	bot.Start(ctx)
	logger.Info().Msg("Bot stopped.")
}
