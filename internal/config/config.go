package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"gopkg.in/alecthomas/kingpin.v2"
)

type Config struct {
	Token         string
	Debug         bool
	QuizDir       string
	Shuffle       bool
	QuestionLimit int
	TickInterval  time.Duration

	LogLevel string
	LogJSON  bool

	RedisAddr   string
	GistID      string
	GitHubToken string

	AMQPURL  string
	Exchange string

	MetricsAddr string

	// Telegram user IDs allowed to register as teachers.
	Teachers []int64
}

// Load reads .env (if present) into the environment and parses args, with
// each flag falling back to its environment variable.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "reading .env")
	}
	return Parse(args)
}

func Parse(args []string) (*Config, error) {
	app := kingpin.New("quizclock", "Telegram bot running timed, scored quizzes.")
	app.HelpFlag.Short('h')

	cfg := &Config{}
	var teachers string

	app.Flag("token", "Telegram bot token.").Envar("TELEGRAM_BOT_TOKEN").Required().StringVar(&cfg.Token)
	app.Flag("debug", "Log Telegram API traffic.").Envar("TELEGRAM_DEBUG").BoolVar(&cfg.Debug)
	app.Flag("quizzes", "Directory with YAML quiz files.").Envar("QUIZ_DIR").Default("quizzes").StringVar(&cfg.QuizDir)
	app.Flag("shuffle", "Shuffle question order per session.").Envar("QUIZ_SHUFFLE").Default("true").BoolVar(&cfg.Shuffle)
	app.Flag("limit", "Ask at most this many questions per session (0 = all).").Envar("QUIZ_QUESTION_LIMIT").Default("0").IntVar(&cfg.QuestionLimit)
	app.Flag("tick", "Length of one countdown second.").Envar("QUIZ_TICK").Default("1s").DurationVar(&cfg.TickInterval)
	app.Flag("log-level", "Log level (trace, debug, info, warn, error).").Envar("LOG_LEVEL").Default("info").StringVar(&cfg.LogLevel)
	app.Flag("log-json", "Write JSON logs instead of console output.").Envar("LOG_JSON").BoolVar(&cfg.LogJSON)
	app.Flag("redis", "Redis address for the leaderboard.").Envar("REDIS_ADDR").StringVar(&cfg.RedisAddr)
	app.Flag("gist-id", "GitHub Gist holding the leaderboard.").Envar("GITHUB_GIST_ID").StringVar(&cfg.GistID)
	app.Flag("github-token", "GitHub token for the Gist leaderboard.").Envar("GITHUB_TOKEN").StringVar(&cfg.GitHubToken)
	app.Flag("amqp", "RabbitMQ URL for session events.").Envar("RABBITMQ_URI").StringVar(&cfg.AMQPURL)
	app.Flag("exchange", "RabbitMQ topic exchange for session events.").Envar("RABBITMQ_EXCHANGE").Default("quizclock").StringVar(&cfg.Exchange)
	app.Flag("metrics", "Address to serve Prometheus metrics on.").Envar("METRICS_ADDR").StringVar(&cfg.MetricsAddr)
	app.Flag("teachers", "Comma-separated Telegram user IDs allowed to author quizzes.").Envar("QUIZ_TEACHERS").StringVar(&teachers)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	if cfg.TickInterval <= 0 {
		return nil, errors.Errorf("tick must be positive, got %s", cfg.TickInterval)
	}
	if cfg.QuestionLimit < 0 {
		return nil, errors.Errorf("limit cannot be negative, got %d", cfg.QuestionLimit)
	}

	ids, err := parseIDs(teachers)
	if err != nil {
		return nil, err
	}
	cfg.Teachers = ids

	return cfg, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid teacher id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SetupLogging configures the global zerolog logger.
func (c *Config) SetupLogging() error {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	zerolog.SetGlobalLevel(level)

	if !c.LogJSON {
		logger.Logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

func (c *Config) IsTeacher(id int64) bool {
	for _, t := range c.Teachers {
		if t == id {
			return true
		}
	}
	return false
}
