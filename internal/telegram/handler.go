package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/rs/zerolog/log"

	"github.com/PoluyanbIch/quizclock/internal/quiz"
	"github.com/PoluyanbIch/quizclock/internal/service"
)

// sender is the part of the Bot API the handlers talk to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	Shuffle       bool
	QuestionLimit int
	TickInterval  time.Duration
	// IsTeacher decides who may register with the teacher role.
	IsTeacher func(userID int64) bool
}

// Deps are the collaborators the bot is wired to.
type Deps struct {
	Quizzes     quiz.Repository
	Users       *service.UserDirectory
	Leaderboard service.LeaderboardService
	Publisher   service.Publisher
}

type Bot struct {
	api  *tgbotapi.BotAPI
	out  sender
	deps Deps
	opts Options

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

func NewBot(token string, debug bool, deps Deps, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug

	b := newBot(api, deps, opts)
	b.api = api
	return b, nil
}

func newBot(out sender, deps Deps, opts Options) *Bot {
	if deps.Publisher == nil {
		deps.Publisher = service.NopPublisher{}
	}
	if opts.IsTeacher == nil {
		opts.IsTeacher = func(int64) bool { return false }
	}
	return &Bot{
		out:      out,
		deps:     deps,
		opts:     opts,
		sessions: make(map[int64]*chatSession),
	}
}

// Start processes updates until ctx is cancelled, then cancels every
// running session.
func (b *Bot) Start(ctx context.Context) {
	logger.Info().Str("account", b.api.Self.UserName).Msg("Authorised.")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.cancelAll()
			return
		case update, ok := <-updates:
			if !ok {
				b.cancelAll()
				return
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	}
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendMainMenu(chatID)
	case "register":
		b.handleRegister(chatID, msg.From, msg.CommandArguments())
	case "quiz":
		b.sendQuizList(chatID, msg.From)
	case "newquiz":
		b.handleNewQuiz(chatID, msg.From, msg.CommandArguments())
	case "leaderboard":
		b.sendLeaderboardMenu(chatID)
	case "stop":
		b.exitQuiz(chatID)
	case "info":
		b.handleInfo(chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Try /start.")
	}
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	data := callback.Data

	if _, err := b.out.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Warn().Err(err).Msg("Error answering callback.")
	}

	switch {
	case data == "quizzes":
		b.sendQuizList(chatID, callback.From)
	case strings.HasPrefix(data, "start_"):
		b.startQuiz(chatID, callback.From, strings.TrimPrefix(data, "start_"))
	case strings.HasPrefix(data, "ans_"):
		b.handleAnswer(chatID, data)
	case data == "exit_quiz":
		b.exitQuiz(chatID)
	case data == "leaderboard":
		b.sendLeaderboardMenu(chatID)
	case strings.HasPrefix(data, "lb_"):
		b.handleLeaderboard(chatID, strings.TrimPrefix(data, "lb_"))
	case data == "back_to_menu":
		b.sendMainMenu(chatID)
	case data == "info":
		b.handleInfo(chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Try /start.")
	}
}

func (b *Bot) sendMainMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "📋 <b>Main menu</b>")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Quizzes", "quizzes"),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Leaderboard", "leaderboard"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Help", "info"),
		),
	)
	b.send(msg, "main menu")
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text), "message")
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.send(msg, "message")
}

func (b *Bot) send(c tgbotapi.Chattable, what string) {
	if _, err := b.out.Send(c); err != nil {
		logger.Warn().Err(err).Str("what", what).Msg("Error sending message.")
	}
}

func (b *Bot) handleRegister(chatID int64, from *tgbotapi.User, args string) {
	role := service.RoleStudent
	if strings.EqualFold(strings.TrimSpace(args), string(service.RoleTeacher)) {
		if !b.opts.IsTeacher(from.ID) {
			b.sendMessage(chatID, "⛔ You are not allowed to register as a teacher.")
			return
		}
		role = service.RoleTeacher
	}

	u, err := b.deps.Users.Register(from.ID, displayName(from), role)
	if err != nil {
		b.sendMessage(chatID, "Registration failed: "+err.Error())
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Registered %s as %s.", u.Username, u.Role))
	b.sendMainMenu(chatID)
}

// handleNewQuiz lets a teacher add a quiz by sending its YAML after /newquiz.
func (b *Bot) handleNewQuiz(chatID int64, from *tgbotapi.User, doc string) {
	u, err := b.deps.Users.Login(from.ID)
	if err != nil || u.Role != service.RoleTeacher {
		b.sendMessage(chatID, "⛔ Only registered teachers can create quizzes.")
		return
	}
	if strings.TrimSpace(doc) == "" {
		b.sendHTML(chatID, "Send the quiz as YAML after the command:\n<pre>/newquiz\ntitle: Capitals\ntime_limit_minutes: 2\nquestions:\n  - text: Capital of France?\n    options: [Rome, Paris, Oslo, Bern]\n    answer: 2\n    points: 5\n    category: geography</pre>")
		return
	}

	def, err := quiz.Parse([]byte(doc))
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to create quiz: "+err.Error())
		return
	}
	id, err := b.deps.Quizzes.Add(def)
	if err != nil {
		b.sendMessage(chatID, "❌ Failed to create quiz: "+err.Error())
		return
	}

	logger.Info().Str("quiz", id).Int64("teacher", from.ID).Msg("Quiz created.")
	b.sendMessage(chatID, fmt.Sprintf("✅ Quiz %q created with %d questions.", def.Title, len(def.Questions)))
}

func (b *Bot) sendQuizList(chatID int64, from *tgbotapi.User) {
	if _, err := b.deps.Users.Login(from.ID); err != nil {
		b.sendMessage(chatID, "Please /register first.")
		return
	}

	quizzes := b.deps.Quizzes.List()
	if len(quizzes) == 0 {
		b.sendMessage(chatID, "No quizzes yet.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, q := range quizzes {
		label := fmt.Sprintf("%s (%d q, %s)", q.Title, len(q.Questions), formatSeconds(q.TimeLimit))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "start_"+q.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Back", "back_to_menu"),
	))

	msg := tgbotapi.NewMessage(chatID, "🎯 <b>Pick a quiz</b>")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg, "quiz list")
}

func (b *Bot) sendLeaderboardMenu(chatID int64) {
	quizzes := b.deps.Quizzes.List()
	if len(quizzes) == 0 {
		b.sendMessage(chatID, "No quizzes yet.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, q := range quizzes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏆 "+q.Title, "lb_"+q.ID),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "🏆 <b>Leaderboards</b>")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg, "leaderboard menu")
}

func (b *Bot) handleLeaderboard(chatID int64, quizID string) {
	def, err := b.deps.Quizzes.Fetch(quizID)
	if err != nil {
		b.sendMessage(chatID, "Quiz not found.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	top, err := b.deps.Leaderboard.GetTop(ctx, quizID, 10)
	if err != nil {
		logger.Error().Err(err).Str("quiz", quizID).Msg("Error loading leaderboard.")
		b.sendMessage(chatID, "Leaderboard is unavailable right now.")
		return
	}

	title := html.EscapeString(def.Title)
	if len(top) == 0 {
		b.sendHTML(chatID, fmt.Sprintf("🏆 <b>%s</b>\n\nNo results yet. Be the first! 🎯", title))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>Top 10: %s</b>\n\n", title)
	for i, entry := range top {
		username := entry.FirstName
		if entry.Username != "" {
			username = "@" + entry.Username
		}

		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}

		fmt.Fprintf(&sb, "%s %d. %s - %d%% (%d/%d)\n   📅 %s\n\n",
			medal, i+1, html.EscapeString(username), entry.Percentage, entry.Score, entry.MaxScore, entry.Date)
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start a quiz", "quizzes"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Main menu", "back_to_menu"),
		),
	)
	b.send(msg, "leaderboard")
}

func (b *Bot) handleInfo(chatID int64) {
	text := "Timed quizzes with per-topic scoring.\n\n" +
		"/register - sign up as a student (/register teacher for authors)\n" +
		"/quiz - pick a quiz\n" +
		"/stop - leave the running quiz\n" +
		"/leaderboard - best results per quiz\n" +
		"/newquiz - teachers: add a quiz from YAML"

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back", "back_to_menu"),
		),
	)
	b.send(msg, "info")
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}

func formatSeconds(s int) string {
	if s >= 60 && s%60 == 0 {
		return fmt.Sprintf("%d min", s/60)
	}
	return fmt.Sprintf("%ds", s)
}
