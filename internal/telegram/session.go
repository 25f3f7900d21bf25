package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/rs/zerolog/log"

	"github.com/PoluyanbIch/quizclock/internal/metrics"
	"github.com/PoluyanbIch/quizclock/internal/quiz"
	"github.com/PoluyanbIch/quizclock/internal/service"
	"github.com/PoluyanbIch/quizclock/internal/session"
)

// chatSession is the attempt currently running in a chat.
type chatSession struct {
	ctrl   *session.Controller
	quiz   *quiz.Definition
	player service.Player
	// Short session tag put into answer buttons so stale ones are ignored.
	tag string
}

type sessionEvent struct {
	SessionID string          `json:"session_id"`
	QuizID    string          `json:"quiz_id"`
	UserID    int64           `json:"user_id"`
	Result    *session.Result `json:"result,omitempty"`
}

func (b *Bot) current(chatID int64) *chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

// drop forgets cs if it is still the chat's session.
func (b *Bot) drop(chatID int64, cs *chatSession) {
	b.mu.Lock()
	if b.sessions[chatID] == cs {
		delete(b.sessions, chatID)
	}
	b.mu.Unlock()
}

func (b *Bot) startQuiz(chatID int64, from *tgbotapi.User, quizID string) {
	if _, err := b.deps.Users.Login(from.ID); err != nil {
		b.sendMessage(chatID, "Please /register first.")
		return
	}

	def, err := b.deps.Quizzes.Fetch(quizID)
	if err != nil {
		b.sendMessage(chatID, "Quiz not found.")
		return
	}
	if b.opts.Shuffle {
		def = quiz.ShuffleWithLimit(def, b.opts.QuestionLimit)
	} else if b.opts.QuestionLimit > 0 && b.opts.QuestionLimit < len(def.Questions) {
		def.Questions = def.Questions[:b.opts.QuestionLimit]
	}

	// One attempt per chat: a new start ends the previous one.
	if old := b.current(chatID); old != nil {
		old.ctrl.Cancel()
		b.drop(chatID, old)
	}

	cs := &chatSession{
		quiz:   def,
		player: service.Player{UserID: from.ID, Username: from.UserName, FirstName: from.FirstName},
	}
	cs.ctrl = session.NewController(session.Options{
		TickInterval: b.opts.TickInterval,
		Hooks: session.Hooks{
			OnTimeExpired:     func() { b.onTimeExpired(chatID, cs) },
			OnSessionFinished: func(res session.Result) { b.onSessionFinished(chatID, cs, res) },
		},
	})
	cs.tag = cs.ctrl.ID()[:8]

	b.mu.Lock()
	b.sessions[chatID] = cs
	b.mu.Unlock()

	first, err := cs.ctrl.Start(def)
	if err != nil {
		b.drop(chatID, cs)
		logger.Warn().Err(err).Str("quiz", quizID).Msg("Cannot start quiz.")
		b.sendMessage(chatID, "This quiz cannot be started: "+err.Error())
		return
	}

	metrics.SessionStarted(def.ID)
	b.publish(service.EventSessionStarted, cs, nil)

	b.sendHTML(chatID, fmt.Sprintf("🚀 <b>%s</b>\n%s\n\n⏱ Time limit: %s",
		html.EscapeString(def.Title), html.EscapeString(def.Description), formatSeconds(def.TimeLimit)))
	b.sendQuestion(chatID, cs, first)
}

func (b *Bot) sendQuestion(chatID int64, cs *chatSession, q *quiz.Question) {
	snap := cs.ctrl.Snapshot()

	text := fmt.Sprintf("❓ <b>Question %d/%d</b>  ⏱ %ds left\n<i>%s</i>\n\n%s",
		snap.CurrentIndex+1,
		snap.TotalQuestions,
		snap.RemainingSeconds,
		html.EscapeString(q.Category),
		html.EscapeString(q.Text))

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, option := range q.Options {
		data := fmt.Sprintf("ans_%s_%d_%d", cs.tag, snap.CurrentIndex, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(option, data)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🚪 Leave quiz", "exit_quiz"),
	))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg, "question")
}

// parseAnswer splits "ans_<tag>_<question>_<option>".
func parseAnswer(data string) (tag string, question, option int, ok bool) {
	parts := strings.Split(data, "_")
	if len(parts) != 4 || parts[0] != "ans" {
		return "", 0, 0, false
	}
	question, err1 := strconv.Atoi(parts[2])
	option, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil {
		return "", 0, 0, false
	}
	return parts[1], question, option, true
}

func (b *Bot) handleAnswer(chatID int64, data string) {
	tag, questionIndex, option, ok := parseAnswer(data)
	if !ok {
		return
	}

	cs := b.current(chatID)
	if cs == nil || cs.tag != tag {
		b.sendMessage(chatID, "This quiz is over. Pick a new one with /quiz.")
		return
	}
	// Buttons of already answered questions stay clickable in the chat.
	if cs.ctrl.Snapshot().CurrentIndex != questionIndex {
		return
	}

	answered := cs.quiz.Questions[questionIndex]
	outcome, err := cs.ctrl.Submit(option)
	if err != nil {
		logger.Debug().Err(err).Str("session", cs.ctrl.ID()).Msg("Answer rejected.")
		b.sendMessage(chatID, "That answer was not accepted.")
		return
	}

	// The final answer is reported together with the result, which
	// onSessionFinished sends once the session is finalized.
	if outcome.Next == nil {
		b.drop(chatID, cs)
		return
	}

	if outcome.Correct {
		b.sendHTML(chatID, "✅ <b>Correct!</b> 🎉")
	} else {
		b.sendHTML(chatID, fmt.Sprintf("❌ <b>Wrong!</b>\nCorrect answer: %s",
			html.EscapeString(answered.Options[answered.Correct])))
	}
	b.sendQuestion(chatID, cs, outcome.Next)
}

func (b *Bot) exitQuiz(chatID int64) {
	cs := b.current(chatID)
	if cs == nil {
		b.sendMessage(chatID, "No quiz is running.")
		return
	}
	cs.ctrl.Cancel()
	b.drop(chatID, cs)
}

func (b *Bot) cancelAll() {
	b.mu.Lock()
	running := make([]*chatSession, 0, len(b.sessions))
	for _, cs := range b.sessions {
		running = append(running, cs)
	}
	b.mu.Unlock()

	for _, cs := range running {
		cs.ctrl.Cancel()
	}
}

func (b *Bot) onTimeExpired(chatID int64, cs *chatSession) {
	b.publish(service.EventSessionExpired, cs, nil)
	b.sendHTML(chatID, "⏰ <b>Time is over!</b>")
}

// onSessionFinished runs on its own goroutine, so the leaderboard write and
// event publishing stay off the update loop.
func (b *Bot) onSessionFinished(chatID int64, cs *chatSession, res session.Result) {
	b.drop(chatID, cs)

	metrics.SessionFinished(cs.quiz.ID, res)
	b.publish(service.EventSessionFinished, cs, &res)

	if res.Reason == session.ReasonCancelled {
		b.sendFinal(chatID, "🚪 Quiz stopped.\nYour result was not saved.")
		return
	}

	text := formatResult(cs.quiz, res)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	isNewBest, err := b.deps.Leaderboard.AddEntry(ctx, cs.quiz.ID, cs.player, res)
	if err != nil {
		logger.Error().Err(err).Str("session", cs.ctrl.ID()).Msg("Error saving leaderboard entry.")
	}
	if isNewBest {
		pos, _, err := b.deps.Leaderboard.GetUserPosition(ctx, cs.quiz.ID, cs.player.UserID)
		if err == nil && pos != -1 {
			text += fmt.Sprintf("\n🎉 <b>New personal best!</b> You are #%d on the leaderboard.", pos)
		}
	}
	b.sendFinal(chatID, text)
}

func formatResult(def *quiz.Definition, res session.Result) string {
	var sb strings.Builder
	if res.Reason == session.ReasonExpired {
		sb.WriteString("🏁 <b>Quiz finished: out of time.</b>\n\n")
	} else {
		sb.WriteString("🏁 <b>Quiz completed!</b>\n\n")
	}
	fmt.Fprintf(&sb, "📊 Total score: %d/%d (%d%%)\n", res.TotalScore, res.MaxScore, res.Percentage())
	fmt.Fprintf(&sb, "✔️ Correct answers: %d of %d\n", res.Correct, len(def.Questions))

	if len(res.Breakdown) > 0 {
		sb.WriteString("\n<b>Category breakdown:</b>\n")
		for _, c := range res.Breakdown {
			fmt.Fprintf(&sb, "• %s: %d\n", html.EscapeString(c.Category), c.Points)
		}
	}
	return sb.String()
}

func (b *Bot) sendFinal(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Another quiz", "quizzes"),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", "back_to_menu"),
		),
	)
	b.send(msg, "result")
}

func (b *Bot) publish(eventType string, cs *chatSession, res *session.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev := sessionEvent{
		SessionID: cs.ctrl.ID(),
		QuizID:    cs.quiz.ID,
		UserID:    cs.player.UserID,
		Result:    res,
	}
	if err := b.deps.Publisher.Publish(ctx, eventType, ev); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("Error publishing event.")
	}
}
