package service

import (
	"context"
	"sort"
	"sync"
	"time"

	logger "github.com/rs/zerolog/log"

	"github.com/PoluyanbIch/quizclock/internal/session"
)

type LeaderboardEntry struct {
	QuizID     string `json:"quiz_id"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Percentage int    `json:"percentage"`
	Date       string `json:"date"`
}

// Player identifies who finished a session.
type Player struct {
	UserID    int64
	Username  string
	FirstName string
}

// LeaderboardService keeps each player's best result per quiz.
type LeaderboardService interface {
	// AddEntry records res and reports whether it is the player's new best.
	AddEntry(ctx context.Context, quizID string, p Player, res session.Result) (bool, error)
	GetTop(ctx context.Context, quizID string, limit int) ([]LeaderboardEntry, error)
	GetUserPosition(ctx context.Context, quizID string, userID int64) (int, *LeaderboardEntry, error)
}

// NewLeaderboardService picks Redis, then a GitHub Gist, then memory,
// depending on what is configured.
func NewLeaderboardService(redisAddr, gistID, githubToken string) LeaderboardService {
	switch {
	case redisAddr != "":
		logger.Info().Str("addr", redisAddr).Msg("Using Redis leaderboard.")
		return NewRedisLeaderboardService(redisAddr)
	case gistID != "" && githubToken != "":
		logger.Info().Str("gist", gistID).Msg("Using Gist leaderboard.")
		return NewGistLeaderboardService(gistID, githubToken)
	}

	// Data is lost on restart.
	logger.Info().Msg("Using in-memory leaderboard.")
	return NewMemoryLeaderboardService()
}

func newEntry(quizID string, p Player, res session.Result) LeaderboardEntry {
	return LeaderboardEntry{
		QuizID:     quizID,
		UserID:     p.UserID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		Score:      res.TotalScore,
		MaxScore:   res.MaxScore,
		Percentage: res.Percentage(),
		Date:       res.FinishedAt.Format("02.01.2006 15:04"),
	}
}

// better reports whether a ranks above b.
func better(a, b LeaderboardEntry) bool {
	if a.Percentage == b.Percentage {
		return a.Score > b.Score
	}
	return a.Percentage > b.Percentage
}

// upsert keeps the better of the player's old and new entry. It reports
// whether the new entry was stored.
func upsert(entries []LeaderboardEntry, e LeaderboardEntry) ([]LeaderboardEntry, bool) {
	for i, old := range entries {
		if old.UserID == e.UserID {
			if better(e, old) {
				entries[i] = e
				return entries, true
			}
			return entries, false
		}
	}
	return append(entries, e), true
}

func topN(entries []LeaderboardEntry, limit int) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return better(sorted[i], sorted[j]) })

	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}

func position(ranked []LeaderboardEntry, userID int64) (int, *LeaderboardEntry) {
	for i := range ranked {
		if ranked[i].UserID == userID {
			e := ranked[i]
			return i + 1, &e
		}
	}
	return -1, nil
}

// MemoryLeaderboardService is the fallback when no store is configured.
type MemoryLeaderboardService struct {
	mu      sync.RWMutex
	entries map[string][]LeaderboardEntry
}

func NewMemoryLeaderboardService() *MemoryLeaderboardService {
	return &MemoryLeaderboardService{entries: make(map[string][]LeaderboardEntry)}
}

func (ms *MemoryLeaderboardService) AddEntry(_ context.Context, quizID string, p Player, res session.Result) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stored bool
	ms.entries[quizID], stored = upsert(ms.entries[quizID], newEntry(quizID, p, res))
	return stored, nil
}

func (ms *MemoryLeaderboardService) GetTop(_ context.Context, quizID string, limit int) ([]LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return topN(ms.entries[quizID], limit), nil
}

func (ms *MemoryLeaderboardService) GetUserPosition(ctx context.Context, quizID string, userID int64) (int, *LeaderboardEntry, error) {
	top, _ := ms.GetTop(ctx, quizID, 0)
	pos, e := position(top, userID)
	return pos, e, nil
}

// leaderboardTimeout bounds a single call to a remote store.
const leaderboardTimeout = 10 * time.Second
