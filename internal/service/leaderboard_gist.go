package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/PoluyanbIch/quizclock/internal/session"
)

const gistAPI = "https://api.github.com/gists/"

// GistLeaderboardService stores the leaderboard as a JSON file in a GitHub Gist.
type GistLeaderboardService struct {
	// Serializes AddEntry's load, upsert and save; the Gist API has no
	// conditional update.
	mu sync.Mutex

	gistID      string
	githubToken string
	filename    string
	baseURL     string
	client      *http.Client
}

func NewGistLeaderboardService(gistID, githubToken string) *GistLeaderboardService {
	return &GistLeaderboardService{
		gistID:      gistID,
		githubToken: githubToken,
		filename:    "leaderboard.json",
		baseURL:     gistAPI,
		client:      &http.Client{Timeout: leaderboardTimeout},
	}
}

// gistBoard maps quiz ID to its entries.
type gistBoard map[string][]LeaderboardEntry

func (gs *GistLeaderboardService) load(ctx context.Context) (gistBoard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gs.baseURL+gs.gistID, nil)
	if err != nil {
		return nil, err
	}
	if gs.githubToken != "" {
		req.Header.Set("Authorization", "token "+gs.githubToken)
	}

	resp, err := gs.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "loading gist")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("loading gist: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var gist struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &gist); err != nil {
		return nil, errors.Wrap(err, "decoding gist")
	}

	board := gistBoard{}
	if file, ok := gist.Files[gs.filename]; ok && file.Content != "" {
		if err := json.Unmarshal([]byte(file.Content), &board); err != nil {
			return nil, errors.Wrap(err, "decoding leaderboard")
		}
	}
	return board, nil
}

func (gs *GistLeaderboardService) save(ctx context.Context, board gistBoard) error {
	content, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"files": map[string]interface{}{
			gs.filename: map[string]string{"content": string(content)},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, gs.baseURL+gs.gistID, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+gs.githubToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := gs.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "saving gist")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("saving gist: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (gs *GistLeaderboardService) AddEntry(ctx context.Context, quizID string, p Player, res session.Result) (bool, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	board, err := gs.load(ctx)
	if err != nil {
		return false, err
	}

	var stored bool
	board[quizID], stored = upsert(board[quizID], newEntry(quizID, p, res))
	if !stored {
		return false, nil
	}
	if err := gs.save(ctx, board); err != nil {
		return false, err
	}
	return true, nil
}

func (gs *GistLeaderboardService) GetTop(ctx context.Context, quizID string, limit int) ([]LeaderboardEntry, error) {
	board, err := gs.load(ctx)
	if err != nil {
		return nil, err
	}
	return topN(board[quizID], limit), nil
}

func (gs *GistLeaderboardService) GetUserPosition(ctx context.Context, quizID string, userID int64) (int, *LeaderboardEntry, error) {
	top, err := gs.GetTop(ctx, quizID, 0)
	if err != nil {
		return -1, nil, err
	}
	pos, e := position(top, userID)
	return pos, e, nil
}
