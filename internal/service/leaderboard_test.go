package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/PoluyanbIch/quizclock/internal/session"
)

func result(score, max int) session.Result {
	return session.Result{
		TotalScore: score,
		MaxScore:   max,
		Reason:     session.ReasonCompleted,
		FinishedAt: time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC),
	}
}

var (
	alice = Player{UserID: 1, Username: "alice", FirstName: "Alice"}
	bob   = Player{UserID: 2, FirstName: "Bob"}
	carol = Player{UserID: 3, Username: "carol"}
)

// leaderboardBehaviour is shared by every backend.
func leaderboardBehaviour(newService func() LeaderboardService) {
	var (
		ctx context.Context
		lb  LeaderboardService
	)

	BeforeEach(func() {
		ctx = context.Background()
		lb = newService()
	})

	It("ranks by percentage, then score", func() {
		for _, add := range []struct {
			p   Player
			res session.Result
		}{
			{alice, result(5, 10)},
			{bob, result(9, 10)},
			{carol, result(10, 20)},
		} {
			_, err := lb.AddEntry(ctx, "q1", add.p, add.res)
			Expect(err).NotTo(HaveOccurred())
		}

		top, err := lb.GetTop(ctx, "q1", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(3))
		Expect(top[0].UserID).To(Equal(bob.UserID))
		Expect(top[1].UserID).To(Equal(carol.UserID))
		Expect(top[2].UserID).To(Equal(alice.UserID))
		Expect(top[0].Percentage).To(Equal(90))
		Expect(top[0].Date).To(Equal("18.10.2026 12:30"))

		top, err = lb.GetTop(ctx, "q1", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(2))
	})

	It("keeps only a player's best result", func() {
		best, err := lb.AddEntry(ctx, "q1", alice, result(5, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(best).To(BeTrue())

		best, err = lb.AddEntry(ctx, "q1", alice, result(3, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(best).To(BeFalse())

		best, err = lb.AddEntry(ctx, "q1", alice, result(8, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(best).To(BeTrue())

		top, err := lb.GetTop(ctx, "q1", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(1))
		Expect(top[0].Score).To(Equal(8))
	})

	It("keeps quizzes apart and finds positions", func() {
		_, err := lb.AddEntry(ctx, "q1", alice, result(5, 10))
		Expect(err).NotTo(HaveOccurred())
		_, err = lb.AddEntry(ctx, "q1", bob, result(7, 10))
		Expect(err).NotTo(HaveOccurred())
		_, err = lb.AddEntry(ctx, "q2", carol, result(1, 10))
		Expect(err).NotTo(HaveOccurred())

		pos, e, err := lb.GetUserPosition(ctx, "q1", alice.UserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(2))
		Expect(e.Username).To(Equal("alice"))

		pos, e, err = lb.GetUserPosition(ctx, "q1", carol.UserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(-1))
		Expect(e).To(BeNil())

		top, err := lb.GetTop(ctx, "q2", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(1))
	})
}

var _ = Describe("MemoryLeaderboardService", func() {
	leaderboardBehaviour(func() LeaderboardService { return NewMemoryLeaderboardService() })
})

// fakeGist serves the two GitHub endpoints the Gist backend uses.
type fakeGist struct {
	mu      sync.Mutex
	content string
	patches int
}

func (f *fakeGist) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "token secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"files": map[string]interface{}{
				"leaderboard.json": map[string]string{"content": f.content},
			},
		})
	case http.MethodPatch:
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Files map[string]struct {
				Content string `json:"content"`
			} `json:"files"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.content = req.Files["leaderboard.json"].Content
		f.patches++
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeGist) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches
}

var _ = Describe("GistLeaderboardService", func() {
	var server *httptest.Server

	AfterEach(func() {
		server.Close()
	})

	Context("against a working gist", func() {
		leaderboardBehaviour(func() LeaderboardService {
			server = httptest.NewServer(&fakeGist{})
			gs := NewGistLeaderboardService("abc", "secret")
			gs.baseURL = server.URL + "/gists/"
			return gs
		})
	})

	It("does not write when the result is not better", func() {
		fake := &fakeGist{}
		server = httptest.NewServer(fake)
		gs := NewGistLeaderboardService("abc", "secret")
		gs.baseURL = server.URL + "/gists/"

		_, err := gs.AddEntry(context.Background(), "q1", alice, result(5, 10))
		Expect(err).NotTo(HaveOccurred())
		_, err = gs.AddEntry(context.Background(), "q1", alice, result(1, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.patchCount()).To(Equal(1))
	})

	It("keeps every entry when players finish at the same time", func() {
		server = httptest.NewServer(&fakeGist{})
		gs := NewGistLeaderboardService("abc", "secret")
		gs.baseURL = server.URL + "/gists/"

		const players = 20
		var wg sync.WaitGroup
		for i := 1; i <= players; i++ {
			wg.Add(1)
			go func(id int64) {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := gs.AddEntry(context.Background(), "q1", Player{UserID: id}, result(5, 10))
				Expect(err).NotTo(HaveOccurred())
			}(int64(i))
		}
		wg.Wait()

		top, err := gs.GetTop(context.Background(), "q1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(players))
	})

	It("reports HTTP errors", func() {
		server = httptest.NewServer(&fakeGist{})
		gs := NewGistLeaderboardService("abc", "wrong")
		gs.baseURL = server.URL + "/gists/"

		_, err := gs.GetTop(context.Background(), "q1", 10)
		Expect(err).To(MatchError(ContainSubstring("401")))
	})
})

var _ = Describe("RedisLeaderboardService", func() {
	var rs *RedisLeaderboardService
	addr := os.Getenv("REDIS_ADDR")

	BeforeEach(func() {
		if addr == "" {
			Skip("REDIS_ADDR not set")
		}
	})

	AfterEach(func() {
		if rs != nil {
			rs.Close()
			rs = nil
		}
	})

	leaderboardBehaviour(func() LeaderboardService {
		rs = NewRedisLeaderboardService(addr)
		ctx := context.Background()
		for _, quizID := range []string{"q1", "q2"} {
			Expect(rs.client.Del(ctx, redisKey(quizID)).Err()).To(Succeed())
		}
		return rs
	})
})

var _ = Describe("NewLeaderboardService", func() {
	It("falls back to memory", func() {
		Expect(NewLeaderboardService("", "", "")).To(BeAssignableToTypeOf(&MemoryLeaderboardService{}))
		Expect(NewLeaderboardService("", "gist", "")).To(BeAssignableToTypeOf(&MemoryLeaderboardService{}))
	})

	It("prefers Redis, then the Gist", func() {
		Expect(NewLeaderboardService("localhost:6379", "gist", "token")).To(BeAssignableToTypeOf(&RedisLeaderboardService{}))
		Expect(NewLeaderboardService("", "gist", "token")).To(BeAssignableToTypeOf(&GistLeaderboardService{}))
	})
})
