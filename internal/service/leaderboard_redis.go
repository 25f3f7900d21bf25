package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/PoluyanbIch/quizclock/internal/session"
)

const redisKeyPrefix = "quizclock:leaderboard:"

// RedisLeaderboardService keeps one hash per quiz, user ID -> JSON entry.
type RedisLeaderboardService struct {
	client *redis.Client
}

func NewRedisLeaderboardService(addr string) *RedisLeaderboardService {
	return &RedisLeaderboardService{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func redisKey(quizID string) string {
	return redisKeyPrefix + quizID
}

func (rs *RedisLeaderboardService) AddEntry(ctx context.Context, quizID string, p Player, res session.Result) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, leaderboardTimeout)
	defer cancel()

	key := redisKey(quizID)
	field := strconv.FormatInt(p.UserID, 10)
	entry := newEntry(quizID, p, res)

	var stored bool
	// Optimistic lock so two finishes by the same player cannot both win.
	err := rs.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			var old LeaderboardEntry
			if err := json.Unmarshal(raw, &old); err != nil {
				return errors.Wrap(err, "decoding leaderboard entry")
			}
			if !better(entry, old) {
				return nil
			}
		}

		val, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, val)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, key)
	if err != nil {
		return false, errors.Wrap(err, "saving leaderboard entry")
	}
	return stored, nil
}

func (rs *RedisLeaderboardService) GetTop(ctx context.Context, quizID string, limit int) ([]LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, leaderboardTimeout)
	defer cancel()

	all, err := rs.client.HGetAll(ctx, redisKey(quizID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "loading leaderboard")
	}

	entries := make([]LeaderboardEntry, 0, len(all))
	for _, raw := range all {
		var e LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, errors.Wrap(err, "decoding leaderboard entry")
		}
		entries = append(entries, e)
	}
	return topN(entries, limit), nil
}

func (rs *RedisLeaderboardService) GetUserPosition(ctx context.Context, quizID string, userID int64) (int, *LeaderboardEntry, error) {
	top, err := rs.GetTop(ctx, quizID, 0)
	if err != nil {
		return -1, nil, err
	}
	pos, e := position(top, userID)
	return pos, e, nil
}

func (rs *RedisLeaderboardService) Close() error {
	return rs.client.Close()
}
