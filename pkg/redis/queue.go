package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"roulette/pkg/types/matchtype"
)

const (
	queueKey        = "match:queue"
	queueEntriesKey = "match:queue:entries"
)

// PendingQueue keeps the waiting list in a sorted set scored by enqueue
// time, with the full entry JSON in a companion hash. Enqueue and Claim go
// through Lua so cross-user races serialize inside Redis; the per-user lock
// cannot cover two different requesters grabbing the same candidate.
type PendingQueue struct {
	client *redis.Client
}

func NewPendingQueue(r *RedisClient) *PendingQueue {
	return &PendingQueue{client: r.Client}
}

var enqueueScript = redis.NewScript(`
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
	return 1
`)

var claimScript = redis.NewScript(`
	local removed = redis.call('ZREM', KEYS[1], ARGV[1])
	if removed == 1 then
		redis.call('HDEL', KEYS[2], ARGV[1])
		return 1
	end
	return 0
`)

var setInterestScript = redis.NewScript(`
	local raw = redis.call('HGET', KEYS[1], ARGV[1])
	if not raw then
		return 0
	end
	local entry = cjson.decode(raw)
	entry['interest'] = tonumber(ARGV[2])
	redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(entry))
	return 1
`)

// Enqueue upserts the entry; a user changing preference while waiting never
// produces a second row.
func (q *PendingQueue) Enqueue(ctx context.Context, entry matchtype.PendingEntry) error {
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	member := strconv.FormatInt(entry.UserID, 10)
	score := float64(entry.EnqueuedAt.UnixMicro())

	return enqueueScript.Run(ctx, q.client,
		[]string{queueKey, queueEntriesKey},
		member, score, string(data),
	).Err()
}

// Claim removes the user's entry atomically and reports whether this caller
// took it. Losing the claim means another searcher got there first.
func (q *PendingQueue) Claim(ctx context.Context, userID int64) (bool, error) {
	member := strconv.FormatInt(userID, 10)
	result, err := claimScript.Run(ctx, q.client,
		[]string{queueKey, queueEntriesKey},
		member,
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (q *PendingQueue) Remove(ctx context.Context, userID int64) error {
	_, err := q.Claim(ctx, userID)
	return err
}

func (q *PendingQueue) Get(ctx context.Context, userID int64) (*matchtype.PendingEntry, error) {
	raw, err := q.client.HGet(ctx, queueEntriesKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry matchtype.PendingEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Oldest returns up to n entries in FIFO order.
func (q *PendingQueue) Oldest(ctx context.Context, n int) ([]matchtype.PendingEntry, error) {
	ids, err := q.client.ZRange(ctx, queueKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raws, err := q.client.HMGet(ctx, queueEntriesKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]matchtype.PendingEntry, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var entry matchtype.PendingEntry
		if err := json.Unmarshal([]byte(s), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (q *PendingQueue) Count(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, queueKey).Result()
	return int(n), err
}

func (q *PendingQueue) GenderBalance(ctx context.Context) (male, female int, err error) {
	raws, err := q.client.HVals(ctx, queueEntriesKey).Result()
	if err != nil {
		return 0, 0, err
	}

	for _, raw := range raws {
		var entry matchtype.PendingEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry.Gender == matchtype.GenderMale {
			male++
		} else {
			female++
		}
	}
	return male, female, nil
}

// PositionOf returns the FIFO rank of the user, or -1 when absent.
func (q *PendingQueue) PositionOf(ctx context.Context, userID int64) (int, error) {
	rank, err := q.client.ZRank(ctx, queueKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return int(rank), nil
}

// SetInterest rewrites the stored preference in place. The score is not
// touched, so the user keeps their queue position.
func (q *PendingQueue) SetInterest(ctx context.Context, userID int64, interest matchtype.Interest) (bool, error) {
	result, err := setInterestScript.Run(ctx, q.client,
		[]string{queueEntriesKey},
		strconv.FormatInt(userID, 10), int(interest),
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// PurgeStale drops entries enqueued before now-olderThan and returns how
// many were removed.
func (q *PendingQueue) PurgeStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixMicro()

	ids, err := q.client.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, id := range ids {
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		taken, err := q.Claim(ctx, userID)
		if err != nil {
			return purged, err
		}
		if taken {
			purged++
		}
	}
	return purged, nil
}
