package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "sprout:jobs"

// RedisQueue keeps jobs in a sorted set scored by due time, so several
// workers can share one queue.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

// NewRedisQueue connects to url ("redis://host:port/db").
func NewRedisQueue(ctx context.Context, url string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisQueue{rdb: rdb, key: defaultRedisKey}, nil
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

func (q *RedisQueue) ScheduleOnce(ctx context.Context, job Job) error {
	return q.rdb.ZAddNX(ctx, q.key, redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.Key(),
	}).Err()
}

func (q *RedisQueue) IsScheduled(ctx context.Context, name string, args []string) (bool, error) {
	err := q.rdb.ZScore(ctx, q.key, Job{Name: name, Args: args}.Key()).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (q *RedisQueue) Clear(ctx context.Context, name string) (int, error) {
	members, err := q.rdb.ZRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	var drop []any
	for _, m := range members {
		if j, err := decodeJob(m); err == nil && j.Name == name {
			drop = append(drop, m)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	n, err := q.rdb.ZRem(ctx, q.key, drop...).Result()
	return int(n), err
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	due, err := q.rdb.ZRangeByScoreWithScores(ctx, q.key, by).Result()
	if err != nil {
		return nil, err
	}

	var out []Job
	for _, z := range due {
		member, _ := z.Member.(string)
		// Whoever removes the member owns the job.
		n, err := q.rdb.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return out, err
		}
		if n == 0 {
			continue
		}
		j, err := decodeJob(member)
		if err != nil {
			continue
		}
		j.RunAt = time.UnixMilli(int64(z.Score))
		out = append(out, j)
	}
	return out, nil
}

func decodeJob(member string) (Job, error) {
	var j Job
	err := json.Unmarshal([]byte(member), &j)
	return j, err
}
