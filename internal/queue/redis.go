package queue

import (
	"context"
	"encoding/json"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

// RedisQueue stores jobs in a Redis list. Producers LPUSH and consumers BRPOP, which gives FIFO order.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisQueue connects to the Redis server at addr and verifies the connection with PING.
func NewRedisQueue(ctx context.Context, addr string, key string, logger *slog.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{ //nolint:exhaustruct // defaults are fine
		Addr:        addr,
		DialTimeout: 5 * time.Second, //nolint:mnd // connecting should be fast
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // see above
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis", slog.String("addr", addr))
	}

	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With("source", "RedisQueue"),
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job", slog.String("session_id", job.SessionID))
	}
	if err = q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return errors.Wrap(err, "push job", slog.String("session_id", job.SessionID), slog.String("key", q.key))
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (Job, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrEmpty
	}
	if err != nil {
		return Job{}, errors.Wrap(err, "pop job", slog.String("key", q.key))
	}
	// BRPOP replies with the key followed by the value.
	if len(res) != 2 { //nolint:mnd // see above
		return Job{}, errors.New("unexpected BRPOP reply", slog.Int("len", len(res)))
	}

	var job Job
	if err = json.Unmarshal([]byte(res[1]), &job); err != nil {
		q.logger.LogAttrs(ctx, slog.LevelError, "dropping malformed job", errors.SlogError(err),
			slog.String("payload", res[1]))
		return Job{}, errors.Wrap(err, "unmarshal job")
	}
	return job, nil
}

// Len returns the number of queued jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "llen", slog.String("key", q.key))
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return errors.Wrap(err, "close redis client")
	}
	return nil
}
