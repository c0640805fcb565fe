package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sprite-ai/prlens/internal/logger"
)

type RedisConfig struct {
	Stream   string        // stream name
	Group    string        // consumer group name
	Consumer string        // consumer name prefix; workers append "-<n>"
	Block    time.Duration // how long one read blocks waiting for messages
}

// Redis is a Queue on a Redis stream. Every worker is a separate consumer in
// one group, so each task is delivered to a single worker.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis connects to url (redis://host:port/db) and ensures the consumer
// group exists.
func NewRedis(ctx context.Context, url string, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	q := &Redis{client: client, cfg: cfg}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	if err := q.ensureGroup(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Redis) ensureGroup(ctx context.Context) error {
	// Start from "0" so tasks added before the group existed are not skipped.
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (q *Redis) Enqueue(ctx context.Context, task Task) error {
	if task.Attempt <= 0 {
		task.Attempt = 1
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: taskValues(task),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	slog.DebugContext(ctx, "enqueued task", "job_id", task.JobID, "stream", q.cfg.Stream)
	return nil
}

func (q *Redis) Consume(ctx context.Context, workers int, h Handler) error {
	if workers < 1 {
		workers = 1
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "prlens.queue.redis"})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		consumer := fmt.Sprintf("%s-%d", q.cfg.Consumer, i)
		go func() {
			defer wg.Done()
			q.consumeLoop(ctx, consumer, h)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *Redis) consumeLoop(ctx context.Context, consumer string, h Handler) {
	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    1,
			Block:    q.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			slog.ErrorContext(ctx, "reading from stream", "error", err, "consumer", consumer)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handle(ctx, msg, h)
			}
		}
	}
}

func (q *Redis) handle(ctx context.Context, msg redis.XMessage, h Handler) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: msg.ID})

	task, err := ParseMessage(msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse message", "error", err, "stream", q.cfg.Stream)
	} else if err := h(ctx, task); err != nil {
		slog.ErrorContext(ctx, "task failed", "job_id", task.JobID, "error", err)
	}

	// Acknowledge with a fresh context so shutdown does not leave the
	// message pending after its handler finished.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := q.client.XAck(ackCtx, q.cfg.Stream, q.cfg.Group, msg.ID).Err(); err != nil {
		slog.ErrorContext(ctx, "xack failed", "error", err, "stream", q.cfg.Stream)
	}
}

func (q *Redis) Close() error {
	return q.client.Close()
}

// ParseMessage decodes a stream entry written by Enqueue.
func ParseMessage(msg redis.XMessage) (Task, error) {
	jobID, err := parseString(msg.Values, "job_id")
	if err != nil {
		return Task{}, err
	}
	if jobID == "" {
		return Task{}, fmt.Errorf("empty job_id")
	}
	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Task{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	return Task{
		JobID:      jobID,
		Credential: parseOptionalString(msg.Values, "credential"),
		TraceID:    parseOptionalString(msg.Values, "trace_id"),
		Attempt:    attempt,
	}, nil
}

func taskValues(task Task) map[string]any {
	values := map[string]any{
		"job_id":  task.JobID,
		"attempt": task.Attempt,
	}
	if task.Credential != "" {
		values["credential"] = task.Credential
	}
	if task.TraceID != "" {
		values["trace_id"] = task.TraceID
	}
	return values
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}
