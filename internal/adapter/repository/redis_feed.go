package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/repository"
)

// RedisFeed publishes progress events on a per-user Redis channel so every
// server instance can deliver them to its own subscribers.
type RedisFeed struct {
	rdb    *goredis.Client
	prefix string
	logger logrus.FieldLogger
}

// NewRedisFeed connects to addr and verifies the connection.
func NewRedisFeed(ctx context.Context, addr, password string, db int, prefix string, logger logrus.FieldLogger) (*RedisFeed, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	if prefix == "" {
		prefix = "salita:progress"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisFeed{rdb: rdb, prefix: prefix, logger: logger.WithField("component", "redis_feed")}, nil
}

func (f *RedisFeed) channel(userID string) string {
	return f.prefix + ":" + userID
}

func (f *RedisFeed) Publish(ctx context.Context, event repository.ProgressEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.channel(event.UserID), raw).Err(); err != nil {
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, userID string, fn func(repository.ProgressEvent)) (func(), error) {
	sub := f.rdb.Subscribe(ctx, f.channel(userID))
	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var event repository.ProgressEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					f.logger.WithError(err).Warn("bad progress event payload")
					continue
				}
				fn(event)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

func (f *RedisFeed) Close() error {
	return f.rdb.Close()
}
