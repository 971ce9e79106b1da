// Package redismirror mirrors persisted presence into a Redis set so other
// services can ask who is online without querying the database.
package redismirror

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// OnlineKey holds the ids of users whose persisted status is online.
const OnlineKey = "presence:online"

// client is the subset of *redis.Client the mirror uses.
type client interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store decorates a store.Store. Status writes go to the database first; the
// Redis mirror is updated afterwards and its failures are only logged.
type Store struct {
	store.Store
	rdb client
	log *zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// New wraps inner with a Redis presence mirror.
func New(inner store.Store, rdb client, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{Store: inner, rdb: rdb, log: logger}
}

// UpdateUserStatus persists the status and mirrors it into OnlineKey.
func (s *Store) UpdateUserStatus(ctx context.Context, id string, status store.UserStatus) error {
	if err := s.Store.UpdateUserStatus(ctx, id, status); err != nil {
		return err
	}

	var err error
	if status == store.StatusOnline {
		err = s.rdb.SAdd(ctx, OnlineKey, id).Err()
	} else {
		err = s.rdb.SRem(ctx, OnlineKey, id).Err()
	}
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Str("status", string(status)).Msg("mirror presence to redis")
	}
	return nil
}

// ResetPresence resets the database and clears the mirror.
func (s *Store) ResetPresence(ctx context.Context) (int64, error) {
	n, err := s.Store.ResetPresence(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Del(ctx, OnlineKey).Err(); err != nil {
		s.log.Warn().Err(err).Msg("clear redis presence mirror")
	}
	return n, nil
}

// IsOnline reports whether the mirror lists the user as online.
func (s *Store) IsOnline(ctx context.Context, id string) (bool, error) {
	online, err := s.rdb.SIsMember(ctx, OnlineKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return online, nil
}

// OnlineUsers lists the mirrored online user ids, sorted.
func (s *Store) OnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, OnlineKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
