// Package session keeps per-session chat history in Redis as a JSON array
// under chat:{sessionID}. Every write refreshes the key's expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"document-assistant/internal/config"
	"document-assistant/internal/models"
)

const (
	keyPrefix         = "chat:"
	defaultMaxRetries = 16
)

var ErrConcurrentUpdate = errors.New("session modified concurrently, retries exhausted")

type Store struct {
	client     redis.UniversalClient
	ttl        time.Duration
	maxRetries int
}

func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	return &Store{client: client, ttl: ttl, maxRetries: defaultMaxRetries}
}

// NewClient opens a Redis client from cfg.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	log.Debug().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connecting to redis")
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func Key(sessionID string) string { return keyPrefix + sessionID }

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// History returns the stored messages in chronological order, or an empty
// slice for an unknown or expired session.
func (s *Store) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	return readHistory(ctx, s.client, Key(sessionID))
}

// Append adds messages to the end of the session history and refreshes its
// expiry. The read-modify-write runs under WATCH and is retried when another
// writer touched the key in between, so concurrent appends are not lost.
func (s *Store) Append(ctx context.Context, sessionID string, messages ...models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	key := Key(sessionID)

	txf := func(tx *redis.Tx) error {
		history, err := readHistory(ctx, tx, key)
		if err != nil {
			return err
		}
		history = append(history, messages...)
		data, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			log.Debug().Str("session_id", sessionID).Int("messages", len(messages)).Msg("Saved messages")
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Debug().Str("session_id", sessionID).Int("attempt", attempt+1).Msg("Session append conflicted, retrying")
	}
	return ErrConcurrentUpdate
}

// Clear deletes the whole history. Clearing an unknown session is a no-op.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, Key(sessionID)).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readHistory(ctx context.Context, g getter, key string) ([]models.Message, error) {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	var history []models.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("corrupt history under %s: %w", key, err)
	}
	if history == nil {
		history = []models.Message{}
	}
	return history, nil
}
