package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/graphchat/internal/domain"
)

const maxAppendAttempts = 3

// Store keeps each transcript as a Redis list of JSON-encoded messages under
// "<prefix>:session:<id>:messages".
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ domain.TranscriptStore = (*Store)(nil)

// NewStore connects to redisURL and verifies the connection.
// ttl <= 0 keeps transcripts forever.
func NewStore(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(rdb, prefix, ttl), nil
}

func NewStoreWithClient(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "graphchat"
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

type messageRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Kind    string `json:"type,omitempty"`
}

func (s *Store) key(sessionID domain.SessionID) string {
	return fmt.Sprintf("%s:session:%s:messages", s.prefix, sessionID)
}

// AppendMessages pushes msgs in one MULTI/EXEC, guarded by WATCH so that a
// concurrent writer on another instance turns into ErrSequenceConflict or a
// retry instead of an interleaved transcript.
func (s *Store) AppendMessages(ctx context.Context, sessionID domain.SessionID, msgs ...*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(messageRecord{
			ID:      string(m.ID),
			Content: m.Content,
			Role:    string(m.Role),
			Name:    m.Name,
			Kind:    string(m.Kind),
		})
		if err != nil {
			return fmt.Errorf("redis AppendMessages marshal: %w", err)
		}
		values = append(values, string(data))
	}

	key := s.key(sessionID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return err
		}
		if err := domain.CheckSequence(int(n), msgs); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, values...)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrSequenceConflict) {
			return err
		}
		return fmt.Errorf("redis AppendMessages: %w", err)
	}
	return fmt.Errorf("redis AppendMessages: %w", domain.ErrSequenceConflict)
}

func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	raw, err := s.rdb.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis GetMessagesBySession: %w", err)
	}

	out := make([]*domain.Message, 0, len(raw))
	for _, item := range raw {
		var rec messageRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, &domain.Message{
			ID:      domain.MessageID(rec.ID),
			Content: rec.Content,
			Role:    domain.Role(rec.Role),
			Name:    rec.Name,
			Kind:    domain.Kind(rec.Kind),
		})
	}
	return out, nil
}

func (s *Store) CountMessages(ctx context.Context, sessionID domain.SessionID) (int, error) {
	n, err := s.rdb.LLen(ctx, s.key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis CountMessages: %w", err)
	}
	return int(n), nil
}
