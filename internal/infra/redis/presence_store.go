package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evaly-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PresenceStore keeps presence rows in Redis.
// Rows are stored as: HSET presence:{testID} {participantID} {json}
// Creation order as:  ZADD presence:{testID}:order NX {createdMillis} {participantID}
// Both keys expire ttl after the last write; presence is ephemeral.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

// presenceRecord carries the watchdog job id, which the public JSON form hides.
type presenceRecord struct {
	domain.TestPresence
	MarkAsGoneJobID string `json:"markAsGoneJobId,omitempty"`
}

func (s *PresenceStore) Get(ctx context.Context, testID, participantID string) (domain.TestPresence, error) {
	raw, err := s.client.HGet(ctx, s.rowsKey(testID), participantID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TestPresence{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TestPresence{}, fmt.Errorf("load presence: %w", err)
	}
	return decodePresence(raw)
}

func (s *PresenceStore) Put(ctx context.Context, presence domain.TestPresence) error {
	raw, err := json.Marshal(presenceRecord{TestPresence: presence, MarkAsGoneJobID: presence.MarkAsGoneJobID})
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	rows, order := s.rowsKey(presence.TestID), s.orderKey(presence.TestID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rows, presence.ParticipantID, raw)
		pipe.ZAddNX(ctx, order, redis.Z{Score: float64(presence.Created.UnixMilli()), Member: presence.ParticipantID})
		if s.ttl > 0 {
			pipe.Expire(ctx, rows, s.ttl)
			pipe.Expire(ctx, order, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) ListPresent(ctx context.Context, testID string, limit int) ([]domain.TestPresence, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(testID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load presence order: %w", err)
	}
	out := make([]domain.TestPresence, 0)
	if len(ids) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, s.rowsKey(testID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load presence rows: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodePresence([]byte(raw))
		if err != nil {
			return nil, err
		}
		if !p.Present {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func decodePresence(raw []byte) (domain.TestPresence, error) {
	var rec presenceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.TestPresence{}, fmt.Errorf("decode presence: %w", err)
	}
	rec.TestPresence.MarkAsGoneJobID = rec.MarkAsGoneJobID
	return rec.TestPresence, nil
}

func (s *PresenceStore) rowsKey(testID string) string {
	return "presence:" + testID
}

func (s *PresenceStore) orderKey(testID string) string {
	return "presence:" + testID + ":order"
}
