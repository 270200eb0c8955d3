package registrations

import (
	"context"
	"encoding/json"
	"fmt"

	"chapter/internal/models"
	rplatform "chapter/internal/platform/redis"
)

// RedisStore keeps each event's registrations as a JSON list, with a set of
// emails alongside it for duplicate checks.
type RedisStore struct {
	client *rplatform.Client
}

func NewRedisStore(client *rplatform.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) listKey(eventID string) string  { return fmt.Sprintf("event:%s:registrations", eventID) }
func (s *RedisStore) emailKey(eventID string) string { return fmt.Sprintf("event:%s:emails", eventID) }

func (s *RedisStore) Register(ctx context.Context, eventID string, p models.Participant) error {
	p, err := Normalize(p)
	if err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}

	if p.Email != "" {
		added, err := s.client.SAdd(ctx, s.emailKey(eventID), p.Email).Result()
		if err != nil {
			return fmt.Errorf("register %s: %w", eventID, err)
		}
		if added == 0 {
			return ErrAlreadyRegistered
		}
	}
	if err := s.client.RPush(ctx, s.listKey(eventID), b).Err(); err != nil {
		if p.Email != "" {
			_ = s.client.SRem(ctx, s.emailKey(eventID), p.Email).Err()
		}
		return fmt.Errorf("register %s: %w", eventID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, eventID string) ([]models.Participant, error) {
	raw, err := s.client.LRange(ctx, s.listKey(eventID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", eventID, err)
	}
	out := make([]models.Participant, 0, len(raw))
	for _, v := range raw {
		var p models.Participant
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("list %s: decode registration: %w", eventID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, s.listKey(eventID), s.emailKey(eventID)).Err()
}
