package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gatepass/internal/status"
	"gatepass/models"
	"gatepass/utils"

	"github.com/redis/go-redis/v9"
)

// IntentService parks a registration attempt made before the caller had
// a session. The intent lives in Redis under an opaque token and is
// replayed through Register after sign-in; claiming consumes it.
type IntentService struct {
	Redis *redis.Client

	ttl time.Duration
	now func() time.Time
}

func NewIntentService(redisClient *redis.Client, ttl time.Duration) *IntentService {
	return &IntentService{
		Redis: redisClient,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Save stores the intent and returns its token.
func (s *IntentService) Save(ctx context.Context, eventID, passID string) (string, error) {
	token, err := utils.GenerateCode(16)
	if err != nil {
		return "", fmt.Errorf("intent token: %w", err)
	}

	intent := models.Intent{
		EventID:   eventID,
		PassID:    passID,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(intent)
	if err != nil {
		return "", err
	}

	if err := s.Redis.Set(ctx, fmt.Sprintf("intent:%s", token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("save intent: %w", err)
	}

	return token, nil
}

// Claim consumes the intent behind token. A second claim, or a claim
// after expiry, gets status.ErrIntentNotFound.
func (s *IntentService) Claim(ctx context.Context, token string) (*models.Intent, error) {
	data, err := s.Redis.GetDel(ctx, fmt.Sprintf("intent:%s", token)).Result()
	if err == redis.Nil {
		return nil, status.ErrIntentNotFound
	} else if err != nil {
		return nil, fmt.Errorf("claim intent: %w", err)
	}

	var intent models.Intent
	if err := json.Unmarshal([]byte(data), &intent); err != nil {
		return nil, fmt.Errorf("claim intent: decode: %w", err)
	}

	return &intent, nil
}
