package services

import (
	"context"
	"fmt"
	"time"

	"gatepass/internal/status"
	"gatepass/internal/store"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// OperatorService delegates gate duty. An organizer shares the event's
// scanner PIN out of band; a helper who presents it gets a scoped,
// expiring grant in Redis and can then scan and work the roster for
// that one event.
type OperatorService struct {
	Redis *redis.Client
	Store store.Store

	grantTTL time.Duration
}

func NewOperatorService(redisClient *redis.Client, st store.Store, grantTTL time.Duration) *OperatorService {
	return &OperatorService{
		Redis:    redisClient,
		Store:    st,
		grantTTL: grantTTL,
	}
}

// Claim exchanges the scanner PIN for an operator grant. A wrong PIN
// and an event without one both come back status.ErrForbidden; the
// caller cannot tell which.
func (s *OperatorService) Claim(ctx context.Context, eventID, userID, pin string) error {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if event.ScannerPINHash == "" {
		return status.ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword([]byte(event.ScannerPINHash), []byte(pin)); err != nil {
		return status.ErrForbidden
	}

	key := fmt.Sprintf("operator:%s:%s", eventID, userID)
	if err := s.Redis.Set(ctx, key, "1", s.grantTTL).Err(); err != nil {
		return fmt.Errorf("store operator grant: %w", err)
	}

	return nil
}

// Scope resolves the operator context for a gate action: the organizer
// and granted helpers get an event-scoped Operator, everyone else
// status.ErrForbidden.
func (s *OperatorService) Scope(ctx context.Context, eventID, userID string) (Operator, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return Operator{}, err
	}

	if event.OrganizerID == userID {
		return Operator{UserID: userID, EventID: eventID}, nil
	}

	granted, err := s.Redis.Exists(ctx, fmt.Sprintf("operator:%s:%s", eventID, userID)).Result()
	if err != nil {
		return Operator{}, fmt.Errorf("check operator grant: %w", err)
	}
	if granted == 0 {
		return Operator{}, status.ErrForbidden
	}

	return Operator{UserID: userID, EventID: eventID}, nil
}
