package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"legal-consult/internal/status"
	"legal-consult/models"
)

const (
	draftKeyPrefix = "booking_draft:"
	orderKeyPrefix = "order_draft:"
	cleanupListKey = "draft_cleanup_retry"
)

// DraftService owns the ephemeral side of a booking: unconfirmed drafts and
// the order-id index that lets a payment confirmation find its draft. Redis
// TTLs do all expiry; a missing key simply reads as "expired".
type DraftService struct {
	Redis *redis.Client
	ttl   time.Duration
}

func NewDraftService(redisClient *redis.Client, ttl time.Duration) *DraftService {
	return &DraftService{Redis: redisClient, ttl: ttl}
}

// Put stores a fresh draft under the full TTL.
func (s *DraftService) Put(ctx context.Context, d *models.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, draftKeyPrefix+d.ID, data, s.ttl).Err()
}

// Get loads a draft. An expired or unknown id returns ErrDraftNotFound.
func (s *DraftService) Get(ctx context.Context, draftID string) (*models.Draft, error) {
	data, err := s.Redis.Get(ctx, draftKeyPrefix+draftID).Result()
	if err == redis.Nil {
		return nil, status.ErrDraftNotFound
	} else if err != nil {
		return nil, err
	}

	var d models.Draft
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Rewrite overwrites a draft in place without touching its remaining TTL.
// Regenerating a summary or attaching an order id never grants extra time.
func (s *DraftService) Rewrite(ctx context.Context, d *models.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, draftKeyPrefix+d.ID, data, redis.KeepTTL).Err()
}

// LinkOrder indexes orderID -> draftID with the draft's remaining TTL, so
// the index can never outlive the draft it points at.
func (s *DraftService) LinkOrder(ctx context.Context, draftID, orderID string) error {
	remaining, err := s.Redis.TTL(ctx, draftKeyPrefix+draftID).Result()
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return status.ErrDraftNotFound
	}
	return s.Redis.Set(ctx, orderKeyPrefix+orderID, draftID, remaining).Err()
}

// ResolveOrder maps an external order id back to its draft id. Absence is
// the idempotency gate for confirmation: once a confirm has cleaned up the
// index, a second confirm for the same order finds nothing.
func (s *DraftService) ResolveOrder(ctx context.Context, orderID string) (string, error) {
	draftID, err := s.Redis.Get(ctx, orderKeyPrefix+orderID).Result()
	if err == redis.Nil {
		return "", status.ErrOrderNotFound
	} else if err != nil {
		return "", err
	}
	return draftID, nil
}

// Delete removes a draft and its order index entry.
func (s *DraftService) Delete(ctx context.Context, draftID, orderID string) error {
	keys := []string{draftKeyPrefix + draftID}
	if orderID != "" {
		keys = append(keys, orderKeyPrefix+orderID)
	}
	return s.Redis.Del(ctx, keys...).Err()
}

// QueueCleanup records a draft whose post-confirmation deletion failed so
// the background worker can retry it. The booking is already durable at
// this point, so the caller never sees this failure.
func (s *DraftService) QueueCleanup(ctx context.Context, draftID, orderID string) {
	entry := fmt.Sprintf("%s|%s", draftID, orderID)
	if err := s.Redis.LPush(ctx, cleanupListKey, entry).Err(); err != nil {
		log.Printf("Error queueing draft cleanup for %s: %v", draftID, err)
	}
}

// RetryCleanup drains the cleanup retry list on an interval until ctx ends.
func (s *DraftService) RetryCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				entry, err := s.Redis.RPop(ctx, cleanupListKey).Result()
				if errors.Is(err, redis.Nil) {
					break
				} else if err != nil {
					log.Printf("Error popping cleanup entry: %v", err)
					break
				}

				draftID, orderID, _ := strings.Cut(entry, "|")
				if err := s.Delete(ctx, draftID, orderID); err != nil {
					log.Printf("Error retrying draft cleanup for %s: %v", draftID, err)
					s.Redis.LPush(ctx, cleanupListKey, entry)
					break
				}
			}
		}
	}
}
