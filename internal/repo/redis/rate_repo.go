package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateRepo keeps per-user upload admission windows. One key per user,
// armed with the window TTL on first use.
type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

// ChargeUpload bumps the user's upload counter and arms the TTL on
// first use. The INCR decides atomically which caller crossed the cap.
func (r *RateRepo) ChargeUpload(ctx context.Context, userID int64, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || window <= 0 {
		return 0, 0, fmt.Errorf("invalid upload window payload")
	}

	key := uploadHourKey(userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("increment upload window: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("arm upload window ttl: %w", err)
		}
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read upload window ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return count, ttl, nil
}

// UploadState reads the user's window without charging it.
func (r *RateRepo) UploadState(ctx context.Context, userID int64) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return 0, 0, fmt.Errorf("invalid user id")
	}

	key := uploadHourKey(userID)
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil && err != goredis.Nil {
		return 0, 0, fmt.Errorf("get upload window state: %w", err)
	}
	if err == goredis.Nil {
		return 0, 0, nil
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read upload window ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return count, ttl, nil
}

func uploadHourKey(userID int64) string {
	return "rate:upload:hour:" + strconv.FormatInt(userID, 10)
}
