package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gatherly/gatherly/internal/ranking/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each ranking as a sorted set keyed by domain.Type.Key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) UpsertScore(ctx context.Context, t domain.Type, userID, score int64) error {
	if !t.Valid() {
		return domain.ErrUnknownType
	}
	err := s.client.ZAdd(ctx, t.Key(), redis.Z{
		Score:  float64(score),
		Member: strconv.FormatInt(userID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) UpsertScores(ctx context.Context, t domain.Type, members []domain.Member) error {
	if !t.Valid() {
		return domain.ErrUnknownType
	}
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		zs = append(zs, redis.Z{
			Score:  float64(m.Score),
			Member: strconv.FormatInt(m.UserID, 10),
		})
	}
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, t.Key(), zs...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, t domain.Type, userID int64) error {
	if !t.Valid() {
		return domain.ErrUnknownType
	}
	err := s.client.ZRem(ctx, t.Key(), strconv.FormatInt(userID, 10)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) TopN(ctx context.Context, t domain.Type, n int64) ([]domain.Entry, error) {
	if !t.Valid() {
		return nil, domain.ErrUnknownType
	}
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, t.Key(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	entries := make([]domain.Entry, 0, len(zs))
	for i, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, domain.Entry{
			UserID: userID,
			Score:  int64(z.Score),
			Rank:   int64(i) + 1,
		})
	}
	return entries, nil
}

func (s *RedisStore) RankAndScore(ctx context.Context, t domain.Type, userID int64) (int64, int64, error) {
	if !t.Valid() {
		return 0, 0, domain.ErrUnknownType
	}
	member := strconv.FormatInt(userID, 10)
	rank, err := s.client.ZRevRank(ctx, t.Key(), member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, domain.ErrNotFound
		}
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	score, err := s.client.ZScore(ctx, t.Key(), member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, domain.ErrNotFound
		}
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return rank + 1, int64(score), nil
}

func (s *RedisStore) Card(ctx context.Context, t domain.Type) (int64, error) {
	if !t.Valid() {
		return 0, domain.ErrUnknownType
	}
	n, err := s.client.ZCard(ctx, t.Key()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}
