package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/interfaces"
)

const (
	saveKeyPrefix = "jianghu:save:"
	saveIndexKey  = "jianghu:saves"
)

// RedisStore keeps save slots in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, ttl: cfg.SaveTTL}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func saveKey(slot int) string {
	return saveKeyPrefix + strconv.Itoa(slot)
}

// WriteSlot stores a serialized game under a slot and indexes it.
func (s *RedisStore) WriteSlot(ctx context.Context, slot int, data []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, saveKey(slot), data, s.ttl)
	pipe.SAdd(ctx, saveIndexKey, slot)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write save slot %d: %w", slot, err)
	}
	return nil
}

func (s *RedisStore) ReadSlot(ctx context.Context, slot int) ([]byte, error) {
	data, err := s.client.Get(ctx, saveKey(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read save slot %d: %w", slot, err)
	}
	return data, nil
}

func (s *RedisStore) ListSlots(ctx context.Context) ([]int, error) {
	members, err := s.client.SMembers(ctx, saveIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list save slots: %w", err)
	}
	slots := make([]int, 0, len(members))
	for _, m := range members {
		slot, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n, err := s.client.Exists(ctx, saveKey(slot)).Result(); err == nil && n > 0 {
			slots = append(slots, slot)
		}
	}
	sort.Ints(slots)
	return slots, nil
}
