package openorders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	domain "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "autotrader:openorders:"

var ErrInvalidOrder = errors.New("open order requires id and symbol")

// RedisStore keeps open orders of a symbol in a sorted set scored by expiry
// time, with the order payloads in a companion hash. Both keys expire with
// the newest order.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ interfaces.OpenOrderStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix}
}

func (s *RedisStore) indexKey(symbol string) string { return s.prefix + symbol }
func (s *RedisStore) dataKey(symbol string) string  { return s.prefix + symbol + ":data" }

func (s *RedisStore) Add(ctx context.Context, order domain.OpenOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal open order: %w", err)
	}
	expiresAt := order.ExpiresAt()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.indexKey(order.Symbol), redis.Z{Score: float64(expiresAt.UnixMilli()), Member: order.ID})
		pipe.HSet(ctx, s.dataKey(order.Symbol), order.ID, payload)
		pipe.PExpireAt(ctx, s.indexKey(order.Symbol), expiresAt)
		pipe.PExpireAt(ctx, s.dataKey(order.Symbol), expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store open order %s: %w", order.ID, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, symbol, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.indexKey(symbol), id)
		pipe.HDel(ctx, s.dataKey(symbol), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove open order %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) HasOpen(ctx context.Context, symbol string, now time.Time) (bool, error) {
	count, err := s.client.ZCount(ctx, s.indexKey(symbol), exclusive(now), "+inf").Result()
	if err != nil {
		return false, fmt.Errorf("count open orders: %w", err)
	}
	return count > 0, nil
}

// List returns the unexpired orders of symbol, oldest first, and prunes
// expired ones.
func (s *RedisStore) List(ctx context.Context, symbol string, now time.Time) ([]domain.OpenOrder, error) {
	expired, err := s.client.ZRangeByScore(ctx, s.indexKey(symbol), &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10)}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired open orders: %w", err)
	}
	if len(expired) > 0 {
		if err := s.prune(ctx, symbol, expired); err != nil {
			return nil, err
		}
	}

	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(symbol), &redis.ZRangeBy{Min: exclusive(now), Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	payloads, err := s.client.HMGet(ctx, s.dataKey(symbol), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}

	out := make([]domain.OpenOrder, 0, len(payloads))
	for _, raw := range payloads {
		text, ok := raw.(string)
		if !ok {
			continue
		}
		var order domain.OpenOrder
		if err := json.Unmarshal([]byte(text), &order); err != nil {
			return nil, fmt.Errorf("decode open order: %w", err)
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) prune(ctx context.Context, symbol string, ids []string) error {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.indexKey(symbol), members...)
		pipe.HDel(ctx, s.dataKey(symbol), ids...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("prune expired open orders: %w", err)
	}
	return nil
}

// exclusive renders "(now" so an order expiring exactly now no longer counts.
func exclusive(now time.Time) string {
	return "(" + strconv.FormatInt(now.UnixMilli(), 10)
}

func validate(order domain.OpenOrder) error {
	if order.ID == "" || order.Symbol == "" {
		return ErrInvalidOrder
	}
	return nil
}
