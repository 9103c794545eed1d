package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

// RedisIndex keeps monitor records as JSON strings keyed by id and one
// sorted set per (symbol, category, direction) scored by threshold.
type RedisIndex struct {
	client redis.UniversalClient
}

// NewRedisIndex wraps client
func NewRedisIndex(client redis.UniversalClient) *RedisIndex {
	return &RedisIndex{client: client}
}

func (r *RedisIndex) Add(ctx context.Context, m *domain.Monitor) error {
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.NewParsingError("encode monitor", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.ID, data, 0)
		pipe.ZAdd(ctx, indexKey(m.Symbol, m.Category(), m.Type), redis.Z{Score: m.Value, Member: m.ID})
		pipe.SAdd(ctx, symbolsKey, m.Symbol)
		return nil
	})
	if err != nil {
		return apperrors.NewStorageError("add monitor", err).WithContext("id", m.ID)
	}
	return nil
}

func (r *RedisIndex) Remove(ctx context.Context, m *domain.Monitor) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, indexKey(m.Symbol, m.Category(), m.Type), m.ID)
		pipe.Del(ctx, m.ID)
		return nil
	})
	if err != nil {
		return false, apperrors.NewStorageError("remove monitor", err).WithContext("id", m.ID)
	}
	return removed.Val() == 1, nil
}

func (r *RedisIndex) Match(ctx context.Context, symbol string, price float64) ([]*domain.Monitor, error) {
	p := strconv.FormatFloat(price, 'f', -1, 64)

	pipe := r.client.Pipeline()
	var cmds []*redis.StringSliceCmd
	for _, c := range categories {
		cmds = append(cmds,
			pipe.ZRangeByScore(ctx, indexKey(symbol, c, domain.MonitorPriceGreater), &redis.ZRangeBy{Min: "-inf", Max: p}),
			pipe.ZRangeByScore(ctx, indexKey(symbol, c, domain.MonitorPriceLess), &redis.ZRangeBy{Min: p, Max: "+inf"}))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.NewStorageError("match monitors", err).WithContext("symbol", symbol)
	}

	seen := map[string]bool{}
	var ids []string
	for _, cmd := range cmds {
		for _, id := range cmd.Val() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, ids...).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("load monitors", err)
	}
	out := make([]*domain.Monitor, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// record deleted between the range query and the load
			continue
		}
		var m domain.Monitor
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, apperrors.NewParsingError("decode monitor", err)
		}
		out = append(out, &m)
	}
	return out, nil
}

func (r *RedisIndex) Get(ctx context.Context, id string) (*domain.Monitor, error) {
	s, err := r.client.Get(ctx, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewNotFoundError("monitor " + id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get monitor", err)
	}
	var m domain.Monitor
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, apperrors.NewParsingError("decode monitor", err)
	}
	return &m, nil
}

func (r *RedisIndex) Symbols(ctx context.Context) ([]string, error) {
	symbols, err := r.client.SMembers(ctx, symbolsKey).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("list watched symbols", err)
	}
	return symbols, nil
}
