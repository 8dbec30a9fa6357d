package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

const (
	redisEventPrefix   = "event:"
	redisReceiptPrefix = "receipts:"
	redisIndexKey      = "events:index"
	redisClaimIndexKey = "receipts:index"

	// redisMaxAttempts bounds optimistic retries before a transition gives up
	// with ErrConflict.
	redisMaxAttempts = 16
)

// RedisStore keeps each record as its fixed binary layout under event:<key>.
// Transitions use WATCH/MULTI, so a write only lands if nobody else changed
// the record since it was read.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new store backed by Redis.
func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Create(ctx context.Context, key string, rec ledger.EventRecord) error {
	buf, err := rec.MarshalBinary()
	if err != nil {
		return ledger.AllocationError(err)
	}

	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, redisEventPrefix+key, buf, 0)
		pipe.ZAddNX(ctx, redisIndexKey, redis.Z{Score: float64(rec.CreatedAt.Unix()), Member: key})
		return nil
	})
	if err != nil {
		return ledger.AllocationError(fmt.Errorf("redis create: %w", err))
	}
	if !created.Val() {
		return ledger.AllocationError(errSlotOccupied(key))
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, key string, fn Mutation) (ledger.EventRecord, *Receipt, error) {
	eventKey := redisEventPrefix + key

	var (
		next    ledger.EventRecord
		receipt *Receipt
	)
	txf := func(tx *redis.Tx) error {
		current, err := loadRedisEvent(ctx, tx, eventKey)
		if err != nil {
			return err
		}
		next = current
		receipt, err = fn(&next)
		if err != nil {
			next = current
			return err
		}
		buf, err := next.MarshalBinary()
		if err != nil {
			return err
		}
		var rbuf []byte
		if receipt != nil {
			if rbuf, err = json.Marshal(receipt); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, eventKey, buf, 0)
			if receipt != nil {
				pipe.RPush(ctx, redisReceiptPrefix+string(receipt.Claimer), rbuf)
				pipe.ZAdd(ctx, redisClaimIndexKey, redis.Z{Score: float64(receipt.ClaimedAt.UnixMicro()), Member: rbuf})
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, eventKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return next, nil, err
		}
		return next, receipt, nil
	}
	return ledger.EventRecord{}, nil, ErrConflict
}

func (s *RedisStore) Get(ctx context.Context, key string) (ledger.EventRecord, error) {
	return loadRedisEvent(ctx, s.client, redisEventPrefix+key)
}

func (s *RedisStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	keys, err := s.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		rec, err := s.Get(ctx, k)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f.match(rec) {
			out = append(out, Entry{Key: k, Record: rec})
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *RedisStore) Receipts(ctx context.Context, holder ledger.Identity) ([]Receipt, error) {
	raw, err := s.client.LRange(ctx, redisReceiptPrefix+string(holder), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeReceipts(raw)
}

// ReceiptsBetween reads the claim index, scored by claim time in microseconds.
func (s *RedisStore) ReceiptsBetween(ctx context.Context, from, to time.Time) ([]Receipt, error) {
	raw, err := s.client.ZRangeByScore(ctx, redisClaimIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMicro(), 10),
		Max: "(" + strconv.FormatInt(to.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out, err := decodeReceipts(raw)
	if err != nil {
		return nil, err
	}
	sortReceipts(out)
	return out, nil
}

func decodeReceipts(raw []string) ([]Receipt, error) {
	out := make([]Receipt, 0, len(raw))
	for _, item := range raw {
		var r Receipt
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode receipt: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadRedisEvent(ctx context.Context, c redisGetter, key string) (ledger.EventRecord, error) {
	buf, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger.EventRecord{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.EventRecord{}, err
	}
	var rec ledger.EventRecord
	if err := rec.UnmarshalBinary(buf); err != nil {
		return ledger.EventRecord{}, err
	}
	return rec, nil
}
