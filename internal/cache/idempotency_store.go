package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRequestInFlight 同一把 Idempotency-Key 的請求仍在處理中
var ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

const inFlightPrefix = "inflight:"

// StoredResponse 第一次請求的回應，重送時原樣回放
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type IdempotencyStore interface {
	// Acquire 佔用 key；key 已完成時回傳先前的回應，處理中回傳 ErrRequestInFlight
	Acquire(ctx context.Context, key string) (token string, existing *StoredResponse, err error)
	// Complete 保存回應，只有持有 token 的請求能寫入
	Complete(ctx context.Context, key, token string, resp StoredResponse) error
	// Release 放棄佔用，讓之後的重送可以重新執行
	Release(ctx context.Context, key, token string) error
}

type RedisIdempotencyStore struct {
	client   *redis.Client
	ttl      time.Duration
	newToken func() string
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client:   client,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

// IdempotencyKey 依呼叫者與路徑區隔 key，不同使用者送同一個值不會互相影響
func IdempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, key)
}

// 只有在值仍是自己的 in-flight 標記時才覆寫
var completeScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

func (s *RedisIdempotencyStore) Acquire(ctx context.Context, key string) (string, *StoredResponse, error) {
	token := s.newToken()
	marker := inFlightPrefix + token

	// 第二次嘗試處理 GET 之前 key 剛好過期的情況
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, key, marker, s.ttl).Result()
		if err != nil {
			return "", nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			return token, nil, nil
		}

		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("get: %w", err)
		}
		if strings.HasPrefix(val, inFlightPrefix) {
			return "", nil, ErrRequestInFlight
		}

		var stored StoredResponse
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return "", nil, fmt.Errorf("decode stored response: %w", err)
		}
		return "", &stored, nil
	}

	return "", nil, ErrRequestInFlight
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, token string, resp StoredResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return completeScript.Run(ctx, s.client, []string{key}, inFlightPrefix+token, string(payload), s.ttl.Milliseconds()).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{key}, inFlightPrefix+token).Err()
}
