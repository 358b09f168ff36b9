package adapters

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// zPopMinScript atomically reads and removes the lowest-score member of a
// sorted set. Adapted from control_plane/store/redis.go's pattern of
// preloading Lua script SHAs at construction time (to avoid shipping
// script text on every call) and using EVALSHA for atomicity — here for
// ZPOPMIN instead of the teacher's lock-renewal script, since spec.md's
// Open Question 3 requires atomic pop to avoid the double-dispatch race a
// zrange-then-zrem sequence would allow.
const zPopMinScript = `
local res = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if #res == 0 then
	return false
end
redis.call("ZREM", KEYS[1], res[1])
return res[1]
`

// RedisKV implements the KvAdapter boundary over a redis.Client, following
// control_plane/store/redis.go's connection-and-script-preload style.
type RedisKV struct {
	client      *redis.Client
	zPopMinSHA  string
}

// NewRedisKV connects to addr and preloads the ZPOPMIN Lua script.
func NewRedisKV(addr, password string, db int) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	sha, err := client.ScriptLoad(ctx, zPopMinScript).Result()
	if err != nil {
		return nil, err
	}

	return &RedisKV{client: client, zPopMinSHA: sha}, nil
}

func (r *RedisKV) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r *RedisKV) ZPopMin(ctx context.Context, key string) (string, bool, error) {
	res, err := r.client.EvalSha(ctx, r.zPopMinSHA, []string{key}).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	member, ok := res.(string)
	if !ok {
		return "", false, nil
	}
	return member, true, nil
}

func (r *RedisKV) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *RedisKV) ZScan(ctx context.Context, key string) ([]string, error) {
	return r.client.ZRange(ctx, key, 0, -1).Result()
}

func (r *RedisKV) ZRem(ctx context.Context, key string, member string) error {
	return r.client.ZRem(ctx, key, member).Err()
}

func (r *RedisKV) LPush(ctx context.Context, key string, value string) error {
	return r.client.LPush(ctx, key, value).Err()
}

func (r *RedisKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

// IncrWithExpiry increments key and, only when the counter was just
// created (newValue == 1), sets its TTL — matching the
// genai:quota:<tenant>:<YYYYMMDD> 24h-TTL-on-first-write semantics of §6.
func (r *RedisKV) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	newValue, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if newValue == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return newValue, err
		}
	}
	return newValue, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// ScanPrefix walks the keyspace for clear_tenant (§4.7). Uses SCAN rather
// than KEYS to avoid blocking the server on large keyspaces.
func (r *RedisKV) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
