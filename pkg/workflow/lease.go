package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Lease guarantees a single executor per run. The claim is nil when ok is false.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (claim Claim, ok bool, err error)
}

// Claim is a held lease. Renew reports false once the lease has expired and
// been taken by someone else.
type Claim interface {
	Renew(ctx context.Context, ttl time.Duration) (bool, error)
	Release()
}

// MemoryLease is process-local.
type MemoryLease struct {
	mu sync.Mutex
	c  *cache.Cache
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{c: cache.New(15*time.Minute, time.Minute)}
}

func (m *MemoryLease) Acquire(_ context.Context, key string, ttl time.Duration) (Claim, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.NewString()
	if err := m.c.Add(key, token, ttl); err != nil {
		return nil, false, nil
	}
	return &memoryClaim{lease: m, key: key, token: token}, true, nil
}

func (m *MemoryLease) owned(key, token string) bool {
	v, ok := m.c.Get(key)
	return ok && v == token
}

type memoryClaim struct {
	lease *MemoryLease
	key   string
	token string
}

func (c *memoryClaim) Renew(_ context.Context, ttl time.Duration) (bool, error) {
	c.lease.mu.Lock()
	defer c.lease.mu.Unlock()
	if !c.lease.owned(c.key, c.token) {
		return false, nil
	}
	c.lease.c.Set(c.key, c.token, ttl)
	return true, nil
}

func (c *memoryClaim) Release() {
	c.lease.mu.Lock()
	defer c.lease.mu.Unlock()
	if c.lease.owned(c.key, c.token) {
		c.lease.c.Delete(c.key)
	}
}

// only touch the key if we still own it
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

// RedisLease shares leases across processes.
type RedisLease struct {
	rdb *redis.Client
}

func NewRedisLease(rdb *redis.Client) *RedisLease {
	return &RedisLease{rdb: rdb}
}

func (r *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (Claim, bool, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &redisClaim{rdb: r.rdb, key: key, token: token}, true, nil
}

type redisClaim struct {
	rdb   *redis.Client
	key   string
	token string
}

func (c *redisClaim) Renew(ctx context.Context, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, c.rdb, []string{c.key}, c.token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *redisClaim) Release() {
	// ctx may already be cancelled when the run is abandoned
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(rctx, c.rdb, []string{c.key}, c.token).Err()
}
