package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	pingTimeout    = 3 * time.Second
	defaultLockTTL = 10 * time.Minute
	lockPrefix     = "lock"
)

var (
	cli *redis.Client

	lockTokens sync.Map
)

func Init(addr, password string) error {
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return err
	}

	cli = c
	return nil
}

func GetClient() (*redis.Client, error) {
	if cli == nil {
		return nil, fmt.Errorf("redis not initialized")
	}
	return cli, nil
}

func Ping(ctx context.Context) error {
	c, err := GetClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.Ping(ctx).Err()
}

// TryLock acquires a process-wide advisory lock. A zero ttl falls back to the
// default so a crashed holder cannot wedge the lock forever.
func TryLock(key string, ttl time.Duration) error {
	c, err := GetClient()
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = defaultLockTTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	token := uuid.NewString()
	ok, err := c.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lock %v held elsewhere", key)
	}
	lockTokens.Store(key, token)
	return nil
}

// Renew extends a held lock's TTL if we still own it; without renewal the
// TTL lapses while the holder keeps running. A zero ttl falls back to the
// default.
func Renew(key string, ttl time.Duration) error {
	token, ok := lockTokens.Load(key)
	if !ok {
		return fmt.Errorf("lock %v not held", key)
	}
	c, err := GetClient()
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = defaultLockTTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
	res, err := script.Run(ctx, c, []string{lockKey(key)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return fmt.Errorf("lock %v lost", key)
	}
	return nil
}

func Unlock(key string) error {
	token, ok := lockTokens.LoadAndDelete(key)
	if !ok {
		return fmt.Errorf("lock %v not held", key)
	}
	c, err := GetClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	// Release only if we still own it.
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	return script.Run(ctx, c, []string{lockKey(key)}, token).Err()
}

func lockKey(key string) string {
	return fmt.Sprintf("%v:%v", lockPrefix, key)
}

func IsNil(err error) bool {
	return err == redis.Nil
}
