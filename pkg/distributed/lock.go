package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotHeld = errors.New("lock not held")

// unlockScript deletes the key only while it still carries our value.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock is a single-holder Redis lock. The key expires after ttl, so a
// crashed holder cannot block others forever.
type Lock struct {
	client redis.Cmdable
	key    string
	value  string
	ttl    time.Duration
}

func NewLock(client redis.Cmdable, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		value:  lockValue(),
		ttl:    ttl,
	}
}

func lockValue() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (l *Lock) Key() string {
	return l.key
}

// TryLock acquires the lock without waiting.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock %s: %w", l.key, err)
	}
	return acquired, nil
}

// Unlock releases the lock if this holder still owns it.
func (l *Lock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
