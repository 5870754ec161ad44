package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLeaseNotHeld is returned by Release when another holder owns the key.
var ErrLeaseNotHeld = errors.New("lease not held by this instance")

// Owner-checked release and renewal: only the token that set the key may touch it.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	renewScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Lease is an exclusive, self-renewing claim on a Redis key. While held it is
// extended every TTL/3; if a renewal finds the key gone or owned by someone else
// the lease is marked lost and the OnLost callback runs.
type Lease struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration

	mu     sync.Mutex
	held   bool
	stop   chan struct{}
	done   chan struct{}
	onLost func()
}

func NewLease(client redis.Cmdable, key string, ttl time.Duration) *Lease {
	return &Lease{
		client: client,
		key:    key,
		token:  newToken(),
		ttl:    ttl,
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (l *Lease) Key() string   { return l.key }
func (l *Lease) Token() string { return l.token }

// OnLost registers fn to run, on the renewal goroutine, when a held lease is lost.
func (l *Lease) OnLost(fn func()) {
	l.mu.Lock()
	l.onLost = fn
	l.mu.Unlock()
}

func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// TryAcquire claims the key without waiting. It reports true when the lease is
// held afterwards, including when it was already held.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return true, nil
	}

	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}

	l.held = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.renew(l.stop, l.done)
	return true, nil
}

// Acquire polls until the lease is held, ctx is done or timeout passes.
func (l *Lease) Acquire(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lease %s acquisition timeout", l.key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Release stops renewal and deletes the key if this instance still owns it.
// Releasing a lease that is not held is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		return nil
	}
	l.held = false
	close(l.stop)
	done := l.done
	l.mu.Unlock()
	<-done

	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	if deleted == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// Holder returns the token currently stored under the key, or "" when free.
func (l *Lease) Holder(ctx context.Context) (string, error) {
	token, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

func (l *Lease) renew(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		extended, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			// Transient failure; the key survives until its TTL runs out.
			continue
		}
		if extended == 1 {
			continue
		}

		l.mu.Lock()
		select {
		case <-stop:
			l.mu.Unlock()
			return
		default:
		}
		l.held = false
		onLost := l.onLost
		l.mu.Unlock()
		if onLost != nil {
			onLost()
		}
		return
	}
}

// LeaseManager hands out leases under a shared key prefix.
type LeaseManager struct {
	client redis.Cmdable
	prefix string
}

func NewLeaseManager(client redis.Cmdable, prefix string) *LeaseManager {
	return &LeaseManager{client: client, prefix: prefix}
}

func (m *LeaseManager) Lease(name string, ttl time.Duration) *Lease {
	return NewLease(m.client, m.prefix+name, ttl)
}
