// Package limiter gates report runs. Inside one process a semaphore caps
// concurrent runs; across processes sharing a work directory an optional
// Redis lock keeps two runs off the same paths.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the shared lock is held by another process.
var ErrBusy = errors.New("another run holds the work directory lock")

type Options struct {
	MaxConcurrent int
	// Redis enables the cross-process lock when non-nil.
	Redis   *redis.Client
	LockKey string
	LockTTL time.Duration
	// PollEvery is how often Acquire retries a lock held elsewhere.
	PollEvery time.Duration
}

// Gate serializes pipeline runs.
type Gate struct {
	sem       chan struct{}
	rdb       *redis.Client
	lockKey   string
	lockTTL   time.Duration
	pollEvery time.Duration
}

func New(opts Options) *Gate {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = 2 * time.Second
	}
	if opts.LockKey == "" {
		opts.LockKey = "mtreport:lock:workdir"
	}
	return &Gate{
		sem:       make(chan struct{}, opts.MaxConcurrent),
		rdb:       opts.Redis,
		lockKey:   opts.LockKey,
		lockTTL:   opts.LockTTL,
		pollEvery: opts.PollEvery,
	}
}

// Acquire blocks for a local slot, then takes the shared lock if one is
// configured, polling while another process holds it. The returned func
// releases both.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	for {
		select {
		case g.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		release, err := g.shared(ctx)
		if !errors.Is(err, ErrBusy) {
			return release, err
		}
		select {
		case <-time.After(g.pollEvery):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryAcquire is Acquire without waiting. ok is false when either the local
// slots or the shared lock are taken.
func (g *Gate) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	select {
	case g.sem <- struct{}{}:
	default:
		return nil, false, nil
	}
	release, err = g.shared(ctx)
	if errors.Is(err, ErrBusy) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return release, true, nil
}

// shared is called holding a local slot.
func (g *Gate) shared(ctx context.Context) (func(), error) {
	local := func() { <-g.sem }
	if g.rdb == nil {
		return local, nil
	}
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, g.lockKey, token, g.lockTTL).Result()
	if err != nil {
		local()
		return nil, fmt.Errorf("run lock: %w", err)
	}
	if !ok {
		local()
		return nil, ErrBusy
	}
	return func() {
		// Only the holder may delete the key.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.rdb, []string{g.lockKey}, token).Err()
		local()
	}, nil
}

// Inflight returns the number of local runs holding a slot.
func (g *Gate) Inflight() int { return len(g.sem) }

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
