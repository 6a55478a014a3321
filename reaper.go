package accounts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultVerificationGracePeriod is how long an identity may stay unverified
	DefaultVerificationGracePeriod = 15 * time.Minute
	// DefaultSweepInterval is how often Run sweeps for expired identities
	DefaultSweepInterval = time.Minute
)

// Reaper deletes identities that never verified their email.
//
// Schedule arms an in-process timer per identity. Timers are lost on
// restart, so Run also sweeps the store periodically for anything older than
// the grace period. Both paths use a conditional delete, a verification that
// lands first always wins.
type Reaper struct {
	identities Identities
	grace      time.Duration
	interval   time.Duration
	timeout    time.Duration
	activity   ActivitySink
	logger     Logger
	now        func() time.Time

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool
}

var _ ReaperScheduler = (*Reaper)(nil)

// ReaperOption customizes the reaper
type ReaperOption func(*Reaper)

// WithGracePeriod sets the verification window
func WithGracePeriod(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithSweepInterval sets how often Run sweeps
func WithSweepInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithReaperLogger(logger Logger) ReaperOption {
	return func(r *Reaper) {
		r.logger = normalizeLogger(logger)
	}
}

func WithReaperActivitySink(sink ActivitySink) ReaperOption {
	return func(r *Reaper) {
		r.activity = normalizeActivitySink(sink)
	}
}

// WithReaperClock injects a custom clock (useful for tests).
func WithReaperClock(clock func() time.Time) ReaperOption {
	return func(r *Reaper) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewReaper creates a reaper over the identity store
func NewReaper(identities Identities, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		identities: identities,
		grace:      DefaultVerificationGracePeriod,
		interval:   DefaultSweepInterval,
		timeout:    time.Second * 10,
		activity:   noopActivitySink{},
		logger:     defLogger{},
		now:        defaultClock,
		timers:     make(map[uuid.UUID]*time.Timer),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Schedule arms a one shot timer that reaps id after the grace period. It
// never blocks the caller.
func (r *Reaper) Schedule(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if existing, ok := r.timers[id]; ok {
		existing.Stop()
	}

	r.timers[id] = time.AfterFunc(r.grace, func() {
		r.fire(id)
	})
}

// Pending returns the number of armed timers
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop disarms every pending timer. Identities left behind are picked up
// by Sweep.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}

func (r *Reaper) fire(id uuid.UUID) {
	r.mu.Lock()
	delete(r.timers, id)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.Reap(ctx, id); err != nil {
		r.logger.Error("reaper failed to reap identity %s: %v", id, err)
	}
}

// Reap re-reads the identity and deletes it if it is still unverified.
// Returns true when a record was removed.
func (r *Reaper) Reap(ctx context.Context, id uuid.UUID) (bool, error) {
	identity, err := r.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			r.logger.Debug("reaper skip identity %s: already deleted", id)
			return false, nil
		}
		return false, err
	}

	if identity.EmailVerified {
		r.logger.Debug("reaper skip identity %s: verified", id)
		return false, nil
	}

	deleted, err := r.identities.DeleteUnverified(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		r.logger.Info("reaper deleted unverified identity %s", id)
		recordActivity(ctx, r.activity, r.logger, ActivityEvent{
			EventType:  ActivityEventIdentityReaped,
			IdentityID: id.String(),
			OccurredAt: r.now(),
		})
	}

	return deleted, nil
}

// Sweep deletes every unverified identity created before the grace period
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.grace)

	n, err := r.identities.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		r.logger.Info("reaper sweep deleted %d unverified identities", n)
		recordActivity(ctx, r.activity, r.logger, ActivityEvent{
			EventType: ActivityEventIdentityReaped,
			Metadata: map[string]any{
				MetadataKeyCount:  n,
				MetadataKeyCutoff: cutoff,
			},
			OccurredAt: r.now(),
		})
	}

	return n, nil
}

// Run sweeps once and then on every interval until ctx is done. Errors
// are logged and the loop continues.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Reaper) sweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.Sweep(sweepCtx); err != nil {
		r.logger.Error("reaper sweep failed: %v", err)
	}
}
