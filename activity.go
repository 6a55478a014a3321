package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventIdentityRegistered     ActivityEventType = "identity.registered"
	ActivityEventIdentityVerified       ActivityEventType = "identity.verified"
	ActivityEventIdentityReaped         ActivityEventType = "identity.reaped"
	ActivityEventIdentityUpdated        ActivityEventType = "identity.updated"
	ActivityEventIdentityDeleted        ActivityEventType = "identity.deleted"
	ActivityEventSignInSuccess          ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure          ActivityEventType = "auth.signin.failure"
	ActivityEventPasswordResetRequested ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetVerified  ActivityEventType = "auth.password.reset.verified"
	ActivityEventPasswordResetCompleted ActivityEventType = "auth.password.reset.completed"
)

// Metadata keys set on activity events
const (
	MetadataKeyCount      = "count"
	MetadataKeyCutoff     = "cutoff"
	MetadataKeyLocationID = "location_id"
	MetadataKeyFields     = "fields"
)

// ActivityEvent captures audit-friendly information about an action.
// Events only carry identifiers, never identity records.
type ActivityEvent struct {
	EventType  ActivityEventType
	IdentityID string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity emits an event and logs sink failures, the caller never
// sees them.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = defaultClock()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink failed to record %s: %v", event.EventType, err)
	}
}
