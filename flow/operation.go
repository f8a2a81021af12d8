package flow

import "context"

// Store is the persistence seam an Operation uses to load and save intent,
// attempt, mandate and payout state. store.Postgres implements it; tests
// use an in-memory fake.
type Store interface {
	GetTracker(ctx context.Context, rd *RouterData) error
	UpdateTracker(ctx context.Context, rd *RouterData) error
	PostUpdateTracker(ctx context.Context, rd *RouterData) error
}

// Decision tells the Executor whether to actually call the connector for
// this RouterData, generalizing the branch the spec calls
// Skip/Avoid/HandleResponse/Trigger.
type Decision int

const (
	// Trigger means build a request and call the connector.
	Trigger Decision = iota
	// Skip means the flow has nothing to do (e.g. a Sync on an intent that
	// never reached the connector) and PostUpdateTracker runs unchanged.
	Skip
	// Avoid means a connector call would be unsafe right now (e.g. the
	// intent is already terminal) and the operation must fail fast.
	Avoid
	// HandleResponse means the response to parse is already in hand (e.g.
	// a redirect-completion callback) and no new HTTP call is needed.
	HandleResponse
)

// Operation is the four-stage pipeline every flow implements:
// Validate rejects malformed input before any state is touched; GetTracker
// loads the current intent/attempt/mandate rows into rd; Domain applies
// business rules (capability downgrades, amount checks) to rd.Request;
// UpdateTracker persists the pre-call state transition (e.g. mark
// CaptureInitiated before calling out); PostUpdateTracker persists the
// post-call state transition once a Response or Err is known.
type Operation interface {
	Name() Name
	Validate(ctx context.Context, rd *RouterData) error
	GetTracker(ctx context.Context, rd *RouterData, store Store) error
	Domain(ctx context.Context, rd *RouterData) error
	Decide(ctx context.Context, rd *RouterData) Decision
	UpdateTracker(ctx context.Context, rd *RouterData, store Store) error
	PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error
}
