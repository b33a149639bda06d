package queue

import (
	"context"
	"time"

	"github.com/poiesic/docqa/core"
)

// Work is the unit of execution for a queued request. The context carries the
// request's hard deadline; work that blocks must honor cancellation.
type Work func(ctx context.Context) (any, error)

// request is the internal tracked state of a submitted request.
// All fields are guarded by the manager's table mutex after creation,
// except done, which is closed exactly once on terminal transition.
type request struct {
	id          string
	kind        core.RequestKind
	resourceKey string
	state       core.RequestState
	result      any
	err         error
	createdAt   time.Time
	startedAt   time.Time
	finishedAt  time.Time
	work        Work
	done        chan struct{}
}

// Snapshot is a caller-visible copy of a request's state at poll time.
// It never exposes internal lock state or the work function.
type Snapshot struct {
	ID          string
	Kind        core.RequestKind
	ResourceKey string
	State       core.RequestState
	Result      any
	Err         error
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// snapshot copies the request state. Caller must hold the table mutex.
func (r *request) snapshot() Snapshot {
	return Snapshot{
		ID:          r.id,
		Kind:        r.kind,
		ResourceKey: r.resourceKey,
		State:       r.state,
		Result:      r.result,
		Err:         r.err,
		CreatedAt:   r.createdAt,
		StartedAt:   r.startedAt,
		FinishedAt:  r.finishedAt,
	}
}
