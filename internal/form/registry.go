package form

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// DefaultCapacity is the number of open sessions kept when none is given.
const DefaultCapacity = 256

type session struct {
	controller *Controller
	seq        uint64
}

// Registry tracks the open form sessions of all browsers. Sessions are removed
// when they close; when full, the oldest open session is evicted.
type Registry struct {
	submitter Submitter
	logger    *zap.Logger
	capacity  int
	onSuccess func(ctx context.Context)

	mu       sync.Mutex
	sessions map[string]*session
	nextSeq  uint64
}

// NewRegistry creates a Registry whose sessions submit through submitter and
// run onSuccess after every successful submission.
func NewRegistry(
	submitter Submitter,
	logger *zap.Logger,
	capacity int,
	onSuccess func(ctx context.Context),
) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Registry{
		submitter: submitter,
		logger:    logger,
		capacity:  capacity,
		onSuccess: onSuccess,
		sessions:  make(map[string]*session),
	}
}

// Open starts a new session, editing existing when it is non-nil.
func (r *Registry) Open(existing *model.Listing) (string, *Controller) {
	id := uuid.New().String()

	c := New(r.submitter, r.logger,
		WithOnSuccess(r.onSuccess),
		WithOnClose(func() { r.remove(id) }),
	)
	c.Initialize(existing)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.capacity {
		r.evictOldestLocked()
	}
	r.nextSeq++
	r.sessions[id] = &session{controller: c, seq: r.nextSeq}

	r.logger.Debug("form session opened",
		zap.String("session_id", id),
		zap.String("mode", c.Mode().String()),
	)

	return id, c
}

// Get returns the open session with the given ID.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.controller, true
}

// Close cancels the session with the given ID. Unknown IDs are ignored.
func (r *Registry) Close(id string) error {
	c, ok := r.Get(id)
	if !ok {
		return nil
	}
	return c.Cancel()
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.logger.Debug("form session closed", zap.String("session_id", id))
	}
}

// evictOldestLocked drops the oldest session that is not mid-submission.
func (r *Registry) evictOldestLocked() {
	var (
		oldestID  string
		oldestSeq uint64
	)
	for id, s := range r.sessions {
		if s.controller.Busy() {
			continue
		}
		if oldestID == "" || s.seq < oldestSeq {
			oldestID = id
			oldestSeq = s.seq
		}
	}
	if oldestID == "" {
		return
	}

	delete(r.sessions, oldestID)
	r.logger.Info("form session evicted", zap.String("session_id", oldestID))
}
