package media

import (
	"sync"

	"go.uber.org/zap"
)

const eventBuffer = 256

// Router fans provider webhook events out to the session that owns each call.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]chan Event
	logger   *zap.Logger
}

// NewRouter creates an event router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		sessions: make(map[string]chan Event),
		logger:   logger,
	}
}

// Attach registers a call and returns its event channel. An existing channel
// for the same call is replaced and closed.
func (r *Router) Attach(callID string) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[callID]; ok {
		close(old)
	}
	ch := make(chan Event, eventBuffer)
	r.sessions[callID] = ch
	return ch
}

// Detach unregisters a call and closes its event channel, but only when ch
// is the channel currently registered for the call. A session leaving after
// its call was re-attached must not tear down the replacement's feed.
func (r *Router) Detach(callID string, ch <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[callID]
	if !ok || (<-chan Event)(cur) != ch {
		return
	}
	close(cur)
	delete(r.sessions, callID)
}

// Dispatch delivers an event to the call's session, if attached. Delivery is
// non-blocking; when the buffer is full the event is dropped. The read lock
// is held across the send so Attach/Detach cannot close the channel mid-send.
func (r *Router) Dispatch(callID string, ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.sessions[callID]
	if !ok {
		r.logger.Debug("event for unattached call dropped", zap.String("call_id", callID), zap.String("type", string(ev.Type)))
		return
	}
	select {
	case ch <- ev:
	default:
		r.logger.Warn("event buffer full, dropping", zap.String("call_id", callID), zap.String("type", string(ev.Type)))
	}
}
